// Package steam implements a client for the game status of Steam users.
package steam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fgrosse/voicebot/ratelimit"
)

// DefaultMinInterval is the minimum spacing between two requests of a Client
// that was created without an explicit limiter.
const DefaultMinInterval = time.Second

// A Snapshot is the result of a single status request.
type Snapshot struct {
	Name     string // the persona name of the player, may be empty
	Activity string // the game that is currently played, empty if idle or offline
}

// Idle returns true if the player is not playing anything (or offline).
func (s Snapshot) Idle() bool {
	return s.Activity == ""
}

// Client fetches player summaries from the Steam Web API. All requests go
// through a rate limiter so many monitors may share a single Client without
// exceeding the API limits.
type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	limiter *ratelimit.Limiter
	logger  *zap.Logger

	mu   sync.Mutex
	http *http.Client // created on first use, released by Close
}

type playerSummaries struct {
	Response struct {
		Players []player `json:"players"`
	} `json:"response"`
}

type player struct {
	SteamID       string `json:"steamid"`
	PersonaName   string `json:"personaname"`
	GameExtraInfo string `json:"gameextrainfo"`
}

// NewClient creates a new Client that authenticates with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		c.limiter = ratelimit.New(DefaultMinInterval)
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	c.baseURL = strings.TrimSuffix(c.baseURL, "/")
	return c
}

// FetchStatus waits for the rate limiter and then requests the current
// activity of the player with the given Steam ID. A player that is unknown to
// the API is reported as idle. Any transport or decoding error is returned
// and should be treated by the caller as "no new data".
func (c *Client) FetchStatus(ctx context.Context, steamID string) (Snapshot, error) {
	if _, err := c.limiter.Acquire(ctx); err != nil {
		return Snapshot{}, err
	}

	c.logger.Debug("Fetching player summary", zap.String("steam_id", steamID))

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("steamids", steamID)
	addr := c.baseURL + "/ISteamUser/GetPlayerSummaries/v0002/?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return Snapshot{}, errors.Wrap(redact(err), "failed to create request")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return Snapshot{}, errors.Wrap(redact(err), "failed to request player summary")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, errors.Errorf("unexpected response status %q", resp.Status)
	}

	var summaries playerSummaries
	err = json.NewDecoder(resp.Body).Decode(&summaries)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to decode player summary")
	}

	players := summaries.Response.Players
	if len(players) == 0 {
		return Snapshot{}, nil
	}

	p := players[0]
	for _, candidate := range players {
		if candidate.SteamID == steamID {
			p = candidate
			break
		}
	}

	return Snapshot{
		Name:     p.PersonaName,
		Activity: strings.TrimSpace(p.GameExtraInfo),
	}, nil
}

// Close releases all idle connections of the Client. The Client can still be
// used afterwards, in which case a new HTTP client is created.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.http == nil {
		return nil
	}

	c.logger.Debug("Closing HTTP connections")
	c.http.CloseIdleConnections()
	c.http = nil
	return nil
}

func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		c.http = &http.Client{Timeout: c.timeout, Transport: transport}
	}

	return c.http
}

// redact removes the query string from URL errors since it contains the API key.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
			u.RawQuery = ""
			urlErr.URL = u.String()
		} else {
			urlErr.URL = "<redacted>"
		}
	}

	return err
}
