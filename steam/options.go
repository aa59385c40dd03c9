package steam

import (
	"time"

	"go.uber.org/zap"

	"github.com/fgrosse/voicebot/ratelimit"
)

// An Option configures a Client.
type Option func(*Client)

// DefaultBaseURL is the address of the public Steam Web API.
const DefaultBaseURL = "https://api.steampowered.com"

// DefaultTimeout is the HTTP timeout of a single status request.
const DefaultTimeout = 10 * time.Second

// WithBaseURL changes the address of the Steam Web API (e.g. for tests).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout changes the HTTP timeout of a single status request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLimiter sets the rate limiter that is acquired before every request.
// Clients that share a Limiter share its minimum interval.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger of the Client.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
