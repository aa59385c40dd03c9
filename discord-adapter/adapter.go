// Package discord implements a voicebot.Adapter for Discord. Besides messages
// the adapter emits voice channel and presence events and it knows in which
// voice channel a user currently is.
package discord

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fgrosse/voicebot"
)

// Config contains the configuration of the adapter.
type Config struct {
	Token     string
	GuildID   string
	MediaDir  string
	SendLimit rate.Limit
	SendBurst int
	Logger    *zap.Logger
}

// Discord allows five messages per channel every five seconds.
const (
	defaultSendLimit = rate.Limit(1)
	defaultSendBurst = 5
)

// Intents are the gateway intents the adapter subscribes to.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildPresences |
	discordgo.IntentsGuildMessages |
	discordgo.IntentMessageContent

// session is the subset of *discordgo.Session used by the adapter.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// BotAdapter implements a voicebot.Adapter that reads and writes messages
// to and from Discord.
type BotAdapter struct {
	context  context.Context
	logger   *zap.Logger
	session  session
	state    *discordgo.State
	guildID  string
	mediaDir string
	limiter  *rate.Limiter

	userID  string
	closed  *atomic.Bool
	removes []func()

	mu       sync.Mutex
	statuses map[string]string // user ID -> last seen presence status
}

// Adapter returns a new BotAdapter as voicebot.Module.
//
// Apart from the typical voicebot.ReceiveMessageEvent the adapter also emits
// the voicebot.VoiceJoinEvent, voicebot.VoiceLeaveEvent and the
// voicebot.PresenceUpdateEvent.
func Adapter(token string, opts ...Option) voicebot.Module {
	return voicebot.ModuleFunc(func(botConf *voicebot.Config) error {
		conf, err := newConf(token, botConf, opts)
		if err != nil {
			return err
		}

		a, err := NewAdapter(botConf.Context, conf)
		if err != nil {
			return err
		}

		botConf.SetAdapter(a)
		return nil
	})
}

func newConf(token string, botConf *voicebot.Config, opts []Option) (Config, error) {
	conf := Config{
		Token:     token,
		SendLimit: defaultSendLimit,
		SendBurst: defaultSendBurst,
	}

	for _, opt := range opts {
		err := opt(&conf)
		if err != nil {
			return conf, err
		}
	}

	if conf.Logger == nil {
		conf.Logger = botConf.Logger("discord")
	}

	return conf, nil
}

// NewAdapter creates a new *BotAdapter and connects it to the Discord gateway.
// Note that you will usually configure the discord adapter as voicebot.Module
// (i.e. using the Adapter function of this package).
func NewAdapter(ctx context.Context, conf Config) (*BotAdapter, error) {
	if conf.Token == "" {
		return nil, errors.New("missing discord token")
	}

	s, err := discordgo.New("Bot " + conf.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}

	s.Identify.Intents = Intents
	s.StateEnabled = true

	a := newAdapter(ctx, s, s.State, conf)

	err = s.Open()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to discord")
	}

	if s.State.User != nil {
		a.userID = s.State.User.ID
		a.logger.Info("Connected to discord",
			zap.String("user", s.State.User.Username),
			zap.String("user_id", s.State.User.ID),
		)
	}

	return a, nil
}

func newAdapter(ctx context.Context, s session, state *discordgo.State, conf Config) *BotAdapter {
	a := &BotAdapter{
		context:  ctx,
		logger:   conf.Logger,
		session:  s,
		state:    state,
		guildID:  conf.GuildID,
		mediaDir: conf.MediaDir,
		limiter:  rate.NewLimiter(conf.SendLimit, conf.SendBurst),
		closed:   atomic.NewBool(false),
		statuses: map[string]string{},
	}

	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	return a
}

// Register implements voicebot.Adapter by registering the Discord event
// handlers that emit the events of the bot.
func (a *BotAdapter) Register(events voicebot.EventRegistry) {
	a.removes = append(a.removes,
		a.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.MessageCreate) {
			a.handleMessage(events, evt)
		}),
		a.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.VoiceStateUpdate) {
			a.handleVoiceState(events, evt)
		}),
		a.session.AddHandler(func(_ *discordgo.Session, evt *discordgo.PresenceUpdate) {
			a.handlePresence(events, evt)
		}),
	)
}

func (a *BotAdapter) ignoreGuild(guildID string) bool {
	return a.guildID != "" && guildID != "" && guildID != a.guildID
}

func (a *BotAdapter) handleMessage(events voicebot.EventEmitter, evt *discordgo.MessageCreate) {
	if evt.Message == nil || evt.Author == nil || evt.Author.ID == a.userID || evt.Author.Bot {
		return
	}

	if a.ignoreGuild(evt.GuildID) {
		return
	}

	a.logger.Debug("Received message",
		zap.String("channel_id", evt.ChannelID),
		zap.String("author_id", evt.Author.ID),
	)

	events.Emit(voicebot.ReceiveMessageEvent{
		ID:       evt.ID,
		Text:     strings.TrimSpace(evt.Content),
		AuthorID: evt.Author.ID,
		Channel:  evt.ChannelID,
		Data:     evt,
	})
}

// handleVoiceState translates a voice state update into leave and join
// events. Moving between two channels emits both.
func (a *BotAdapter) handleVoiceState(events voicebot.EventEmitter, evt *discordgo.VoiceStateUpdate) {
	if evt.VoiceState == nil || evt.UserID == a.userID || a.ignoreGuild(evt.GuildID) {
		return
	}

	var before string
	if evt.BeforeUpdate != nil {
		before = evt.BeforeUpdate.ChannelID
	}

	after := evt.ChannelID
	if before == after {
		// mute, deafen or stream state changed
		return
	}

	name := memberName(evt.Member, evt.UserID)
	a.logger.Debug("Voice state changed",
		zap.String("user_id", evt.UserID),
		zap.String("before", before),
		zap.String("after", after),
	)

	if before != "" {
		events.Emit(voicebot.VoiceLeaveEvent{
			UserID:    evt.UserID,
			UserName:  name,
			ChannelID: before,
			GuildID:   evt.GuildID,
		})
	}

	if after != "" {
		events.Emit(voicebot.VoiceJoinEvent{
			UserID:    evt.UserID,
			UserName:  name,
			ChannelID: after,
			GuildID:   evt.GuildID,
		})
	}
}

func (a *BotAdapter) handlePresence(events voicebot.EventEmitter, evt *discordgo.PresenceUpdate) {
	if evt.User == nil || evt.User.ID == a.userID || a.ignoreGuild(evt.GuildID) {
		return
	}

	// discordgo updates its state cache before the handlers are called so
	// the previous status is tracked separately.
	a.mu.Lock()
	previous := a.statuses[evt.User.ID]
	a.statuses[evt.User.ID] = string(evt.Status)
	a.mu.Unlock()

	var activity string
	for _, act := range evt.Activities {
		if act != nil && act.Type == discordgo.ActivityTypeGame {
			activity = act.Name
			break
		}
	}

	events.Emit(voicebot.PresenceUpdateEvent{
		UserID:         evt.User.ID,
		UserName:       userName(evt.User),
		Status:         string(evt.Status),
		PreviousStatus: previous,
		Activity:       activity,
	})
}

// Send implements voicebot.Adapter by sending a message to the given channel.
func (a *BotAdapter) Send(text, channelID string) error {
	return a.SendContext(a.context, text, channelID)
}

// SendContext implements voicebot.ContextAwareAdapter. It gives up waiting
// for the send limit when the context is done.
func (a *BotAdapter) SendContext(ctx context.Context, text, channelID string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "send limit")
	}

	a.logger.Debug("Sending message to channel",
		zap.String("channel_id", channelID),
		// do not leak actual message content since it might be sensitive
	)

	_, err := a.session.ChannelMessageSend(channelID, text)
	return errors.Wrap(err, "failed to send message")
}

// SendMedia implements voicebot.MediaAwareAdapter. URLs are sent as message so
// Discord embeds them, everything else is uploaded as file from the media
// directory.
func (a *BotAdapter) SendMedia(ref, channelID string) error {
	return a.SendMediaContext(a.context, ref, channelID)
}

// SendMediaContext implements voicebot.ContextAwareAdapter.
func (a *BotAdapter) SendMediaContext(ctx context.Context, ref, channelID string) error {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return a.SendContext(ctx, ref, channelID)
	}

	path := ref
	if a.mediaDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(a.mediaDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open media file")
	}
	defer f.Close()

	if err := a.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "send limit")
	}

	a.logger.Debug("Sending file to channel",
		zap.String("channel_id", channelID),
		zap.String("file", filepath.Base(path)),
	)

	_, err = a.session.ChannelFileSend(channelID, filepath.Base(path), f)
	return errors.Wrap(err, "failed to send file")
}

// VoiceChannel implements voicebot.PresenceAwareAdapter by looking up the
// voice state of the user in the state cache of the session.
func (a *BotAdapter) VoiceChannel(_ context.Context, userID string) (string, error) {
	for _, guildID := range a.guilds() {
		vs, err := a.state.VoiceState(guildID, userID)
		switch {
		case err == discordgo.ErrStateNotFound:
			continue
		case err != nil:
			return "", errors.Wrap(err, "failed to lookup voice state")
		default:
			return vs.ChannelID, nil
		}
	}

	if a.guildID != "" {
		if _, err := a.state.Member(a.guildID, userID); err != nil {
			return "", voicebot.ErrUnknownUser
		}
	}

	return "", nil
}

func (a *BotAdapter) guilds() []string {
	if a.guildID != "" {
		return []string{a.guildID}
	}

	a.state.RLock()
	defer a.state.RUnlock()

	ids := make([]string, 0, len(a.state.Guilds))
	for _, g := range a.state.Guilds {
		ids = append(ids, g.ID)
	}

	return ids
}

// Close disconnects the adapter from Discord.
func (a *BotAdapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return errors.New("already closed")
	}

	for _, remove := range a.removes {
		remove()
	}

	return a.session.Close()
}

func memberName(m *discordgo.Member, fallback string) string {
	if m == nil {
		return fallback
	}

	if m.Nick != "" {
		return m.Nick
	}

	if m.User != nil {
		return userName(m.User)
	}

	return fallback
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}

	return u.Username
}
