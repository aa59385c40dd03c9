package monitor

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fgrosse/voicebot"
)

// An Option configures the monitor Module.
type Option func(*moduleConfig)

type moduleConfig struct {
	voiceChannel  string
	notifyChannel string
	lookup        Lookup
	pollInterval  time.Duration
	jitter        time.Duration
	subjects      map[string]string
}

// WithVoiceChannel restricts monitoring to a single voice channel. By default
// users in any voice channel are monitored.
func WithVoiceChannel(id string) Option {
	return func(c *moduleConfig) { c.voiceChannel = id }
}

// WithNotifyChannel sets the text channel that receives the notifications.
func WithNotifyChannel(id string) Option {
	return func(c *moduleConfig) { c.notifyChannel = id }
}

// WithLookup sets the messages and media that are sent per activity.
func WithLookup(l Lookup) Option {
	return func(c *moduleConfig) { c.lookup = l }
}

// WithPollInterval sets the time between two polls of the same subject.
func WithPollInterval(d time.Duration) Option {
	return func(c *moduleConfig) { c.pollInterval = d }
}

// WithJitter adds a random delay of up to d to every poll interval.
func WithJitter(d time.Duration) Option {
	return func(c *moduleConfig) { c.jitter = d }
}

// WithSubjects statically maps chat user IDs to Steam IDs.
func WithSubjects(refs map[string]string) Option {
	return func(c *moduleConfig) { c.subjects = refs }
}

var (
	linkCommand     = regexp.MustCompile(`(?i)^link steam (\d{17})$`)
	unlinkCommand   = regexp.MustCompile(`(?i)^unlink steam$`)
	monitorsCommand = regexp.MustCompile(`(?i)^monitors$`)
)

type module struct {
	logger       *zap.Logger
	sender       *voicebot.Sender
	client       StatusClient
	refs         *References
	supervisor   *Supervisor
	voiceChannel string

	mu     sync.Mutex
	roster map[string]voicebot.VoiceJoinEvent // users in the watched channel
}

// Module returns a bot Module that monitors everybody who joins the watched
// voice channel and has a Steam ID. Users can link their Steam ID with the
// "link steam <id>" command and ask for the running monitors via "monitors".
func Module(client StatusClient, opts ...Option) voicebot.Module {
	return voicebot.ModuleFunc(func(conf *voicebot.Config) error {
		var mc moduleConfig
		for _, opt := range opts {
			opt(&mc)
		}

		m := &module{
			logger:       conf.Logger("monitor"),
			sender:       conf.Sender(),
			client:       client,
			refs:         NewReferences(mc.subjects, conf.Storage()),
			voiceChannel: mc.voiceChannel,
			roster:       map[string]voicebot.VoiceJoinEvent{},
		}

		var err error
		m.supervisor, err = NewSupervisor(conf.Context, Config{
			Status:       client,
			Presence:     m,
			Notifier:     m,
			Lookup:       mc.lookup,
			Channel:      mc.notifyChannel,
			PollInterval: mc.pollInterval,
			Jitter:       mc.jitter,
			Logger:       m.logger,
		})
		if err != nil {
			return err
		}

		conf.RegisterHandler(m.voiceJoin)
		conf.RegisterHandler(m.voiceLeave)
		conf.RegisterHandler(m.receiveMessage)
		conf.RegisterHandler(m.shutdown)
		return nil
	})
}

func (m *module) watched(channelID string) bool {
	return m.voiceChannel == "" || channelID == m.voiceChannel
}

func (m *module) voiceJoin(evt voicebot.VoiceJoinEvent) error {
	if !m.watched(evt.ChannelID) {
		return nil
	}

	m.mu.Lock()
	m.roster[evt.UserID] = evt
	m.mu.Unlock()

	ref, err := m.refs.Lookup(evt.UserID)
	if err != nil {
		return err
	}

	m.supervisor.OnSubjectBecameEligible(Subject{ID: evt.UserID, Name: evt.UserName, Ref: ref})
	return nil
}

func (m *module) voiceLeave(evt voicebot.VoiceLeaveEvent) {
	if evt.ChannelID != "" && !m.watched(evt.ChannelID) {
		return
	}

	m.mu.Lock()
	delete(m.roster, evt.UserID)
	m.mu.Unlock()

	m.supervisor.OnSubjectBecameIneligible(evt.UserID)
}

func (m *module) receiveMessage(evt voicebot.ReceiveMessageEvent) error {
	text := strings.TrimSpace(evt.Text)
	switch {
	case linkCommand.MatchString(text):
		ref := linkCommand.FindStringSubmatch(text)[1]
		return m.link(evt, ref)

	case unlinkCommand.MatchString(text):
		return m.unlink(evt)

	case monitorsCommand.MatchString(text):
		return m.listMonitors(evt)

	default:
		return nil
	}
}

func (m *module) link(evt voicebot.ReceiveMessageEvent, ref string) error {
	previous, err := m.refs.Lookup(evt.AuthorID)
	if err != nil {
		return err
	}

	if err := m.refs.Link(evt.AuthorID, ref); err != nil {
		return err
	}

	if err := m.sender.Send("OK, I linked your Steam account.", evt.Channel); err != nil {
		return err
	}

	m.mu.Lock()
	join, ok := m.roster[evt.AuthorID]
	m.mu.Unlock()

	if !ok {
		return nil
	}

	// Statically configured references still win over linked ones.
	current, err := m.refs.Lookup(evt.AuthorID)
	if err != nil {
		return err
	}

	if previous != "" && previous != current {
		// the running monitor still polls the old reference
		m.supervisor.OnSubjectBecameIneligible(evt.AuthorID)
	}

	m.supervisor.OnSubjectBecameEligible(Subject{ID: evt.AuthorID, Name: join.UserName, Ref: current})
	return nil
}

func (m *module) unlink(evt voicebot.ReceiveMessageEvent) error {
	ok, err := m.refs.Unlink(evt.AuthorID)
	if err != nil {
		return err
	}

	if !ok {
		return m.sender.Send("You have not linked a Steam account.", evt.Channel)
	}

	m.supervisor.OnSubjectBecameIneligible(evt.AuthorID)
	return m.sender.Send("OK, I forgot your Steam account.", evt.Channel)
}

func (m *module) listMonitors(evt voicebot.ReceiveMessageEvent) error {
	active := m.supervisor.Active()
	if len(active) == 0 {
		return m.sender.Send("I am not watching anybody right now.", evt.Channel)
	}

	names := make([]string, len(active))
	for i, s := range active {
		names[i] = s.displayName()
	}

	people := "people"
	if len(active) == 1 {
		people = "person"
	}

	msg := fmt.Sprintf("I am watching %d %s: %s", len(active), people, strings.Join(names, ", "))
	return m.sender.Send(msg, evt.Channel)
}

func (m *module) shutdown(voicebot.ShutdownEvent) {
	m.supervisor.Shutdown()

	if c, ok := m.client.(io.Closer); ok {
		if err := c.Close(); err != nil {
			m.logger.Error("Failed to close status client", zap.Error(err))
		}
	}
}

// IsPresent implements the Presence interface. If the Adapter knows the voice
// channels of its users it is asked directly, otherwise the voice events that
// were seen so far decide.
func (m *module) IsPresent(ctx context.Context, subjectID string) (bool, error) {
	channel, err := m.sender.VoiceChannel(ctx, subjectID)
	switch {
	case err == voicebot.ErrNotImplemented:
		m.mu.Lock()
		_, ok := m.roster[subjectID]
		m.mu.Unlock()
		return ok, nil
	case err != nil:
		return false, err
	default:
		return channel != "" && m.watched(channel), nil
	}
}

// SendText implements the Notifier interface.
func (m *module) SendText(ctx context.Context, channel, text string) error {
	return m.sender.SendContext(ctx, text, channel)
}

// SendMedia implements the Notifier interface. Adapters that cannot send
// media get the reference as text instead.
func (m *module) SendMedia(ctx context.Context, channel, ref string) error {
	err := m.sender.SendMediaContext(ctx, ref, channel)
	if err == voicebot.ErrNotImplemented {
		return m.sender.SendContext(ctx, ref, channel)
	}

	return err
}
