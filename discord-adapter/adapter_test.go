package discord

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/fgrosse/voicebot"
	"github.com/fgrosse/voicebot/voicebottest"
)

type sentFile struct {
	channel, name, content string
}

type fakeSession struct {
	mu       sync.Mutex
	handlers []interface{}
	removed  int
	closed   bool
	messages []string
	files    []sentFile
	sendErr  error
}

func (s *fakeSession) AddHandler(handler interface{}) func() {
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.removed++
		s.mu.Unlock()
	}
}

func (s *fakeSession) Open() error { return nil }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}

	s.mu.Lock()
	s.messages = append(s.messages, channelID+": "+content)
	s.mu.Unlock()
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (s *fakeSession) ChannelFileSend(channelID, name string, r io.Reader, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.files = append(s.files, sentFile{channel: channelID, name: name, content: string(data)})
	s.mu.Unlock()
	return &discordgo.Message{ChannelID: channelID}, nil
}

func newTestAdapter(t *testing.T, conf Config) (*BotAdapter, *fakeSession, *discordgo.State) {
	if conf.SendLimit == 0 {
		conf.SendLimit = defaultSendLimit
		conf.SendBurst = defaultSendBurst
	}
	conf.Logger = zaptest.NewLogger(t)

	s := new(fakeSession)
	state := discordgo.NewState()
	a := newAdapter(context.Background(), s, state, conf)
	a.userID = "bot"
	return a, s, state
}

func TestAdapter_Register(t *testing.T) {
	a, s, _ := newTestAdapter(t, Config{})
	brain := voicebottest.NewBrain(t)
	defer brain.Finish()

	a.Register(brain)
	assert.Len(t, s.handlers, 3)

	require.NoError(t, a.Close())
	assert.True(t, s.closed)
	assert.Equal(t, 3, s.removed)
	assert.EqualError(t, a.Close(), "already closed")
}

func TestAdapter_HandleMessage(t *testing.T) {
	a, _, _ := newTestAdapter(t, Config{GuildID: "g1"})
	brain := voicebottest.NewBrain(t)

	msg := func(guildID, authorID, text string) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			ID:        "m1",
			GuildID:   guildID,
			ChannelID: "c1",
			Content:   text,
			Author:    &discordgo.User{ID: authorID},
		}}
	}

	own := msg("g1", "bot", "I said something")
	other := msg("g2", "alice", "wrong server")
	valid := msg("g1", "alice", "  monitors ")

	a.handleMessage(brain, own)
	a.handleMessage(brain, other)
	a.handleMessage(brain, valid)
	brain.Finish()

	expected := []interface{}{
		voicebot.ReceiveMessageEvent{
			ID:       "m1",
			Text:     "monitors",
			AuthorID: "alice",
			Channel:  "c1",
			Data:     valid,
		},
	}
	assert.Equal(t, expected, brain.RecordedEvents())
}

func TestAdapter_HandleVoiceState(t *testing.T) {
	a, _, _ := newTestAdapter(t, Config{})
	brain := voicebottest.NewBrain(t)

	update := func(before, after string) *discordgo.VoiceStateUpdate {
		evt := &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{
			GuildID:   "g1",
			UserID:    "alice",
			ChannelID: after,
			Member:    &discordgo.Member{Nick: "Alice", User: &discordgo.User{ID: "alice", Username: "alice99"}},
		}}
		if before != "" {
			evt.BeforeUpdate = &discordgo.VoiceState{ChannelID: before}
		}
		return evt
	}

	a.handleVoiceState(brain, update("", "lobby"))
	a.handleVoiceState(brain, update("lobby", "lobby")) // muted
	a.handleVoiceState(brain, update("lobby", "afk"))
	a.handleVoiceState(brain, update("afk", ""))
	brain.Finish()

	expected := []interface{}{
		voicebot.VoiceJoinEvent{UserID: "alice", UserName: "Alice", ChannelID: "lobby", GuildID: "g1"},
		voicebot.VoiceLeaveEvent{UserID: "alice", UserName: "Alice", ChannelID: "lobby", GuildID: "g1"},
		voicebot.VoiceJoinEvent{UserID: "alice", UserName: "Alice", ChannelID: "afk", GuildID: "g1"},
		voicebot.VoiceLeaveEvent{UserID: "alice", UserName: "Alice", ChannelID: "afk", GuildID: "g1"},
	}
	assert.Equal(t, expected, brain.RecordedEvents())
}

func TestAdapter_HandlePresence(t *testing.T) {
	a, _, _ := newTestAdapter(t, Config{})
	brain := voicebottest.NewBrain(t)

	update := func(status discordgo.Status, activities ...*discordgo.Activity) *discordgo.PresenceUpdate {
		return &discordgo.PresenceUpdate{
			GuildID: "g1",
			Presence: discordgo.Presence{
				User:       &discordgo.User{ID: "alice", Username: "alice99", GlobalName: "Alice"},
				Status:     status,
				Activities: activities,
			},
		}
	}

	a.handlePresence(brain, update(discordgo.StatusOffline))
	a.handlePresence(brain, update(discordgo.StatusOnline,
		&discordgo.Activity{Name: "Spotify", Type: discordgo.ActivityTypeListening},
		&discordgo.Activity{Name: "GameX", Type: discordgo.ActivityTypeGame},
	))
	brain.Finish()

	expected := []interface{}{
		voicebot.PresenceUpdateEvent{UserID: "alice", UserName: "Alice", Status: "offline"},
		voicebot.PresenceUpdateEvent{UserID: "alice", UserName: "Alice", Status: "online", PreviousStatus: "offline", Activity: "GameX"},
	}
	assert.Equal(t, expected, brain.RecordedEvents())
}

func TestAdapter_Send(t *testing.T) {
	a, s, _ := newTestAdapter(t, Config{})

	require.NoError(t, a.Send("Hello World", "c1"))
	assert.Equal(t, []string{"c1: Hello World"}, s.messages)

	s.sendErr = errors.New("HTTP 403 Forbidden")
	assert.EqualError(t, a.Send("Hello again", "c1"), "failed to send message: HTTP 403 Forbidden")
}

func TestAdapter_SendCanceled(t *testing.T) {
	a, s, _ := newTestAdapter(t, Config{SendLimit: 0.001, SendBurst: 1})

	ctx, cancel := context.WithCancel(context.Background())
	a.context = ctx

	require.NoError(t, a.Send("first", "c1"))
	cancel()

	err := a.Send("second", "c1")
	require.Error(t, err)
	assert.Len(t, s.messages, 1)
}

func TestAdapter_SendMedia(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gamex.gif"), []byte("GIF89a"), 0o600))

	a, s, _ := newTestAdapter(t, Config{MediaDir: dir})

	require.NoError(t, a.SendMedia("gamex.gif", "c1"))
	require.NoError(t, a.SendMedia("https://example.com/gamey.gif", "c1"))

	assert.Equal(t, []sentFile{{channel: "c1", name: "gamex.gif", content: "GIF89a"}}, s.files)
	assert.Equal(t, []string{"c1: https://example.com/gamey.gif"}, s.messages)

	err := a.SendMedia("missing.gif", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open media file")
}

func TestAdapter_VoiceChannel(t *testing.T) {
	a, _, state := newTestAdapter(t, Config{})
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "alice", ChannelID: "lobby"},
		},
	}))

	channel, err := a.VoiceChannel(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "lobby", channel)

	channel, err = a.VoiceChannel(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, channel)
}

func TestAdapter_VoiceChannelUnknownUser(t *testing.T) {
	a, _, state := newTestAdapter(t, Config{GuildID: "g1"})
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID: "g1",
		Members: []*discordgo.Member{
			{GuildID: "g1", User: &discordgo.User{ID: "alice"}},
		},
	}))

	channel, err := a.VoiceChannel(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, channel)

	_, err = a.VoiceChannel(context.Background(), "bob")
	assert.Equal(t, voicebot.ErrUnknownUser, err)
}

func TestNewAdapter_MissingToken(t *testing.T) {
	_, err := NewAdapter(context.Background(), Config{})
	assert.EqualError(t, err, "missing discord token")
}

func TestAdapter_SendContextCanceledWhileThrottled(t *testing.T) {
	a, s, _ := newTestAdapter(t, Config{SendLimit: 0.001, SendBurst: 1})
	require.NoError(t, a.Send("first", "c1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 2)
	go func() { done <- a.SendContext(ctx, "second", "c1") }()
	go func() { done <- a.SendMediaContext(ctx, "https://example.com/gamex.gif", "c1") }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			require.Error(t, err)
			assert.Equal(t, context.Canceled, errors.Cause(err))
		case <-time.After(time.Second):
			t.Fatal("send did not return after the context was canceled")
		}
	}

	assert.Equal(t, []string{"c1: first"}, s.messages)
	var _ voicebot.ContextAwareAdapter = a
}

func TestWithSendLimit(t *testing.T) {
	var conf Config
	require.NoError(t, WithSendLimit(5, 5*time.Second)(&conf))
	assert.Equal(t, rate.Every(time.Second), conf.SendLimit)
	assert.Equal(t, 5, conf.SendBurst)

	assert.EqualError(t, WithSendLimit(0, time.Second)(&conf), "send limit must be positive (got 0)")
	assert.EqualError(t, WithSendLimit(-1, time.Second)(&conf), "send limit must be positive (got -1)")
	assert.EqualError(t, WithSendLimit(1, 0)(&conf), "send limit interval must be positive (got 0s)")
}
