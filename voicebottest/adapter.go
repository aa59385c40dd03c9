package voicebottest

import (
	"bytes"
	"context"
	"sync"

	"github.com/fgrosse/voicebot"
)

// Adapter is the voicebot.Adapter of a test Bot. It writes all messages to
// its Output like the voicebot.CLIAdapter but keeps the voice channels of the
// users in memory so tests can control them directly.
type Adapter struct {
	*voicebot.CLIAdapter

	mu    sync.Mutex
	voice map[string]string
}

// VoiceChannel implements the voicebot.PresenceAwareAdapter interface.
func (a *Adapter) VoiceChannel(_ context.Context, userID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.voice[userID], nil
}

// SetVoiceChannel moves a user into the given voice channel. An empty channel
// removes the user from all voice channels.
func (a *Adapter) SetVoiceChannel(userID, channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if channelID == "" {
		delete(a.voice, userID)
		return
	}

	a.voice[userID] = channelID
}

// syncBuffer is a bytes.Buffer that can be written by the bot and read by
// the test at the same time.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}
