package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fgrosse/voicebot/steam"
)

// result is a scripted answer of the statusStub.
type result struct {
	activity string
	err      error
}

var errUnavailable = errors.New("service unavailable")

// statusStub returns the scripted results one after another. When the script
// is exhausted it reports the subject as idle.
type statusStub struct {
	mu     sync.Mutex
	script []result
	calls  int
	block  chan struct{} // if set, FetchStatus waits until it is closed
}

func (s *statusStub) FetchStatus(ctx context.Context, ref string) (steam.Snapshot, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return steam.Snapshot{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.script) == 0 {
		return steam.Snapshot{Name: ref}, nil
	}

	r := s.script[0]
	s.script = s.script[1:]
	return steam.Snapshot{Name: ref, Activity: r.activity}, r.err
}

func (s *statusStub) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.script)
}

func (s *statusStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// roster is a Presence backed by a set of subject IDs.
type roster struct {
	mu      sync.Mutex
	present map[string]bool
}

func newRoster(ids ...string) *roster {
	r := &roster{present: map[string]bool{}}
	for _, id := range ids {
		r.present[id] = true
	}
	return r
}

func (r *roster) IsPresent(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.present[id], nil
}

func (r *roster) set(id string, present bool) {
	r.mu.Lock()
	r.present[id] = present
	r.mu.Unlock()
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
	media []string
}

func (n *recordingNotifier) SendText(_ context.Context, channel, text string) error {
	n.mu.Lock()
	n.texts = append(n.texts, channel+": "+text)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) SendMedia(_ context.Context, channel, ref string) error {
	n.mu.Lock()
	n.media = append(n.media, channel+": "+ref)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) Texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func (n *recordingNotifier) Media() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.media...)
}

func testConfig(t *testing.T, status StatusClient, presence Presence, notifier Notifier) Config {
	return Config{
		Status:       status,
		Presence:     presence,
		Notifier:     notifier,
		Channel:      "general",
		PollInterval: time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	}
}

func newTestSupervisor(t *testing.T, conf Config) *Supervisor {
	s, err := NewSupervisor(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for the monitor to stop")
	}
}
