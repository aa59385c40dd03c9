package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgrosse/voicebot"
	"github.com/fgrosse/voicebot/steam"
	"github.com/fgrosse/voicebot/voicebottest"
)

// closingStatus is a statusStub that records when the module closed it.
type closingStatus struct {
	statusStub
	mu     sync.Mutex
	closed bool
}

func (s *closingStatus) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *closingStatus) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestModule(t *testing.T) {
	status := &closingStatus{statusStub: statusStub{script: []result{{activity: "GameX"}}}}
	bot := voicebottest.NewBot(t, Module(status,
		WithVoiceChannel("lobby"),
		WithNotifyChannel("general"),
		WithPollInterval(time.Millisecond),
		WithSubjects(map[string]string{"alice": "76561197960287930"}),
		WithLookup(Lookup{
			Messages: map[string]string{"GameX": "Enjoy GameX!"},
			Media:    map[string][]string{"GameX": {"gamex.gif"}},
		}),
	))

	bot.Start()
	assert.Equal(t, "test > ", bot.ReadOutput())

	bot.Join("alice", "lobby")
	out := bot.WaitForOutput("[media] gamex.gif")
	assert.Equal(t, "Enjoy GameX!\n[media] gamex.gif\n", out)

	bot.Say("alice", "monitors")
	assert.Equal(t, "I am watching 1 person: alice\n", bot.WaitForOutput("watching"))

	bot.Leave("alice")
	bot.Say("alice", "monitors")
	assert.Equal(t, "I am not watching anybody right now.\n", bot.WaitForOutput("anybody"))

	bot.Stop()
	assert.True(t, status.isClosed())
}

func TestModule_IgnoresOtherVoiceChannels(t *testing.T) {
	status := new(statusStub)
	bot := voicebottest.NewBot(t, Module(status,
		WithVoiceChannel("lobby"),
		WithPollInterval(time.Millisecond),
		WithSubjects(map[string]string{"alice": "76561197960287930"}),
	))

	bot.Start()
	defer bot.Stop()

	bot.Join("alice", "afk")
	bot.Say("alice", "monitors")
	assert.Contains(t, bot.WaitForOutput("anybody"), "I am not watching anybody right now.")
	assert.Equal(t, 0, status.Calls())
}

func TestModule_LinkAndUnlink(t *testing.T) {
	status := &statusStub{script: []result{{activity: "GameY"}}}
	bot := voicebottest.NewBot(t, Module(status, WithPollInterval(time.Millisecond)))

	bot.Start()
	defer bot.Stop()

	// bob has no Steam ID yet and is not monitored
	bot.Join("bob", "lobby")
	assert.Equal(t, 0, status.Calls())

	bot.Say("bob", "link steam 76561197960287931")
	out := bot.WaitForOutput("bob is now playing GameY")
	assert.Contains(t, out, "OK, I linked your Steam account.\n")

	var ref string
	ok, err := bot.Store.Get("steam.ref.bob", &ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "76561197960287931", ref)

	bot.Say("bob", "unlink steam")
	assert.Contains(t, bot.WaitForOutput("forgot"), "OK, I forgot your Steam account.\n")

	bot.Say("bob", "monitors")
	assert.Contains(t, bot.WaitForOutput("anybody"), "I am not watching anybody right now.")

	bot.Say("bob", "unlink steam")
	assert.Contains(t, bot.WaitForOutput("not linked"), "You have not linked a Steam account.\n")
}

func TestModule_PresenceFallback(t *testing.T) {
	// an adapter without voice channel support
	conf := voicebot.NewConfig(nil, nil, nil, textOnlyAdapter{})
	m := &module{
		sender: conf.Sender(),
		roster: map[string]voicebot.VoiceJoinEvent{"alice": {UserID: "alice"}},
	}

	ok, err := m.IsPresent(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.IsPresent(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

type textOnlyAdapter struct{}

func (textOnlyAdapter) Register(voicebot.EventRegistry) {}
func (textOnlyAdapter) Send(string, string) error       { return nil }
func (textOnlyAdapter) Close() error                    { return nil }

func TestModule_MediaFallback(t *testing.T) {
	adapter := new(recordingAdapter)
	conf := voicebot.NewConfig(nil, nil, nil, adapter)
	m := &module{sender: conf.Sender()}

	require.NoError(t, m.SendMedia(context.Background(), "general", "https://example.com/gamex.gif"))
	assert.Equal(t, []string{"general: https://example.com/gamex.gif"}, adapter.sent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, m.SendText(ctx, "general", "too late"))
	assert.Len(t, adapter.sent, 1)
}

type recordingAdapter struct {
	textOnlyAdapter
	sent []string
}

func (a *recordingAdapter) Send(text, channel string) error {
	a.sent = append(a.sent, channel+": "+text)
	return nil
}

// throttledAdapter never has capacity to send; sends only return when their
// context is done.
type throttledAdapter struct {
	textOnlyAdapter
	waiting chan struct{}
}

func (a *throttledAdapter) SendContext(ctx context.Context, _, _ string) error {
	a.waiting <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func (a *throttledAdapter) SendMediaContext(ctx context.Context, ref, channel string) error {
	return a.SendContext(ctx, ref, channel)
}

func TestModule_StopDuringThrottledSend(t *testing.T) {
	adapter := &throttledAdapter{waiting: make(chan struct{}, 1)}
	conf := voicebot.NewConfig(nil, nil, nil, adapter)
	m := &module{sender: conf.Sender()}

	status := &statusStub{script: []result{{activity: "GameX"}}}
	s := newTestSupervisor(t, testConfig(t, status, newRoster("alice"), m))
	task := s.OnSubjectBecameEligible(Subject{ID: "alice", Ref: "76561197960287930"})
	require.NotNil(t, task)

	select {
	case <-adapter.waiting:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for the notification")
	}

	stopped := make(chan bool)
	go func() {
		stopped <- s.OnSubjectBecameIneligible("alice")
	}()

	select {
	case ok := <-stopped:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Stopping the monitor did not cancel the pending send")
	}

	waitDone(t, task)
	assert.Equal(t, 0, s.ActiveCount())
}

// refRecorder reports every subject as playing GameX and records the
// references it was asked for.
type refRecorder struct {
	mu   sync.Mutex
	refs map[string]int
}

func (r *refRecorder) FetchStatus(_ context.Context, ref string) (steam.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[ref]++
	return steam.Snapshot{Name: ref, Activity: "GameX"}, nil
}

func (r *refRecorder) count(ref string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[ref]
}

func TestModule_RelinkRestartsMonitor(t *testing.T) {
	status := &refRecorder{refs: map[string]int{}}
	bot := voicebottest.NewBot(t, Module(status, WithPollInterval(time.Millisecond)))

	bot.Start()
	defer bot.Stop()

	const (
		oldRef = "76561197960287930"
		newRef = "76561197960287931"
	)

	bot.Join("bob", "lobby")
	bot.Say("bob", "link steam "+oldRef)
	require.Eventually(t, func() bool { return status.count(oldRef) > 0 }, time.Second, time.Millisecond)

	bot.Say("bob", "link steam "+newRef)
	oldCalls := status.count(oldRef)
	require.Eventually(t, func() bool { return status.count(newRef) > 0 }, time.Second, time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, oldCalls, status.count(oldRef), "the old reference is still polled")

	bot.Say("bob", "monitors")
	assert.Contains(t, bot.WaitForOutput("watching"), "I am watching 1 person: bob")
}
