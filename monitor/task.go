package monitor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Task.
type State int

// The states of a Task.
const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// A Task is the polling loop of a single Subject. Tasks are created and
// canceled by the Supervisor.
type Task struct {
	subject Subject
	conf    *Config
	logger  *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
	onStop func(*Task) // called when the task stops on its own

	mu       sync.Mutex
	state    State
	lastSeen string
}

func newTask(subject Subject, conf *Config, cancel context.CancelFunc, onStop func(*Task)) *Task {
	return &Task{
		subject: subject,
		conf:    conf,
		logger:  conf.Logger.With(zap.String("subject", subject.ID)),
		cancel:  cancel,
		done:    make(chan struct{}),
		onStop:  onStop,
		state:   Running,
	}
}

// Subject returns the monitored subject.
func (t *Task) Subject() Subject {
	return t.subject
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastSeen returns the last activity that was announced.
func (t *Task) LastSeen() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

// Done returns a channel that is closed when the task has stopped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)
	defer t.setState(Stopped)

	t.logger.Debug("Monitor started")
	for {
		present, err := t.conf.Presence.IsPresent(ctx, t.subject.ID)
		if ctx.Err() != nil {
			t.logger.Debug("Monitor canceled")
			return
		}

		if err != nil || !present {
			t.logger.Info("Subject is no longer present, stopping monitor", zap.NamedError("reason", err))
			t.onStop(t)
			return
		}

		t.poll(ctx)

		if !t.sleep(ctx) {
			t.logger.Debug("Monitor canceled")
			return
		}
	}
}

func (t *Task) poll(ctx context.Context) {
	snap, err := t.conf.Status.FetchStatus(ctx, t.subject.Ref)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		t.logger.Warn("Failed to fetch status", zap.Error(err))
		return
	}

	t.mu.Lock()
	changed := !snap.Idle() && snap.Activity != t.lastSeen
	if changed {
		t.lastSeen = snap.Activity
	}
	t.mu.Unlock()

	if !changed {
		return
	}

	t.logger.Info("Activity changed", zap.String("activity", snap.Activity))
	t.notify(ctx, t.conf.Lookup.Notification(t.subject, snap.Activity))
}

func (t *Task) notify(ctx context.Context, n Notification) {
	err := t.conf.Notifier.SendText(ctx, t.conf.Channel, n.Text)
	if err != nil {
		t.logger.Error("Failed to send notification", zap.Error(err))
	}

	if n.Media == "" {
		return
	}

	err = t.conf.Notifier.SendMedia(ctx, t.conf.Channel, n.Media)
	if err != nil {
		t.logger.Error("Failed to send notification media", zap.Error(err))
	}
}

// sleep waits for the poll interval plus jitter and returns false if the
// context was canceled in the meantime.
func (t *Task) sleep(ctx context.Context) bool {
	d := t.conf.PollInterval
	if t.conf.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(t.conf.Jitter)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}
