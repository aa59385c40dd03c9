package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultPollInterval is the time a Task waits between two polls.
const DefaultPollInterval = 30 * time.Second

// Config contains the collaborators and settings shared by all Tasks of a
// Supervisor.
type Config struct {
	Status   StatusClient
	Presence Presence
	Notifier Notifier
	Lookup   Lookup

	Channel      string        // channel that receives the notifications
	PollInterval time.Duration // defaults to DefaultPollInterval
	Jitter       time.Duration // optional random delay added to every poll interval

	Logger *zap.Logger
}

// The Supervisor owns the registry of running Tasks. There is at most one
// Task per subject ID and the registry contains exactly the subjects that
// have a running, non-canceled Task.
type Supervisor struct {
	ctx    context.Context
	conf   *Config
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	entries map[string]*Task
}

// NewSupervisor creates a Supervisor. All Tasks are canceled when the given
// context is done.
func NewSupervisor(ctx context.Context, conf Config) (*Supervisor, error) {
	switch {
	case conf.Status == nil:
		return nil, errors.New("missing status client")
	case conf.Presence == nil:
		return nil, errors.New("missing presence")
	case conf.Notifier == nil:
		return nil, errors.New("missing notifier")
	}

	if conf.PollInterval <= 0 {
		conf.PollInterval = DefaultPollInterval
	}

	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}

	return &Supervisor{
		ctx:     ctx,
		conf:    &conf,
		logger:  conf.Logger,
		entries: map[string]*Task{},
	}, nil
}

// OnSubjectBecameEligible starts monitoring the given subject. Nothing happens
// if the subject is already monitored or has no external reference. The
// returned Task is nil if no new Task was started.
func (s *Supervisor) OnSubjectBecameEligible(subject Subject) *Task {
	if subject.Ref == "" {
		s.logger.Debug("Subject has no reference and cannot be monitored", zap.String("subject", subject.ID))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if _, ok := s.entries[subject.ID]; ok {
		s.logger.Debug("Subject is already monitored", zap.String("subject", subject.ID))
		return nil
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := newTask(subject, s.conf, cancel, s.remove)
	s.entries[subject.ID] = t

	s.logger.Info("Starting monitor",
		zap.String("subject", subject.ID),
		zap.Int("active", len(s.entries)),
	)

	go t.run(ctx)
	return t
}

// OnSubjectBecameIneligible stops monitoring the given subject and blocks
// until its Task has returned. It returns false if the subject was not
// monitored (e.g. because its Task already stopped on its own).
func (s *Supervisor) OnSubjectBecameIneligible(subjectID string) bool {
	s.mu.Lock()
	t, ok := s.entries[subjectID]
	delete(s.entries, subjectID)
	active := len(s.entries)
	s.mu.Unlock()

	if !ok {
		return false
	}

	s.logger.Info("Stopping monitor",
		zap.String("subject", subjectID),
		zap.Int("active", active),
	)

	t.cancel()
	<-t.done
	return true
}

// ActiveCount returns the number of monitored subjects.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Active returns all monitored subjects ordered by ID.
func (s *Supervisor) Active() []Subject {
	s.mu.Lock()
	subjects := make([]Subject, 0, len(s.entries))
	for _, t := range s.entries {
		subjects = append(subjects, t.subject)
	}
	s.mu.Unlock()

	sort.Slice(subjects, func(i, j int) bool {
		return subjects[i].ID < subjects[j].ID
	})

	return subjects
}

// Shutdown stops all Tasks and waits until they returned. No new Tasks are
// started afterwards.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	s.closed = true
	tasks := make([]*Task, 0, len(s.entries))
	for id, t := range s.entries {
		tasks = append(tasks, t)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}

	for _, t := range tasks {
		<-t.done
	}

	s.logger.Debug("All monitors stopped", zap.Int("stopped", len(tasks)))
}

// remove is called by a Task that stopped on its own. The entry is only
// removed if it still belongs to that Task.
func (s *Supervisor) remove(t *Task) {
	s.mu.Lock()
	if s.entries[t.subject.ID] == t {
		delete(s.entries, t.subject.ID)
	}
	s.mu.Unlock()

	t.cancel()
}
