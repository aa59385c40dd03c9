package voicebottest

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/fgrosse/voicebot"
)

// Brain wraps the voicebot.Brain for unit testing.
type Brain struct {
	*voicebot.Brain

	mu     sync.Mutex
	events []interface{}
}

// NewBrain creates a new Brain that can be used for unit testing. The Brain
// records all events except the voicebot.InitEvent and voicebot.ShutdownEvent.
// The event handling loop of the Brain (i.e. Brain.HandleEvents()) is started
// by this function in a new goroutine and the caller must call Brain.Finish()
// at the end of their tests.
func NewBrain(t TestingT) *Brain {
	logger := zaptest.NewLogger(t)
	b := &Brain{Brain: voicebot.NewBrain(logger)}

	initialized := make(chan bool)
	b.RegisterHandler(b.observeEvent)
	b.RegisterHandler(func(voicebot.InitEvent) {
		initialized <- true
	})

	go b.HandleEvents()
	<-initialized

	return b
}

func (b *Brain) observeEvent(evt interface{}) {
	switch evt.(type) {
	case voicebot.InitEvent, voicebot.ShutdownEvent:
		return
	default:
		b.mu.Lock()
		b.events = append(b.events, evt)
		b.mu.Unlock()
	}
}

// Finish stops the event handler loop of the Brain and waits until all pending
// events have been processed.
func (b *Brain) Finish() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Brain.Shutdown(ctx)
}

// RecordedEvents returns all events the Brain has processed except the
// voicebot.InitEvent and voicebot.ShutdownEvent.
func (b *Brain) RecordedEvents() []interface{} {
	b.mu.Lock()
	events := make([]interface{}, len(b.events))
	copy(events, b.events)
	b.mu.Unlock()

	return events
}

// RecordedEventsOfType returns the recorded events that have the same type as
// the given example, e.g. RecordedEventsOfType(voicebot.VoiceJoinEvent{}).
func (b *Brain) RecordedEventsOfType(example interface{}) []interface{} {
	typ := reflect.TypeOf(example)

	var events []interface{}
	for _, evt := range b.RecordedEvents() {
		if reflect.TypeOf(evt) == typ {
			events = append(events, evt)
		}
	}

	return events
}
