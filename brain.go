package voicebot

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// The Brain contains the core logic of a Bot by implementing an event handler
// that dispatches events to all registered event handlers. Events are handled
// one after another in the order in which they were emitted and every handler
// of an event runs in the order of its registration.
type Brain struct {
	logger *zap.Logger

	eventsInput chan Event // input for any new events, the Brain ensures that callers never block when writing to it
	eventsLoop  chan Event // used in Brain.HandleEvents() to actually process the events

	mu       sync.RWMutex // mu protects closed and eventsInput against concurrent Emit and Shutdown
	closed   bool
	running  int32         // set atomically when Brain.HandleEvents() was called
	shutdown sync.Once     // closes eventsInput exactly once
	done     chan struct{} // closed when Brain.HandleEvents() returns

	handlers       map[reflect.Type][]eventHandler
	handlerTimeout time.Duration // zero means no timeout

	registrationErrs []error // any errors that occurred during setup (e.g. in Bot.RegisterHandler)
}

// An Event represents a concrete event type and optional callbacks that are
// triggered when the event was processed by all handlers.
type Event struct {
	Data      interface{}
	Callbacks []func(Event)
}

// An event handler is a function that takes a context and the reflected value
// of a concrete event type.
type eventHandler func(context.Context, reflect.Value) error

// The EventRegistry is the interface that is exposed to Adapter implementations
// when connecting to the Brain.
type EventRegistry interface {
	EventEmitter
	RegisterHandler(function interface{})
}

var anyEventType = reflect.TypeOf((*interface{})(nil)).Elem()

// NewBrain creates a new robot Brain. If the passed logger is nil it will
// fallback to the zap.NewNop() logger. By default no timeout will be enforced
// on the event handlers.
func NewBrain(logger *zap.Logger) *Brain {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Brain{
		logger:      logger,
		eventsInput: make(chan Event),
		eventsLoop:  make(chan Event),
		done:        make(chan struct{}),
		handlers:    make(map[reflect.Type][]eventHandler),
	}

	go b.consumeEvents()

	return b
}

// RegisterHandler registers a function to be executed when a specific event is
// fired. The function signature must comply with the following rules or the bot
// that uses this Brain will return an error on its next Bot.Run() call:
//
// Allowed function signatures:
//
//	// VoiceJoinEvent may be replaced by any struct but not by a pointer to a struct.
//	func(VoiceJoinEvent)
//
//	// You can optionally accept a context as the first argument.
//	func(context.Context, VoiceJoinEvent)
//
//	// You can optionally return a single error value. If the handler returns
//	// an error it will be logged.
//	func(VoiceJoinEvent) error
//
//	// Accepting interface{} registers the handler for all events.
//	func(interface{})
//
// Handlers must be registered before Brain.HandleEvents() is started.
func (b *Brain) RegisterHandler(fun interface{}) {
	err := b.registerHandler(fun)
	if err != nil {
		caller := firstExternalCaller()
		err = errors.Wrap(err, caller)
		b.registrationErrs = append(b.registrationErrs, err)
	}
}

func (b *Brain) registerHandler(fun interface{}) error {
	handler := reflect.ValueOf(fun)
	if !handler.IsValid() || handler.Kind() != reflect.Func {
		return errors.New("event handler is no function")
	}

	handlerType := handler.Type()
	evtType, withContext, err := checkHandlerParams(handlerType)
	if err != nil {
		return err
	}

	returnsErr, err := checkHandlerReturnValues(handlerType)
	if err != nil {
		return err
	}

	b.logger.Debug("Registering new event handler",
		zap.Stringer("event_type", evtType),
	)

	handlerFun := newHandlerFunc(handler, withContext, returnsErr)
	b.handlers[evtType] = append(b.handlers[evtType], handlerFun)
	return nil
}

// Emit sends the first argument as event to the brain from where it is
// dispatched to all registered handlers. Emit never blocks on the handlers.
// Events that are emitted after the Brain has been shut down are dropped.
func (b *Brain) Emit(event interface{}, callbacks ...func(Event)) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Debug("Ignoring new event because brain is currently shutting down or is already closed",
			zap.String("type", fmt.Sprintf("%T", event)),
		)
		return
	}

	b.eventsInput <- Event{Data: event, Callbacks: callbacks}
}

// HandleEvents starts the event handler loop of the Brain. This function blocks
// until Brain.Shutdown() is called and all pending events have been processed.
func (b *Brain) HandleEvents() {
	if !atomic.CompareAndSwapInt32(&b.running, 0, 1) {
		b.logger.Error("Brain.HandleEvents() was called more than once")
		return
	}

	defer close(b.done)

	ctx := context.Background()
	b.handleEvent(ctx, Event{Data: InitEvent{}})

	for evt := range b.eventsLoop {
		b.handleEvent(ctx, evt)
	}

	// consumeEvents is done processing all remaining events so we can now
	// safely send the final event.
	b.handleEvent(ctx, Event{Data: ShutdownEvent{}})
}

// Shutdown stops accepting new events and blocks until all pending events and
// the ShutdownEvent have been handled or the given context is done. It is safe
// to call Shutdown multiple times and without ever starting the Brain.
func (b *Brain) Shutdown(ctx context.Context) {
	b.shutdown.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.eventsInput)
		b.mu.Unlock()
	})

	if atomic.LoadInt32(&b.running) == 0 {
		return
	}

	select {
	case <-b.done:
	case <-ctx.Done():
	}
}

// consumeEvents continuously reads events from b.eventsInput so emitting an
// event never blocks on the caller. All events are passed on to b.eventsLoop
// in the same order in which they have been emitted. In this sense this
// function provides an events channel with "infinite" capacity. It returns
// when b.eventsInput is closed and all queued events have been delivered.
func (b *Brain) consumeEvents() {
	var queue []Event

	outChan := func() chan Event {
		if len(queue) == 0 {
			// A nil channel disables the corresponding select case below.
			return nil
		}

		return b.eventsLoop
	}

	nextEvt := func() Event {
		if len(queue) == 0 {
			return Event{}
		}

		return queue[0]
	}

	for {
		select {
		case evt, ok := <-b.eventsInput:
			if !ok {
				for _, evt := range queue {
					b.eventsLoop <- evt
				}
				close(b.eventsLoop)
				return
			}

			queue = append(queue, evt)
		case outChan() <- nextEvt(): // disabled if len(queue) == 0
			queue = queue[1:]
		}
	}
}

// handleEvent dispatches an event to all handlers of its concrete type and
// then to all handlers that accept any event. When all applicable handlers
// are done (maybe none) the event callbacks are executed.
func (b *Brain) handleEvent(ctx context.Context, evt Event) {
	event := reflect.ValueOf(evt.Data)
	typ := event.Type()

	handlers := make([]eventHandler, 0, len(b.handlers[typ])+len(b.handlers[anyEventType]))
	handlers = append(handlers, b.handlers[typ]...)
	handlers = append(handlers, b.handlers[anyEventType]...)

	b.logger.Debug("Handling new event",
		zap.Stringer("event_type", typ),
		zap.Int("handlers", len(handlers)),
	)

	for _, handler := range handlers {
		err := b.executeHandler(ctx, handler, event)
		if err != nil {
			b.logger.Error("Event handler failed",
				zap.Error(err),
			)
		}
	}

	for _, callback := range evt.Callbacks {
		callback(evt)
	}
}

func (b *Brain) executeHandler(ctx context.Context, handler eventHandler, event reflect.Value) error {
	if b.handlerTimeout <= 0 {
		return handler(ctx, event)
	}

	ctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- handler(ctx, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkHandlerParams(handlerFunc reflect.Type) (evtType reflect.Type, withContext bool, err error) {
	numParams := handlerFunc.NumIn()
	if numParams == 0 || numParams > 2 {
		err = errors.New("event handler needs one or two arguments")
		return
	}

	evtType = handlerFunc.In(numParams - 1) // last argument must be the event
	withContext = numParams == 2

	contextInterface := reflect.TypeOf((*context.Context)(nil)).Elem()
	if withContext {
		if handlerFunc.In(1).Implements(contextInterface) {
			err = errors.New("event handler context must be the first argument")
			return
		}
		if !handlerFunc.In(0).Implements(contextInterface) {
			err = errors.New("event handler has two arguments but the first is not a context.Context")
			return
		}
	}

	switch evtType.Kind() {
	case reflect.Struct:
		// ok cool, move on
	case reflect.Interface:
		if evtType != anyEventType {
			err = errors.New("event handler argument must be a struct or interface{}")
			return
		}
	case reflect.Ptr:
		err = errors.New("event handler argument must be a struct and not a pointer")
		return
	default:
		err = errors.New("event handler argument must be a struct")
		return
	}

	return evtType, withContext, nil
}

func checkHandlerReturnValues(handlerFunc reflect.Type) (returnsError bool, err error) {
	switch handlerFunc.NumOut() {
	case 0:
		return false, nil
	case 1:
		errorInterface := reflect.TypeOf((*error)(nil)).Elem()
		if !handlerFunc.Out(0).Implements(errorInterface) {
			err = errors.New("if the event handler has a return value it must implement the error interface")
			return
		}
		return true, nil
	default:
		return false, errors.Errorf("event handler has more than one return value")
	}
}

func newHandlerFunc(handler reflect.Value, withContext, returnsErr bool) eventHandler {
	return func(ctx context.Context, evt reflect.Value) (handlerErr error) {
		defer func() {
			if err := recover(); err != nil {
				handlerErr = errors.Errorf("handler panic: %v", err)
			}
		}()

		var args []reflect.Value
		if withContext {
			args = []reflect.Value{
				reflect.ValueOf(ctx),
				evt,
			}
		} else {
			args = []reflect.Value{evt}
		}

		results := handler.Call(args)
		if returnsErr && !results[0].IsNil() {
			return results[0].Interface().(error)
		}

		return nil
	}
}

func firstExternalCaller() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	callers := pcs[0:n]

	frames := runtime.CallersFrames(callers)
	for frame, more := frames.Next(); more; frame, more = frames.Next() {
		if !strings.HasPrefix(frame.Function, "github.com/fgrosse/voicebot.") {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
	}

	return "unknown caller"
}
