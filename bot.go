// Package voicebot implements a chat bot that watches voice channels and keeps
// an eye on what the people in there are playing.
//
// The root package contains the generic bot parts: the Brain that dispatches
// events to handlers, the Adapter interface that connects the bot to a chat
// platform and the Storage for key-value data. The actual features are added
// as Modules, e.g. the monitor package that polls the game status of every
// user in a watched voice channel.
package voicebot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fraugster/cli"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// A Bot represents an event based chat bot. For the most simple usage you can
// use the Bot.Respond(…) function to make the bot execute a function when it
// receives a message that matches a given pattern.
//
// More advanced usage includes persisting memory or emitting your own events
// using the Brain of the robot.
type Bot struct {
	Name    string
	Adapter Adapter
	Brain   *Brain
	Store   *Storage
	Logger  *zap.Logger

	ctx     context.Context
	initErr error // any error when we created a new bot
}

// ShutdownTimeout is the maximum time the bot waits for pending events to be
// handled after its context is done.
const ShutdownTimeout = 10 * time.Second

// New creates a new Bot and initializes it with the given Modules and Options.
// By default the Bot will use an in-memory Storage and a CLI adapter that
// reads messages from stdin and writes to stdout. The context of the bot is
// canceled when the process receives SIGINT or SIGTERM.
func New(name string, modules ...Module) *Bot {
	return newBot(cli.Context(), nil, name, modules...)
}

func newBot(ctx context.Context, logger *zap.Logger, name string, modules ...Module) *Bot {
	conf := &Config{
		Context: ctx,
		Name:    name,
		logger:  logger,
	}

	var errs []error

	// The logger modules must run first so all other modules get the final
	// logger via Config.Logger(…).
	for _, mod := range modules {
		if _, ok := mod.(loggerModule); ok {
			if err := mod.Apply(conf); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if conf.logger == nil {
		conf.logger = newLogger()
	}

	conf.brain = NewBrain(conf.logger.Named("brain"))
	conf.store = NewStorage(conf.logger.Named("memory"))
	conf.adapter = NewCLIAdapter(name, conf.logger.Named("adapter"))

	conf.logger.Info("Initializing bot", zap.String("name", name))
	for _, mod := range modules {
		if _, ok := mod.(loggerModule); ok {
			continue
		}

		if err := mod.Apply(conf); err != nil {
			errs = append(errs, err)
		}
	}

	// apply all configuration options
	conf.brain.handlerTimeout = conf.HandlerTimeout

	return &Bot{
		Name:    conf.Name,
		ctx:     conf.Context,
		Logger:  conf.logger,
		Adapter: conf.adapter,
		Brain:   conf.brain,
		Store:   conf.store,
		initErr: multierr.Combine(errs...),
	}
}

func newLogger() *zap.Logger {
	conf := zap.NewDevelopmentConfig()
	conf.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	conf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	conf.DisableStacktrace = true

	logger, err := conf.Build()
	if err != nil {
		panic(err)
	}

	return logger
}

// Context returns the context of the Bot which is done when the bot is
// shutting down.
func (b *Bot) Context() context.Context {
	return b.ctx
}

// Run starts the bot and runs its event handler loop until the bots context
// is canceled (by default via SIGINT or SIGTERM). After the event handler loop
// stopped, the Adapter and the Storage of the bot are closed. Run returns an
// error if any Module failed during setup or if an invalid event handler was
// registered.
func (b *Bot) Run() error {
	if b.initErr != nil {
		return errors.Wrap(b.initErr, "failed to initialize bot")
	}

	b.Adapter.Register(b.Brain)

	if len(b.Brain.registrationErrs) > 0 {
		return errors.Wrap(multierr.Combine(b.Brain.registrationErrs...), "invalid event handlers")
	}

	go func() {
		<-b.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		b.Brain.Shutdown(ctx)
	}()

	b.Logger.Info("Bot initialized and ready to operate", zap.String("name", b.Name))
	b.Brain.HandleEvents()

	b.Logger.Info("Bot is shutting down", zap.String("name", b.Name))
	if err := b.Adapter.Close(); err != nil {
		b.Logger.Info("Error while closing adapter", zap.Error(err))
	}

	if err := b.Store.Close(); err != nil {
		b.Logger.Info("Error while closing memory", zap.Error(err))
	}

	return nil
}

// RespondFunc is the function signature of message handlers registered via
// Bot.Respond(…) or Bot.RespondRegex(…).
type RespondFunc func(Message) error

// Respond registers an event handler that listens for the ReceiveMessageEvent
// and executes the given function only if the message text matches the given
// message. The message will be matched against the msg string as regular
// expression that must match the entire message in a case insensitive way.
func (b *Bot) Respond(msg string, fun RespondFunc) {
	expr := "^" + msg + "$"
	b.RespondRegex(expr, fun)
}

// RespondRegex is like Bot.Respond(…) but gives a little more control over the
// regular expression. However, also with this function messages are matched
// in a case insensitive way.
func (b *Bot) RespondRegex(expr string, fun RespondFunc) {
	if expr == "" {
		return
	}

	if expr[0] == '^' {
		// String starts with the "^" anchor but does it also have the prefix
		// or case insensitive matching?
		if !strings.HasPrefix(expr, "^(?i)") {
			expr = "^(?i)" + expr[1:]
		}
	} else {
		// The string is not starting with "^" but maybe it has the prefix for
		// case insensitive matching already?
		if !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
	}

	regex, err := regexp.Compile(expr)
	if err != nil {
		caller := firstExternalCaller()
		err = errors.Wrapf(err, "%s: failed to add Response handler", caller)
		b.Brain.registrationErrs = append(b.Brain.registrationErrs, err)
		return
	}

	b.Brain.RegisterHandler(func(ctx context.Context, evt ReceiveMessageEvent) error {
		matches := regex.FindStringSubmatch(evt.Text)
		if len(matches) == 0 {
			return nil
		}

		return fun(Message{
			Context:  ctx,
			ID:       evt.ID,
			Text:     evt.Text,
			AuthorID: evt.AuthorID,
			Channel:  evt.Channel,
			Matches:  matches[1:],
			Data:     evt.Data,
			adapter:  b.Adapter,
		})
	})
}

// Say is a helper function to makes the Bot output the message via its Adapter
// (e.g. to the CLI or to Discord). If there is at least one argument, the msg
// will be treated as format string.
func (b *Bot) Say(channel, msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	err := b.Adapter.Send(msg, channel)
	if err != nil {
		b.Logger.Error("Failed to send message", zap.Error(err))
	}
}
