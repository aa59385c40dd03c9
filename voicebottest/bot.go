package voicebottest

import (
	"context"
	"io"
	"io/ioutil"
	"strings"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/fgrosse/voicebot"
)

// Bot wraps a *voicebot.Bot for unit testing.
type Bot struct {
	*voicebot.Bot
	T       TestingT
	Input   io.Writer
	Output  io.Reader
	Timeout time.Duration // defaults to 1s

	adapter *Adapter
	output  strings.Builder // output consumed by WaitForOutput
	runErr  chan error
}

// NewBot creates a new *Bot instance that can be used in unit tests.
// The Bot uses an Adapter which writes all output to Bot.Output. The logger
// is a zaptest.Logger which sends all logs through the passed TestingT
// (usually a *testing.T instance).
//
// For ease of testing a Bot can be started and stopped without a cancel via
// Bot.Start() and Bot.Stop().
func NewBot(t TestingT, modules ...voicebot.Module) *Bot {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	input := new(syncBuffer)
	output := new(syncBuffer)

	b := &Bot{
		T:       t,
		Input:   input,
		Output:  output,
		Timeout: time.Second,
		runErr:  make(chan error, 1), // buffered so we can return from Bot.Run without blocking
	}

	testAdapter := voicebot.ModuleFunc(func(conf *voicebot.Config) error {
		cli := voicebot.NewCLIAdapter("test", conf.Logger("adapter"))
		cli.Input = ioutil.NopCloser(input)
		cli.Output = output
		b.adapter = &Adapter{CLIAdapter: cli, voice: map[string]string{}}
		conf.SetAdapter(b.adapter)
		return nil
	})

	// The testAdapter and logger modules must be passed first so the caller can
	// actually inject a different Adapter or logger if required.
	testModules := []voicebot.Module{
		voicebot.WithLogger(logger),
		voicebot.WithContext(ctx),
		testAdapter,
	}

	b.Bot = voicebot.New("test", append(testModules, modules...)...)
	return b
}

// EmitSync emits the given event on the Brain and blocks until all registered
// handlers have completely processed it.
func (b *Bot) EmitSync(event interface{}) {
	b.T.Helper()

	done := make(chan bool)
	callback := func(voicebot.Event) { done <- true }
	b.Brain.Emit(event, callback)

	select {
	case <-done:
		// ok, cool
	case <-time.After(b.Timeout):
		b.T.Errorf("EmitSync timed out")
		b.T.FailNow()
	}
}

// Join moves the user into the voice channel and emits the corresponding
// voicebot.VoiceJoinEvent. It blocks until the event was handled.
func (b *Bot) Join(userID, channelID string) {
	b.T.Helper()
	b.adapter.SetVoiceChannel(userID, channelID)
	b.EmitSync(voicebot.VoiceJoinEvent{UserID: userID, UserName: userID, ChannelID: channelID})
}

// Leave removes the user from its voice channel and emits the corresponding
// voicebot.VoiceLeaveEvent. It blocks until the event was handled.
func (b *Bot) Leave(userID string) {
	b.T.Helper()
	channel, _ := b.adapter.VoiceChannel(context.Background(), userID)
	b.adapter.SetVoiceChannel(userID, "")
	b.EmitSync(voicebot.VoiceLeaveEvent{UserID: userID, UserName: userID, ChannelID: channel})
}

// Say emits a voicebot.ReceiveMessageEvent as if the given user wrote the
// text. It blocks until the event was handled.
func (b *Bot) Say(authorID, text string) {
	b.T.Helper()
	b.EmitSync(voicebot.ReceiveMessageEvent{Text: text, AuthorID: authorID, Channel: "cli"})
}

// Start executes the Bot.Run() function and stores its error result in a channel
// so the caller can eventually execute Bot.Stop() and receive the result.
// This function blocks until the event handler is actually running and emits
// the InitEvent.
func (b *Bot) Start() {
	started := make(chan bool)

	type InitTestEvent struct{}
	b.Brain.RegisterHandler(func(evt InitTestEvent) {
		started <- true
	})

	// When this event is handled we know the bot has completed its startup and
	// is ready to process events. The voicebot.InitEvent isn't really an option
	// here because it only marks that the bot is starting but we do not know
	// when all other init handlers are done (e.g. for the CLI adapter).
	b.Brain.Emit(InitTestEvent{})

	go func() {
		// The error will be available by calling Bot.Stop()
		err := b.Run()
		if err != nil {
			close(started)
		}
	}()

	<-started
}

// Run wraps Bot.Run() in order to allow stopping a Bot without having to
// inject another context.
func (b *Bot) Run() error {
	err := b.Bot.Run()
	b.runErr <- err // b.runErr is buffered so we can return immediately
	return err
}

// Stop stops a running Bot and blocks until it has completed. If Bot.Run()
// returned an error it is passed to the Errorf function of the TestingT that
// was used to create the Bot.
func (b *Bot) Stop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go b.Brain.Shutdown(ctx)

	select {
	case err := <-b.runErr:
		if err != nil {
			b.T.Errorf("Bot.Run() returned an error: %v", err)
		}
	case <-time.After(b.Timeout):
		b.T.Errorf("Stop timed out")
		b.T.FailNow()
	}
}

// ReadOutput consumes all data from b.Output and returns it as a string so you
// can easily make assertions on it.
func (b *Bot) ReadOutput() string {
	out, err := ioutil.ReadAll(b.Output)
	if err != nil {
		b.T.Errorf("failed to read all output of bot: %v", err)
		return ""
	}

	return string(out)
}

// WaitForOutput blocks until the output of the bot contains the given text
// and returns everything that was written up to this point. Messages that are
// sent from background goroutines (e.g. monitor notifications) should be
// awaited with this function instead of ReadOutput.
func (b *Bot) WaitForOutput(text string) string {
	b.T.Helper()

	deadline := time.Now().Add(b.Timeout)
	for {
		b.output.WriteString(b.ReadOutput())
		if out := b.output.String(); strings.Contains(out, text) {
			b.output.Reset()
			return out
		}

		if time.Now().After(deadline) {
			b.T.Errorf("Timed out waiting for output %q", text)
			b.T.FailNow()
			return ""
		}

		time.Sleep(5 * time.Millisecond)
	}
}
