package voicebot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// An Adapter connects the bot with the chat by enabling it to receive and send
// messages. Additionally advanced adapters can emit more events than just the
// ReceiveMessageEvent (e.g. the discord adapter also emits the VoiceJoinEvent).
// Such adapter events must be setup in the Register function of the Adapter.
//
// The package provides a default CLIAdapter implementation which connects the
// bot with the local shell to receive messages from stdin and print messages
// to stdout.
type Adapter interface {
	Register(EventRegistry)
	Send(text, channel string) error
	Close() error
}

// A MediaAwareAdapter is an Adapter that can attach media (images, sounds) to
// a channel. The media reference is adapter specific, typically a path to a
// local file or a URL.
type MediaAwareAdapter interface {
	Adapter
	SendMedia(ref, channel string) error
}

// A PresenceAwareAdapter is an Adapter that knows in which voice channel a
// user currently is. VoiceChannel returns the empty string if the user is not
// in any voice channel and ErrUnknownUser if the user cannot be resolved.
type PresenceAwareAdapter interface {
	Adapter
	VoiceChannel(ctx context.Context, userID string) (string, error)
}

// A ContextAwareAdapter is an Adapter whose sends may block (e.g. on a send
// limit) and can be canceled through a context.
type ContextAwareAdapter interface {
	Adapter
	SendContext(ctx context.Context, text, channel string) error
	SendMediaContext(ctx context.Context, ref, channel string) error
}

// The CLIAdapter is the default Adapter implementation that the bot uses if no
// other adapter was configured. It emits a ReceiveMessageEvent for each line it
// receives from stdin and prints all sent messages to stdout.
//
// A few commands simulate platform events so the voice features can be tried
// out locally:
//
//	/join <user> <channel>    emits a VoiceJoinEvent
//	/leave <user>             emits a VoiceLeaveEvent
//	/status <user> <status>   emits a PresenceUpdateEvent
type CLIAdapter struct {
	Prefix string
	Author string // AuthorID of all messages read from Input
	Input  io.ReadCloser
	Output io.Writer
	Logger *zap.Logger

	mu     sync.Mutex // protects everything below and writes to Output
	closed bool
	voice  map[string]string // user ID -> voice channel ID
	status map[string]string // user ID -> presence status
}

// NewCLIAdapter creates a new CLIAdapter. The caller must call Close
// to make the CLIAdapter stop reading messages and emitting events.
func NewCLIAdapter(name string, logger *zap.Logger) *CLIAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CLIAdapter{
		Prefix: fmt.Sprintf("%s > ", name),
		Author: "cli",
		Input:  os.Stdin,
		Output: os.Stdout,
		Logger: logger,
		voice:  map[string]string{},
		status: map[string]string{},
	}
}

// Register starts the CLIAdapter by reading lines from Input and emitting an
// event for each of them. Additionally the adapter hooks into the InitEvent to
// print a nice prefix to Output to show to the user it is ready to accept
// input.
func (a *CLIAdapter) Register(brain EventRegistry) {
	brain.RegisterHandler(func(evt InitEvent) {
		a.print(a.Prefix)
	})

	go a.loop(brain)
}

func (a *CLIAdapter) loop(brain EventEmitter) {
	callback := func(Event) {
		a.print(a.Prefix)
	}

	scanner := bufio.NewScanner(a.Input)
	for scanner.Scan() {
		line := scanner.Text()
		brain.Emit(a.parseLine(line), callback)
	}

	if err := scanner.Err(); err != nil && !a.isClosed() {
		a.Logger.Error("Failed to read messages from input", zap.Error(err))
	}
}

func (a *CLIAdapter) parseLine(line string) interface{} {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ReceiveMessageEvent{Text: line, AuthorID: a.Author, Channel: "cli"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case fields[0] == "/join" && len(fields) == 3:
		user, channel := fields[1], fields[2]
		a.voice[user] = channel
		return VoiceJoinEvent{UserID: user, UserName: user, ChannelID: channel}

	case fields[0] == "/leave" && len(fields) == 2:
		user := fields[1]
		channel := a.voice[user]
		delete(a.voice, user)
		return VoiceLeaveEvent{UserID: user, UserName: user, ChannelID: channel}

	case fields[0] == "/status" && len(fields) == 3:
		user, status := fields[1], fields[2]
		prev := a.status[user]
		a.status[user] = status
		return PresenceUpdateEvent{UserID: user, UserName: user, Status: status, PreviousStatus: prev}

	default:
		return ReceiveMessageEvent{Text: line, AuthorID: a.Author, Channel: "cli"}
	}
}

// Send implements the Adapter interface by sending the given text to Output.
// The channel argument is required by the Adapter interface but is otherwise ignored.
func (a *CLIAdapter) Send(text, channel string) error {
	a.print(text + "\n")
	return nil
}

// SendMedia implements the MediaAwareAdapter interface by printing the media
// reference to Output.
func (a *CLIAdapter) SendMedia(ref, channel string) error {
	a.print(fmt.Sprintf("[media] %s\n", ref))
	return nil
}

// VoiceChannel implements the PresenceAwareAdapter interface using the voice
// channels of the /join and /leave commands.
func (a *CLIAdapter) VoiceChannel(_ context.Context, userID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.voice[userID], nil
}

// Close makes the CLIAdapter stop emitting any new events or printing any
// output. Calling this function more than once will result in an error.
func (a *CLIAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.New("already closed")
	}
	a.closed = true
	a.mu.Unlock()

	a.Logger.Debug("Closing CLIAdapter")
	_, _ = fmt.Fprintln(a.Output)
	return a.Input.Close()
}

func (a *CLIAdapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *CLIAdapter) print(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	_, err := fmt.Fprint(a.Output, msg)
	if err != nil {
		a.Logger.Error("Failed to write message to output", zap.Error(err))
	}
}
