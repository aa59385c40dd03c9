// Package help implements a Module that lists the commands the bot responds
// to.
package help

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fgrosse/voicebot"
)

// A Command describes a single chat command for the help output.
type Command struct {
	Pattern     string // e.g. "link steam <id>"
	Description string
}

type helper struct {
	logger   *zap.Logger
	sender   *voicebot.Sender
	command  *regexp.Regexp
	commands []Command
}

// Module returns a voicebot.Module that responds to "help" with the
// description of every given command. "help <filter>" only lists commands
// whose pattern contains the filter.
func Module(commands ...Command) voicebot.Module {
	return voicebot.ModuleFunc(func(conf *voicebot.Config) error {
		h := &helper{
			logger:   conf.Logger("help"),
			sender:   conf.Sender(),
			command:  regexp.MustCompile(`(?i)^help(\s+.+)?$`),
			commands: commands,
		}

		conf.RegisterHandler(h.helpCommand)
		return nil
	})
}

// The helpCommand prints a helpful description for each command the bot
// responds to.
func (h *helper) helpCommand(_ context.Context, msg voicebot.ReceiveMessageEvent) error {
	matches := h.command.FindStringSubmatch(strings.TrimSpace(msg.Text))
	if matches == nil {
		return nil
	}

	filter := strings.ToLower(strings.TrimSpace(matches[1]))

	var lines []string
	for _, c := range h.commands {
		if filter == "" || strings.Contains(strings.ToLower(c.Pattern), filter) {
			lines = append(lines, c.Pattern+": "+c.Description)
		}
	}

	if len(lines) == 0 {
		h.logger.Debug("No command matches help filter", zap.String("filter", filter))
		return h.sender.Send("I do not know any command like that.", msg.Channel)
	}

	return h.sender.Send(strings.Join(lines, "\n"), msg.Channel)
}
