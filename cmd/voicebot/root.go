package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fgrosse/voicebot"
	"github.com/fgrosse/voicebot/config"
	"github.com/fgrosse/voicebot/help"
	"github.com/fgrosse/voicebot/monitor"
)

// Version is set at build time via -ldflags "-X main.Version=…".
var Version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "voicebot",
		Short:        "Chat bot that announces what the people in a voice channel are playing",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		envFiles   []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot until it receives SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}

			b, err := newBot(conf)
			if err != nil {
				return err
			}

			return b.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the configuration file (YAML, TOML or JSON)")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "env files to load before reading the configuration (default .env)")
	return cmd
}

var commands = []help.Command{
	{Pattern: "link steam <id>", Description: "Link your Steam account so I can see what you are playing"},
	{Pattern: "unlink steam", Description: "Forget your Steam account"},
	{Pattern: "monitors", Description: "List everybody I am watching right now"},
	{Pattern: "links", Description: "List everybody who linked a Steam account"},
	{Pattern: "ping", Description: "Check if I am still alive"},
	{Pattern: "help [filter]", Description: "Show this help"},
}

type bot struct {
	*voicebot.Bot
}

func newBot(conf *config.Config) (*bot, error) {
	logger, err := conf.Logger()
	if err != nil {
		return nil, err
	}

	modules := append(conf.Modules(logger), help.Module(commands...))
	b := &bot{Bot: voicebot.New(conf.Name, modules...)}

	b.Respond("ping", b.Pong)
	b.Respond(`links\??`, b.Links)
	conf.RegisterReplies(b.Bot)

	return b, nil
}

func (b *bot) Pong(msg voicebot.Message) error {
	msg.Respond("PONG")
	return nil
}

// Links lists everybody who linked a Steam account via "link steam <id>".
func (b *bot) Links(msg voicebot.Message) error {
	keys, err := b.Store.Keys(monitor.ReferenceKeyPrefix)
	if err != nil {
		return errors.Wrap(err, "failed to retrieve linked accounts")
	}

	if len(keys) == 0 {
		msg.Respond("Nobody linked a Steam account yet.")
		return nil
	}

	users := make([]string, len(keys))
	for i, k := range keys {
		users[i] = strings.TrimPrefix(k, monitor.ReferenceKeyPrefix)
	}

	sort.Strings(users)
	msg.Respond("Linked Steam accounts: %s", strings.Join(users, ", "))
	return nil
}
