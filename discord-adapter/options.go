package discord

import (
	"time"

	"github.com/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// An Option is used to configure the discord adapter.
type Option func(*Config) error

// WithLogger can be used to inject a different logger for the adapter.
func WithLogger(logger *zap.Logger) Option {
	return func(conf *Config) error {
		conf.Logger = logger
		return nil
	}
}

// WithGuild restricts the adapter to a single guild (server). Events of other
// guilds are ignored.
func WithGuild(guildID string) Option {
	return func(conf *Config) error {
		conf.GuildID = guildID
		return nil
	}
}

// WithSendLimit sets how many messages the bot may send per interval. Messages
// that exceed the limit wait until they can be sent.
func WithSendLimit(n int, interval time.Duration) Option {
	return func(conf *Config) error {
		if n <= 0 {
			return errors.Errorf("send limit must be positive (got %d)", n)
		}
		if interval <= 0 {
			return errors.Errorf("send limit interval must be positive (got %s)", interval)
		}

		conf.SendLimit = rate.Every(interval / time.Duration(n))
		conf.SendBurst = n
		return nil
	}
}

// WithMediaDir sets the directory in which local media files are looked up.
// Media references that are URLs are always sent as plain message.
func WithMediaDir(dir string) Option {
	return func(conf *Config) error {
		conf.MediaDir = dir
		return nil
	}
}
