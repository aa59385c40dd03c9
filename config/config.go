// Package config loads the configuration of the bot from a file and the
// environment and turns it into bot Modules.
package config

import (
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fgrosse/voicebot"
	discord "github.com/fgrosse/voicebot/discord-adapter"
	file "github.com/fgrosse/voicebot/file-memory"
	"github.com/fgrosse/voicebot/greeting"
	"github.com/fgrosse/voicebot/monitor"
	"github.com/fgrosse/voicebot/ratelimit"
	redis "github.com/fgrosse/voicebot/redis-memory"
	"github.com/fgrosse/voicebot/steam"
)

// EnvPrefix is the prefix of all environment variables that override the
// configuration file, e.g. VOICEBOT_DISCORD_TOKEN.
const EnvPrefix = "VOICEBOT"

// Config is the complete configuration of the bot.
type Config struct {
	Name     string            `mapstructure:"name"`
	Discord  DiscordConfig     `mapstructure:"discord"`
	Steam    SteamConfig       `mapstructure:"steam"`
	Monitor  MonitorConfig     `mapstructure:"monitor"`
	Subjects map[string]string `mapstructure:"subjects"` // chat user ID -> Steam ID
	Greeting GreetingConfig    `mapstructure:"greeting"`
	Replies  []Reply           `mapstructure:"replies"`
	Memory   MemoryConfig      `mapstructure:"memory"`
	Log      LogConfig         `mapstructure:"log"`
}

// DiscordConfig configures the Discord adapter. Without a token the bot runs
// with the CLI adapter.
type DiscordConfig struct {
	Token           string `mapstructure:"token"`
	GuildID         string `mapstructure:"guild_id"`
	VoiceChannelID  string `mapstructure:"voice_channel_id"`
	NotifyChannelID string `mapstructure:"notify_channel_id"`
}

// SteamConfig configures the Steam client and the polling of the monitors.
type SteamConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Jitter       time.Duration `mapstructure:"jitter"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// MonitorConfig contains the notifications per game. Game names are matched
// case insensitively.
type MonitorConfig struct {
	Messages       map[string]string   `mapstructure:"messages"`
	Media          map[string][]string `mapstructure:"media"`
	MediaDir       string              `mapstructure:"media_dir"`
	DefaultMessage string              `mapstructure:"default_message"`
}

// GreetingConfig contains the texts of the greeting module.
type GreetingConfig struct {
	Join     []string      `mapstructure:"join"`
	Leave    []string      `mapstructure:"leave"`
	Online   []string      `mapstructure:"online"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// Reply is a canned reply to every message that matches the pattern.
type Reply struct {
	Pattern string `mapstructure:"pattern"`
	Text    string `mapstructure:"text"`
}

// MemoryConfig selects where the bot stores its data. If neither a file nor a
// redis address is set the data is kept in memory.
type MemoryConfig struct {
	File          string `mapstructure:"file"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisKey      string `mapstructure:"redis_key"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration that is used for all values that are
// neither set in the file nor in the environment.
func Default() *Config {
	return &Config{
		Name: "voicebot",
		Steam: SteamConfig{
			BaseURL:      steam.DefaultBaseURL,
			MinInterval:  steam.DefaultMinInterval,
			PollInterval: monitor.DefaultPollInterval,
			Timeout:      steam.DefaultTimeout,
		},
		Monitor: MonitorConfig{
			DefaultMessage: monitor.DefaultMessage,
		},
		Memory: MemoryConfig{
			RedisKey: redis.DefaultKey,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers all defaults on the given viper instance. Every key
// needs a default so it can be overridden from the environment.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("name", defaults.Name)

	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.voice_channel_id", "")
	v.SetDefault("discord.notify_channel_id", "")

	v.SetDefault("steam.api_key", "")
	v.SetDefault("steam.base_url", defaults.Steam.BaseURL)
	v.SetDefault("steam.min_interval", defaults.Steam.MinInterval)
	v.SetDefault("steam.poll_interval", defaults.Steam.PollInterval)
	v.SetDefault("steam.jitter", defaults.Steam.Jitter)
	v.SetDefault("steam.timeout", defaults.Steam.Timeout)

	v.SetDefault("monitor.media_dir", "")
	v.SetDefault("monitor.default_message", defaults.Monitor.DefaultMessage)

	v.SetDefault("greeting.cooldown", defaults.Greeting.Cooldown)

	v.SetDefault("memory.file", "")
	v.SetDefault("memory.redis_addr", "")
	v.SetDefault("memory.redis_key", defaults.Memory.RedisKey)
	v.SetDefault("memory.redis_password", "")
	v.SetDefault("memory.redis_db", 0)

	v.SetDefault("log.level", defaults.Log.Level)
}

// Load reads the configuration file at path (if not empty) and applies all
// VOICEBOT_* environment variables. Variables from the given env files are
// loaded first. Without env files the optional .env file of the working
// directory is used. The returned configuration is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, errors.Wrap(err, "failed to load env file")
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &conf, nil
}

// Validate checks the Config for invalid values and returns all problems it
// found as a single error.
func (c *Config) Validate() error {
	var errs []error

	if c.Steam.APIKey == "" {
		errs = append(errs, errors.New("steam.api_key is required"))
	}
	if c.Steam.MinInterval < 0 {
		errs = append(errs, errors.Errorf("steam.min_interval must not be negative (got %s)", c.Steam.MinInterval))
	}
	if c.Steam.PollInterval <= 0 {
		errs = append(errs, errors.Errorf("steam.poll_interval must be positive (got %s)", c.Steam.PollInterval))
	}
	if c.Steam.Jitter < 0 {
		errs = append(errs, errors.Errorf("steam.jitter must not be negative (got %s)", c.Steam.Jitter))
	}
	if c.Greeting.Cooldown < 0 {
		errs = append(errs, errors.Errorf("greeting.cooldown must not be negative (got %s)", c.Greeting.Cooldown))
	}
	if c.Memory.File != "" && c.Memory.RedisAddr != "" {
		errs = append(errs, errors.New("memory.file and memory.redis_addr are mutually exclusive"))
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, errors.Errorf("log.level %q is invalid", c.Log.Level))
	}

	for i, r := range c.Replies {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, errors.Wrapf(err, "replies[%d].pattern", i))
		}
	}

	return multierr.Combine(errs...)
}

// Logger builds the logger of the bot using the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	conf := zap.NewDevelopmentConfig()
	conf.Level = zap.NewAtomicLevelAt(level)
	conf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	conf.DisableStacktrace = true

	return conf.Build()
}

// Modules returns the bot Modules that implement the configuration. The order
// matters: the adapter and memory are set up before the features that use
// them.
func (c *Config) Modules(logger *zap.Logger) []voicebot.Module {
	modules := []voicebot.Module{voicebot.WithLogger(logger)}

	if c.Discord.Token != "" {
		opts := []discord.Option{discord.WithLogger(logger.Named("discord"))}
		if c.Discord.GuildID != "" {
			opts = append(opts, discord.WithGuild(c.Discord.GuildID))
		}
		if c.Monitor.MediaDir != "" {
			opts = append(opts, discord.WithMediaDir(c.Monitor.MediaDir))
		}
		modules = append(modules, discord.Adapter(c.Discord.Token, opts...))
	}

	switch {
	case c.Memory.File != "":
		modules = append(modules, file.Memory(c.Memory.File))
	case c.Memory.RedisAddr != "":
		modules = append(modules, redis.Memory(c.Memory.RedisAddr,
			redis.WithKey(c.Memory.RedisKey),
			redis.WithPassword(c.Memory.RedisPassword),
			redis.WithDB(c.Memory.RedisDB),
		))
	}

	client := steam.NewClient(c.Steam.APIKey,
		steam.WithBaseURL(c.Steam.BaseURL),
		steam.WithTimeout(c.Steam.Timeout),
		steam.WithLimiter(ratelimit.New(c.Steam.MinInterval)),
		steam.WithLogger(logger.Named("steam")),
	)

	modules = append(modules,
		monitor.Module(client,
			monitor.WithVoiceChannel(c.Discord.VoiceChannelID),
			monitor.WithNotifyChannel(c.notifyChannel()),
			monitor.WithPollInterval(c.Steam.PollInterval),
			monitor.WithJitter(c.Steam.Jitter),
			monitor.WithSubjects(c.Subjects),
			monitor.WithLookup(monitor.Lookup{
				Messages:       c.Monitor.Messages,
				Media:          c.Monitor.Media,
				DefaultMessage: c.Monitor.DefaultMessage,
			}),
		),
		greeting.Module(greeting.Config{
			Channel:      c.notifyChannel(),
			VoiceChannel: c.Discord.VoiceChannelID,
			Join:         c.Greeting.Join,
			Leave:        c.Greeting.Leave,
			Online:       c.Greeting.Online,
			Cooldown:     c.Greeting.Cooldown,
		}),
	)

	return modules
}

// notifyChannel returns the text channel for notifications. The CLI adapter
// ignores the channel so it only matters with Discord.
func (c *Config) notifyChannel() string {
	if c.Discord.NotifyChannelID != "" {
		return c.Discord.NotifyChannelID
	}

	return "cli"
}

// RegisterReplies registers the canned replies on the bot.
func (c *Config) RegisterReplies(b *voicebot.Bot) {
	for _, r := range c.Replies {
		text := r.Text
		b.RespondRegex(r.Pattern, func(msg voicebot.Message) error {
			return msg.RespondE(text)
		})
	}
}
