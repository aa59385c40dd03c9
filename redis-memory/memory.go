// Package redis implements a voicebot.Memory that stores all values in a
// single redis hash.
package redis

import (
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fgrosse/voicebot"
)

// DefaultKey is the redis hash that is used if no key was configured.
const DefaultKey = "voicebot"

// Config contains the configuration of a redis Memory.
type Config struct {
	Addr     string
	Key      string
	Password string
	DB       int
	Logger   *zap.Logger
}

type memory struct {
	logger *zap.Logger
	client *redis.Client
	hkey   string
}

// Memory returns a voicebot Module that configures the bot to use redis as
// key-value store.
func Memory(addr string, opts ...Option) voicebot.Module {
	return voicebot.ModuleFunc(func(botConf *voicebot.Config) error {
		conf := Config{Addr: addr}
		for _, opt := range opts {
			err := opt(&conf)
			if err != nil {
				return err
			}
		}

		if conf.Logger == nil {
			conf.Logger = botConf.Logger("redis")
		}

		mem, err := NewMemory(conf)
		if err != nil {
			return err
		}

		botConf.SetMemory(mem)
		return nil
	})
}

// NewMemory creates a redis Memory and checks that the server is reachable.
// Note that you will usually configure the Memory as voicebot.Module (i.e.
// using the Memory function of this package).
func NewMemory(conf Config) (voicebot.Memory, error) {
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}

	if conf.Key == "" {
		conf.Key = DefaultKey
	}

	memory := &memory{
		logger: conf.Logger,
		hkey:   conf.Key,
	}

	memory.logger.Debug("Connecting to redis memory",
		zap.String("addr", conf.Addr),
		zap.String("key", memory.hkey),
	)

	memory.client = redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	_, err := memory.client.Ping().Result()
	if err != nil {
		_ = memory.client.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}

	memory.logger.Info("Memory initialized successfully")
	return memory, nil
}

func (b *memory) Set(key string, value []byte) error {
	resp := b.client.HSet(b.hkey, key, value)
	return resp.Err()
}

func (b *memory) Get(key string) ([]byte, bool, error) {
	res, err := b.client.HGet(b.hkey, key).Bytes()
	switch {
	case err == redis.Nil:
		return nil, false, nil
	case err != nil:
		return nil, false, err
	default:
		return res, true, nil
	}
}

func (b *memory) Delete(key string) (bool, error) {
	res, err := b.client.HDel(b.hkey, key).Result()
	return res > 0, err
}

func (b *memory) Keys() ([]string, error) {
	return b.client.HKeys(b.hkey).Result()
}

func (b *memory) Close() error {
	return b.client.Close()
}
