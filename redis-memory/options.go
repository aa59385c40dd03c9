package redis

import "go.uber.org/zap"

// An Option is used to configure the redis Memory.
type Option func(*Config) error

// WithLogger can be used to inject a different logger for the Memory.
func WithLogger(logger *zap.Logger) Option {
	return func(conf *Config) error {
		conf.Logger = logger
		return nil
	}
}

// WithKey sets the key of the redis hash in which all values are stored.
func WithKey(key string) Option {
	return func(conf *Config) error {
		conf.Key = key
		return nil
	}
}

// WithPassword sets the password to authenticate at the redis server.
func WithPassword(password string) Option {
	return func(conf *Config) error {
		conf.Password = password
		return nil
	}
}

// WithDB selects the redis database.
func WithDB(db int) Option {
	return func(conf *Config) error {
		conf.DB = db
		return nil
	}
}
