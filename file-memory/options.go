package file

import "go.uber.org/zap"

// An Option is used to configure the file Memory.
type Option func(*memory) error

// WithLogger can be used to inject a different logger for the Memory.
func WithLogger(logger *zap.Logger) Option {
	return func(memory *memory) error {
		memory.logger = logger
		return nil
	}
}
