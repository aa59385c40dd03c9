// Package file implements a voicebot.Memory that persists all values as JSON
// in a single file.
package file

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fgrosse/voicebot"
)

type memory struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	data map[string]string
}

// Memory is a voicebot.Module that configures the bot to use a file as
// persistent key-value store.
func Memory(path string) voicebot.Module {
	return voicebot.ModuleFunc(func(conf *voicebot.Config) error {
		mem, err := NewMemory(path, WithLogger(conf.Logger("memory")))
		if err != nil {
			return err
		}

		conf.SetMemory(mem)
		return nil
	})
}

// NewMemory creates a new Memory instance that persists all values to the
// given path. If the file already exists its data is loaded.
func NewMemory(path string, opts ...Option) (voicebot.Memory, error) {
	memory := &memory{
		path: path,
		data: map[string]string{},
	}

	for _, opt := range opts {
		err := opt(memory)
		if err != nil {
			return nil, err
		}
	}

	if memory.logger == nil {
		memory.logger = zap.NewNop()
	}

	memory.logger.Debug("Opening memory file", zap.String("path", path))
	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		memory.logger.Debug("File does not exist. Continuing with empty memory", zap.String("path", path))
	case err != nil:
		return nil, errors.Wrap(err, "failed to open file")
	default:
		memory.logger.Debug("Decoding JSON from memory file", zap.String("path", path))
		err := json.NewDecoder(f).Decode(&memory.data)
		_ = f.Close()
		if err != nil {
			return nil, errors.Wrap(err, "failed decode data as JSON")
		}
	}

	memory.logger.Info("Memory initialized successfully",
		zap.String("path", path),
		zap.Int("num_memories", len(memory.data)),
	)

	return memory, nil
}

func (m *memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return errors.New("memory was already closed")
	}

	m.data[key] = string(value)
	return m.persist()
}

func (m *memory) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, false, errors.New("memory was already closed")
	}

	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}

	return []byte(value), true, nil
}

func (m *memory) Delete(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return false, errors.New("memory was already closed")
	}

	_, ok := m.data[key]
	if !ok {
		return false, nil
	}

	delete(m.data, key)
	return true, m.persist()
}

func (m *memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, errors.New("memory was already closed")
	}

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}

	return keys, nil
}

func (m *memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return errors.New("memory was already closed")
	}

	m.logger.Debug("Closing memory file", zap.String("path", m.path))
	m.data = nil
	return nil
}

func (m *memory) persist() error {
	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0660)
	if err != nil {
		return errors.Wrap(err, "failed to open file to persist data")
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	err = enc.Encode(m.data)
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to encode data as JSON")
	}

	err = f.Close()
	if err != nil {
		return errors.Wrap(err, "failed to close file; data might not have been fully persisted to disk")
	}

	return nil
}
