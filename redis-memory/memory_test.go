package redis

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fgrosse/voicebot"
)

// The tests in this file need a running redis server. They are skipped unless
// the VOICEBOT_REDIS_ADDR environment variable is set.
func redisAddr(t *testing.T) string {
	addr := os.Getenv("VOICEBOT_REDIS_ADDR")
	if addr == "" {
		t.Skip("VOICEBOT_REDIS_ADDR is not set")
	}
	return addr
}

func TestMemory(t *testing.T) {
	addr := redisAddr(t)
	mem, err := NewMemory(Config{
		Addr:   addr,
		Key:    "voicebot-test-" + t.Name(),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	defer func() {
		m := mem.(*memory)
		m.client.Del(m.hkey)
		assert.NoError(t, mem.Close())
	}()

	_, ok, err := mem.Get("steam.ref.alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mem.Set("steam.ref.alice", []byte(`"76561197960287930"`)))
	require.NoError(t, mem.Set("steam.ref.bob", []byte(`"76561197960287931"`)))

	value, ok, err := mem.Get("steam.ref.alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"76561197960287930"`, string(value))

	keys, err := mem.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"steam.ref.alice", "steam.ref.bob"}, keys)

	ok, err = mem.Delete("steam.ref.alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mem.Delete("steam.ref.alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Storage(t *testing.T) {
	addr := redisAddr(t)
	mem, err := NewMemory(Config{Addr: addr, Key: "voicebot-test-" + t.Name()})
	require.NoError(t, err)

	store := voicebot.NewStorage(zaptest.NewLogger(t))
	store.SetMemory(mem)
	defer func() {
		m := mem.(*memory)
		m.client.Del(m.hkey)
		assert.NoError(t, store.Close())
	}()

	require.NoError(t, store.Set("greeting.last", 42))

	var n int
	ok, err := store.Get("greeting.last", &n)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestNewMemory_Unreachable(t *testing.T) {
	_, err := NewMemory(Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping redis")
}

func TestOptions(t *testing.T) {
	logger := zaptest.NewLogger(t)

	var conf Config
	for _, opt := range []Option{WithKey("bot"), WithPassword("secret"), WithDB(3), WithLogger(logger)} {
		require.NoError(t, opt(&conf))
	}

	assert.Equal(t, Config{Key: "bot", Password: "secret", DB: 3, Logger: logger}, conf)
}
