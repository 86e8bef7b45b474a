package rediscache_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "github.com/raniellyferreira/redis-inmemory-cache"
	"github.com/raniellyferreira/redis-inmemory-cache/client"
	"github.com/raniellyferreira/redis-inmemory-cache/lua"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) Debug(msg string, fields ...rediscache.Field) { l.record(msg) }
func (l *recordingLogger) Info(msg string, fields ...rediscache.Field)  { l.record(msg) }
func (l *recordingLogger) Error(msg string, fields ...rediscache.Field) { l.record(msg) }

func (l *recordingLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == msg {
			return true
		}
	}
	return false
}

type countingMetrics struct {
	mu                   sync.Mutex
	sets, dels, expiries int
}

func (m *countingMetrics) RecordKeySet(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
}

func (m *countingMetrics) RecordKeyDeleted(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dels++
}

func (m *countingMetrics) RecordKeyExpired(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiries++
}

func startCache(t *testing.T, opts ...rediscache.Option) *rediscache.Cache {
	t.Helper()

	opts = append([]rediscache.Option{
		rediscache.WithAddr("127.0.0.1:0"),
		rediscache.WithLogger(&recordingLogger{}),
	}, opts...)

	cache, err := rediscache.New(opts...)
	require.NoError(t, err)
	require.NoError(t, cache.Start(context.Background()))
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  rediscache.Option
	}{
		{"address without port", rediscache.WithAddr("localhost")},
		{"negative read timeout", rediscache.WithReadTimeout(-time.Second)},
		{"zero shards", rediscache.WithShardCount(0)},
		{"negative sweep interval", rediscache.WithSweepInterval(-time.Second)},
		{"nil logger", rediscache.WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rediscache.New(tt.opt)
			require.Error(t, err)
			assert.ErrorIs(t, err, rediscache.ErrInvalidConfig)

			var cfgErr *rediscache.ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestCacheEndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := &recordingLogger{}
	cache := startCache(t, rediscache.WithLogger(logger))

	c, err := client.Dial(ctx, cache.Addr())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "foo", "bar", 0))
	value, found, err := c.Get(ctx, "foo")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "bar", value)

	require.NoError(t, c.Set(ctx, "n", "41", 0))
	n, err := c.Incr(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	deleted, err := c.Del(ctx, "foo")
	require.NoError(t, err)
	assert.True(t, deleted)

	require.NoError(t, c.FlushAll(ctx))
	_, found, err = c.Get(ctx, "n")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Exit(ctx))

	assert.True(t, logger.has("Cache started"))
	require.Eventually(t, func() bool {
		return logger.has("Client disconnected")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCacheStorageNamespaceMatchesConnection(t *testing.T) {
	ctx := context.Background()
	cache := startCache(t)

	c, err := client.Dial(ctx, cache.Addr())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", "v", 0))

	// Isolated keyspaces are named after the client's source port
	_, port, err := net.SplitHostPort(c.LocalAddr().String())
	require.NoError(t, err)
	value, exists := cache.Storage().Get(port, "k")
	assert.True(t, exists)
	assert.Equal(t, "v", value)
}

func TestCacheSharedKeyspace(t *testing.T) {
	ctx := context.Background()
	cache := startCache(t, rediscache.WithSharedKeyspace(true))

	a, err := client.Dial(ctx, cache.Addr())
	require.NoError(t, err)
	defer a.Close()
	b, err := client.Dial(ctx, cache.Addr())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Set(ctx, "k", "from-a", 0))
	value, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-a", value)

	assert.Equal(t, true, cache.Info()["shared_keyspace"])
}

func TestCacheLifecycle(t *testing.T) {
	cache, err := rediscache.New(rediscache.WithAddr("127.0.0.1:0"), rediscache.WithLogger(&recordingLogger{}))
	require.NoError(t, err)

	require.NoError(t, cache.Start(context.Background()))
	assert.ErrorIs(t, cache.Start(context.Background()), rediscache.ErrAlreadyStarted)

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
	assert.ErrorIs(t, cache.Start(context.Background()), rediscache.ErrClosed)
}

func TestCacheStartFailsOnBusyAddress(t *testing.T) {
	first := startCache(t)

	second, err := rediscache.New(rediscache.WithAddr(first.Addr()), rediscache.WithLogger(&recordingLogger{}))
	require.NoError(t, err)
	defer second.Close()

	assert.Error(t, second.Start(context.Background()))
}

func TestCacheMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &countingMetrics{}
	cache := startCache(t, rediscache.WithMetrics(metrics), rediscache.WithSweepInterval(10*time.Millisecond))

	c, err := client.Dial(ctx, cache.Addr())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "keep", "v", 0))
	require.NoError(t, c.Set(ctx, "gone", "v", 0))
	_, err = c.Del(ctx, "gone")
	require.NoError(t, err)

	// Expiration is driven through the store directly with a sub-second TTL
	cache.Storage().Set("direct", "short", "v", time.Millisecond)

	require.Eventually(t, func() bool {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return metrics.expiries == 1
	}, 2*time.Second, 10*time.Millisecond)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 3, metrics.sets)
	assert.Equal(t, 1, metrics.dels)
}

func TestCacheInfo(t *testing.T) {
	ctx := context.Background()
	cache := startCache(t)

	c, err := client.Dial(ctx, cache.Addr())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	info := cache.Info()
	assert.Equal(t, int64(1), info["keys"])
	assert.Equal(t, 1, info["pending_expirations"])
	assert.Equal(t, int64(1), info["total_commands"])
	assert.Equal(t, rediscache.Version, info["version"])
}

func TestLuaScriptThroughClient(t *testing.T) {
	ctx := context.Background()
	cache := startCache(t)

	c, err := client.Dial(ctx, cache.Addr())
	require.NoError(t, err)
	defer c.Close()

	engine := lua.NewEngine(c)
	result, err := engine.Eval(ctx, `
		kv.call('SET', KEYS[1], ARGV[1])
		local n = kv.call('INCR', KEYS[1])
		return n * 2
	`, []string{"counter"}, []string{"20"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)

	value, found, err := c.Get(ctx, "counter")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "21", value)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, rediscache.Version, rediscache.VersionString())
	assert.Equal(t, rediscache.Version, rediscache.VersionInfo()["version"])
}
