package storage_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/raniellyferreira/redis-inmemory-cache/storage"
)

// manualClock is a clock tests move by hand
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStorage(t *testing.T) {
	s := storage.NewMemory()
	defer s.Close()

	s.Set("a", "key1", "value1", 0)

	value, exists := s.Get("a", "key1")
	require.True(t, exists)
	assert.Equal(t, "value1", value)

	_, exists = s.Get("a", "nonexistent")
	assert.False(t, exists)

	_, exists = s.Get("missing-namespace", "key1")
	assert.False(t, exists)
	assert.Equal(t, 1, s.NamespaceCount(), "reads must not create namespaces")
}

func TestMemoryStorageOverwrite(t *testing.T) {
	s := storage.NewMemory()
	defer s.Close()

	s.Set("a", "k", "one", 0)
	s.Set("a", "k", "two", 0)

	value, _ := s.Get("a", "k")
	assert.Equal(t, "two", value)
	assert.Equal(t, int64(1), s.KeyCount("a"))
}

func TestMemoryStorageNamespaceIsolation(t *testing.T) {
	s := storage.NewMemory()
	defer s.Close()

	s.Set("A", "x", "from-a", 0)
	s.Set("B", "x", "from-b", 0)

	a, _ := s.Get("A", "x")
	b, _ := s.Get("B", "x")
	assert.Equal(t, "from-a", a)
	assert.Equal(t, "from-b", b)

	s.FlushAll("A")
	_, exists := s.Get("A", "x")
	assert.False(t, exists)

	b, exists = s.Get("B", "x")
	assert.True(t, exists)
	assert.Equal(t, "from-b", b)
}

func TestMemoryStorageDel(t *testing.T) {
	s := storage.NewMemory()
	defer s.Close()

	s.Set("a", "key1", "value1", 0)

	assert.True(t, s.Del("a", "key1"))
	assert.False(t, s.Del("a", "key1"), "second delete reports absent")
	assert.False(t, s.Del("a", "key1"), "repeated delete stays absent")
	assert.False(t, s.Del("no-such-namespace", "key1"))
}

func TestMemoryStorageFlushAll(t *testing.T) {
	s := storage.NewMemory()
	defer s.Close()

	for i := 0; i < 100; i++ {
		s.Set("a", fmt.Sprintf("key%d", i), "v", time.Duration(i)*time.Second)
	}
	require.Equal(t, int64(100), s.KeyCount("a"))

	s.FlushAll("a")
	assert.Equal(t, int64(0), s.KeyCount("a"))
	assert.Equal(t, 1, s.NamespaceCount(), "namespace remains after flush")
	assert.Equal(t, 0, s.Info()["pending_expirations"])

	_, exists := s.Get("a", "key5")
	assert.False(t, exists)

	// Flushing an unknown namespace is a no-op
	s.FlushAll("never-written")
	assert.Equal(t, 1, s.NamespaceCount())
}

func TestMemoryStorageIncr(t *testing.T) {
	s := storage.NewMemory()
	defer s.Close()

	s.Set("a", "k", "5", 0)
	n, err := s.Incr("a", "k")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	value, _ := s.Get("a", "k")
	assert.Equal(t, "6", value)

	s.Set("a", "neg", "-1", 0)
	n, err = s.Incr("a", "neg")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = s.Incr("a", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Incr("other", "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	s.Set("a", "word", "abc", 0)
	_, err = s.Incr("a", "word")
	assert.ErrorIs(t, err, storage.ErrNotAnInteger)
	value, _ = s.Get("a", "word")
	assert.Equal(t, "abc", value, "failed increment leaves the value unchanged")

	s.Set("a", "max", "9223372036854775807", 0)
	_, err = s.Incr("a", "max")
	assert.ErrorIs(t, err, storage.ErrOutOfRange)
}

func TestMemoryStorageIncrPreservesTTL(t *testing.T) {
	clock := newManualClock()
	s := storage.NewMemory(storage.WithClock(clock.Now))
	defer s.Close()

	s.Set("a", "counter", "1", 2*time.Second)

	clock.Advance(1500 * time.Millisecond)
	n, err := s.Incr("a", "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Increment must not reset createdAt: 2.1s after the set, it is gone
	clock.Advance(600 * time.Millisecond)
	_, exists := s.Get("a", "counter")
	assert.False(t, exists)

	_, err = s.Incr("a", "counter")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryStorageExpiryBoundary(t *testing.T) {
	clock := newManualClock()
	s := storage.NewMemory(storage.WithClock(clock.Now))
	defer s.Close()

	s.Set("a", "k", "v", time.Second)

	clock.Advance(900 * time.Millisecond)
	value, exists := s.Get("a", "k")
	require.True(t, exists)
	assert.Equal(t, "v", value)

	// Exactly at the TTL the entry is still visible
	clock.Advance(100 * time.Millisecond)
	_, exists = s.Get("a", "k")
	assert.True(t, exists)

	clock.Advance(100 * time.Millisecond)
	_, exists = s.Get("a", "k")
	assert.False(t, exists)

	// Once absent, stays absent
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		_, exists = s.Get("a", "k")
		assert.False(t, exists)
	}
}

func TestMemoryStorageExpiredKeyIsAbsentForDel(t *testing.T) {
	clock := newManualClock()
	s := storage.NewMemory(storage.WithClock(clock.Now))
	defer s.Close()

	s.Set("a", "k", "v", time.Second)
	clock.Advance(2 * time.Second)

	assert.False(t, s.Del("a", "k"))
}

func TestMemoryStorageRealClockTTL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	s := storage.NewMemory()
	defer s.Close()

	s.Set("a", "k", "v", time.Second)

	time.Sleep(500 * time.Millisecond)
	_, exists := s.Get("a", "k")
	assert.True(t, exists)

	time.Sleep(700 * time.Millisecond)
	_, exists = s.Get("a", "k")
	assert.False(t, exists)
}

func TestMemoryStorageConcurrentIncr(t *testing.T) {
	s := storage.NewMemory()
	defer s.Close()

	const (
		workers    = 16
		increments = 500
	)

	s.Set("a", "counter", "100", 0)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < increments; i++ {
				if _, err := s.Incr("a", "counter"); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	value, _ := s.Get("a", "counter")
	assert.Equal(t, fmt.Sprint(100+workers*increments), value)
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	s := storage.NewMemory(storage.WithShardCount(4))
	defer s.Close()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		ns := fmt.Sprintf("ns%d", w%2)
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key%d", i%20)
				s.Set(ns, key, "v", time.Duration(i%3)*time.Millisecond)
				s.Get(ns, key)
				s.Del(ns, key)
				s.Sweep()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

type recordingObserver struct {
	mu      sync.Mutex
	set     []string
	deleted []string
	expired []string
}

func (o *recordingObserver) OnKeySet(ns, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.set = append(o.set, ns+"/"+key)
}

func (o *recordingObserver) OnKeyDeleted(ns, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, ns+"/"+key)
}

func (o *recordingObserver) OnKeyExpired(ns, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expired = append(o.expired, ns+"/"+key)
}

func TestMemoryStorageObserver(t *testing.T) {
	clock := newManualClock()
	observer := &recordingObserver{}
	s := storage.NewMemory(storage.WithClock(clock.Now), storage.WithObserver(observer))
	defer s.Close()

	s.Set("a", "keep", "v", 0)
	s.Set("a", "gone", "v", time.Second)
	s.Del("a", "keep")

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, s.Sweep())

	assert.Equal(t, []string{"a/keep", "a/gone"}, observer.set)
	assert.Equal(t, []string{"a/keep"}, observer.deleted)
	assert.Equal(t, []string{"a/gone"}, observer.expired)
}

func TestMemoryStorageInfo(t *testing.T) {
	s := storage.NewMemory(storage.WithShardCount(5))
	defer s.Close()

	s.Set("a", "k1", "v", 0)
	s.Set("b", "k1", "v", time.Minute)

	info := s.Info()
	assert.Equal(t, int64(2), info["keys"])
	assert.Equal(t, 2, info["namespaces"])
	assert.Equal(t, 1, info["pending_expirations"])
	assert.Equal(t, 8, info["shards"])
}

func TestMemoryStorageBackgroundSweep(t *testing.T) {
	observer := &recordingObserver{}
	s := storage.NewMemory(
		storage.WithSweepInterval(10*time.Millisecond),
		storage.WithObserver(observer),
	)
	defer s.Close()

	s.Set("a", "k", "v", time.Millisecond)

	require.Eventually(t, func() bool {
		observer.mu.Lock()
		defer observer.mu.Unlock()
		return len(observer.expired) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryStorageCloseIdempotent(t *testing.T) {
	s := storage.NewMemory(storage.WithSweepInterval(time.Hour))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
