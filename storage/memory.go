package storage

import (
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// shard represents a single shard of data with its own lock
type shard struct {
	mu   sync.RWMutex
	data map[string]*Entry
}

// namespace is one isolated keyspace split into shards
type namespace struct {
	shards []shard
}

// MemoryStorage implements an in-memory storage engine
type MemoryStorage struct {
	// Guards the namespace map only; keys are guarded by their shard
	mu         sync.RWMutex
	namespaces map[string]*namespace

	// Sharding configuration
	shards    int
	shardMask uint64

	expiry     *registry
	generation atomic.Uint64
	now        func() time.Time
	observers  []StorageObserver

	// Background sweep
	sweepInterval time.Duration
	cleanupStop   chan struct{}
	cleanupDone   chan struct{}
	closeOnce     sync.Once
}

// MemoryOption is a function that configures a MemoryStorage instance
type MemoryOption func(*MemoryStorage)

// WithShardCount sets the number of shards per namespace.
// The number is rounded up to the next power of 2.
func WithShardCount(count int) MemoryOption {
	return func(s *MemoryStorage) {
		if count > 0 {
			s.shards = nextPowerOf2(count)
			s.shardMask = uint64(s.shards - 1)
		}
	}
}

// WithClock replaces time.Now as the source of entry timestamps
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepInterval runs Sweep from a background goroutine every interval.
// Zero (the default) leaves sweeping to callers.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStorage) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithObserver registers an observer for set, delete and expire events
func WithObserver(observer StorageObserver) MemoryOption {
	return func(s *MemoryStorage) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// NewMemory creates a new in-memory storage instance with 16 shards per namespace
func NewMemory(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		namespaces:  make(map[string]*namespace),
		shards:      16,
		shardMask:   15,
		expiry:      newRegistry(),
		now:         time.Now,
		cleanupStop: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.sweepInterval > 0 {
		go s.cleanupExpiredKeys()
	} else {
		close(s.cleanupDone)
	}

	return s
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// newNamespace creates an empty sharded keyspace
func (s *MemoryStorage) newNamespace() *namespace {
	db := &namespace{
		shards: make([]shard, s.shards),
	}
	for i := 0; i < s.shards; i++ {
		db.shards[i].data = make(map[string]*Entry)
	}
	return db
}

// namespace returns the keyspace for ns, creating it when create is set
func (s *MemoryStorage) namespace(ns string, create bool) *namespace {
	s.mu.RLock()
	db := s.namespaces[ns]
	s.mu.RUnlock()

	if db != nil || !create {
		return db
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if db = s.namespaces[ns]; db == nil {
		db = s.newNamespace()
		s.namespaces[ns] = db
	}
	return db
}

// shardFor returns the shard holding key in ns, or nil if ns does not exist and create is false
func (s *MemoryStorage) shardFor(ns, key string, create bool) *shard {
	db := s.namespace(ns, create)
	if db == nil {
		return nil
	}
	return &db.shards[xxhash.Sum64String(key)&s.shardMask]
}

// Get retrieves a live value by key
func (s *MemoryStorage) Get(ns, key string) (string, bool) {
	sh := s.shardFor(ns, key, false)
	if sh == nil {
		return "", false
	}

	sh.mu.RLock()
	entry, exists := sh.data[key]
	if !exists {
		sh.mu.RUnlock()
		return "", false
	}

	if entry.ExpiredAt(s.now()) {
		sh.mu.RUnlock()
		s.deleteExpiredKey(ns, key)
		return "", false
	}

	value := entry.Value
	sh.mu.RUnlock()

	return value, true
}

// Set creates or overwrites an entry. A positive ttl registers it for
// expiration; a zero ttl makes it permanent and drops any earlier registration.
func (s *MemoryStorage) Set(ns, key, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}

	sh := s.shardFor(ns, key, true)

	entry := &Entry{
		Value:      value,
		TTL:        ttl,
		CreatedAt:  s.now(),
		Generation: s.generation.Add(1),
	}

	sh.mu.Lock()
	sh.data[key] = entry
	// Registration changes under the shard lock so the last writer wins both
	if ttl > 0 {
		s.expiry.track(ns, key, entry.Generation, entry.Deadline())
	} else {
		s.expiry.untrack(ns, key)
	}
	sh.mu.Unlock()

	for _, observer := range s.observers {
		observer.OnKeySet(ns, key)
	}
}

// Incr adds one to an integer value and returns the result. The entry keeps
// its creation time and TTL.
func (s *MemoryStorage) Incr(ns, key string) (int64, error) {
	sh := s.shardFor(ns, key, false)
	if sh == nil {
		return 0, ErrNotFound
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, exists := sh.data[key]
	if !exists || entry.ExpiredAt(s.now()) {
		return 0, ErrNotFound
	}

	n, err := strconv.ParseInt(entry.Value, 10, 64)
	if err != nil {
		return 0, ErrNotAnInteger
	}
	if n == math.MaxInt64 {
		return 0, ErrOutOfRange
	}

	n++
	entry.Value = strconv.FormatInt(n, 10)
	return n, nil
}

// Del deletes a key and reports whether a live entry was removed
func (s *MemoryStorage) Del(ns, key string) bool {
	sh := s.shardFor(ns, key, false)
	if sh == nil {
		return false
	}

	sh.mu.Lock()
	entry, exists := sh.data[key]
	if !exists {
		sh.mu.Unlock()
		return false
	}

	live := !entry.ExpiredAt(s.now())
	delete(sh.data, key)
	s.expiry.untrack(ns, key)
	sh.mu.Unlock()

	if live {
		for _, observer := range s.observers {
			observer.OnKeyDeleted(ns, key)
		}
	}
	return live
}

// FlushAll empties a namespace in place
func (s *MemoryStorage) FlushAll(ns string) {
	db := s.namespace(ns, false)
	if db == nil {
		return
	}

	for i := 0; i < s.shards; i++ {
		sh := &db.shards[i]
		sh.mu.Lock()
		keys := make([]string, 0, len(sh.data))
		for key := range sh.data {
			keys = append(keys, key)
		}
		s.expiry.untrackKeys(ns, keys)
		sh.data = make(map[string]*Entry)
		sh.mu.Unlock()
	}
}

// KeyCount returns the number of live keys in a namespace
func (s *MemoryStorage) KeyCount(ns string) int64 {
	db := s.namespace(ns, false)
	if db == nil {
		return 0
	}
	return s.countLive(db, s.now())
}

// NamespaceCount returns the number of namespaces created so far
func (s *MemoryStorage) NamespaceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces)
}

// Info returns storage information
func (s *MemoryStorage) Info() map[string]interface{} {
	s.mu.RLock()
	namespaces := make([]*namespace, 0, len(s.namespaces))
	for _, db := range s.namespaces {
		namespaces = append(namespaces, db)
	}
	s.mu.RUnlock()

	now := s.now()
	keys := int64(0)
	for _, db := range namespaces {
		keys += s.countLive(db, now)
	}

	return map[string]interface{}{
		"keys":                keys,
		"namespaces":          len(namespaces),
		"pending_expirations": s.expiry.Len(),
		"shards":              s.shards,
	}
}

// Close stops the background sweep, if any
func (s *MemoryStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.cleanupStop)
	})
	<-s.cleanupDone
	return nil
}

func (s *MemoryStorage) countLive(db *namespace, now time.Time) int64 {
	count := int64(0)
	for i := 0; i < s.shards; i++ {
		sh := &db.shards[i]
		sh.mu.RLock()
		for _, entry := range sh.data {
			if !entry.ExpiredAt(now) {
				count++
			}
		}
		sh.mu.RUnlock()
	}
	return count
}

// deleteExpiredKey removes a key found expired on read. Its registration,
// if still pending, is retired by the next Sweep.
func (s *MemoryStorage) deleteExpiredKey(ns, key string) {
	sh := s.shardFor(ns, key, false)
	if sh == nil {
		return
	}

	sh.mu.Lock()
	entry, exists := sh.data[key]
	if !exists || !entry.ExpiredAt(s.now()) {
		// Overwritten while we waited for the lock
		sh.mu.Unlock()
		return
	}
	delete(sh.data, key)
	sh.mu.Unlock()

	for _, observer := range s.observers {
		observer.OnKeyExpired(ns, key)
	}
}
