// Package storage provides the keyspace store for the cache server.
//
// The store maps a namespace identifier to an isolated keyspace. Each
// keyspace is split into shards guarded by their own lock, and entries may
// carry a time-to-live that is enforced both logically on every read and
// physically by Sweep.
//
// Basic usage:
//
//	store := storage.NewMemory()
//	defer store.Close()
//
//	store.Set("6379", "key", "value", 10*time.Second)
//	value, ok := store.Get("6379", "key")
//
// The package supports:
//   - Thread-safe operations
//   - Per-namespace isolation
//   - Expiration with a deadline-ordered registry
//   - Atomic integer increments
//   - Optional background sweeping
package storage
