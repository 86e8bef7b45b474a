package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key is absent or expired
	ErrNotFound = errors.New("entry does not exist")

	// ErrNotAnInteger indicates the stored value does not parse as a base-10 integer
	ErrNotAnInteger = errors.New("value is not an integer")

	// ErrOutOfRange indicates an increment would overflow int64
	ErrOutOfRange = errors.New("increment would overflow")
)

// Storage defines the keyspace operations. Every operation is scoped to a
// namespace; namespaces never see each other's keys.
type Storage interface {
	// Key operations
	Get(ns, key string) (string, bool)
	Set(ns, key, value string, ttl time.Duration)
	Incr(ns, key string) (int64, error)
	Del(ns, key string) bool
	FlushAll(ns string)

	// Expiration
	Sweep() int

	// Info and stats
	KeyCount(ns string) int64
	NamespaceCount() int
	Info() map[string]interface{}

	// Shutdown
	Close() error
}

// StorageObserver provides hooks for storage events
type StorageObserver interface {
	OnKeySet(ns, key string)
	OnKeyDeleted(ns, key string)
	OnKeyExpired(ns, key string)
}
