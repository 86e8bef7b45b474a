package rediscache

import (
	"context"
	"fmt"
	"sync"

	"github.com/raniellyferreira/redis-inmemory-cache/server"
	"github.com/raniellyferreira/redis-inmemory-cache/storage"
)

// Cache is a cache server: the keyspace store plus the TCP server in front of it
type Cache struct {
	// Configuration
	config *config

	// Components
	storage *storage.MemoryStorage
	server  *server.Server

	// State
	mu      sync.RWMutex
	started bool
	closed  bool
}

// New creates a new Cache with the given options
//
// The cache is created but not listening. Use Start to bind the address.
//
// Example:
//
//	cache, err := rediscache.New(
//		rediscache.WithAddr("localhost:6379"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Cache, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	storageOpts := []storage.MemoryOption{
		storage.WithShardCount(cfg.shardCount),
		storage.WithSweepInterval(cfg.sweepInterval),
	}
	if cfg.metrics != nil {
		storageOpts = append(storageOpts, storage.WithObserver(&metricsObserver{metrics: cfg.metrics}))
	}
	stor := storage.NewMemory(storageOpts...)

	srv := server.NewServer(cfg.addr, stor,
		server.WithLogger(&serverLogger{logger: cfg.logger}),
		server.WithReadTimeout(cfg.readTimeout),
		server.WithSharedKeyspace(cfg.sharedKeyspace),
	)

	return &Cache{
		config:  cfg,
		storage: stor,
		server:  srv,
	}, nil
}

// Start binds the listening address and begins serving connections.
// It returns once the server is accepting; ctx only bounds startup.
func (c *Cache) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	c.started = true
	c.config.logger.Info("Cache started", Field{Key: "addr", Value: c.server.Addr()}, Field{Key: "version", Value: Version})
	return nil
}

// Close stops accepting connections, waits for in-flight requests and
// releases the store. Calling Close more than once is safe.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if c.started {
		if err := c.server.Stop(); err != nil {
			firstErr = err
		}
	}
	if err := c.storage.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	c.config.logger.Info("Cache closed")
	return firstErr
}

// Addr returns the address the server listens on, with the real port once started
func (c *Cache) Addr() string {
	return c.server.Addr()
}

// Storage returns the underlying keyspace store
//
// Operations on it bypass the network and act on the namespace given.
func (c *Cache) Storage() storage.Storage {
	return c.storage
}

// Info returns storage and server statistics
func (c *Cache) Info() map[string]interface{} {
	info := c.storage.Info()
	for k, v := range c.server.Stats() {
		info[k] = v
	}
	info["version"] = Version
	info["shared_keyspace"] = c.config.sharedKeyspace
	return info
}
