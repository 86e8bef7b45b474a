package rediscache

import (
	"net"
	"time"
)

// config holds the configuration for a Cache
type config struct {
	// Listening address, host:port
	addr string

	// Connection handling
	readTimeout    time.Duration
	sharedKeyspace bool

	// Storage
	shardCount    int
	sweepInterval time.Duration

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:       ":6379",
		shardCount: 16,
		logger:     &defaultLogger{},
	}
}

// Option represents a configuration option for a Cache
type Option func(*config) error

// WithAddr sets the listening address
//
// Example:
//
//	WithAddr("localhost:6379")
//	WithAddr("127.0.0.1:0") // any free port
func WithAddr(addr string) Option {
	return func(c *config) error {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return &ConfigError{Option: "addr", Err: ErrInvalidConfig}
		}
		c.addr = addr
		return nil
	}
}

// WithReadTimeout closes connections idle for longer than timeout.
// Zero, the default, keeps idle connections open.
//
// Example:
//
//	WithReadTimeout(5 * time.Minute)
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return &ConfigError{Option: "read timeout", Err: ErrInvalidConfig}
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithSharedKeyspace puts every connection in one keyspace instead of one
// keyspace per connection
func WithSharedKeyspace(shared bool) Option {
	return func(c *config) error {
		c.sharedKeyspace = shared
		return nil
	}
}

// WithShardCount sets the number of lock shards per keyspace.
// It is rounded up to a power of two.
func WithShardCount(count int) Option {
	return func(c *config) error {
		if count <= 0 || count > 1<<16 {
			return &ConfigError{Option: "shard count", Err: ErrInvalidConfig}
		}
		c.shardCount = count
		return nil
	}
}

// WithSweepInterval also sweeps expired entries from a background goroutine
// every interval. Zero, the default, sweeps only before each request.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval < 0 {
			return &ConfigError{Option: "sweep interval", Err: ErrInvalidConfig}
		}
		c.sweepInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger
//
// Example:
//
//	WithLogger(myLogger)
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return &ConfigError{Option: "logger", Err: ErrInvalidConfig}
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics sets a collector for keyspace events
func WithMetrics(metrics MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = metrics
		return nil
	}
}
