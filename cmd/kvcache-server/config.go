package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/naoina/toml"

	rediscache "github.com/raniellyferreira/redis-inmemory-cache"
)

// serverConfig is the server's configuration file. Every field can also be
// given as a flag; flags win.
type serverConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	ReadTimeout    string `toml:"read_timeout"`
	SweepInterval  string `toml:"sweep_interval"`
	Shards         int    `toml:"shards"`
	SharedKeyspace bool   `toml:"shared_keyspace"`
	Debug          bool   `toml:"debug"`
}

func defaultServerConfig() serverConfig {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return serverConfig{
		Host:   host,
		Port:   6379,
		Shards: 16,
	}
}

// loadConfig reads a TOML file over the defaults
func loadConfig(path string, cfg *serverConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// options converts the configuration into cache options
func (cfg serverConfig) options(logger rediscache.Logger) ([]rediscache.Option, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	opts := []rediscache.Option{
		rediscache.WithAddr(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
		rediscache.WithShardCount(cfg.Shards),
		rediscache.WithSharedKeyspace(cfg.SharedKeyspace),
		rediscache.WithLogger(logger),
	}

	if cfg.ReadTimeout != "" {
		d, err := time.ParseDuration(cfg.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid read timeout: %w", err)
		}
		opts = append(opts, rediscache.WithReadTimeout(d))
	}
	if cfg.SweepInterval != "" {
		d, err := time.ParseDuration(cfg.SweepInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid sweep interval: %w", err)
		}
		opts = append(opts, rediscache.WithSweepInterval(d))
	}

	return opts, nil
}
