// kvcache-server runs the in-memory cache server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	rediscache "github.com/raniellyferreira/redis-inmemory-cache"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	hostFlag = &cli.StringFlag{
		Name:  "host",
		Usage: "interface to listen on (default: this machine's hostname)",
	}
	portFlag = &cli.IntFlag{
		Name:  "port",
		Usage: "TCP port to listen on",
		Value: 6379,
	}
	readTimeoutFlag = &cli.DurationFlag{
		Name:  "read-timeout",
		Usage: "close connections idle for this long (0 keeps them open)",
	}
	sweepIntervalFlag = &cli.DurationFlag{
		Name:  "sweep-interval",
		Usage: "also sweep expired entries in the background at this interval",
	}
	shardsFlag = &cli.IntFlag{
		Name:  "shards",
		Usage: "lock shards per keyspace",
		Value: 16,
	}
	sharedFlag = &cli.BoolFlag{
		Name:  "shared-keyspace",
		Usage: "let all connections share one keyspace",
	}
	statsIntervalFlag = &cli.DurationFlag{
		Name:  "stats-interval",
		Usage: "log server statistics at this interval (0 disables)",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "log every connection event and command",
	}
)

func main() {
	app := &cli.App{
		Name:    "kvcache-server",
		Usage:   "in-memory key-value cache server",
		Version: rediscache.VersionString(),
		Flags: []cli.Flag{
			configFlag,
			hostFlag,
			portFlag,
			readTimeoutFlag,
			sweepIntervalFlag,
			shardsFlag,
			sharedFlag,
			statsIntervalFlag,
			debugFlag,
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig layers defaults, the config file and explicitly set flags
func resolveConfig(ctx *cli.Context) (serverConfig, error) {
	cfg := defaultServerConfig()

	if path := ctx.String(configFlag.Name); path != "" {
		if err := loadConfig(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.IsSet(hostFlag.Name) {
		cfg.Host = ctx.String(hostFlag.Name)
	}
	if ctx.IsSet(portFlag.Name) {
		cfg.Port = ctx.Int(portFlag.Name)
	}
	if ctx.IsSet(readTimeoutFlag.Name) {
		cfg.ReadTimeout = ctx.Duration(readTimeoutFlag.Name).String()
	}
	if ctx.IsSet(sweepIntervalFlag.Name) {
		cfg.SweepInterval = ctx.Duration(sweepIntervalFlag.Name).String()
	}
	if ctx.IsSet(shardsFlag.Name) {
		cfg.Shards = ctx.Int(shardsFlag.Name)
	}
	if ctx.IsSet(sharedFlag.Name) {
		cfg.SharedKeyspace = ctx.Bool(sharedFlag.Name)
	}
	if ctx.IsSet(debugFlag.Name) {
		cfg.Debug = ctx.Bool(debugFlag.Name)
	}
	return cfg, nil
}

func serve(ctx *cli.Context) error {
	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}

	logger := rediscache.NewStdLogger(cfg.Debug)
	opts, err := cfg.options(logger)
	if err != nil {
		return err
	}

	cache, err := rediscache.New(opts...)
	if err != nil {
		return err
	}

	sigctx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cache.Start(sigctx); err != nil {
		cache.Close()
		return err
	}

	g, gctx := errgroup.WithContext(sigctx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return cache.Close()
	})
	if interval := ctx.Duration(statsIntervalFlag.Name); interval > 0 {
		g.Go(func() error {
			reportStats(gctx, cache, logger, interval)
			return nil
		})
	}
	return g.Wait()
}

func reportStats(ctx context.Context, cache *rediscache.Cache, logger rediscache.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info := cache.Info()
			logger.Info("Stats",
				rediscache.Field{Key: "keys", Value: info["keys"]},
				rediscache.Field{Key: "namespaces", Value: info["namespaces"]},
				rediscache.Field{Key: "clients", Value: info["connected_clients"]},
				rediscache.Field{Key: "commands", Value: info["total_commands"]},
			)
		}
	}
}
