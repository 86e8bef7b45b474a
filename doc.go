// Package rediscache is an in-memory key-value cache server that speaks a
// small Redis-like protocol.
//
// Clients send text lines or arrays of bulk strings; the server understands
// PING, ECHO, SET (with an optional expiration in seconds), GET, DEL, INCR,
// FLUSHALL and EXIT. Each connection works in its own keyspace unless
// WithSharedKeyspace is set.
//
// Basic usage:
//
//	cache, err := rediscache.New(
//		rediscache.WithAddr("localhost:6379"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
//
//	if err := cache.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// The client package talks to a running server, and the lua package runs
// scripts against it from the client side.
package rediscache
