// Package server accepts TCP connections and serves the cache commands on
// each one.
//
// Requests arrive either as text lines ("SET key value expires 10") or as
// arrays of bulk strings. Both forms reach the same command handlers:
//   - PING, ECHO, GET, SET, DEL, INCR, FLUSHALL and EXIT
//   - anything else is answered with the "No match" simple string
//
// By default every connection gets its own keyspace, named after the peer's
// source port. WithSharedKeyspace puts all connections in one keyspace.
package server
