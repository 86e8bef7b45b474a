// Package lua runs Lua scripts against the cache from the client side.
//
// The server itself has no scripting command; scripts run in the caller's
// process and reach the cache through a Caller, usually *client.Client.
// The script environment has:
//   - kv.call(...) which sends one command and raises on a transport or error reply
//   - kv.pcall(...) which returns {err = "..."} instead of raising
//   - KEYS and ARGV tables filled from the Eval arguments
//
// Replies arrive as on the wire: bulk strings as Lua strings, integers as
// numbers and status replies ("OK", "No match") as strings.
package lua
