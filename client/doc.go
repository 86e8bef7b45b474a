// Package client talks to the cache server over TCP.
//
// A Client holds one connection, and therefore one keyspace on a server
// that isolates connections. Calls are serialized: each one writes a
// request and reads exactly one reply.
//
//	c, err := client.Dial(ctx, "localhost:6379")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if err := c.Set(ctx, "greeting", "hello", 10*time.Second); err != nil {
//		return err
//	}
//	value, found, err := c.Get(ctx, "greeting")
package client
