package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raniellyferreira/redis-inmemory-cache/protocol"
)

// Client is a connection to a cache server
type Client struct {
	addr string

	// Connection state
	mu     sync.Mutex
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	broken error
	closed bool

	// Configuration
	dialTimeout time.Duration
	timeout     time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithDialTimeout bounds connection establishment
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = timeout
	}
}

// WithTimeout bounds each exchange whose context has no deadline.
// Zero disables the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Dial connects to the server at addr
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		addr:        addr,
		dialTimeout: 5 * time.Second,
		timeout:     30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	dialer := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Addr: addr, Err: err}
	}

	c.conn = conn
	c.reader = protocol.NewReader(conn)
	c.writer = protocol.NewWriter(conn)
	return c, nil
}

// Addr returns the server address
func (c *Client) Addr() string {
	return c.addr
}

// LocalAddr returns the client side of the connection. Its port names the
// keyspace on a server that isolates connections.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Do sends args as an array of bulk strings and returns the reply.
// An error reply is returned as *RemoteError alongside the reply itself.
func (c *Client) Do(ctx context.Context, args ...string) (protocol.Value, error) {
	if len(args) == 0 {
		return protocol.Value{}, fmt.Errorf("%w: empty command", protocol.ErrInvalidCommand)
	}
	return c.exchange(ctx, func(w *protocol.Writer) error {
		return w.WriteCommand(args...)
	})
}

// Line sends text as a single request line, the way a person types it
func (c *Client) Line(ctx context.Context, text string) (protocol.Value, error) {
	// A newline would make two requests out of one
	if strings.ContainsAny(text, "\r\n") {
		return protocol.Value{}, fmt.Errorf("%w: %q", protocol.ErrInvalidCommand, text)
	}
	return c.exchange(ctx, func(w *protocol.Writer) error {
		return w.WriteInline(text)
	})
}

// exchange writes one request and reads one reply
func (c *Client) exchange(ctx context.Context, write func(*protocol.Writer) error) (protocol.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return protocol.Value{}, ErrClosed
	}
	if c.broken != nil {
		return protocol.Value{}, &ConnectionError{Op: "reuse", Addr: c.addr, Err: c.broken}
	}
	if err := ctx.Err(); err != nil {
		return protocol.Value{}, err
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return protocol.Value{}, c.fail("deadline", err)
	}

	// Unblock the exchange if ctx is cancelled while waiting on the server.
	// A callback that already started must finish before the connection is
	// handed to the next exchange, or its deadline would land there.
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	if err := write(c.writer); err != nil {
		return protocol.Value{}, c.fail("write", err)
	}
	if err := c.writer.Flush(); err != nil {
		return protocol.Value{}, c.fail("write", err)
	}

	reply, err := c.reader.ReadReply()
	if err != nil {
		if ctx.Err() != nil {
			c.broken = ctx.Err()
			return protocol.Value{}, ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) {
			return protocol.Value{}, c.fail("read", err)
		}
		// The stream is out of step once a reply fails to decode
		c.broken = err
		return protocol.Value{}, err
	}

	if reply.IsError() {
		return reply, &RemoteError{Message: string(reply.Data)}
	}
	return reply, nil
}

func (c *Client) fail(op string, err error) error {
	c.broken = err
	return &ConnectionError{Op: op, Addr: c.addr, Err: err}
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Ping checks that the server answers
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, "PING")
	if err != nil {
		return err
	}
	return expectStatus("PING", reply, protocol.ReplyPong)
}

// Echo returns message as echoed by the server
func (c *Client) Echo(ctx context.Context, message string) (string, error) {
	reply, err := c.Do(ctx, "ECHO", message)
	if err != nil {
		return "", err
	}
	if reply.Type != protocol.TypeBulkString || reply.IsNull {
		return "", unexpected("ECHO", reply)
	}
	return string(reply.Data), nil
}

// Get returns the value stored under key and whether it exists
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	reply, err := c.Do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}

	switch {
	case reply.Type == protocol.TypeBulkString && !reply.IsNull:
		return string(reply.Data), true, nil
	case isAbsent(reply):
		return "", false, nil
	default:
		return "", false, unexpected("GET", reply)
	}
}

// Set stores value under key. A positive ttl is sent in whole seconds,
// rounded up; zero stores the entry without expiration.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := []string{"SET", key, value}
	if ttl > 0 {
		seconds := int64((ttl + time.Second - 1) / time.Second)
		args = append(args, "expires", strconv.FormatInt(seconds, 10))
	}

	reply, err := c.Do(ctx, args...)
	if err != nil {
		return err
	}
	return expectStatus("SET", reply, protocol.ReplyOK)
}

// Incr adds one to the integer stored under key and returns the new value
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	reply, err := c.Do(ctx, "INCR", key)
	if err != nil {
		return 0, err
	}

	if reply.Type == protocol.TypeInteger {
		return reply.Integer, nil
	}
	if reply.Type == protocol.TypeSimpleString {
		switch string(reply.Data) {
		case protocol.ReplyEntryMissing:
			return 0, ErrNotFound
		case protocol.ReplyNotAnInteger:
			return 0, ErrNotAnInteger
		case protocol.ReplyIncrOverflow:
			return 0, ErrOutOfRange
		}
	}
	return 0, unexpected("INCR", reply)
}

// Del removes key and reports whether it existed
func (c *Client) Del(ctx context.Context, key string) (bool, error) {
	reply, err := c.Do(ctx, "DEL", key)
	if err != nil {
		return false, err
	}

	if isAbsent(reply) {
		return false, nil
	}
	if err := expectStatus("DEL", reply, protocol.ReplyOK); err != nil {
		return false, err
	}
	return true, nil
}

// FlushAll removes every key in this connection's keyspace
func (c *Client) FlushAll(ctx context.Context) error {
	reply, err := c.Do(ctx, "FLUSHALL")
	if err != nil {
		return err
	}
	return expectStatus("FLUSHALL", reply, protocol.ReplyOK)
}

// Exit ends the session politely and closes the connection
func (c *Client) Exit(ctx context.Context) error {
	reply, err := c.Do(ctx, "EXIT")
	closeErr := c.Close()
	if err != nil {
		return err
	}
	if err := expectStatus("EXIT", reply, protocol.ReplyGoodbye); err != nil {
		return err
	}
	return closeErr
}

func isAbsent(reply protocol.Value) bool {
	return reply.Type == protocol.TypeInteger && reply.Integer == protocol.ReplyAbsent
}

func expectStatus(cmd string, reply protocol.Value, want string) error {
	if reply.Type == protocol.TypeSimpleString && string(reply.Data) == want {
		return nil
	}
	return unexpected(cmd, reply)
}

func unexpected(cmd string, reply protocol.Value) error {
	if reply.Type == protocol.TypeSimpleString && string(reply.Data) == protocol.ReplyNoMatch {
		return fmt.Errorf("%s: %w", cmd, ErrNoMatch)
	}
	return fmt.Errorf("%s: %w: %s", cmd, ErrUnexpectedReply, reply.String())
}
