package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/raniellyferreira/redis-inmemory-cache/protocol"
	"github.com/raniellyferreira/redis-inmemory-cache/storage"
)

// SharedNamespace is the namespace every connection uses when the server
// runs with a shared keyspace
const SharedNamespace = "shared"

// shutdownWriteGrace bounds how long Stop waits on a reply that is still
// being written to a slow peer
const shutdownWriteGrace = 5 * time.Second

// Logger is the logging interface the server reports connection events to
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Server accepts TCP connections and serves cache commands on each one
type Server struct {
	storage    storage.Storage
	dispatcher *Dispatcher

	// Server configuration
	addr           string
	readTimeout    time.Duration
	sharedKeyspace bool
	logger         Logger

	// Connection management
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	connCount    int64
	commandCount int64
	errorCount   int64
	mu           sync.RWMutex
}

// Client represents one connected peer
type Client struct {
	conn      net.Conn
	reader    *protocol.Reader
	writer    *protocol.Writer
	server    *Server
	namespace string

	// Control
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger for connection events
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadTimeout closes connections idle for longer than timeout.
// Zero disables the timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout >= 0 {
			s.readTimeout = timeout
		}
	}
}

// WithSharedKeyspace makes every connection read and write the same keys
func WithSharedKeyspace(shared bool) Option {
	return func(s *Server) {
		s.sharedKeyspace = shared
	}
}

// NewServer creates a new server over storage
func NewServer(addr string, storage storage.Storage, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		storage:    storage,
		dispatcher: NewDispatcher(storage),
		addr:       addr,
		logger:     nopLogger{},
		ctx:        ctx,
		cancel:     cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the listening socket and begins accepting connections
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("Listening", "addr", s.listener.Addr().String())

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop closes the listener, interrupts idle readers and waits for every
// connection handler to finish its current request
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.interrupt()
		}
		return true
	})

	s.wg.Wait()
	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clientCount := 0
	s.clients.Range(func(key, value interface{}) bool {
		clientCount++
		return true
	})

	return map[string]interface{}{
		"connected_clients": clientCount,
		"total_commands":    s.commandCount,
		"total_errors":      s.errorCount,
		"total_connections": s.connCount,
	}
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return // Server is shutting down
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Accept failed", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.handleNewClient(conn)
	}
}

// handleNewClient registers conn and starts its handler
func (s *Server) handleNewClient(conn net.Conn) {
	s.mu.Lock()
	s.connCount++
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		conn:      conn,
		reader:    protocol.NewReader(conn),
		writer:    protocol.NewWriter(conn),
		server:    s,
		namespace: namespaceFor(conn, s.sharedKeyspace),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.clients.Store(conn, client)
	s.logger.Info("Client connected", "remote", conn.RemoteAddr().String(), "namespace", client.namespace)

	s.wg.Add(1)
	go client.handle()
}

// namespaceFor derives the keyspace a connection works in: the peer's
// source port, or the shared namespace when isolation is off
func namespaceFor(conn net.Conn, shared bool) string {
	if shared {
		return SharedNamespace
	}

	addr := conn.RemoteAddr()
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return strconv.Itoa(tcpAddr.Port)
	}
	if _, port, err := net.SplitHostPort(addr.String()); err == nil {
		return port
	}
	return addr.String()
}

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
		c.server.clients.Delete(c.conn)
		c.server.logger.Info("Client disconnected", "remote", c.conn.RemoteAddr().String())
	})
}

// interrupt wakes a handler blocked in a read so it can observe shutdown
func (c *Client) interrupt() {
	c.cancel()
	c.conn.SetReadDeadline(time.Now())
	c.conn.SetWriteDeadline(time.Now().Add(shutdownWriteGrace))
}

// handle serves requests until the peer leaves, sends EXIT, or the server stops
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	for {
		if c.server.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.server.readTimeout))
		} else {
			c.conn.SetReadDeadline(time.Time{})
		}

		// Checked after the deadline is set so an interrupt is never overwritten
		if c.ctx.Err() != nil {
			return
		}

		cmd, err := c.reader.ReadRequest()
		if err != nil {
			if !c.handleReadError(err) {
				return
			}
			continue
		}
		// A blank line is a nil command and is answered like unknown input
		reply, quit := c.executeCommand(cmd)
		if err := c.write(reply); err != nil {
			c.server.logger.Debug("Write failed", "remote", c.conn.RemoteAddr().String(), "error", err)
			return
		}
		if quit {
			return
		}
	}
}

// handleReadError reports whether the connection can keep going after err
func (c *Client) handleReadError(err error) bool {
	if errors.Is(err, protocol.ErrInvalidCommand) {
		// Well framed but not a command: answer like any other unknown input
		c.recordError()
		return c.write(noMatch()) == nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || c.ctx.Err() != nil {
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.server.logger.Debug("Read timeout", "remote", c.conn.RemoteAddr().String())
		return false
	}

	c.recordError()

	var perr *protocol.ProtocolError
	if errors.As(err, &perr) && !errors.Is(err, io.ErrUnexpectedEOF) {
		c.server.logger.Debug("Protocol error", "remote", c.conn.RemoteAddr().String(), "error", err)
		if c.writer.WriteError(fmt.Sprintf("ERR Protocol error: %s", perr.Message)) == nil {
			c.writer.Flush()
		}
		return false
	}

	c.server.logger.Debug("Read failed", "remote", c.conn.RemoteAddr().String(), "error", err)
	return false
}

// executeCommand runs one request and returns its reply
func (c *Client) executeCommand(cmd *protocol.Command) (protocol.Value, bool) {
	c.server.mu.Lock()
	c.server.commandCount++
	c.server.mu.Unlock()

	reply, quit := c.server.dispatcher.Dispatch(c.namespace, cmd)
	name := ""
	if cmd != nil {
		name = cmd.Name
	}
	c.server.logger.Debug("Command", "namespace", c.namespace, "command", name, "reply", reply.String())
	return reply, quit
}

func (c *Client) recordError() {
	c.server.mu.Lock()
	c.server.errorCount++
	c.server.mu.Unlock()
}

func (c *Client) write(v protocol.Value) error {
	if err := c.writer.WriteValue(v); err != nil {
		return err
	}
	return c.writer.Flush()
}
