package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/redis-inmemory-cache/protocol"
	"github.com/raniellyferreira/redis-inmemory-cache/storage"
)

// handlerFunc executes one command against a namespace. quit asks the
// connection handler to close after the reply is written.
type handlerFunc func(d *Dispatcher, ns string, cmd *protocol.Command) (reply protocol.Value, quit bool)

// Dispatcher maps decoded requests onto the keyspace and builds replies.
// Text and array requests go through the same handlers.
type Dispatcher struct {
	storage  storage.Storage
	handlers map[string]handlerFunc
}

// NewDispatcher creates a dispatcher over storage
func NewDispatcher(storage storage.Storage) *Dispatcher {
	return &Dispatcher{
		storage: storage,
		handlers: map[string]handlerFunc{
			"PING":     handlePing,
			"ECHO":     handleEcho,
			"DEL":      handleDel,
			"FLUSHALL": handleFlushAll,
			"GET":      handleGet,
			"SET":      handleSet,
			"INCR":     handleIncr,
			"EXIT":     handleExit,
		},
	}
}

// Dispatch sweeps expired entries and then executes cmd in namespace ns.
// Unknown commands and wrong arguments get the "No match" simple string.
func (d *Dispatcher) Dispatch(ns string, cmd *protocol.Command) (protocol.Value, bool) {
	d.storage.Sweep()

	if cmd == nil {
		return noMatch(), false
	}

	handler, ok := d.handlers[strings.ToUpper(cmd.Name)]
	if !ok {
		return noMatch(), false
	}
	return handler(d, ns, cmd)
}

func noMatch() protocol.Value {
	return protocol.SimpleString(protocol.ReplyNoMatch)
}

func okReply() protocol.Value {
	return protocol.SimpleString(protocol.ReplyOK)
}

// Command handlers

func handlePing(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	if len(cmd.Args) != 0 {
		return noMatch(), false
	}
	return protocol.SimpleString(protocol.ReplyPong), false
}

func handleEcho(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	if cmd.Inline {
		return protocol.BulkString(string(cmd.Text)), false
	}
	words := make([]string, len(cmd.Args))
	for i := range cmd.Args {
		words[i] = cmd.Arg(i)
	}
	return protocol.BulkString(strings.Join(words, " ")), false
}

func handleDel(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	if len(cmd.Args) != 1 {
		return noMatch(), false
	}
	if d.storage.Del(ns, cmd.Arg(0)) {
		return okReply(), false
	}
	return protocol.Integer(protocol.ReplyAbsent), false
}

func handleFlushAll(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	if len(cmd.Args) != 0 {
		return noMatch(), false
	}
	d.storage.FlushAll(ns)
	return okReply(), false
}

func handleGet(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	if len(cmd.Args) != 1 {
		return noMatch(), false
	}
	value, exists := d.storage.Get(ns, cmd.Arg(0))
	if !exists {
		return protocol.Integer(protocol.ReplyAbsent), false
	}
	return protocol.BulkString(value), false
}

// handleSet accepts "SET key value", "SET key value EXPIRES n" and the bare
// "SET key value n" form older clients send.
func handleSet(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	var seconds string
	switch len(cmd.Args) {
	case 2:
		seconds = "0"
	case 3:
		seconds = cmd.Arg(2)
	case 4:
		if !strings.EqualFold(cmd.Arg(2), "expires") {
			return noMatch(), false
		}
		seconds = cmd.Arg(3)
	default:
		return noMatch(), false
	}

	ttl, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil || ttl < 0 || ttl > maxTTLSeconds {
		return noMatch(), false
	}

	d.storage.Set(ns, cmd.Arg(0), cmd.Arg(1), time.Duration(ttl)*time.Second)
	return okReply(), false
}

// maxTTLSeconds keeps ttl*time.Second inside a time.Duration
const maxTTLSeconds = int64(1<<63-1) / int64(time.Second)

func handleIncr(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	if len(cmd.Args) != 1 {
		return noMatch(), false
	}

	n, err := d.storage.Incr(ns, cmd.Arg(0))
	switch {
	case err == nil:
		return protocol.Integer(n), false
	case errors.Is(err, storage.ErrNotAnInteger):
		return protocol.SimpleString(protocol.ReplyNotAnInteger), false
	case errors.Is(err, storage.ErrOutOfRange):
		return protocol.SimpleString(protocol.ReplyIncrOverflow), false
	default:
		return protocol.SimpleString(protocol.ReplyEntryMissing), false
	}
}

func handleExit(d *Dispatcher, ns string, cmd *protocol.Command) (protocol.Value, bool) {
	return protocol.SimpleString(protocol.ReplyGoodbye), true
}
