package client

import (
	"errors"
	"fmt"
)

// Errors mapped from the server's status replies
var (
	ErrNotFound     = errors.New("entry does not exist")
	ErrNotAnInteger = errors.New("entry is not an integer")
	ErrOutOfRange   = errors.New("increment would overflow")

	// ErrNoMatch means the server did not recognise the request
	ErrNoMatch = errors.New("no match")

	// ErrUnexpectedReply means the reply did not fit the command that was sent
	ErrUnexpectedReply = errors.New("unexpected reply")

	// ErrClosed is returned by calls made after Close or Exit
	ErrClosed = errors.New("client is closed")
)

// RemoteError is an error reply sent by the server
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}

// ConnectionError represents a failure to reach or talk to the server
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
