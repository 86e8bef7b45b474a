package protocol

import (
	"errors"
	"fmt"
)

// ErrInvalidCommand indicates a well-framed request that does not form a command,
// such as an empty array or an array holding something other than bulk strings.
var ErrInvalidCommand = errors.New("invalid command format")

// ProtocolError represents a malformed tag, length or terminator in the stream.
// The stream cannot be trusted after one of these.
type ProtocolError struct {
	Message string
	Data    []byte
	Err     error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Message)
}

// Unwrap returns the wrapped error
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// MalformedIntegerError is returned when an integer reply does not parse as base 10.
type MalformedIntegerError struct {
	Data []byte
}

// Error implements the error interface
func (e *MalformedIntegerError) Error() string {
	return fmt.Sprintf("malformed integer: %q", e.Data)
}
