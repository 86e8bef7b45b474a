package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ValueType represents the tag byte of a wire value
type ValueType byte

const (
	TypeSimpleString ValueType = '+'
	TypeError        ValueType = '-'
	TypeInteger      ValueType = ':'
	TypeBulkString   ValueType = '$'
	TypeArray        ValueType = '*'
)

// Reply texts shared by the dispatcher and the client.
const (
	ReplyOK           = "OK"
	ReplyPong         = "pong"
	ReplyGoodbye      = "Goodbye"
	ReplyNoMatch      = "No match"
	ReplyNotAnInteger = "Cannot increment non-integer entries"
	ReplyEntryMissing = "Entry does not exist"
	ReplyIncrOverflow = "Increment would overflow"
)

// ReplyAbsent is the integer reply for a missing key on GET and DEL
const ReplyAbsent int64 = -1

// Value represents a decoded wire value
type Value struct {
	Type    ValueType
	Data    []byte
	Integer int64
	Array   []Value
	IsNull  bool
}

// SimpleString builds a simple string value
func SimpleString(s string) Value {
	return Value{Type: TypeSimpleString, Data: []byte(s)}
}

// ErrorValue builds an error value
func ErrorValue(msg string) Value {
	return Value{Type: TypeError, Data: []byte(msg)}
}

// Integer builds an integer value
func Integer(n int64) Value {
	return Value{Type: TypeInteger, Integer: n}
}

// BulkString builds a bulk string value
func BulkString(s string) Value {
	return Value{Type: TypeBulkString, Data: []byte(s)}
}

// String returns a string representation of the value
func (v Value) String() string {
	switch v.Type {
	case TypeSimpleString, TypeError:
		return string(v.Data)
	case TypeInteger:
		return strconv.FormatInt(v.Integer, 10)
	case TypeBulkString:
		if v.IsNull {
			return "(nil)"
		}
		return string(v.Data)
	case TypeArray:
		if v.IsNull {
			return "(nil)"
		}
		parts := make([]string, len(v.Array))
		for i, item := range v.Array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("unknown type %c", v.Type)
	}
}

// IsError returns true if this is an error value
func (v Value) IsError() bool {
	return v.Type == TypeError
}

// Command is one decoded request: an upper-cased keyword and its arguments.
type Command struct {
	Name string
	Args [][]byte

	// Inline is set for requests that arrived as a plain text line.
	Inline bool

	// Text is the rest of an inline line after the keyword, trimmed but
	// with its inner spacing intact.
	Text []byte
}

// ParseCommand parses an array value into a Command
func ParseCommand(v Value) (*Command, error) {
	if v.Type != TypeArray || v.IsNull || len(v.Array) == 0 {
		return nil, ErrInvalidCommand
	}

	cmd := &Command{
		Args: make([][]byte, len(v.Array)-1),
	}

	if v.Array[0].Type != TypeBulkString || v.Array[0].IsNull {
		return nil, fmt.Errorf("%w: command name must be bulk string", ErrInvalidCommand)
	}
	cmd.Name = strings.ToUpper(string(v.Array[0].Data))

	for i := 1; i < len(v.Array); i++ {
		if v.Array[i].Type != TypeBulkString || v.Array[i].IsNull {
			return nil, fmt.Errorf("%w: command arguments must be bulk strings", ErrInvalidCommand)
		}
		cmd.Args[i-1] = v.Array[i].Data
	}

	return cmd, nil
}

// ParseInline splits a text request on whitespace. The first word is the
// keyword. It returns nil for a blank line.
func ParseInline(line []byte) *Command {
	line = bytes.TrimSpace(line)
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd := &Command{
		Name:   strings.ToUpper(string(fields[0])),
		Args:   fields[1:],
		Inline: true,
		Text:   bytes.TrimSpace(line[len(fields[0]):]),
	}
	return cmd
}

// Arg returns argument i as a string
func (c *Command) Arg(i int) string {
	return string(c.Args[i])
}

// String returns a string representation of the command
func (c *Command) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = string(arg)
	}
	return strings.TrimSpace(c.Name + " " + strings.Join(args, " "))
}
