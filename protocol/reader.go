package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// CRLF is the protocol line terminator
	CRLF = "\r\n"

	// maxBulkSize is the maximum size for bulk strings (512MB)
	maxBulkSize = 512 * 1024 * 1024

	// maxArraySize is the maximum number of elements in a request array
	maxArraySize = 1024 * 1024

	// maxInlineSize bounds a plain text request line
	maxInlineSize = 64 * 1024

	// payloadChunk is the largest bulk payload allocated up front
	payloadChunk = 64 * 1024

	// maxNestingDepth bounds nested arrays read by ReadNext
	maxNestingDepth = 32
)

var (
	crlfBytes = []byte(CRLF)
)

// Reader is a streaming protocol reader. Every call consumes exactly one
// value from the stream; bytes belonging to the next value stay buffered.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new streaming reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br: bufio.NewReader(r),
	}
}

// ReadReply reads one reply as sent by the server. Only the simple string,
// error, integer and bulk string tags are valid here.
func (r *Reader) ReadReply() (Value, error) {
	tag, err := r.br.ReadByte()
	if err != nil {
		return Value{}, &ProtocolError{Message: "missing reply tag", Err: err}
	}

	switch ValueType(tag) {
	case TypeSimpleString:
		return r.readSimpleString()
	case TypeError:
		return r.readError()
	case TypeInteger:
		return r.readInteger()
	case TypeBulkString:
		return r.readBulkString()
	default:
		return Value{}, &ProtocolError{
			Message: fmt.Sprintf("unknown reply tag %q", tag),
			Data:    []byte{tag},
		}
	}
}

// ReadRequest reads one request. Requests starting with the array tag are
// decoded as arrays of bulk strings; anything else is a text line whose
// first word is the keyword. A blank line yields a nil command and no error.
func (r *Reader) ReadRequest() (*Command, error) {
	head, err := r.br.Peek(1)
	if err != nil {
		return nil, err
	}

	if ValueType(head[0]) == TypeArray {
		r.br.Discard(1)
		return r.readRequestArray()
	}

	line, err := r.readInline()
	if err != nil {
		return nil, err
	}
	return ParseInline(line), nil
}

// readRequestArray decodes a request array without recursing. Elements
// are read one level deep: a nested array is a protocol error, while a
// scalar or null element is consumed so the stream stays aligned and the
// request is rejected with ErrInvalidCommand.
func (r *Reader) readRequestArray() (*Command, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}

	length, err := parseInt64(line)
	if err != nil {
		return nil, &ProtocolError{Message: "invalid array length", Data: line}
	}
	if length == -1 || length == 0 {
		return nil, ErrInvalidCommand
	}
	if length < 0 || length > maxArraySize {
		return nil, &ProtocolError{Message: fmt.Sprintf("invalid array length: %d", length)}
	}

	args := make([][]byte, 0, min(length, 16))
	var invalid error
	for i := int64(0); i < length; i++ {
		tag, err := r.br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read array element: %w", err)
		}

		switch ValueType(tag) {
		case TypeBulkString:
			value, err := r.readBulkString()
			if err != nil {
				return nil, err
			}
			if value.IsNull {
				invalid = fmt.Errorf("%w: null bulk string in request", ErrInvalidCommand)
				continue
			}
			args = append(args, value.Data)
		case TypeSimpleString, TypeError, TypeInteger:
			if _, err := r.readLine(); err != nil {
				return nil, err
			}
			invalid = fmt.Errorf("%w: request elements must be bulk strings", ErrInvalidCommand)
		default:
			return nil, &ProtocolError{
				Message: fmt.Sprintf("unexpected %q in request array", tag),
				Data:    []byte{tag},
			}
		}
	}

	if invalid != nil {
		return nil, invalid
	}
	return &Command{
		Name: strings.ToUpper(string(args[0])),
		Args: args[1:],
	}, nil
}

// ReadNext reads the next value of any type from the stream
func (r *Reader) ReadNext() (Value, error) {
	return r.readValue(0)
}

func (r *Reader) readValue(depth int) (Value, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch ValueType(typeByte) {
	case TypeSimpleString:
		return r.readSimpleString()
	case TypeError:
		return r.readError()
	case TypeInteger:
		return r.readInteger()
	case TypeBulkString:
		return r.readBulkString()
	case TypeArray:
		return r.readArray(depth)
	default:
		return Value{}, &ProtocolError{
			Message: fmt.Sprintf("unknown type %q", typeByte),
			Data:    []byte{typeByte},
		}
	}
}

// readSimpleString reads a simple string value
func (r *Reader) readSimpleString() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}

	return Value{
		Type: TypeSimpleString,
		Data: line,
	}, nil
}

// readError reads an error value
func (r *Reader) readError() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}

	return Value{
		Type: TypeError,
		Data: line,
	}, nil
}

// readInteger reads an integer value
func (r *Reader) readInteger() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}

	integer, err := parseInt64(line)
	if err != nil {
		return Value{}, &MalformedIntegerError{Data: line}
	}

	return Value{
		Type:    TypeInteger,
		Integer: integer,
	}, nil
}

// parseInt64 parses an int64 from a byte slice without allocation
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	var i int

	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}

	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}

		d := int64(b[i] - '0')
		if n > (1<<63-1)/10 || (n == (1<<63-1)/10 && d > 7) {
			return 0, strconv.ErrRange
		}

		n = n*10 + d
	}

	if neg {
		return -n, nil
	}
	return n, nil
}

// readBulkString reads a bulk string value. Any negative length is the null bulk string.
func (r *Reader) readBulkString() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}

	length, err := parseInt64(line)
	if err != nil {
		return Value{}, &ProtocolError{Message: "invalid bulk string length", Data: line}
	}

	if length < 0 {
		return Value{
			Type:   TypeBulkString,
			IsNull: true,
		}, nil
	}

	if length > maxBulkSize {
		return Value{}, &ProtocolError{Message: fmt.Sprintf("bulk string too large: %d", length)}
	}

	data, err := r.readPayload(length)
	if err != nil {
		return Value{}, fmt.Errorf("failed to read bulk string: %w", err)
	}

	var tail [2]byte
	if _, err := io.ReadFull(r.br, tail[:]); err != nil {
		return Value{}, fmt.Errorf("failed to read bulk string: %w", err)
	}
	if !bytes.Equal(tail[:], crlfBytes) {
		return Value{}, &ProtocolError{
			Message: fmt.Sprintf("expected CRLF terminator [13, 10], got [%d, %d]", tail[0], tail[1]),
		}
	}

	return Value{
		Type: TypeBulkString,
		Data: data,
	}, nil
}

// readPayload reads exactly n bytes. Small payloads are read into one
// allocation; larger ones grow with the bytes that actually arrive, so a
// length header alone never reserves memory.
func (r *Reader) readPayload(n int64) ([]byte, error) {
	if n <= payloadChunk {
		data := make([]byte, n)
		_, err := io.ReadFull(r.br, data)
		return data, err
	}

	var buf bytes.Buffer
	buf.Grow(payloadChunk)
	copied, err := io.CopyN(&buf, r.br, n)
	if err != nil {
		if errors.Is(err, io.EOF) && copied > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// readArray reads an array value nested depth levels deep
func (r *Reader) readArray(depth int) (Value, error) {
	if depth >= maxNestingDepth {
		return Value{}, &ProtocolError{Message: fmt.Sprintf("arrays nested deeper than %d", maxNestingDepth)}
	}

	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}

	length, err := parseInt64(line)
	if err != nil {
		return Value{}, &ProtocolError{Message: "invalid array length", Data: line}
	}

	if length == -1 {
		return Value{
			Type:   TypeArray,
			IsNull: true,
		}, nil
	}

	if length < 0 || length > maxArraySize {
		return Value{}, &ProtocolError{Message: fmt.Sprintf("invalid array length: %d", length)}
	}

	array := make([]Value, 0, min(length, 16))
	for i := int64(0); i < length; i++ {
		value, err := r.readValue(depth + 1)
		if err != nil {
			return Value{}, err
		}
		array = append(array, value)
	}

	return Value{
		Type:  TypeArray,
		Array: array,
	}, nil
}

// readLine reads a line terminated by CRLF
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read line: %w", err)
	}

	if !bytes.HasSuffix(line, crlfBytes) {
		return nil, &ProtocolError{Message: "missing CRLF terminator", Data: line}
	}

	return line[:len(line)-2], nil
}

// readInline reads a text request line. A bare LF terminator is accepted.
func (r *Reader) readInline() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxInlineSize {
			return nil, &ProtocolError{Message: "inline request too long"}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'}), nil
}
