package protocol

import (
	"bufio"
	"io"
)

// Writer buffers encoded values until Flush
type Writer struct {
	bw *bufio.Writer
}

// NewWriter creates a new protocol writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw: bufio.NewWriter(w),
	}
}

// WriteValue writes a value of any type
func (w *Writer) WriteValue(v Value) error {
	_, err := w.bw.Write(EncodeValue(v))
	return err
}

// WriteSimpleString writes a simple string
func (w *Writer) WriteSimpleString(s string) error {
	_, err := w.bw.Write(EncodeSimpleString(s))
	return err
}

// WriteError writes an error message
func (w *Writer) WriteError(msg string) error {
	_, err := w.bw.Write(EncodeError(msg))
	return err
}

// WriteInteger writes an integer
func (w *Writer) WriteInteger(n int64) error {
	_, err := w.bw.Write(EncodeInteger(n))
	return err
}

// WriteBulkString writes a bulk string
func (w *Writer) WriteBulkString(s string) error {
	_, err := w.bw.Write(EncodeBulkString(s))
	return err
}

// WriteCommand writes args as an array of bulk strings
func (w *Writer) WriteCommand(args ...string) error {
	_, err := w.bw.Write(EncodeCommand(args...))
	return err
}

// WriteInline writes a plain text request line
func (w *Writer) WriteInline(line string) error {
	if _, err := w.bw.WriteString(line); err != nil {
		return err
	}
	_, err := w.bw.WriteString(CRLF)
	return err
}

// Flush flushes any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}
