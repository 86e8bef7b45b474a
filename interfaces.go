package rediscache

import (
	"fmt"
	"log"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector receives keyspace events
type MetricsCollector interface {
	// RecordKeySet records a write to a key
	RecordKeySet(namespace string)

	// RecordKeyDeleted records an explicit delete
	RecordKeyDeleted(namespace string)

	// RecordKeyExpired records an entry removed because its TTL elapsed
	RecordKeyExpired(namespace string)
}

// defaultLogger is a simple logger implementation using the standard log package
type defaultLogger struct {
	debug bool
}

func (l *defaultLogger) Debug(msg string, fields ...Field) {
	if l.debug {
		l.logWithFields("DEBUG", msg, fields...)
	}
}

func (l *defaultLogger) Info(msg string, fields ...Field) {
	l.logWithFields("INFO", msg, fields...)
}

func (l *defaultLogger) Error(msg string, fields ...Field) {
	l.logWithFields("ERROR", msg, fields...)
}

func (l *defaultLogger) logWithFields(level, msg string, fields ...Field) {
	logMsg := level + ": " + msg
	for _, field := range fields {
		logMsg += " " + field.Key + "=" + formatValue(field.Value)
	}
	log.Println(logMsg)
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// NewStdLogger returns the package's standard-library logger. Debug
// messages are dropped unless debug is set.
func NewStdLogger(debug bool) Logger {
	return &defaultLogger{debug: debug}
}
