// Package interfaces holds the contracts the domain layer is written
// against.
//
//nolint:revive // Package name 'interfaces' is intentional for the domain layer
package interfaces

// Logger is the structured logging contract used across the pipeline.
// Implementations must be safe for concurrent use: batch runs log from
// several goroutines at once.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair attached to a log message.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// NoOpLogger discards every message. Constructors fall back to it when no
// logger is supplied.
type NoOpLogger struct{}

// Debug discards the message.
func (n *NoOpLogger) Debug(_ string, _ ...Field) {}

// Info discards the message.
func (n *NoOpLogger) Info(_ string, _ ...Field) {}

// Warn discards the message.
func (n *NoOpLogger) Warn(_ string, _ ...Field) {}

// Error discards the message.
func (n *NoOpLogger) Error(_ string, _ ...Field) {}
