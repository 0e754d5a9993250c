package sink

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Uncaught describes a failure that escaped all handling
type Uncaught struct {
	ID        string    // Unique report id
	ClientID  string    // Client whose work failed, may be empty
	Err       error     // The failure itself, never nil
	Panic     any       // Raw panic value when the failure was a panic
	Stack     []byte    // Stack captured at the point of recovery, may be nil
	Timestamp time.Time // When the failure was observed
}

// IsPanic reports whether the failure was a recovered panic
func (u Uncaught) IsPanic() bool {
	return u.Panic != nil
}

// NewUncaught wraps an escaped error
func NewUncaught(clientID string, err error) Uncaught {
	return Uncaught{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// FromRecovered builds an Uncaught from a value returned by recover().
// The stack of the calling goroutine is captured.
func FromRecovered(clientID string, recovered any) Uncaught {
	u := NewUncaught(clientID, FromPanicValue(recovered))
	u.Panic = recovered
	u.Stack = debug.Stack()
	return u
}

// FromPanicValue converts a panic value to an error. If the panic value is
// already an error, it returns it directly.
func FromPanicValue(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", p)
}

// Sink receives failures that escaped all handling
type Sink interface {
	HandleUncaught(u Uncaught)
}

// Func is a function adapter for Sink
type Func func(u Uncaught)

// HandleUncaught implements Sink
func (f Func) HandleUncaught(u Uncaught) {
	f(u)
}

// LogSink reports failures through structured logging
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a new log sink
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogSink{logger: logger}
}

// HandleUncaught implements Sink
func (s *LogSink) HandleUncaught(u Uncaught) {
	attrs := []any{
		"reportId", u.ID,
		"clientId", u.ClientID,
		"error", u.Err,
	}
	if u.IsPanic() {
		attrs = append(attrs, "stack", string(u.Stack))
	}

	s.logger.Error("uncaught failure", attrs...)
}

// Multi fans a failure out to every sink in order
type Multi []Sink

// HandleUncaught implements Sink
func (m Multi) HandleUncaught(u Uncaught) {
	for _, s := range m {
		if s != nil {
			s.HandleUncaught(u)
		}
	}
}

// Discard drops every failure
var Discard Sink = Func(func(Uncaught) {})
