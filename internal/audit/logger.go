package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes audit events as JSON lines and optionally persists them
// to the lifecycle event graph.
type Logger struct {
	mu     sync.Mutex
	output io.Writer
	store  *Store
}

// LoggerOption configures the logger.
type LoggerOption func(*Logger)

// WithStore sets the graph store for persistence.
func WithStore(store *Store) LoggerOption {
	return func(l *Logger) {
		l.store = store
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.output = w
	}
}

// NewLogger creates a new audit logger.
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{output: os.Stderr}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins tracking an operation.
func (l *Logger) Start(category Category, operation, sessionID, cellID string) *Event {
	return &Event{
		EventID:   uuid.New().String(),
		Category:  category,
		Operation: operation,
		SessionID: sessionID,
		CellID:    cellID,
		StartedAt: time.Now(),
	}
}

// Log writes a completed event to the output.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.CompletedAt.IsZero() {
		event.Complete(event.Status, nil)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = fmt.Fprintf(l.output, "%s\n", data)

	// Persist to graph, bounded so a slow graph never wedges a request.
	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.store.Save(ctx, event)
	}

	return err
}

// LogSuccess logs a successful operation.
func (l *Logger) LogSuccess(event *Event) error {
	event.Complete(StatusSuccess, nil)
	return l.Log(event)
}

// LogError logs a failed operation.
func (l *Logger) LogError(event *Event, err error) error {
	event.Complete(StatusError, err)
	return l.Log(event)
}

// LogRejected logs a policy rejection (a business outcome, not a fault).
func (l *Logger) LogRejected(event *Event, reason string) error {
	event.Complete(StatusRejected, nil)
	event.Detail = reason
	return l.Log(event)
}

// Global logger instance
var (
	globalLogger *Logger
	globalOnce   sync.Once
)

// Global returns the global logger instance.
func Global() *Logger {
	globalOnce.Do(func() {
		globalLogger = NewLogger()
	})
	return globalLogger
}

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	globalLogger = l
}
