// Package audit writes security and configuration records as JSON lines,
// separate from the application log.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/lineapi/pkg/webhook"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Record types
const (
	TypeSecurity = "security"
	TypeWebhook  = "webhook"
	TypeHandler  = "handler"
	TypeConfig   = "config"
)

// Event is one audit record
type Event struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// Logger records audit events. It implements webhook.Recorder so it can be
// attached to a dispatcher next to the Prometheus recorder.
type Logger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var _ webhook.Recorder = (*Logger)(nil)

// New opens path for appending. An empty path discards every record.
func New(path string) (*Logger, error) {
	if path == "" {
		return &Logger{logger: zerolog.Nop()}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &Logger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// Record writes event. When ctx carries a recording span the event is also
// added to it.
func (a *Logger) Record(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()
		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("action", event.Action).
		Str("status", event.Status)
	if event.Actor != "" {
		entry.Str("actor", event.Actor)
	}
	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}
	entry.Msg("")
}

// Close closes the audit file
func (a *Logger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.logger = zerolog.Nop()
	return err
}

// ObserveDelivery records rejected deliveries
func (a *Logger) ObserveDelivery(status string, duration time.Duration) {
	if status == string(webhook.StatusOK) {
		return
	}
	a.Record(context.Background(), Event{
		Type:     TypeSecurity,
		Action:   "delivery_rejected",
		Status:   "failure",
		Metadata: map[string]interface{}{"duration_ms": duration.Milliseconds()},
	})
}

// ObserveEvent records redelivered events that were skipped
func (a *Logger) ObserveEvent(kind string, outcome string) {
	if outcome != webhook.OutcomeDuplicate {
		return
	}
	a.Record(context.Background(), Event{
		Type:     TypeWebhook,
		Action:   "duplicate_skipped",
		Status:   "success",
		Metadata: map[string]interface{}{"kind": kind},
	})
}

// ObserveHandler records failed handler calls
func (a *Logger) ObserveHandler(kind string, duration time.Duration, failed bool) {
	if !failed {
		return
	}
	a.Record(context.Background(), Event{
		Type:   TypeHandler,
		Action: "handle:" + kind,
		Status: "failure",
		Metadata: map[string]interface{}{
			"kind":        kind,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// RecordConfig records a change to the configuration file
func (a *Logger) RecordConfig(ctx context.Context, action, path string) {
	a.Record(ctx, Event{
		Type:     TypeConfig,
		Actor:    currentUser(),
		Action:   action,
		Status:   "success",
		Metadata: map[string]interface{}{"path": path},
	})
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return fmt.Sprintf("uid:%d", os.Getuid())
}
