package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for the id of one webhook delivery
	RequestIDKey ContextKey = "request_id"
	// EventIDKey is the context key for the webhook event id being handled
	EventIDKey ContextKey = "event_id"
	// ConversationKey is the context key for the user, group or room the event came from
	ConversationKey ContextKey = "conversation"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID      string
	RequestID    string
	EventID      string
	Conversation string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID adds a delivery request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithEventID adds a webhook event ID to the context
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// WithConversation adds the conversation ID to the context
func WithConversation(ctx context.Context, conversation string) context.Context {
	return context.WithValue(ctx, ConversationKey, conversation)
}

func getString(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// GetEventID retrieves the webhook event ID from the context
func GetEventID(ctx context.Context) string {
	return getString(ctx, EventIDKey)
}

// GetConversation retrieves the conversation ID from the context
func GetConversation(ctx context.Context) string {
	return getString(ctx, ConversationKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:      GetTraceID(ctx),
		RequestID:    GetRequestID(ctx),
		EventID:      GetEventID(ctx),
		Conversation: GetConversation(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RequestID != "" {
		ctx = WithRequestID(ctx, tc.RequestID)
	}
	if tc.EventID != "" {
		ctx = WithEventID(ctx, tc.EventID)
	}
	if tc.Conversation != "" {
		ctx = WithConversation(ctx, tc.Conversation)
	}
	return ctx
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}
