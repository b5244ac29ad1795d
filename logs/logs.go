// Package logs provides structured, leveled logging with the trace
// id of the request being served attached to every entry.
package logs

import (
	"context"
)

type contextKey string

// ContextKeyTraceID is the context key under which the trace id of
// a request is kept
const ContextKeyTraceID contextKey = "traceID"

// GetTraceID returns the trace id carried by ctx, or 0
func GetTraceID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}

	id, ok := ctx.Value(ContextKeyTraceID).(int64)
	if !ok {
		return 0
	}
	return id
}

// WithTraceID returns a copy of ctx that carries id
func WithTraceID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ContextKeyTraceID, id)
}

// Fields collects the key value pairs of a log entry
type Fields interface {
	Add(key string, value interface{})
}

// Loggable is implemented by the types that know how to
// describe themselves in a log entry
type Loggable interface {
	Log(fields Fields)
}

// MapFields adds all its pairs to a log entry
type MapFields map[string]interface{}

// Log implementation of Loggable
func (m MapFields) Log(fields Fields) {
	for k, v := range m {
		fields.Add(k, v)
	}
}

// Logger logs messages at different levels. Each of the
// loggables adds its fields to the entry
type Logger interface {
	Debug(ctx context.Context, msg string, loggables ...Loggable)
	Info(ctx context.Context, msg string, loggables ...Loggable)
	Warn(ctx context.Context, msg string, loggables ...Loggable)
	Error(ctx context.Context, msg string, loggables ...Loggable)

	// ForClass returns a logger that tags every entry with the
	// package and class that produced it
	ForClass(pkg string, class string) Logger
}
