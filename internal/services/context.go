package services

import "context"

type contextKey string

const (
	recordIDKey  contextKey = "record_id"
	jobIDKey     contextKey = "job_id"
	requestIDKey contextKey = "request_id"
)

// WithRecordID annotates context with the catalog record identifier.
func WithRecordID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, recordIDKey, id)
}

// RecordIDFromContext extracts the catalog record identifier if present.
func RecordIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(recordIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithJobID annotates context with a batch job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext returns the batch job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(jobIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with an API request correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
