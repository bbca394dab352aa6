package services

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	attemptIDKey contextKey = "attempt_id"
	deviceIDKey  contextKey = "device_id"
	requestIDKey contextKey = "request_id"
)

// WithSessionID annotates context with the AR session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the AR session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAttemptID annotates context with the negotiation attempt identifier.
func WithAttemptID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, attemptIDKey, id)
}

// AttemptIDFromContext returns the negotiation attempt identifier if present.
func AttemptIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(attemptIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDeviceID annotates context with the capture device being negotiated.
func WithDeviceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, deviceIDKey, id)
}

// DeviceIDFromContext returns the capture device identifier if present.
func DeviceIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(deviceIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
