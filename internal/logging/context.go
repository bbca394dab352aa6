package logging

import (
	"context"
	"log/slog"

	"arcam/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID identifies the AR session a line belongs to.
	FieldSessionID = "session_id"
	// FieldAttemptID identifies one negotiation attempt within a session.
	FieldAttemptID = "attempt_id"
	// FieldDeviceID identifies the capture device under negotiation.
	FieldDeviceID = "device_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the kind of event a WARN/ERROR line reports.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType labels decision log lines (camera selection, reselection).
	FieldDecisionType = "decision_type"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if id, ok := services.AttemptIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAttemptID, id))
	}
	if id, ok := services.DeviceIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDeviceID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
