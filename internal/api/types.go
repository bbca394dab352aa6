package api

import (
	"arcam/internal/bridge"
	"arcam/internal/capture"
	"arcam/internal/devices"
	"arcam/internal/notices"
	"arcam/internal/watchdog"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes an open session in a transport-friendly format.
type Session struct {
	ID            string   `json:"id"`
	CreatedAt     string   `json:"createdAt"`
	ARReadyAt     string   `json:"arReadyAt,omitempty"`
	Connected     bool     `json:"connected"`
	Device        string   `json:"device,omitempty"`
	Strategy      string   `json:"strategy,omitempty"`
	LastError     string   `json:"lastError,omitempty"`
	RetryRequired bool     `json:"retryRequired"`
	RetryReason   string   `json:"retryReason,omitempty"`
	Markers       []string `json:"markers,omitempty"`
	Tasks         []string `json:"tasks,omitempty"`
	Corrections   int      `json:"corrections"`
	HintsShown    int      `json:"hintsShown"`
	WatchdogState string   `json:"watchdogState,omitempty"`
	Zoom          string   `json:"zoom,omitempty"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// SessionListResponse wraps every open session.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// CatalogRequest is the page's enumerateDevices() listing.
type CatalogRequest struct {
	Devices []devices.CaptureDevice `json:"devices"`
}

// CatalogResponse reports how many video inputs survived normalization.
type CatalogResponse struct {
	Count int `json:"count"`
}

// NegotiateResponse is the outcome of one negotiation attempt.
type NegotiateResponse struct {
	OK           bool                  `json:"ok"`
	AttemptID    string                `json:"attemptId,omitempty"`
	DeviceID     string                `json:"deviceId,omitempty"`
	Label        string                `json:"label,omitempty"`
	Strategy     string                `json:"strategy,omitempty"`
	Fallback     bool                  `json:"fallback,omitempty"`
	Attempts     int                   `json:"attempts,omitempty"`
	Constraints  *capture.Constraints  `json:"constraints,omitempty"`
	Settings     *capture.Settings     `json:"settings,omitempty"`
	Capabilities *capture.Capabilities `json:"capabilities,omitempty"`
	Reselected   string                `json:"reselectedDeviceId,omitempty"`
	ErrorKind    string                `json:"errorKind,omitempty"`
	Error        string                `json:"error,omitempty"`
	ShowRetry    bool                  `json:"showRetry,omitempty"`
	Message      string                `json:"message,omitempty"`
}

// EventRequest is a page event such as ar-ready or marker-found.
type EventRequest struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// LayoutResponse answers a posted layout sample.
type LayoutResponse struct {
	NeedsCorrection bool                `json:"needsCorrection"`
	Reason          string              `json:"reason,omitempty"`
	Directive       *watchdog.Directive `json:"directive,omitempty"`
	// Expected is what the page should measure once Directive took effect.
	Expected *watchdog.Sample `json:"expected,omitempty"`
}

// HintResponse carries the current hint and the retry remediation.
type HintResponse struct {
	Hint  *notices.Hint `json:"hint,omitempty"`
	Retry notices.Retry `json:"retry"`
}

// DebugResponse carries the debug-info line.
type DebugResponse struct {
	Text string `json:"text"`
	At   string `json:"at,omitempty"`
}

// CommandsResponse delivers pending bridge commands to the page.
type CommandsResponse struct {
	Commands []bridge.Command `json:"commands"`
}

// DeviceEntry is a catalog device with its scoring outcome. Excluded devices
// were filtered out as front-facing and carry no score.
type DeviceEntry struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Facing   string   `json:"facing"`
	Score    int      `json:"score"`
	Strategy string   `json:"strategy,omitempty"`
	Rank     int      `json:"rank,omitempty"`
	Excluded bool     `json:"excluded,omitempty"`
	Rules    []string `json:"rules,omitempty"`
}

// DevicesResponse lists local devices in enumeration order.
type DevicesResponse struct {
	Devices []DeviceEntry `json:"devices"`
	Winner  string        `json:"winner,omitempty"`
}

// PreferenceResponse reports the stored camera.
type PreferenceResponse struct {
	DeviceID string `json:"deviceId,omitempty"`
	Set      bool   `json:"set"`
}

// PreferenceRequest stores a camera by hand.
type PreferenceRequest struct {
	DeviceID string `json:"deviceId"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool          `json:"running"`
	PID             int           `json:"pid"`
	StartedAt       string        `json:"startedAt,omitempty"`
	Local           bool          `json:"local"`
	LockFilePath    string        `json:"lockFilePath"`
	PreferencePath  string        `json:"preferencePath"`
	PreferredCamera string        `json:"preferredCamera,omitempty"`
	Sessions        []Session     `json:"sessions"`
	Checks          []CheckResult `json:"checks"`
	Cameras         string        `json:"cameras,omitempty"`
	CamerasDetected bool          `json:"camerasDetected"`
	DroppedEvents   uint64        `json:"droppedEvents"`
}

// LogEvent is one structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	AttemptID string            `json:"attemptId,omitempty"`
	DeviceID  string            `json:"deviceId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse is a page of log events and the cursor to resume from.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
