package api

import (
	"time"

	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/preflight"
	"arcam/internal/scoring"
	"arcam/internal/session"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromSnapshot converts a session snapshot.
func FromSnapshot(s session.Snapshot) Session {
	out := Session{
		ID:            s.ID,
		CreatedAt:     formatTime(s.CreatedAt),
		Connected:     s.Connected,
		Device:        s.Device,
		Strategy:      s.Strategy,
		LastError:     s.LastError,
		RetryRequired: s.Retry.Required,
		RetryReason:   s.Retry.Reason,
		Markers:       s.Markers,
		Tasks:         s.Tasks,
		Corrections:   s.Corrections,
		HintsShown:    s.HintsShown,
		WatchdogState: string(s.WatchdogState),
		Zoom:          string(s.Zoom),
	}
	if s.ARReadyAt != nil {
		out.ARReadyAt = formatTime(*s.ARReadyAt)
	}
	return out
}

// FromSnapshots converts a session list, never returning nil.
func FromSnapshots(snaps []session.Snapshot) []Session {
	out := make([]Session, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, FromSnapshot(s))
	}
	return out
}

// FromOutcome converts a negotiation outcome. err is the negotiation error,
// if any.
func FromOutcome(o *session.Outcome, err error) NegotiateResponse {
	var resp NegotiateResponse
	if o == nil {
		if err != nil {
			resp.Error = err.Error()
		}
		return resp
	}
	if o.Result != nil {
		r := o.Result
		resp.OK = true
		resp.AttemptID = r.AttemptID
		resp.DeviceID = r.Device.ID
		resp.Label = r.Device.Label
		resp.Strategy = r.Strategy
		resp.Fallback = r.Fallback
		resp.Attempts = r.Attempts
		resp.Constraints = &r.Constraints
		resp.Settings = &r.Settings
		resp.Capabilities = &r.Capabilities
	}
	if o.Reselected != nil {
		resp.Reselected = o.Reselected.ID
	}
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorKind = string(o.Kind)
	}
	if o.Remediation != nil {
		resp.ShowRetry = o.Remediation.ShowRetry
		resp.Message = o.Remediation.Message
	}
	return resp
}

// FromScored lists devs in enumeration order annotated with their score.
func FromScored(devs []devices.CaptureDevice, scored []scoring.ScoredCandidate) DevicesResponse {
	byID := make(map[string]int, len(scored))
	for i, c := range scored {
		byID[c.Device.ID] = i
	}
	resp := DevicesResponse{Devices: make([]DeviceEntry, 0, len(devs))}
	for _, dev := range devs {
		entry := DeviceEntry{
			ID:     dev.ID,
			Label:  dev.Label,
			Facing: string(dev.Facing),
		}
		if i, ok := byID[dev.ID]; ok {
			c := scored[i]
			entry.Score = c.Score
			entry.Strategy = c.Strategy
			entry.Rank = i + 1
			entry.Rules = scoring.Explain(c)
		} else {
			entry.Excluded = true
		}
		resp.Devices = append(resp.Devices, entry)
	}
	if winner, ok := scoring.Winner(scored); ok {
		resp.Winner = winner.Device.ID
	}
	return resp
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult(r))
	}
	return out
}

// FromLogEvents converts hub events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: formatTime(evt.Timestamp),
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			SessionID: evt.SessionID,
			AttemptID: evt.AttemptID,
			DeviceID:  evt.DeviceID,
			Fields:    evt.Fields,
		})
	}
	return out
}
