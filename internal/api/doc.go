// Package api defines wire-format types and converters for the daemon's HTTP
// API, plus the client the CLI uses to call it. It translates session
// snapshots, negotiation outcomes, and scored devices into transport-friendly
// DTOs that the browser page and the CLI can render without coupling to
// internal types.
//
// # Key Types
//
// Session: transport representation of a session snapshot.
//
// NegotiateResponse: a negotiation result, or the classified failure and the
// retry remediation to show.
//
// DeviceEntry: one catalog device with its score and the rules that fired.
//
// DaemonStatus: aggregated runtime information including preflight results.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for the page's JavaScript. Capture constraints,
// settings, and capabilities are passed through in their MediaTrack* shape.
// Timestamps use RFC3339 with milliseconds.
package api
