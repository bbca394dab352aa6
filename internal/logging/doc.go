// Package logging assembles structured slog loggers and formatting helpers used
// across arcam services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so capture code can tag log
// lines with AR session, negotiation attempt, and device identifiers. A
// bounded StreamHub mirrors recent events for the daemon's log tail endpoint.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
