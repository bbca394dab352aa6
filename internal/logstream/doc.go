// Package logstream prints daemon logs for the CLI.
//
// The structured stream comes from the daemon's /api/logs endpoint. When the
// daemon is down the current arcam.log file is tailed instead; component and
// session filters need the API and are rejected in that mode.
package logstream
