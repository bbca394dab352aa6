// Package daemon coordinates the long-running arcam process.
//
// It wires configuration, the preference store, the session manager, the
// local device catalog, and the hotplug monitor into a single lifecycle with
// flock-based locking to prevent multiple instances, and serves the HTTP API
// the browser page and the CLI talk to.
//
// Keep orchestration logic here: negotiation, zoom, and layout behavior live
// in their own packages while the daemon focuses on startup, shutdown, and
// request plumbing.
package daemon
