// Package prefstore persists the preferred camera id.
//
// Store keeps a single key in a SQLite database under the state directory,
// opened in WAL mode with a busy timeout so the daemon and CLI can share it.
// MemoryStore offers the same contract for tests and ephemeral runs.
package prefstore
