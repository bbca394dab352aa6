// Package services defines shared utilities consumed by the capture pipeline,
// the daemon API, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp AR session IDs, negotiation attempt IDs,
//     device IDs, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent API statuses.
package services
