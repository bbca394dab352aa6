// Package preflight provides readiness checks for the host resources arcam
// depends on: its state and log directories, the V4L2 device nodes, the API
// bind address, and the preference store.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure, but keeps
//     running so browser sessions still work without local cameras.
//   - The CLI "arcam status" command renders the same results alongside the
//     camera probe.
package preflight
