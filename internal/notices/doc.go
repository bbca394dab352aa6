// Package notices holds the user-facing state of one AR session: the single
// transient hint, the debug line describing negotiation progress, and the
// manual retry remediation flag.
package notices
