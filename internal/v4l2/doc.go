// Package v4l2 is the local capture platform: Video4Linux2 devices opened
// directly through ioctls.
//
// It serves `arcam probe` and the daemon's local mode, where negotiation
// runs against a webcam attached to the host instead of a browser page.
// Only format negotiation and the zoom and focus controls are used; no
// buffers are queued and no frames are read.
package v4l2
