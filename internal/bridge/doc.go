// Package bridge lets the daemon drive a browser page.
//
// The page owns the real camera and DOM. It long-polls the daemon for
// commands and posts one reply per command; Bridge.Call blocks until that
// reply arrives, the per-command timeout passes, or the session closes.
// Platform, Track and Surfaces adapt the command set to the capture, zoom
// and watchdog interfaces so negotiation logic runs unchanged against a
// phone browser or a local V4L2 device.
package bridge
