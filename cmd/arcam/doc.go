// Command arcam runs and inspects the AR camera acquisition daemon.
//
// The daemon serves the HTTP API the AR page talks to: it negotiates a
// camera for each viewing session, relays capture commands through the page
// bridge, and reports layout corrections. The remaining commands inspect host
// cameras, manage the stored camera preference, and read daemon logs.
package main
