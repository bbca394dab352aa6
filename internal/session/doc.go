// Package session ties one AR viewing session together.
//
// A Session owns its hint board, its browser bridge and the background tasks
// started on its behalf. Readiness events from the page start the zoom
// normalizer and the layout watchdog once each; closing the session cancels
// every task and waits for them, so nothing outlives the view that needed it.
package session
