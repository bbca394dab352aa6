// Package events carries typed AR session signals between the capture
// pipeline, the rendering bridge, and the watchdog.
//
// A single Bus per daemon fans every Event out to its subscribers without
// blocking publishers; slow subscribers lose events rather than stall the
// camera pipeline.
package events
