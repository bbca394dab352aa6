// Package watchdog keeps the camera view laid out full-bleed.
//
// Every tick samples the render surface, the video surface and the viewport.
// When either surface covers less than the configured share of the viewport,
// sits off the origin, or the video decodes while hidden, the watchdog
// reasserts the full-bleed layout and emits one notice. The next tick starts
// Nominal again whether or not the correction stuck; reasserting an already
// correct layout is a no-op.
package watchdog
