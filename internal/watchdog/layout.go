package watchdog

import "math"

// Rect is a measured bounding box in CSS pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Sample is one measurement. A nil surface was not found in the page.
type Sample struct {
	Viewport    Rect  `json:"viewport"`
	Canvas      *Rect `json:"canvas,omitempty"`
	Video       *Rect `json:"video,omitempty"`
	VideoWidth  int   `json:"video_width"`
	VideoHeight int   `json:"video_height"`
	VideoHidden bool  `json:"video_hidden"`
	VideoLive   bool  `json:"video_live"`
}

// Thresholds bound an acceptable layout.
type Thresholds struct {
	MinCoverage float64
	MaxOffsetPx float64
}

// Reason names the first check that failed.
type Reason string

const (
	ReasonCanvasCoverage Reason = "canvas-coverage"
	ReasonCanvasOffset   Reason = "canvas-offset"
	ReasonVideoCoverage  Reason = "video-coverage"
	ReasonVideoOffset    Reason = "video-offset"
	ReasonHiddenVideo    Reason = "hidden-video"
)

// NeedsCorrection evaluates s. A sample without a viewport is never judged.
func NeedsCorrection(s Sample, t Thresholds) (bool, Reason) {
	if s.Viewport.W <= 0 || s.Viewport.H <= 0 {
		return false, ""
	}
	if r, bad := checkSurface(s.Canvas, s.Viewport, t, ReasonCanvasCoverage, ReasonCanvasOffset); bad {
		return true, r
	}
	if r, bad := checkSurface(s.Video, s.Viewport, t, ReasonVideoCoverage, ReasonVideoOffset); bad {
		return true, r
	}
	if s.VideoHidden && (s.VideoWidth > 0 || s.VideoHeight > 0) {
		return true, ReasonHiddenVideo
	}
	return false, ""
}

func checkSurface(r *Rect, vp Rect, t Thresholds, coverage, offset Reason) (Reason, bool) {
	if r == nil {
		return "", false
	}
	if r.W < vp.W*t.MinCoverage || r.H < vp.H*t.MinCoverage {
		return coverage, true
	}
	if math.Abs(r.X) > t.MaxOffsetPx || math.Abs(r.Y) > t.MaxOffsetPx {
		return offset, true
	}
	return "", false
}

// Style is the layout asserted on one surface.
type Style struct {
	Position string  `json:"position"`
	Top      string  `json:"top"`
	Left     string  `json:"left"`
	Width    string  `json:"width"`
	Height   string  `json:"height"`
	ZIndex   int     `json:"z_index"`
	Display  string  `json:"display"`
	Opacity  float64 `json:"opacity"`
}

// Directive is the full-bleed layout for the scene, video and canvas
// surfaces, stacked in that order.
type Directive struct {
	Scene  Style `json:"scene"`
	Video  Style `json:"video"`
	Canvas Style `json:"canvas"`
}

func fullBleed(z int) Style {
	return Style{
		Position: "absolute",
		Top:      "0px",
		Left:     "0px",
		Width:    "100vw",
		Height:   "100vh",
		ZIndex:   z,
		Display:  "block",
		Opacity:  1,
	}
}

// Layout returns the full-bleed directive. It is a constant: applying it to
// an already corrected page changes nothing.
func Layout() Directive {
	return Directive{
		Scene:  fullBleed(0),
		Video:  fullBleed(1),
		Canvas: fullBleed(2),
	}
}

// Apply returns the sample a page would measure after d took effect.
func (d Directive) Apply(s Sample) Sample {
	full := Rect{W: s.Viewport.W, H: s.Viewport.H}
	if s.Canvas != nil {
		c := full
		s.Canvas = &c
	}
	if s.Video != nil {
		v := full
		s.Video = &v
	}
	if d.Video.Display != "none" && d.Video.Opacity > 0 {
		s.VideoHidden = false
	}
	return s
}
