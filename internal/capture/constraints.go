package capture

import (
	"errors"

	"arcam/internal/config"
)

// Range is a numeric constraint. Nil fields are omitted.
type Range struct {
	Exact *float64 `json:"exact,omitempty"`
	Ideal *float64 `json:"ideal,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

func f64(v float64) *float64 { return &v }

// Ideal returns a range with only an ideal value.
func Ideal(v float64) *Range { return &Range{Ideal: f64(v)} }

// Exact returns a range pinned to v.
func Exact(v float64) *Range { return &Range{Exact: f64(v)} }

// Span returns an ideal bounded by min and max. Zero bounds are omitted.
func Span(ideal, minimum, maximum float64) *Range {
	r := &Range{Ideal: f64(ideal)}
	if minimum > 0 {
		r.Min = f64(minimum)
	}
	if maximum > 0 {
		r.Max = f64(maximum)
	}
	return r
}

// Target returns the value a backend should aim for: exact, else ideal,
// else min.
func (r *Range) Target() (float64, bool) {
	switch {
	case r == nil:
		return 0, false
	case r.Exact != nil:
		return *r.Exact, true
	case r.Ideal != nil:
		return *r.Ideal, true
	case r.Min != nil:
		return *r.Min, true
	default:
		return 0, false
	}
}

// Admits reports whether v satisfies the hard parts of the range.
func (r *Range) Admits(v float64) bool {
	if r == nil {
		return true
	}
	if r.Exact != nil && v != *r.Exact {
		return false
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Constraints is the parameter set requested from the platform. The JSON
// names follow MediaTrackConstraints so the browser bridge can pass them
// through.
type Constraints struct {
	DeviceID      string `json:"deviceId,omitempty"`
	FacingMode    string `json:"facingMode,omitempty"`
	Width         *Range `json:"width,omitempty"`
	Height        *Range `json:"height,omitempty"`
	FrameRate     *Range `json:"frameRate,omitempty"`
	AspectRatio   *Range `json:"aspectRatio,omitempty"`
	Zoom          *Range `json:"zoom,omitempty"`
	FocusMode     string `json:"focusMode,omitempty"`
	FocusDistance *Range `json:"focusDistance,omitempty"`
}

var errDeviceAndFacing = errors.New("deviceId and facingMode are mutually exclusive")

// Validate rejects combinations platforms are known to refuse.
func (c Constraints) Validate() error {
	if c.DeviceID != "" && c.FacingMode != "" {
		return errDeviceAndFacing
	}
	return nil
}

// BaseConstraints builds the first-attempt set. A device ID suppresses the
// facing hint.
func BaseConstraints(cam config.Camera, deviceID string) Constraints {
	c := Constraints{
		Width:  Span(float64(cam.WidthIdeal), float64(cam.WidthMin), float64(cam.WidthMax)),
		Height: Span(float64(cam.HeightIdeal), float64(cam.HeightMin), float64(cam.HeightMax)),
	}
	if deviceID != "" {
		c.DeviceID = deviceID
	} else {
		c.FacingMode = cam.FacingHint
	}
	if cam.FrameRate > 0 {
		c.FrameRate = &Range{Ideal: f64(float64(cam.FrameRate)), Max: f64(float64(cam.FrameRate))}
	}
	if cam.AspectRatio > 0 {
		c.AspectRatio = Ideal(cam.AspectRatio)
	}
	if cam.PinZoom {
		c.Zoom = Span(1, 1, 1)
	}
	c.FocusMode = cam.FocusMode
	return c
}

// MinimalConstraints is the single fallback after an over-constrained
// rejection: facing hint and ideal resolution only.
func MinimalConstraints(cam config.Camera) Constraints {
	return Constraints{
		FacingMode: cam.FacingHint,
		Width:      Ideal(float64(cam.WidthIdeal)),
		Height:     Ideal(float64(cam.HeightIdeal)),
	}
}
