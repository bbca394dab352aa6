package capture

import (
	"context"
	"sync"

	"arcam/internal/devices"
)

// Bounds is a capability range.
type Bounds struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step,omitempty"`
}

// Settings are the values a track is currently delivering.
type Settings struct {
	DeviceID      string   `json:"deviceId,omitempty"`
	Width         int      `json:"width,omitempty"`
	Height        int      `json:"height,omitempty"`
	FrameRate     float64  `json:"frameRate,omitempty"`
	AspectRatio   float64  `json:"aspectRatio,omitempty"`
	FacingMode    string   `json:"facingMode,omitempty"`
	FocusMode     string   `json:"focusMode,omitempty"`
	Zoom          *float64 `json:"zoom,omitempty"`
	FocusDistance *float64 `json:"focusDistance,omitempty"`
}

// Capabilities are the ranges a track supports. Nil means unsupported.
type Capabilities struct {
	Width         *Bounds  `json:"width,omitempty"`
	Height        *Bounds  `json:"height,omitempty"`
	FrameRate     *Bounds  `json:"frameRate,omitempty"`
	Zoom          *Bounds  `json:"zoom,omitempty"`
	FocusDistance *Bounds  `json:"focusDistance,omitempty"`
	FocusModes    []string `json:"focusMode,omitempty"`
}

// Track is one capture track of a session.
type Track interface {
	Kind() string
	Settings() Settings
	Capabilities() Capabilities
	ApplyConstraints(ctx context.Context, c Constraints) error
	Live() bool
	Stop()
}

// Session is a granted capture. Whoever requested it owns it exclusively
// until Stop.
type Session struct {
	ID       string
	DeviceID string
	Tracks   []Track

	stopOnce sync.Once
}

// VideoTrack returns the first video track.
func (s *Session) VideoTrack() (Track, bool) {
	if s == nil {
		return nil, false
	}
	for _, t := range s.Tracks {
		if t.Kind() == "video" {
			return t, true
		}
	}
	return nil, false
}

// Stop stops every track. Safe to call more than once.
func (s *Session) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		for _, t := range s.Tracks {
			t.Stop()
		}
	})
}

// Platform is the device layer arcam negotiates with: a local V4L2 backend or
// the browser page reached through the bridge.
type Platform interface {
	devices.Catalog
	RequestCapture(ctx context.Context, c Constraints) (*Session, error)
}
