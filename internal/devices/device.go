package devices

import (
	"strings"

	"golang.org/x/text/cases"
)

// Kind is the media kind of a capture device. Catalogs only carry video.
type Kind string

const KindVideo Kind = "videoinput"

// Facing is the inferred orientation of a sensor relative to the user.
type Facing string

const (
	FacingUnknown Facing = "unknown"
	FacingFront   Facing = "front"
	FacingBack    Facing = "back"
)

// CaptureDevice describes one video input exposed by the platform.
type CaptureDevice struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Kind   Kind   `json:"kind"`
	Facing Facing `json:"facing"`
}

// Labeled reports whether the platform exposed a non-empty label.
func (d CaptureDevice) Labeled() bool {
	return strings.TrimSpace(d.Label) != ""
}

var (
	frontWords = []string{"front", "selfie", "user", "face"}
	backWords  = []string{"back", "rear", "environment", "world"}
)

// FoldLabel returns the case-folded form used for every indicator match.
// Full Unicode folding keeps non-ASCII vendor labels comparable.
func FoldLabel(label string) string {
	return cases.Fold().String(strings.TrimSpace(label))
}

// ContainsAny reports whether the folded label contains any of the indicators.
// Indicators are expected in folded form.
func ContainsAny(folded string, indicators []string) bool {
	for _, ind := range indicators {
		if ind != "" && strings.Contains(folded, ind) {
			return true
		}
	}
	return false
}

// InferFacing classifies a label as front, back, or unknown.
func InferFacing(label string) Facing {
	folded := FoldLabel(label)
	switch {
	case folded == "":
		return FacingUnknown
	case ContainsAny(folded, frontWords):
		return FacingFront
	case ContainsAny(folded, backWords):
		return FacingBack
	default:
		return FacingUnknown
	}
}

// Normalize cleans a raw platform listing: non-video and ID-less entries are
// dropped, labels trimmed, facing inferred when unknown, and duplicate IDs
// collapsed to their first occurrence. Enumeration order is preserved.
func Normalize(raw []CaptureDevice) []CaptureDevice {
	out := make([]CaptureDevice, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, dev := range raw {
		if dev.Kind != "" && dev.Kind != KindVideo {
			continue
		}
		dev.ID = strings.TrimSpace(dev.ID)
		if dev.ID == "" {
			continue
		}
		if _, dup := seen[dev.ID]; dup {
			continue
		}
		seen[dev.ID] = struct{}{}
		dev.Kind = KindVideo
		dev.Label = strings.TrimSpace(dev.Label)
		if dev.Facing == "" || dev.Facing == FacingUnknown {
			dev.Facing = InferFacing(dev.Label)
		}
		out = append(out, dev)
	}
	return out
}

// Find returns the device with the given ID.
func Find(devs []CaptureDevice, id string) (CaptureDevice, bool) {
	for _, dev := range devs {
		if dev.ID == id {
			return dev, true
		}
	}
	return CaptureDevice{}, false
}
