package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"arcam/internal/config"
	"arcam/internal/devices"
	"arcam/internal/prefstore"
)

// CheckPreferenceStore opens the preference database and reports the stored
// camera, if any.
func CheckPreferenceStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Preference store"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	store, err := prefstore.Open(cfg.PreferencePath(), nil)
	if err != nil {
		if errors.Is(err, prefstore.ErrSchemaMismatch) {
			return Result{Name: name, Detail: "schema mismatch (run: arcam pref clear --reset)"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	id, ok, err := store.Get(ctx)
	switch {
	case err != nil:
		return Result{Name: name, Detail: err.Error()}
	case ok:
		return Result{Name: name, Passed: true, Detail: "preferred camera " + id}
	default:
		return Result{Name: name, Passed: true, Detail: "no stored camera"}
	}
}

// CameraProbe is a snapshot of the local capture devices.
type CameraProbe struct {
	Detected bool
	Devices  []devices.CaptureDevice
	Err      error
}

// ProbeCameras lists local capture devices through the catalog.
func ProbeCameras(ctx context.Context, catalog devices.Catalog) CameraProbe {
	if catalog == nil {
		return CameraProbe{}
	}
	listed, err := catalog.Enumerate(ctx)
	if err != nil {
		return CameraProbe{Err: err}
	}
	return CameraProbe{Detected: len(listed) > 0, Devices: listed}
}

// Detail renders a display-friendly summary for status UIs.
func (p CameraProbe) Detail() string {
	if p.Err != nil {
		return fmt.Sprintf("Camera listing failed (%v)", p.Err)
	}
	if !p.Detected {
		return "No cameras detected"
	}
	labels := make([]string, 0, len(p.Devices))
	for _, dev := range p.Devices {
		label := strings.TrimSpace(dev.Label)
		if label == "" {
			label = dev.ID
		}
		labels = append(labels, fmt.Sprintf("%s (%s)", label, dev.Facing))
	}
	return fmt.Sprintf("%d camera(s): %s", len(p.Devices), strings.Join(labels, ", "))
}
