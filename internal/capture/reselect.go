package capture

import (
	"context"
	"log/slog"
	"time"

	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/notices"
)

var (
	grantedTelephotoWords = []string{"telephoto", "tele", "zoom", "3x", "5x"}
	wideRejectWords       = []string{"telephoto", "tele", "zoom", "3x"}
	backRejectWords       = []string{"front", "selfie", "user"}
)

// Reselector stores the wide camera as the preference when the platform
// granted a telephoto sensor early in a session.
type Reselector struct {
	catalog  devices.Catalog
	prefs    Preferences
	reporter Reporter
	grace    time.Duration
	logger   *slog.Logger
}

// NewReselector returns a reselector that only acts within grace of AR
// becoming ready.
func NewReselector(catalog devices.Catalog, prefs Preferences, reporter Reporter, grace time.Duration, logger *slog.Logger) *Reselector {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Reselector{
		catalog:  catalog,
		prefs:    prefs,
		reporter: reporter,
		grace:    grace,
		logger:   logging.NewComponentLogger(logger, "reselector"),
	}
}

// Check inspects the granted device. running is how long AR has been ready.
// It returns the wide device it stored, if any.
func (r *Reselector) Check(ctx context.Context, res *Result, running time.Duration) (devices.CaptureDevice, bool, error) {
	if res == nil || r.prefs == nil {
		return devices.CaptureDevice{}, false, nil
	}
	logger := logging.WithContext(ctx, r.logger)
	label := devices.FoldLabel(res.Device.Label)
	if !devices.ContainsAny(label, grantedTelephotoWords) {
		return devices.CaptureDevice{}, false, nil
	}
	if running > r.grace {
		logger.Debug("telephoto granted after grace period; leaving selection",
			logging.String(logging.FieldDeviceID, res.Device.ID),
			logging.Duration("running", running),
		)
		return devices.CaptureDevice{}, false, nil
	}

	catalog, err := r.catalog.Enumerate(ctx)
	if err != nil {
		return devices.CaptureDevice{}, false, err
	}
	wide, ok := findWide(catalog)
	if !ok {
		logging.WarnWithContext(logger, "telephoto camera granted and no wide camera found", "wide_camera_missing",
			logging.Alert("telephoto_only"),
			logging.String(logging.FieldDeviceID, res.Device.ID),
			logging.String("label", res.Device.Label),
			logging.String(logging.FieldImpact, "camera view stays zoomed in"),
		)
		return devices.CaptureDevice{}, false, nil
	}
	if err := r.prefs.Set(ctx, wide.ID); err != nil {
		return devices.CaptureDevice{}, false, err
	}
	logger.Info("telephoto camera granted; preferring wide camera",
		logging.Args(append(logging.DecisionAttrs("camera_reselection", wide.ID, "telephoto granted"),
			logging.String(logging.FieldDeviceID, wide.ID),
			logging.String("label", wide.Label),
		)...)...,
	)
	r.reporter.Show(notices.SeverityWarning, "telephoto camera detected, switching to wide camera")
	return wide, true, nil
}

func findWide(catalog []devices.CaptureDevice) (devices.CaptureDevice, bool) {
	for _, dev := range catalog {
		label := devices.FoldLabel(dev.Label)
		if devices.ContainsAny(label, backRejectWords) {
			continue
		}
		if devices.ContainsAny(label, wideRejectWords) {
			continue
		}
		main := devices.ContainsAny(label, []string{"main"})
		wide := devices.ContainsAny(label, []string{"wide"}) && !devices.ContainsAny(label, []string{"ultra"})
		if main || wide {
			return dev, true
		}
	}
	return devices.CaptureDevice{}, false
}
