package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"arcam/internal/config"
	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/notices"
	"arcam/internal/scoring"
	"arcam/internal/services"
)

// Preferences persists the preferred camera id.
type Preferences interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, id string) error
	Delete(ctx context.Context) error
}

// Reporter receives the debug line and user-visible hints.
type Reporter interface {
	SetDebug(text string)
	Show(severity notices.Severity, text string)
}

type nopReporter struct{}

func (nopReporter) SetDebug(string) {}
func (nopReporter) Show(notices.Severity, string) {}

// Selection is the outcome of the selection ladder.
type Selection struct {
	// Device is nil when only the facing hint is left.
	Device     *devices.CaptureDevice
	Strategy   string
	Candidates []scoring.ScoredCandidate
	Catalog    []devices.CaptureDevice
}

// DeviceID returns the selected id, or "" for the facing hint.
func (s Selection) DeviceID() string {
	if s.Device == nil {
		return ""
	}
	return s.Device.ID
}

// Result describes a successful negotiation. The session itself has already
// been stopped.
type Result struct {
	AttemptID    string                `json:"attempt_id"`
	Device       devices.CaptureDevice `json:"device"`
	Strategy     string                `json:"strategy"`
	Constraints  Constraints           `json:"constraints"`
	Settings     Settings              `json:"settings"`
	Capabilities Capabilities          `json:"capabilities"`
	Attempts     int                   `json:"attempts"`
	Fallback     bool                  `json:"fallback"`
}

// Negotiator selects a device and requests a capture session from the
// platform.
type Negotiator struct {
	platform Platform
	prefs    Preferences
	engine   *scoring.Engine
	camera   config.Camera
	reporter Reporter
	logger   *slog.Logger
}

// NewNegotiator wires a negotiator. prefs and reporter may be nil.
func NewNegotiator(cfg *config.Config, platform Platform, prefs Preferences, reporter Reporter, logger *slog.Logger) *Negotiator {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Negotiator{
		platform: platform,
		prefs:    prefs,
		engine:   scoring.NewEngine(scoring.FromConfig(cfg.Scoring)),
		camera:   cfg.Camera,
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, "negotiator"),
	}
}

// Engine returns the scoring engine in use.
func (n *Negotiator) Engine() *scoring.Engine {
	return n.engine
}

// Select walks the selection ladder against a fresh catalog read. It fails
// only when ctx is done; a catalog error degrades to the facing hint.
func (n *Negotiator) Select(ctx context.Context) (Selection, error) {
	logger := logging.WithContext(ctx, n.logger)

	catalog, err := n.platform.Enumerate(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Selection{}, ctxErr
		}
		logging.WarnWithContext(logger, "device catalog unavailable", "catalog_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check camera permissions and attached devices"),
			logging.String(logging.FieldImpact, "falling back to facing hint"),
		)
		catalog = nil
	}
	catalog = devices.Normalize(catalog)
	n.reporter.SetDebug(fmt.Sprintf("found %d camera(s)", len(catalog)))

	sel := Selection{Catalog: catalog}
	pick := func(dev devices.CaptureDevice, strategy string) Selection {
		sel.Device = &dev
		sel.Strategy = strategy
		logger.Info("camera selected",
			logging.Args(append(logging.DecisionAttrs("camera_selection", dev.ID, strategy),
				logging.String(logging.FieldDeviceID, dev.ID),
				logging.String("label", dev.Label),
				logging.String("strategy", strategy),
			)...)...,
		)
		n.reporter.SetDebug(fmt.Sprintf("selected %s via %s", displayName(dev), strategy))
		return sel
	}

	if dev, ok := n.storedPreference(ctx, logger, catalog); ok {
		return pick(dev, scoring.StrategyStoredPreference), nil
	}

	sel.Candidates = n.engine.Score(catalog)
	for _, cand := range sel.Candidates {
		logger.Debug("camera scored",
			logging.String(logging.FieldDeviceID, cand.Device.ID),
			logging.String("label", cand.Device.Label),
			logging.Int("score", cand.Score),
			logging.Any("hits", cand.Hits),
		)
	}
	if winner, ok := scoring.Winner(sel.Candidates); ok {
		return pick(winner.Device, scoring.StrategyEnhancedScoring), nil
	}

	candidates := n.engine.Candidates(catalog)
	for _, dev := range candidates {
		if !n.engine.HasTelephoto(dev.Label) {
			return pick(dev, scoring.StrategyAvoidTelephoto), nil
		}
	}
	if len(candidates) > 0 {
		return pick(candidates[0], scoring.StrategyFallbackAny), nil
	}
	if len(catalog) > 0 {
		return pick(catalog[0], scoring.StrategyFallbackAny), nil
	}

	sel.Strategy = scoring.StrategyFacingHint
	logger.Info("no camera enumerated; using facing hint",
		logging.Args(append(logging.DecisionAttrs("camera_selection", n.camera.FacingHint, "empty catalog"),
			logging.String("strategy", sel.Strategy),
		)...)...,
	)
	n.reporter.SetDebug("no camera listed; requesting " + n.camera.FacingHint + " camera")
	return sel, nil
}

// storedPreference returns the stored device when it is still present. A
// stale id is deleted.
func (n *Negotiator) storedPreference(ctx context.Context, logger *slog.Logger, catalog []devices.CaptureDevice) (devices.CaptureDevice, bool) {
	if n.prefs == nil {
		return devices.CaptureDevice{}, false
	}
	id, ok, err := n.prefs.Get(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "preference read failed", "preference_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stored camera preference ignored"),
		)
		return devices.CaptureDevice{}, false
	}
	if !ok {
		return devices.CaptureDevice{}, false
	}
	if dev, found := devices.Find(catalog, id); found {
		return dev, true
	}
	logger.Info("stored camera no longer present; clearing preference",
		logging.String(logging.FieldDeviceID, id),
	)
	if err := n.prefs.Delete(ctx); err != nil {
		logging.WarnWithContext(logger, "preference delete failed", "preference_delete_failed",
			logging.Error(err),
			logging.String(logging.FieldDeviceID, id),
		)
	}
	return devices.CaptureDevice{}, false
}

// Negotiate selects a camera and requests capture. An over-constrained
// rejection is retried once with minimal constraints; any other failure, or a
// second failure, is returned as a *NegotiationError.
func (n *Negotiator) Negotiate(ctx context.Context) (*Result, error) {
	attemptID := uuid.NewString()
	ctx = services.WithAttemptID(ctx, attemptID)
	logger := logging.WithContext(ctx, n.logger)

	sel, err := n.Select(ctx)
	if err != nil {
		return nil, err
	}

	constraints := BaseConstraints(n.camera, sel.DeviceID())
	if err := constraints.Validate(); err != nil {
		return nil, &NegotiationError{Kind: KindUnknown, Err: err}
	}

	res := &Result{AttemptID: attemptID, Strategy: sel.Strategy}
	if sel.Device != nil {
		res.Device = *sel.Device
	}

	n.reporter.SetDebug("requesting camera access")
	session, err := n.platform.RequestCapture(ctx, constraints)
	res.Attempts = 1
	if err != nil && Classify(err) == KindOverConstrained {
		logging.WarnWithContext(logger, "constraints rejected; retrying with minimal set", "constraints_rejected",
			logging.Error(err),
			logging.String(logging.FieldImpact, "resolution and zoom hints dropped"),
		)
		constraints = MinimalConstraints(n.camera)
		res.Strategy = scoring.StrategyMinimalFallback
		res.Fallback = true
		n.reporter.SetDebug("retrying with minimal constraints")
		session, err = n.platform.RequestCapture(ctx, constraints)
		res.Attempts = 2
	}
	if err != nil {
		return nil, n.fail(logger, err, res.Attempts)
	}
	defer session.Stop()

	track, ok := session.VideoTrack()
	if !ok {
		return nil, n.fail(logger, fmt.Errorf("granted session has no video track: %w", ErrUnknown), res.Attempts)
	}
	res.Constraints = constraints
	res.Settings = track.Settings()
	res.Capabilities = track.Capabilities()
	if granted := res.Settings.DeviceID; granted != "" {
		if dev, found := devices.Find(sel.Catalog, granted); found {
			res.Device = dev
		} else if res.Device.ID == "" {
			res.Device = devices.CaptureDevice{ID: granted, Kind: devices.KindVideo, Facing: devices.FacingUnknown}
		}
	}

	logger.Info("camera negotiated",
		logging.String(logging.FieldEventType, "negotiation_succeeded"),
		logging.String(logging.FieldDeviceID, res.Device.ID),
		logging.String("label", res.Device.Label),
		logging.String("strategy", res.Strategy),
		logging.Int("width", res.Settings.Width),
		logging.Int("height", res.Settings.Height),
		logging.Int("attempts", res.Attempts),
	)
	n.reporter.SetDebug(fmt.Sprintf("camera ready: %s %dx%d", displayName(res.Device), res.Settings.Width, res.Settings.Height))
	return res, nil
}

func (n *Negotiator) fail(logger *slog.Logger, err error, attempts int) error {
	kind := Classify(err)
	remedy := RemediationFor(kind)
	logging.ErrorWithContext(logger, remedy.Message, "negotiation_failed",
		logging.Error(err),
		logging.String("kind", string(kind)),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldErrorHint, "use the enable camera control to retry"),
		logging.String(logging.FieldImpact, "camera view unavailable"),
	)
	n.reporter.SetDebug("camera failed: " + string(kind))
	var negErr *NegotiationError
	if errors.As(err, &negErr) {
		return negErr
	}
	return &NegotiationError{Kind: kind, Attempts: attempts, Err: err}
}

func displayName(dev devices.CaptureDevice) string {
	if dev.Labeled() {
		return dev.Label
	}
	if dev.ID != "" {
		return dev.ID
	}
	return "camera"
}
