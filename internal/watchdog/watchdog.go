package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"arcam/internal/config"
	"arcam/internal/events"
	"arcam/internal/logging"
	"arcam/internal/notices"
)

// HintCorrected is the notice shown after each correction.
const (
	HintCorrected = "camera view adjusted"
	HintFailed    = "camera view could not be adjusted; rotate the device or reload"
)

// State is the watchdog state.
type State string

const (
	StateNominal    State = "nominal"
	StateCorrecting State = "correcting"
)

// Surfaces measures and restyles the page.
type Surfaces interface {
	Sample(ctx context.Context) (Sample, error)
	ApplyFullBleed(ctx context.Context, d Directive) error
	ForceVisible(ctx context.Context) error
	ReloadVideo(ctx context.Context) error
}

// Reporter shows the per-correction notice.
type Reporter interface {
	Show(severity notices.Severity, text string)
}

// Publisher receives LayoutCorrected events.
type Publisher interface {
	Publish(evt events.Event)
}

// Correction describes one tick that corrected the layout.
type Correction struct {
	Reason   Reason
	Reloaded bool
	Revealed bool
	Err      error
}

// Watchdog is one session's layout monitor.
type Watchdog struct {
	sessionID  string
	surfaces   Surfaces
	reporter   Reporter
	publisher  Publisher
	logger     *slog.Logger
	interval   time.Duration
	thresholds Thresholds

	mu          sync.Mutex
	state       State
	corrections int
}

// New builds a watchdog for sessionID. reporter and publisher may be nil.
func New(cfg *config.Config, sessionID string, surfaces Surfaces, reporter Reporter, publisher Publisher, logger *slog.Logger) *Watchdog {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &Watchdog{
		sessionID: sessionID,
		surfaces:  surfaces,
		reporter:  reporter,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "watchdog"),
		interval:  cfg.WatchdogInterval(),
		thresholds: Thresholds{
			MinCoverage: cfg.Watchdog.MinCoverage,
			MaxOffsetPx: cfg.Watchdog.MaxOffsetPx,
		},
		state: StateNominal,
	}
}

// State returns the state left by the last tick.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Corrections counts corrections applied so far.
func (w *Watchdog) Corrections() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.corrections
}

func (w *Watchdog) setState(s State) {
	w.mu.Lock()
	w.state = s
	if s == StateCorrecting {
		w.corrections++
	}
	w.mu.Unlock()
}

// Run ticks until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick samples once and corrects when needed. Surface errors degrade to a
// hint.
func (w *Watchdog) Tick(ctx context.Context) (Correction, bool) {
	logger := logging.WithContext(ctx, w.logger)
	w.setState(StateNominal)

	sample, err := w.surfaces.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Debug("layout sample failed", logging.Error(err))
		}
		return Correction{}, false
	}
	needed, reason := NeedsCorrection(sample, w.thresholds)
	if !needed {
		return Correction{}, false
	}

	w.setState(StateCorrecting)
	corr := w.correct(ctx, sample, reason)
	if corr.Err != nil {
		logging.WarnWithContext(logger, "layout correction failed", "layout_correction_failed",
			logging.Error(corr.Err),
			logging.String("reason", string(reason)),
			logging.String(logging.FieldImpact, "camera view may be cropped or hidden"),
		)
		w.show(notices.SeverityWarning, HintFailed)
	} else {
		logger.Info("layout corrected",
			logging.String(logging.FieldEventType, "layout_corrected"),
			logging.String("reason", string(reason)),
			logging.Bool("reloaded", corr.Reloaded),
			logging.Bool("revealed", corr.Revealed),
		)
		w.show(notices.SeverityInfo, HintCorrected)
	}
	if w.publisher != nil {
		w.publisher.Publish(events.Event{
			Type:      events.LayoutCorrected,
			SessionID: w.sessionID,
			Detail:    string(reason),
		})
	}
	return corr, true
}

func (w *Watchdog) correct(ctx context.Context, s Sample, reason Reason) Correction {
	corr := Correction{Reason: reason}
	if err := w.surfaces.ApplyFullBleed(ctx, Layout()); err != nil {
		corr.Err = err
		return corr
	}
	if s.VideoHidden {
		if err := w.surfaces.ForceVisible(ctx); err != nil {
			corr.Err = err
			return corr
		}
		corr.Revealed = true
	}
	if s.VideoLive && s.VideoWidth == 0 && s.VideoHeight == 0 {
		if err := w.surfaces.ReloadVideo(ctx); err != nil {
			corr.Err = err
			return corr
		}
		corr.Reloaded = true
	}
	return corr
}

func (w *Watchdog) show(severity notices.Severity, text string) {
	if w.reporter != nil {
		w.reporter.Show(severity, text)
	}
}
