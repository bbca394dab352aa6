// Package zoom drives a live video track toward its widest zoom setting.
package zoom

import (
	"context"
	"log/slog"
	"time"

	"arcam/internal/capture"
	"arcam/internal/config"
	"arcam/internal/logging"
	"arcam/internal/notices"
)

// Hint texts, one per outcome.
const (
	HintReset        = "camera zoom reset to minimum"
	HintRejected     = "use two fingers to zoom out"
	HintUnsupported  = "zoom not supported; use two fingers on the screen to adjust zoom"
	HintNearMinimum  = "camera is at its widest zoom; use two fingers on the screen to adjust"
	HintNoVideoTrack = "camera not ready; use two fingers on the screen to adjust zoom"
)

// Outcome names what a normalization run did.
type Outcome string

const (
	OutcomeReset       Outcome = "reset"
	OutcomeRejected    Outcome = "rejected"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeNearMinimum Outcome = "near-minimum"
	OutcomeNoTrack     Outcome = "no-track"
	OutcomeCancelled   Outcome = "cancelled"
)

// TrackSource yields the live video track once the rendering side has one.
type TrackSource interface {
	VideoTrack(ctx context.Context) (capture.Track, bool, error)
}

// Reporter receives the single hint of a run.
type Reporter interface {
	Show(severity notices.Severity, text string)
}

// Normalizer polls for a video track and pins zoom to its minimum.
type Normalizer struct {
	attempts    int
	interval    time.Duration
	aspectRatio float64
	reporter    Reporter
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewNormalizer builds a normalizer from the zoom and camera settings.
func NewNormalizer(cfg *config.Config, reporter Reporter, logger *slog.Logger) *Normalizer {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &Normalizer{
		attempts:    max(cfg.Zoom.Attempts, 1),
		interval:    cfg.ZoomInterval(),
		aspectRatio: cfg.Camera.AspectRatio,
		reporter:    reporter,
		logger:      logging.NewComponentLogger(logger, "zoom"),
		sleep:       sleepContext,
	}
}

// WithSleep replaces the retry delay, for tests.
func (n *Normalizer) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Normalizer {
	n.sleep = sleep
	return n
}

// Normalize runs once. Failures degrade to a hint and are never returned.
func (n *Normalizer) Normalize(ctx context.Context, src TrackSource) Outcome {
	logger := logging.WithContext(ctx, n.logger)

	track, ok := n.awaitTrack(ctx, logger, src)
	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	if !ok {
		logger.Info("no video track after polling",
			logging.String(logging.FieldEventType, "zoom_no_track"),
			logging.Int("attempts", n.attempts),
		)
		return n.finish(OutcomeNoTrack, notices.SeverityInfo, HintNoVideoTrack)
	}

	caps := track.Capabilities()
	settings := track.Settings()
	if caps.Zoom == nil {
		logger.Info("zoom capability missing", logging.String(logging.FieldEventType, "zoom_unsupported"))
		return n.finish(OutcomeUnsupported, notices.SeverityInfo, HintUnsupported)
	}

	lo, hi := caps.Zoom.Min, caps.Zoom.Max
	threshold := lo + 0.5*(hi-lo)
	if settings.Zoom != nil && *settings.Zoom > threshold {
		err := track.ApplyConstraints(ctx, capture.Constraints{Zoom: capture.Exact(lo)})
		if err != nil {
			logging.WarnWithContext(logger, "zoom reset rejected", "zoom_rejected",
				logging.Error(err),
				logging.Float64("zoom", *settings.Zoom),
				logging.Float64("zoom_min", lo),
				logging.String(logging.FieldImpact, "user must zoom out manually"),
			)
			return n.finish(OutcomeRejected, notices.SeverityWarning, HintRejected)
		}
		logger.Info("zoom reset to minimum",
			logging.String(logging.FieldEventType, "zoom_reset"),
			logging.Float64("zoom", *settings.Zoom),
			logging.Float64("zoom_min", lo),
		)
		return n.finish(OutcomeReset, notices.SeveritySuccess, HintReset)
	}

	// Near minimum already: a still-narrow view points at a telephoto sensor.
	// Widen what we can without switching cameras.
	if caps.FocusDistance != nil {
		if err := track.ApplyConstraints(ctx, capture.Constraints{FocusDistance: capture.Exact(caps.FocusDistance.Min)}); err != nil {
			logger.Debug("focus distance hint rejected", logging.Error(err))
		}
	}
	if n.aspectRatio > 0 {
		if err := track.ApplyConstraints(ctx, capture.Constraints{AspectRatio: capture.Ideal(n.aspectRatio)}); err != nil {
			logger.Debug("aspect ratio hint rejected", logging.Error(err))
		}
	}
	logger.Info("zoom already near minimum",
		logging.String(logging.FieldEventType, "zoom_near_minimum"),
		logging.Float64("zoom_min", lo),
		logging.Float64("zoom_max", hi),
	)
	return n.finish(OutcomeNearMinimum, notices.SeverityInfo, HintNearMinimum)
}

func (n *Normalizer) awaitTrack(ctx context.Context, logger *slog.Logger, src TrackSource) (capture.Track, bool) {
	for attempt := 1; attempt <= n.attempts; attempt++ {
		track, ok, err := src.VideoTrack(ctx)
		if err != nil {
			logger.Debug("video track lookup failed", logging.Error(err), logging.Int("attempt", attempt))
		}
		if ok && track != nil {
			return track, true
		}
		if attempt == n.attempts {
			break
		}
		if err := n.sleep(ctx, n.interval); err != nil {
			return nil, false
		}
	}
	return nil, false
}

func (n *Normalizer) finish(outcome Outcome, severity notices.Severity, text string) Outcome {
	if n.reporter != nil {
		n.reporter.Show(severity, text)
	}
	return outcome
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
