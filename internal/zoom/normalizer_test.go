package zoom_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"arcam/internal/capture"
	"arcam/internal/config"
	"arcam/internal/logging"
	"arcam/internal/notices"
	"arcam/internal/zoom"
)

type fakeTrack struct {
	settings   capture.Settings
	caps       capture.Capabilities
	rejectZoom bool
	applied    []capture.Constraints
}

func (t *fakeTrack) Kind() string { return "video" }
func (t *fakeTrack) Settings() capture.Settings { return t.settings }
func (t *fakeTrack) Capabilities() capture.Capabilities { return t.caps }
func (t *fakeTrack) Live() bool { return true }
func (t *fakeTrack) Stop() {}

func (t *fakeTrack) ApplyConstraints(_ context.Context, c capture.Constraints) error {
	t.applied = append(t.applied, c)
	if c.Zoom != nil && t.rejectZoom {
		return &capture.PlatformError{Name: "OverconstrainedError", Constraint: "zoom"}
	}
	return nil
}

// source returns the track from the readyAt-th poll on.
type source struct {
	track   capture.Track
	readyAt int
	polls   int
}

func (s *source) VideoTrack(context.Context) (capture.Track, bool, error) {
	s.polls++
	if s.track == nil || s.polls < s.readyAt {
		return nil, false, nil
	}
	return s.track, true, nil
}

type hints struct{ shown []notices.Hint }

func (h *hints) Show(sev notices.Severity, text string) {
	h.shown = append(h.shown, notices.Hint{Severity: sev, Text: text})
}

func newNormalizer(rep zoom.Reporter, sleeps *int) *zoom.Normalizer {
	cfg := config.Default()
	return zoom.NewNormalizer(&cfg, rep, logging.NewNop()).WithSleep(func(ctx context.Context, d time.Duration) error {
		if d != time.Second {
			return errors.New("unexpected interval")
		}
		*sleeps++
		return ctx.Err()
	})
}

func ptr(v float64) *float64 { return &v }

func TestNormalizeOutcomes(t *testing.T) {
	zoomCaps := capture.Capabilities{Zoom: &capture.Bounds{Min: 1, Max: 8}}
	tests := []struct {
		name     string
		track    *fakeTrack
		outcome  zoom.Outcome
		severity notices.Severity
		text     string
	}{
		{
			name:     "high zoom reset",
			track:    &fakeTrack{settings: capture.Settings{Zoom: ptr(6)}, caps: zoomCaps},
			outcome:  zoom.OutcomeReset,
			severity: notices.SeveritySuccess,
			text:     zoom.HintReset,
		},
		{
			name:     "high zoom rejected",
			track:    &fakeTrack{settings: capture.Settings{Zoom: ptr(6)}, caps: zoomCaps, rejectZoom: true},
			outcome:  zoom.OutcomeRejected,
			severity: notices.SeverityWarning,
			text:     zoom.HintRejected,
		},
		{
			name:     "no zoom capability",
			track:    &fakeTrack{settings: capture.Settings{}},
			outcome:  zoom.OutcomeUnsupported,
			severity: notices.SeverityInfo,
			text:     zoom.HintUnsupported,
		},
		{
			name:     "near minimum",
			track:    &fakeTrack{settings: capture.Settings{Zoom: ptr(1.2)}, caps: zoomCaps},
			outcome:  zoom.OutcomeNearMinimum,
			severity: notices.SeverityInfo,
			text:     zoom.HintNearMinimum,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep := &hints{}
			sleeps := 0
			got := newNormalizer(rep, &sleeps).Normalize(context.Background(), &source{track: tc.track, readyAt: 1})
			if got != tc.outcome {
				t.Fatalf("outcome %q, want %q", got, tc.outcome)
			}
			if len(rep.shown) != 1 {
				t.Fatalf("expected exactly one hint, got %+v", rep.shown)
			}
			if rep.shown[0].Severity != tc.severity || rep.shown[0].Text != tc.text {
				t.Fatalf("unexpected hint %+v", rep.shown[0])
			}
		})
	}
}

func TestNormalizePinsZoomToMinimum(t *testing.T) {
	track := &fakeTrack{
		settings: capture.Settings{Zoom: ptr(6)},
		caps:     capture.Capabilities{Zoom: &capture.Bounds{Min: 1, Max: 8}},
	}
	sleeps := 0
	newNormalizer(&hints{}, &sleeps).Normalize(context.Background(), &source{track: track, readyAt: 1})
	if len(track.applied) != 1 {
		t.Fatalf("expected one constraint application, got %d", len(track.applied))
	}
	if got, _ := track.applied[0].Zoom.Target(); got != 1 {
		t.Fatalf("expected zoom pinned to 1, got %v", got)
	}
}

func TestNormalizeNearMinimumWidensBestEffort(t *testing.T) {
	track := &fakeTrack{
		settings: capture.Settings{Zoom: ptr(1)},
		caps: capture.Capabilities{
			Zoom:          &capture.Bounds{Min: 1, Max: 8},
			FocusDistance: &capture.Bounds{Min: 0.1, Max: 10},
		},
	}
	sleeps := 0
	newNormalizer(&hints{}, &sleeps).Normalize(context.Background(), &source{track: track, readyAt: 1})
	if len(track.applied) != 2 {
		t.Fatalf("expected focus and aspect hints, got %+v", track.applied)
	}
	if track.applied[0].FocusDistance == nil || track.applied[1].AspectRatio == nil {
		t.Fatalf("unexpected applications %+v", track.applied)
	}
}

func TestNormalizePollsUntilTrackAppears(t *testing.T) {
	track := &fakeTrack{settings: capture.Settings{Zoom: ptr(6)}, caps: capture.Capabilities{Zoom: &capture.Bounds{Min: 1, Max: 8}}}
	src := &source{track: track, readyAt: 3}
	sleeps := 0
	got := newNormalizer(&hints{}, &sleeps).Normalize(context.Background(), src)
	if got != zoom.OutcomeReset || src.polls != 3 || sleeps != 2 {
		t.Fatalf("outcome=%q polls=%d sleeps=%d", got, src.polls, sleeps)
	}
}

func TestNormalizeGivesUpAfterAttempts(t *testing.T) {
	src := &source{}
	rep := &hints{}
	sleeps := 0
	got := newNormalizer(rep, &sleeps).Normalize(context.Background(), src)
	if got != zoom.OutcomeNoTrack {
		t.Fatalf("outcome %q, want no-track", got)
	}
	if src.polls != 5 || sleeps != 4 {
		t.Fatalf("expected 5 polls and 4 sleeps, got %d and %d", src.polls, sleeps)
	}
	if len(rep.shown) != 1 || rep.shown[0].Text != zoom.HintNoVideoTrack {
		t.Fatalf("unexpected hints %+v", rep.shown)
	}
}

func TestNormalizeCancelledEmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := &hints{}
	sleeps := 0
	got := newNormalizer(rep, &sleeps).Normalize(ctx, &source{})
	if got != zoom.OutcomeCancelled || len(rep.shown) != 0 {
		t.Fatalf("outcome=%q hints=%+v", got, rep.shown)
	}
}

func TestNormalizeUpdatesBoard(t *testing.T) {
	board := notices.NewBoard(5 * time.Second)
	board.Show(notices.SeverityWarning, "older hint")
	track := &fakeTrack{settings: capture.Settings{Zoom: ptr(6)}, caps: capture.Capabilities{Zoom: &capture.Bounds{Min: 1, Max: 8}}}
	sleeps := 0
	newNormalizer(board, &sleeps).Normalize(context.Background(), &source{track: track, readyAt: 1})
	hint, ok := board.Current()
	if !ok || hint.Text != zoom.HintReset {
		t.Fatalf("expected reset hint to replace prior, got %+v ok=%v", hint, ok)
	}
}
