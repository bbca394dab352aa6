package capture_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"arcam/internal/capture"
	"arcam/internal/config"
	"arcam/internal/devices"
	"arcam/internal/logging"
	"arcam/internal/scoring"
)

func newNegotiator(t *testing.T, p *stubPlatform, prefs capture.Preferences, rep capture.Reporter) *capture.Negotiator {
	t.Helper()
	cfg := config.Default()
	return capture.NewNegotiator(&cfg, p, prefs, rep, logging.NewNop())
}

func TestSelectLadder(t *testing.T) {
	tests := []struct {
		name     string
		devs     []devices.CaptureDevice
		pref     string
		wantID   string
		strategy string
	}{
		{
			name:     "stored preference wins when present",
			devs:     []devices.CaptureDevice{cam("a", "Back Camera"), cam("b", "Back Telephoto Camera")},
			pref:     "b",
			wantID:   "b",
			strategy: scoring.StrategyStoredPreference,
		},
		{
			name:     "scoring winner",
			devs:     []devices.CaptureDevice{cam("a", "Back Telephoto Camera"), cam("b", "Back Main Camera")},
			wantID:   "b",
			strategy: scoring.StrategyEnhancedScoring,
		},
		{
			name: "first non-telephoto when no confident winner",
			devs: []devices.CaptureDevice{
				cam("a", "tele zoom 5x"),
				cam("b", "tele zoom 3x"),
				cam("c", "ultrawide ultra wide ultra-wide uw"),
			},
			wantID:   "c",
			strategy: scoring.StrategyAvoidTelephoto,
		},
		{
			name: "fallback to first non-front when every candidate is telephoto",
			devs: []devices.CaptureDevice{
				cam("f", "Front Camera"),
				cam("a", "tele zoom 5x periscope"),
				cam("b", "telephoto zoom 10x"),
			},
			wantID:   "a",
			strategy: scoring.StrategyFallbackAny,
		},
		{
			name:     "raw first entry when everything is front",
			devs:     []devices.CaptureDevice{cam("f1", "Front Camera"), cam("f2", "Selfie")},
			wantID:   "f1",
			strategy: scoring.StrategyFallbackAny,
		},
		{
			name:     "facing hint on empty catalog",
			strategy: scoring.StrategyFacingHint,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prefs := &memPrefs{id: tc.pref, set: tc.pref != ""}
			n := newNegotiator(t, &stubPlatform{devs: tc.devs}, prefs, nil)
			sel, err := n.Select(context.Background())
			if err != nil {
				t.Fatalf("Select returned error: %v", err)
			}
			if sel.DeviceID() != tc.wantID {
				t.Fatalf("selected %q, want %q", sel.DeviceID(), tc.wantID)
			}
			if sel.Strategy != tc.strategy {
				t.Fatalf("strategy %q, want %q", sel.Strategy, tc.strategy)
			}
		})
	}
}

func TestSelectDeletesStalePreference(t *testing.T) {
	prefs := &memPrefs{id: "gone", set: true}
	rep := &recordingReporter{}
	n := newNegotiator(t, &stubPlatform{devs: []devices.CaptureDevice{cam("a", "Back Camera")}}, prefs, rep)

	sel, err := n.Select(context.Background())
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if prefs.deletes != 1 || prefs.set {
		t.Fatalf("expected stale preference deleted once, deletes=%d set=%v", prefs.deletes, prefs.set)
	}
	if sel.DeviceID() != "a" || sel.Strategy != scoring.StrategyEnhancedScoring {
		t.Fatalf("expected scoring to take over, got %+v", sel)
	}
	if len(rep.debug) == 0 {
		t.Fatal("expected debug line updates")
	}
}

func TestSelectIgnoresPreferenceReadError(t *testing.T) {
	prefs := &memPrefs{err: errors.New("disk on fire")}
	n := newNegotiator(t, &stubPlatform{devs: []devices.CaptureDevice{cam("a", "Back Camera")}}, prefs, nil)
	sel, err := n.Select(context.Background())
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if sel.DeviceID() != "a" {
		t.Fatalf("expected a, got %q", sel.DeviceID())
	}
}

func TestSelectCatalogErrorFallsBackToFacing(t *testing.T) {
	n := newNegotiator(t, &stubPlatform{enumErr: errors.New("no sysfs")}, nil, nil)
	sel, err := n.Select(context.Background())
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if sel.Device != nil || sel.Strategy != scoring.StrategyFacingHint {
		t.Fatalf("expected facing hint, got %+v", sel)
	}
}

func TestNegotiateSuccessStopsTracks(t *testing.T) {
	p := &stubPlatform{devs: []devices.CaptureDevice{cam("a", "Back Telephoto Camera"), cam("b", "Back Main Camera")}}
	n := newNegotiator(t, p, &memPrefs{}, nil)

	res, err := n.Negotiate(context.Background())
	if err != nil {
		t.Fatalf("Negotiate returned error: %v", err)
	}
	if res.Device.ID != "b" || res.Attempts != 1 || res.Fallback {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.AttemptID == "" {
		t.Fatal("expected attempt id")
	}
	if len(p.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(p.requests))
	}
	req := p.requests[0]
	if req.DeviceID != "b" || req.FacingMode != "" {
		t.Fatalf("expected device id without facing, got %+v", req)
	}
	if w, _ := req.Width.Target(); w != 640 {
		t.Fatalf("expected ideal width 640, got %v", w)
	}
	if res.Capabilities.Zoom == nil || res.Settings.Width != 640 {
		t.Fatalf("expected settings and capabilities captured, got %+v", res)
	}
	if p.tracks[0].stopCount() != 1 {
		t.Fatalf("expected track stopped once, got %d", p.tracks[0].stopCount())
	}
}

func TestNegotiateFacingHintWhenCatalogEmpty(t *testing.T) {
	p := &stubPlatform{}
	n := newNegotiator(t, p, nil, nil)
	if _, err := n.Negotiate(context.Background()); err != nil {
		t.Fatalf("Negotiate returned error: %v", err)
	}
	req := p.requests[0]
	if req.DeviceID != "" || req.FacingMode != "environment" {
		t.Fatalf("expected facing hint only, got %+v", req)
	}
}

func TestNegotiateRetriesOnceWhenOverConstrained(t *testing.T) {
	p := &stubPlatform{
		devs:    []devices.CaptureDevice{cam("a", "Back Camera")},
		results: []error{&capture.PlatformError{Name: "OverconstrainedError", Constraint: "width"}},
	}
	n := newNegotiator(t, p, nil, nil)

	res, err := n.Negotiate(context.Background())
	if err != nil {
		t.Fatalf("Negotiate returned error: %v", err)
	}
	if len(p.requests) != 2 || res.Attempts != 2 || !res.Fallback {
		t.Fatalf("expected exactly one retry, requests=%d res=%+v", len(p.requests), res)
	}
	if res.Strategy != scoring.StrategyMinimalFallback {
		t.Fatalf("expected minimal-fallback strategy, got %q", res.Strategy)
	}
	minimal := p.requests[1]
	if minimal.DeviceID != "" || minimal.FacingMode != "environment" || minimal.Zoom != nil || minimal.Width.Min != nil {
		t.Fatalf("unexpected minimal constraints %+v", minimal)
	}
}

func TestNegotiateNeverTriesThirdTime(t *testing.T) {
	over := &capture.PlatformError{Name: "OverconstrainedError"}
	p := &stubPlatform{
		devs:    []devices.CaptureDevice{cam("a", "Back Camera")},
		results: []error{over, over, nil},
	}
	n := newNegotiator(t, p, nil, nil)

	_, err := n.Negotiate(context.Background())
	var negErr *capture.NegotiationError
	if !errors.As(err, &negErr) {
		t.Fatalf("expected NegotiationError, got %v", err)
	}
	if negErr.Kind != capture.KindOverConstrained || negErr.Attempts != 2 {
		t.Fatalf("unexpected error %+v", negErr)
	}
	if len(p.requests) != 2 {
		t.Fatalf("expected two requests, got %d", len(p.requests))
	}
}

func TestNegotiateClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind capture.ErrorKind
	}{
		{"not allowed", &capture.PlatformError{Name: "NotAllowedError"}, capture.KindPermissionDenied},
		{"not found", &capture.PlatformError{Name: "NotFoundError"}, capture.KindDeviceNotFound},
		{"legacy alias", &capture.PlatformError{Name: "DevicesNotFoundError"}, capture.KindDeviceNotFound},
		{"readable", &capture.PlatformError{Name: "NotReadableError"}, capture.KindUnknown},
		{"plain", errors.New("boom"), capture.KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubPlatform{devs: []devices.CaptureDevice{cam("a", "Back Camera")}, results: []error{tc.err}}
			rep := &recordingReporter{}
			n := newNegotiator(t, p, nil, rep)
			_, err := n.Negotiate(context.Background())
			if got := capture.Classify(err); got != tc.kind {
				t.Fatalf("Classify = %q, want %q (err=%v)", got, tc.kind, err)
			}
			if len(p.requests) != 1 {
				t.Fatalf("expected no retry, got %d requests", len(p.requests))
			}
			last := rep.debug[len(rep.debug)-1]
			if !strings.Contains(last, string(tc.kind)) {
				t.Fatalf("expected debug line to carry kind, got %q", last)
			}
		})
	}
}

func TestNegotiateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &stubPlatform{enumErr: context.Canceled}
	n := newNegotiator(t, p, nil, nil)
	if _, err := n.Negotiate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(p.requests) != 0 {
		t.Fatal("expected no capture request after cancellation")
	}
}
