package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"arcam/internal/bridge"
	"arcam/internal/capture"
	"arcam/internal/devices"
	"arcam/internal/events"
	"arcam/internal/logging"
	"arcam/internal/notices"
	"arcam/internal/services"
	"arcam/internal/watchdog"
	"arcam/internal/zoom"
)

// Task names.
const (
	TaskEvents   = "events"
	TaskZoom     = "zoom"
	TaskWatchdog = "watchdog"
)

// View is the rendered AR view: what the watchdog restyles and where the
// zoom normalizer finds the live track.
type View interface {
	watchdog.Surfaces
	zoom.TrackSource
}

// Outcome is the result of one negotiation attempt.
type Outcome struct {
	Result      *capture.Result        `json:"result,omitempty"`
	Reselected  *devices.CaptureDevice `json:"reselected,omitempty"`
	Remediation *capture.Remediation   `json:"remediation,omitempty"`
	Kind        capture.ErrorKind      `json:"kind,omitempty"`
}

// Snapshot is a read-only view of a session for the API.
type Snapshot struct {
	ID            string         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	ARReadyAt     *time.Time     `json:"ar_ready_at,omitempty"`
	Connected     bool           `json:"connected"`
	Device        string         `json:"device,omitempty"`
	Strategy      string         `json:"strategy,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	Retry         notices.Retry  `json:"retry"`
	Markers       []string       `json:"markers,omitempty"`
	Tasks         []string       `json:"tasks,omitempty"`
	Corrections   int            `json:"corrections"`
	HintsShown    int            `json:"hints_shown"`
	WatchdogState watchdog.State `json:"watchdog_state,omitempty"`
	Zoom          zoom.Outcome   `json:"zoom,omitempty"`
}

// Session is one AR viewing session.
type Session struct {
	ID        string
	CreatedAt time.Time
	Board     *notices.Board
	// Bridge is nil for sessions on the local platform.
	Bridge *bridge.Bridge
	// Catalog holds the last listing the page reported.
	Catalog *devices.StaticCatalog

	view       View
	negotiator *capture.Negotiator
	reselector *capture.Reselector
	watchdog   *watchdog.Watchdog
	normalizer *zoom.Normalizer
	scheduler  *Scheduler
	bus        *events.Bus
	logger     *slog.Logger
	now        func() time.Time

	negotiateMu sync.Mutex

	mu         sync.Mutex
	arReadyAt  time.Time
	lastResult *capture.Result
	lastErr    error
	markers    map[string]struct{}
	zoomResult zoom.Outcome
	closed     bool
}

func (s *Session) context(ctx context.Context) context.Context {
	return services.WithSessionID(ctx, s.ID)
}

// Negotiate runs one negotiation attempt. Attempts on one session are
// serialized. A failure raises the retry remediation on the board; a
// telephoto grant inside the grace period stores the wide camera.
func (s *Session) Negotiate(ctx context.Context) (*Outcome, error) {
	s.negotiateMu.Lock()
	defer s.negotiateMu.Unlock()

	if s.isClosed() {
		return nil, fmt.Errorf("%s: %w", s.ID, ErrNotFound)
	}

	ctx = s.context(ctx)
	logger := logging.WithContext(ctx, s.logger)

	res, err := s.negotiator.Negotiate(ctx)
	if err != nil {
		kind := capture.Classify(err)
		remedy := capture.RemediationFor(kind)
		s.Board.RequireRetry(string(kind), remedy.Message)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.bus.Publish(events.Event{Type: events.NegotiationFailed, SessionID: s.ID, Detail: string(kind)})
		return &Outcome{Kind: kind, Remediation: &remedy}, err
	}

	s.Board.ClearRetry()
	s.mu.Lock()
	s.lastResult = res
	s.lastErr = nil
	s.mu.Unlock()
	s.bus.Publish(events.Event{
		Type:      events.NegotiationSucceeded,
		SessionID: s.ID,
		DeviceID:  res.Device.ID,
		Detail:    res.Strategy,
	})

	out := &Outcome{Result: res}
	wide, switched, err := s.reselector.Check(ctx, res, s.ARRunningFor())
	if err != nil {
		logging.WarnWithContext(logger, "wide camera reselection failed", "reselection_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "telephoto camera stays selected"),
		)
	} else if switched {
		out.Reselected = &wide
	}
	return out, nil
}

// ReportCatalog stores the page's enumerateDevices listing.
func (s *Session) ReportCatalog(devs []devices.CaptureDevice) int {
	s.Catalog.Replace(devs)
	listed, _ := s.Catalog.Enumerate(context.Background())
	return len(listed)
}

// Handle applies a page event. It is called from the session's event task.
func (s *Session) Handle(ctx context.Context, evt events.Event) {
	if s.isClosed() {
		return
	}
	logger := logging.WithContext(ctx, s.logger)
	switch evt.Type {
	case events.ARReady:
		s.mu.Lock()
		if s.arReadyAt.IsZero() {
			s.arReadyAt = s.now()
		}
		s.mu.Unlock()
		s.startZoom(ctx)
		s.startWatchdog(ctx)
	case events.VideoLoaded:
		s.startWatchdog(ctx)
	case events.MarkerFound:
		s.mu.Lock()
		s.markers[evt.Detail] = struct{}{}
		s.mu.Unlock()
		logger.Debug("marker found", logging.String("marker", evt.Detail))
	case events.MarkerLost:
		s.mu.Lock()
		delete(s.markers, evt.Detail)
		s.mu.Unlock()
		logger.Debug("marker lost", logging.String("marker", evt.Detail))
	}
}

func (s *Session) startZoom(ctx context.Context) {
	if s.view == nil {
		return
	}
	s.spawn(ctx, TaskZoom, func(taskCtx context.Context) {
		outcome := s.normalizer.Normalize(taskCtx, s.view)
		s.mu.Lock()
		s.zoomResult = outcome
		s.mu.Unlock()
	})
}

func (s *Session) startWatchdog(ctx context.Context) {
	if s.view == nil {
		return
	}
	s.spawn(ctx, TaskWatchdog, s.watchdog.Run)
}

// spawn starts a session task unless the session is closed. Close flips the
// flag under the same lock before cancelling, so a task either starts in time
// to be cancelled and awaited or does not start at all.
func (s *Session) spawn(ctx context.Context, name string, fn func(context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.scheduler.Go(ctx, s.ID, name, fn)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ARRunningFor is how long AR has been ready; zero before the ARReady event.
func (s *Session) ARRunningFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.arReadyAt.IsZero() {
		return 0
	}
	return s.now().Sub(s.arReadyAt)
}

// LastResult returns the last successful negotiation.
func (s *Session) LastResult() (*capture.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult, s.lastResult != nil
}

// Snapshot summarizes the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Zoom:      s.zoomResult,
	}
	if !s.arReadyAt.IsZero() {
		at := s.arReadyAt
		snap.ARReadyAt = &at
	}
	if s.lastResult != nil {
		snap.Device = s.lastResult.Device.ID
		snap.Strategy = s.lastResult.Strategy
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	for m := range s.markers {
		snap.Markers = append(snap.Markers, m)
	}
	s.mu.Unlock()

	sort.Strings(snap.Markers)
	snap.Retry = s.Board.Retry()
	snap.HintsShown = s.Board.Shown()
	snap.Tasks = s.scheduler.Running(s.ID)
	if s.Bridge != nil {
		snap.Connected = s.Bridge.Connected()
	}
	if s.watchdog != nil {
		snap.Corrections = s.watchdog.Corrections()
		snap.WatchdogState = s.watchdog.State()
	}
	return snap
}
