package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"arcam/internal/bridge"
	"arcam/internal/capture"
	"arcam/internal/config"
	"arcam/internal/devices"
	"arcam/internal/events"
	"arcam/internal/logging"
	"arcam/internal/notices"
	"arcam/internal/services"
	"arcam/internal/watchdog"
	"arcam/internal/zoom"
)

// ErrNotFound is returned for unknown or closed session ids.
var ErrNotFound = errors.New("session not found")

// Manager owns every open session.
type Manager struct {
	cfg       *config.Config
	prefs     capture.Preferences
	bus       *events.Bus
	logger    *slog.Logger
	scheduler *Scheduler
	local     capture.Platform
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocalPlatform negotiates against p instead of the session's browser
// page. Local sessions have no view, so zoom and watchdog tasks never start.
func WithLocalPlatform(p capture.Platform) Option {
	return func(m *Manager) { m.local = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns an empty manager.
func NewManager(cfg *config.Config, prefs capture.Preferences, bus *events.Bus, logger *slog.Logger, opts ...Option) *Manager {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if bus == nil {
		bus = events.NewBus()
	}
	m := &Manager{
		cfg:       cfg,
		prefs:     prefs,
		bus:       bus,
		logger:    logging.NewComponentLogger(logger, "session"),
		scheduler: NewScheduler(logger),
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bus returns the event bus sessions listen on.
func (m *Manager) Bus() *events.Bus {
	return m.bus
}

// Open creates a session and starts its event task.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ctx = services.WithSessionID(ctx, id)
	logger := logging.WithContext(ctx, m.logger)

	board := notices.NewBoard(m.cfg.HintTTL()).WithClock(m.now)
	catalog := devices.NewStaticCatalog(nil)
	s := &Session{
		ID:        id,
		CreatedAt: m.now(),
		Board:     board,
		Catalog:   catalog,
		scheduler: m.scheduler,
		bus:       m.bus,
		logger:    m.logger,
		now:       m.now,
		markers:   make(map[string]struct{}),
	}

	platform := m.local
	if platform == nil {
		s.Bridge = bridge.New(m.cfg.BridgeTimeout())
		platform = bridge.NewPlatform(s.Bridge, catalog)
		s.view = bridge.NewSurfaces(s.Bridge)
	}
	s.negotiator = capture.NewNegotiator(m.cfg, platform, m.prefs, board, m.logger)
	s.reselector = capture.NewReselector(platform, m.prefs, board, m.cfg.ARReadyGrace(), m.logger)
	s.normalizer = zoom.NewNormalizer(m.cfg, board, m.logger)
	if s.view != nil {
		s.watchdog = watchdog.New(m.cfg, id, s.view, board, m.bus, m.logger)
	}

	forSession := events.ForSession(id)
	ch, unsubscribe := m.bus.Subscribe(m.cfg.Session.EventBufferSize, func(evt events.Event) bool {
		return forSession(evt) && !readiness(evt.Type)
	})
	m.scheduler.Go(ctx, id, TaskEvents, func(taskCtx context.Context) {
		defer unsubscribe()
		for {
			select {
			case <-taskCtx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if evt.SessionID == id {
					s.Handle(taskCtx, evt)
				}
			}
		}
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("session opened",
		logging.String(logging.FieldEventType, "session_opened"),
		logging.Bool("local", m.local != nil),
	)
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return s, nil
}

// Publish forwards a page event for session id. Readiness events are
// handled before Publish returns so a full event buffer cannot lose them;
// everything else goes through the session's event task.
func (m *Manager) Publish(id string, evt events.Event) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	evt.SessionID = id
	if evt.At.IsZero() {
		evt.At = m.now()
	}
	if readiness(evt.Type) {
		s.Handle(s.context(context.Background()), evt)
	}
	m.bus.Publish(evt)
	return nil
}

// readiness reports events that start session tasks.
func readiness(t events.Type) bool {
	return t == events.ARReady || t == events.VideoLoaded
}

// List returns snapshots ordered by creation time.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Close tears a session down: its bridge fails pending calls, every task is
// cancelled and awaited, and SessionClosed is published.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.Bridge != nil {
		s.Bridge.Close()
	}
	m.scheduler.Cancel(id)
	m.bus.Publish(events.Event{Type: events.SessionClosed, SessionID: id, At: m.now()})

	m.logger.Info("session closed",
		logging.String(logging.FieldSessionID, id),
		logging.String(logging.FieldEventType, "session_closed"),
	)
	return nil
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Close(id)
	}
}
