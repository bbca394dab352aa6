package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"arcam/internal/logging"
)

// Scheduler runs named background tasks keyed by session id. A name runs at
// most once per session until the session is cancelled.
type Scheduler struct {
	logger *slog.Logger

	mu     sync.Mutex
	groups map[string]*taskGroup
}

type taskGroup struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started map[string]bool
	running map[string]bool
}

// NewScheduler returns an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logging.NewComponentLogger(logger, "scheduler"),
		groups: make(map[string]*taskGroup),
	}
}

// Go starts fn under sessionID and name. It returns false when the name was
// already started for the session, or when the session has no tasks and
// parent is already done. parent only seeds the session's first task; later
// tasks share that session context, which outlives the seeding request.
func (s *Scheduler) Go(parent context.Context, sessionID, name string, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	group, ok := s.groups[sessionID]
	if !ok {
		// A task of a cancelled session asking for a sibling.
		if parent.Err() != nil {
			s.mu.Unlock()
			s.logger.Debug("task refused; session cancelled",
				logging.String(logging.FieldSessionID, sessionID),
				logging.String("task", name),
			)
			return false
		}
		ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
		group = &taskGroup{
			ctx:     ctx,
			cancel:  cancel,
			started: make(map[string]bool),
			running: make(map[string]bool),
		}
		s.groups[sessionID] = group
	}
	if group.started[name] {
		s.mu.Unlock()
		return false
	}
	group.started[name] = true
	group.running[name] = true
	group.wg.Add(1)
	s.mu.Unlock()

	s.logger.Debug("task started", logging.String(logging.FieldSessionID, sessionID), logging.String("task", name))
	go func() {
		defer group.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(group.running, name)
			s.mu.Unlock()
		}()
		fn(group.ctx)
	}()
	return true
}

// Running lists the tasks still running for sessionID.
func (s *Scheduler) Running(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(group.running))
	for name := range group.running {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Cancel stops every task of sessionID and waits for them to return.
func (s *Scheduler) Cancel(sessionID string) {
	s.mu.Lock()
	group, ok := s.groups[sessionID]
	if ok {
		// Cancelled under the lock so a task racing Go sees its context done.
		group.cancel()
		delete(s.groups, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	group.wg.Wait()
	s.logger.Debug("tasks cancelled", logging.String(logging.FieldSessionID, sessionID))
}
