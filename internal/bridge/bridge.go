package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"arcam/internal/capture"
)

// Op names a page command.
type Op string

const (
	OpEnumerate    Op = "enumerate"
	OpCapture      Op = "capture"
	OpApply        Op = "apply"
	OpStop         Op = "stop"
	OpTrack        Op = "track"
	OpSample       Op = "sample"
	OpFullBleed    Op = "full-bleed"
	OpForceVisible Op = "force-visible"
	OpReload       Op = "reload"
)

var (
	ErrClosed         = errors.New("bridge closed")
	ErrTimeout        = errors.New("page did not answer in time")
	ErrUnknownCommand = errors.New("unknown or already answered command")
)

// Command is delivered to the page.
type Command struct {
	ID       string          `json:"id"`
	Op       Op              `json:"op"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	IssuedAt time.Time       `json:"issued_at"`
}

// Reply is posted back by the page. Error carries the DOMException name for
// capture failures.
type Reply struct {
	Result json.RawMessage        `json:"result,omitempty"`
	Error  *capture.PlatformError `json:"error,omitempty"`
}

// abandonedRetention is how many timeouts a late reply is still absorbed.
const abandonedRetention = 10

type abandonedCommand struct {
	op Op
	at time.Time
}

// Bridge is one session's command channel. Safe for concurrent use.
type Bridge struct {
	timeout time.Duration

	mu       sync.Mutex
	queue    []Command
	pending  map[string]chan Reply
	// abandoned holds commands the page took but whose caller gave up.
	// Their late replies are absorbed; a late capture grant is stopped.
	abandoned map[string]abandonedCommand
	wake      chan struct{}
	closed   bool
	lastSeen time.Time
}

// New returns a bridge whose calls wait at most timeout for a reply.
func New(timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Bridge{
		timeout: timeout,
		pending:   make(map[string]chan Reply),
		abandoned: make(map[string]abandonedCommand),
		wake:      make(chan struct{}),
	}
}

// Timeout returns the per-command timeout.
func (b *Bridge) Timeout() time.Duration {
	return b.timeout
}

// Call sends op to the page and waits for the reply.
func (b *Bridge) Call(ctx context.Context, op Op, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", op, err)
		}
		raw = encoded
	}

	cmd := Command{ID: uuid.NewString(), Op: op, Payload: raw, IssuedAt: time.Now().UTC()}
	reply := make(chan Reply, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.pending[cmd.ID] = reply
	b.queue = append(b.queue, cmd)
	b.signalLocked()
	b.mu.Unlock()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case r, ok := <-reply:
		if !ok {
			return nil, ErrClosed
		}
		if r.Error != nil {
			return nil, r.Error
		}
		return r.Result, nil
	case <-ctx.Done():
		b.forget(cmd)
		return nil, ctx.Err()
	case <-timer.C:
		b.forget(cmd)
		return nil, fmt.Errorf("%s: %w", op, ErrTimeout)
	}
}

// Next returns queued commands, waiting up to wait for one to arrive. An
// empty result after wait is not an error.
func (b *Bridge) Next(ctx context.Context, wait time.Duration) ([]Command, error) {
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		b.mu.Lock()
		b.lastSeen = time.Now()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		if len(b.queue) > 0 {
			out := b.queue
			b.queue = nil
			b.mu.Unlock()
			return out, nil
		}
		wake := b.wake
		b.mu.Unlock()

		if timeout == nil {
			return nil, nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		}
	}
}

// Resolve delivers the page's reply for command id. A reply to an abandoned
// command is accepted and dropped; when it grants a capture the page is told
// to stop that track.
func (b *Bridge) Resolve(id string, r Reply) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.pending[id]; ok {
		delete(b.pending, id)
		ch <- r
		return nil
	}
	late, ok := b.abandoned[id]
	if !ok {
		return ErrUnknownCommand
	}
	delete(b.abandoned, id)
	if late.op == OpCapture && r.Error == nil {
		if granted, err := decode[trackReply](r.Result, OpCapture); err == nil && granted.TrackID != "" {
			b.releaseLocked(granted.TrackID)
		}
	}
	return nil
}

// releaseLocked queues a stop nobody waits for.
func (b *Bridge) releaseLocked(trackID string) {
	if b.closed {
		return
	}
	payload, err := json.Marshal(trackRef{TrackID: trackID})
	if err != nil {
		return
	}
	now := time.Now()
	cmd := Command{ID: uuid.NewString(), Op: OpStop, Payload: payload, IssuedAt: now.UTC()}
	b.abandoned[cmd.ID] = abandonedCommand{op: OpStop, at: now}
	b.queue = append(b.queue, cmd)
	b.signalLocked()
}

// Connected reports whether the page polled within the last timeout.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && !b.lastSeen.IsZero() && time.Since(b.lastSeen) < b.timeout
}

// Close fails every pending call and wakes pollers.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
	clear(b.abandoned)
	b.queue = nil
	b.signalLocked()
}

// forget drops a command whose caller stopped waiting. A command the page
// already took is remembered so its late reply can be absorbed.
func (b *Bridge) forget(cmd Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[cmd.ID]; !ok {
		return
	}
	delete(b.pending, cmd.ID)
	for i, queued := range b.queue {
		if queued.ID == cmd.ID {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return
		}
	}
	now := time.Now()
	for id, late := range b.abandoned {
		if now.Sub(late.at) > abandonedRetention*b.timeout {
			delete(b.abandoned, id)
		}
	}
	b.abandoned[cmd.ID] = abandonedCommand{op: cmd.Op, at: now}
}

func (b *Bridge) signalLocked() {
	close(b.wake)
	b.wake = make(chan struct{})
}

func decode[T any](raw json.RawMessage, op Op) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s reply: %w", op, err)
	}
	return out, nil
}
