package notices

import (
	"sync"
	"time"
)

// Severity classifies a hint for styling.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Hint is a transient message shown over the camera view.
type Hint struct {
	Severity  Severity  `json:"severity"`
	Text      string    `json:"text"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Retry describes the manual "enable camera" remediation.
type Retry struct {
	Required bool   `json:"required"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// DebugLine is the latest negotiation state description.
type DebugLine struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Board is safe for concurrent use. Showing a hint replaces any prior one; a
// hint is dismissed once its TTL elapses.
type Board struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	hint  *Hint
	shown int
	debug DebugLine
	retry Retry
}

// NewBoard returns a board whose hints live for ttl.
func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Board{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (b *Board) WithClock(now func() time.Time) *Board {
	b.now = now
	return b
}

// Show replaces the current hint.
func (b *Board) Show(severity Severity, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	at := b.now()
	b.hint = &Hint{Severity: severity, Text: text, ShownAt: at, ExpiresAt: at.Add(b.ttl)}
	b.shown++
}

// Current returns the visible hint, if any.
func (b *Board) Current() (Hint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hint == nil {
		return Hint{}, false
	}
	if !b.now().Before(b.hint.ExpiresAt) {
		b.hint = nil
		return Hint{}, false
	}
	return *b.hint, true
}

// Shown counts hints displayed over the board's lifetime.
func (b *Board) Shown() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shown
}

// SetDebug records the negotiation state line.
func (b *Board) SetDebug(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.debug = DebugLine{Text: text, At: b.now()}
}

// Debug returns the latest debug line.
func (b *Board) Debug() DebugLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debug
}

// RequireRetry surfaces the manual retry control.
func (b *Board) RequireRetry(kind, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retry = Retry{Required: true, Kind: kind, Reason: reason}
}

// ClearRetry hides the retry control after a successful negotiation.
func (b *Board) ClearRetry() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retry = Retry{}
}

// Retry reports the remediation state.
func (b *Board) Retry() Retry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retry
}
