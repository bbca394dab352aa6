package notices

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestShowReplacesPriorHint(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	board := NewBoard(5 * time.Second).WithClock(clock.Now)

	board.Show(SeverityInfo, "first")
	clock.Advance(time.Second)
	board.Show(SeverityWarning, "second")

	hint, ok := board.Current()
	if !ok || hint.Text != "second" || hint.Severity != SeverityWarning {
		t.Fatalf("unexpected hint %+v ok=%v", hint, ok)
	}
	if board.Shown() != 2 {
		t.Fatalf("expected 2 shown, got %d", board.Shown())
	}
}

func TestHintExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	board := NewBoard(5 * time.Second).WithClock(clock.Now)

	board.Show(SeveritySuccess, "zoom reset")
	clock.Advance(4999 * time.Millisecond)
	if _, ok := board.Current(); !ok {
		t.Fatal("expected hint still visible")
	}
	clock.Advance(time.Millisecond)
	if _, ok := board.Current(); ok {
		t.Fatal("expected hint dismissed at ttl")
	}
}

func TestReplacementRestartsTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	board := NewBoard(5 * time.Second).WithClock(clock.Now)

	board.Show(SeverityInfo, "old")
	clock.Advance(4 * time.Second)
	board.Show(SeverityInfo, "new")
	clock.Advance(4 * time.Second)
	if hint, ok := board.Current(); !ok || hint.Text != "new" {
		t.Fatalf("expected replacement to carry its own ttl, got %+v ok=%v", hint, ok)
	}
}

func TestDebugAndRetry(t *testing.T) {
	board := NewBoard(0)
	board.SetDebug("catalog: 3 devices")
	if got := board.Debug().Text; got != "catalog: 3 devices" {
		t.Fatalf("unexpected debug %q", got)
	}
	if board.Retry().Required {
		t.Fatal("expected no retry by default")
	}
	board.RequireRetry("permission-denied", "camera permission denied")
	if r := board.Retry(); !r.Required || r.Kind != "permission-denied" {
		t.Fatalf("unexpected retry %+v", r)
	}
	board.ClearRetry()
	if board.Retry().Required {
		t.Fatal("expected retry cleared")
	}
}
