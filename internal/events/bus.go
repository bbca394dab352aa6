package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Type enumerates the signals exchanged during an AR session.
type Type string

const (
	MarkerFound          Type = "marker-found"
	MarkerLost           Type = "marker-lost"
	ARReady              Type = "ar-ready"
	VideoLoaded          Type = "video-loaded"
	DevicesChanged       Type = "devices-changed"
	NegotiationSucceeded Type = "negotiation-succeeded"
	NegotiationFailed    Type = "negotiation-failed"
	LayoutCorrected      Type = "layout-corrected"
	SessionClosed        Type = "session-closed"
)

var knownTypes = map[Type]struct{}{
	MarkerFound:          {},
	MarkerLost:           {},
	ARReady:              {},
	VideoLoaded:          {},
	DevicesChanged:       {},
	NegotiationSucceeded: {},
	NegotiationFailed:    {},
	LayoutCorrected:      {},
	SessionClosed:        {},
}

// ParseType validates an event type received from outside the process.
func ParseType(value string) (Type, bool) {
	t := Type(value)
	_, ok := knownTypes[t]
	return t, ok
}

// Event is one signal. SessionID is empty for daemon-wide events such as
// hotplug notifications.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

type subscriber struct {
	ch     chan Event
	filter func(Event) bool
}

// Bus is an in-process fan-out of events.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	closed  bool
	dropped atomic.Uint64
	now     func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber), now: time.Now}
}

// Subscribe registers a listener. The returned cancel func closes the channel
// and is safe to call more than once.
func (b *Bus) Subscribe(buffer int, filter func(Event) bool) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
}

// ForSession returns a filter matching events of one session plus
// daemon-wide events.
func ForSession(sessionID string) func(Event) bool {
	return func(evt Event) bool {
		return evt.SessionID == "" || evt.SessionID == sessionID
	}
}

// Publish delivers evt to every matching subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = b.now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
