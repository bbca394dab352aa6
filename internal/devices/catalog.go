package devices

import (
	"context"
	"sync"
)

// Catalog enumerates the capture devices currently exposed by the platform.
// Every call is a fresh read; callers must not cache the result across
// negotiation attempts.
type Catalog interface {
	Enumerate(ctx context.Context) ([]CaptureDevice, error)
}

// StaticCatalog serves a caller-supplied listing, typically the result of the
// browser's enumerateDevices() reported through the daemon API.
type StaticCatalog struct {
	mu   sync.RWMutex
	devs []CaptureDevice
}

// NewStaticCatalog returns a catalog holding the normalized devices.
func NewStaticCatalog(devs []CaptureDevice) *StaticCatalog {
	c := &StaticCatalog{}
	c.Replace(devs)
	return c
}

// Replace swaps the listing.
func (c *StaticCatalog) Replace(devs []CaptureDevice) {
	normalized := Normalize(devs)
	c.mu.Lock()
	c.devs = normalized
	c.mu.Unlock()
}

// Enumerate returns a copy of the current listing.
func (c *StaticCatalog) Enumerate(ctx context.Context) ([]CaptureDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CaptureDevice(nil), c.devs...), nil
}
