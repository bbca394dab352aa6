package bridge

import (
	"context"
	"sync"

	"arcam/internal/capture"
	"arcam/internal/devices"
	"arcam/internal/watchdog"
)

// trackReply describes a page-side MediaStreamTrack.
type trackReply struct {
	TrackID      string               `json:"track_id"`
	Found        bool                 `json:"found"`
	Live         bool                 `json:"live"`
	Settings     capture.Settings     `json:"settings"`
	Capabilities capture.Capabilities `json:"capabilities"`
}

type applyRequest struct {
	TrackID     string              `json:"track_id"`
	Constraints capture.Constraints `json:"constraints"`
}

type trackRef struct {
	TrackID string `json:"track_id"`
}

// Platform runs capture requests in the page.
type Platform struct {
	bridge *Bridge
	// fallback serves the last page-reported listing when the page cannot
	// answer an enumerate command.
	fallback devices.Catalog
}

// NewPlatform returns a page-backed capture platform.
func NewPlatform(b *Bridge, fallback devices.Catalog) *Platform {
	return &Platform{bridge: b, fallback: fallback}
}

// Enumerate asks the page for a fresh enumerateDevices() listing.
func (p *Platform) Enumerate(ctx context.Context) ([]devices.CaptureDevice, error) {
	raw, err := p.bridge.Call(ctx, OpEnumerate, nil)
	if err != nil {
		if p.fallback != nil && ctx.Err() == nil {
			if devs, fbErr := p.fallback.Enumerate(ctx); fbErr == nil && len(devs) > 0 {
				return devs, nil
			}
		}
		return nil, err
	}
	devs, err := decode[[]devices.CaptureDevice](raw, OpEnumerate)
	if err != nil {
		return nil, err
	}
	return devices.Normalize(devs), nil
}

// RequestCapture asks the page to call getUserMedia with c.
func (p *Platform) RequestCapture(ctx context.Context, c capture.Constraints) (*capture.Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	raw, err := p.bridge.Call(ctx, OpCapture, c)
	if err != nil {
		return nil, err
	}
	reply, err := decode[trackReply](raw, OpCapture)
	if err != nil {
		return nil, err
	}
	track := newTrack(p.bridge, reply)
	return &capture.Session{
		ID:       reply.TrackID,
		DeviceID: reply.Settings.DeviceID,
		Tracks:   []capture.Track{track},
	}, nil
}

// Track is a page-side video track.
type Track struct {
	bridge *Bridge
	id     string

	mu       sync.Mutex
	settings capture.Settings
	caps     capture.Capabilities
	live     bool
}

func newTrack(b *Bridge, r trackReply) *Track {
	return &Track{bridge: b, id: r.TrackID, settings: r.Settings, caps: r.Capabilities, live: r.Live || r.TrackID != ""}
}

func (t *Track) Kind() string { return "video" }

func (t *Track) Settings() capture.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

func (t *Track) Capabilities() capture.Capabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caps
}

func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// ApplyConstraints runs applyConstraints in the page and refreshes the
// cached settings.
func (t *Track) ApplyConstraints(ctx context.Context, c capture.Constraints) error {
	raw, err := t.bridge.Call(ctx, OpApply, applyRequest{TrackID: t.id, Constraints: c})
	if err != nil {
		return err
	}
	reply, err := decode[trackReply](raw, OpApply)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	t.mu.Lock()
	t.settings = reply.Settings
	t.mu.Unlock()
	return nil
}

// Stop releases the page track. Failures are ignored: a page that went away
// has released it already.
func (t *Track) Stop() {
	t.mu.Lock()
	if !t.live {
		t.mu.Unlock()
		return
	}
	t.live = false
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), t.bridge.Timeout())
	defer cancel()
	_, _ = t.bridge.Call(ctx, OpStop, trackRef{TrackID: t.id})
}

// Surfaces measures and restyles the page's AR view.
type Surfaces struct {
	bridge *Bridge
}

// NewSurfaces returns page surfaces for b.
func NewSurfaces(b *Bridge) *Surfaces {
	return &Surfaces{bridge: b}
}

func (s *Surfaces) Sample(ctx context.Context) (watchdog.Sample, error) {
	raw, err := s.bridge.Call(ctx, OpSample, nil)
	if err != nil {
		return watchdog.Sample{}, err
	}
	return decode[watchdog.Sample](raw, OpSample)
}

func (s *Surfaces) ApplyFullBleed(ctx context.Context, d watchdog.Directive) error {
	_, err := s.bridge.Call(ctx, OpFullBleed, d)
	return err
}

func (s *Surfaces) ForceVisible(ctx context.Context) error {
	_, err := s.bridge.Call(ctx, OpForceVisible, nil)
	return err
}

func (s *Surfaces) ReloadVideo(ctx context.Context) error {
	_, err := s.bridge.Call(ctx, OpReload, nil)
	return err
}

// VideoTrack returns the AR view's live video track once the page has one.
func (s *Surfaces) VideoTrack(ctx context.Context) (capture.Track, bool, error) {
	raw, err := s.bridge.Call(ctx, OpTrack, nil)
	if err != nil {
		return nil, false, err
	}
	reply, err := decode[trackReply](raw, OpTrack)
	if err != nil || !reply.Found {
		return nil, false, err
	}
	return &viewTrack{Track: newTrack(s.bridge, reply)}, true, nil
}

// viewTrack belongs to the AR library; arcam adjusts it but never stops it.
type viewTrack struct {
	*Track
}

func (v *viewTrack) Stop() {}
