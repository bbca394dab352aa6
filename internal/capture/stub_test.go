package capture_test

import (
	"context"
	"sync"

	"arcam/internal/capture"
	"arcam/internal/devices"
	"arcam/internal/notices"
)

type stubTrack struct {
	settings capture.Settings
	caps     capture.Capabilities
	mu       sync.Mutex
	stopped  int
	applied  []capture.Constraints
	applyErr error
}

func (t *stubTrack) Kind() string { return "video" }
func (t *stubTrack) Settings() capture.Settings { return t.settings }
func (t *stubTrack) Capabilities() capture.Capabilities { return t.caps }
func (t *stubTrack) Live() bool { return t.stopCount() == 0 }
func (t *stubTrack) ApplyConstraints(_ context.Context, c capture.Constraints) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied = append(t.applied, c)
	return t.applyErr
}

func (t *stubTrack) Stop() {
	t.mu.Lock()
	t.stopped++
	t.mu.Unlock()
}

func (t *stubTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// stubPlatform answers RequestCapture from a scripted list of errors; a nil
// entry grants a session whose track reports the requested device.
type stubPlatform struct {
	devs     []devices.CaptureDevice
	enumErr  error
	results  []error
	requests []capture.Constraints
	tracks   []*stubTrack
}

func (p *stubPlatform) Enumerate(ctx context.Context) ([]devices.CaptureDevice, error) {
	if p.enumErr != nil {
		return nil, p.enumErr
	}
	return append([]devices.CaptureDevice(nil), p.devs...), nil
}

func (p *stubPlatform) RequestCapture(_ context.Context, c capture.Constraints) (*capture.Session, error) {
	idx := len(p.requests)
	p.requests = append(p.requests, c)
	if idx < len(p.results) && p.results[idx] != nil {
		return nil, p.results[idx]
	}
	id := c.DeviceID
	if id == "" && len(p.devs) > 0 {
		id = p.devs[0].ID
	}
	zoom := 1.0
	track := &stubTrack{
		settings: capture.Settings{DeviceID: id, Width: 640, Height: 480, Zoom: &zoom},
		caps:     capture.Capabilities{Zoom: &capture.Bounds{Min: 1, Max: 5, Step: 0.1}},
	}
	p.tracks = append(p.tracks, track)
	return &capture.Session{ID: "s", DeviceID: id, Tracks: []capture.Track{track}}, nil
}

type memPrefs struct {
	id      string
	set     bool
	deletes int
	err     error
}

func (m *memPrefs) Get(context.Context) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	return m.id, m.set, nil
}

func (m *memPrefs) Set(_ context.Context, id string) error {
	m.id, m.set = id, true
	return nil
}

func (m *memPrefs) Delete(context.Context) error {
	m.id, m.set = "", false
	m.deletes++
	return nil
}

type recordingReporter struct {
	debug []string
	hints []string
}

func (r *recordingReporter) SetDebug(text string) { r.debug = append(r.debug, text) }
func (r *recordingReporter) Show(sev notices.Severity, text string) {
	r.hints = append(r.hints, string(sev)+": "+text)
}

func cam(id, label string) devices.CaptureDevice {
	return devices.CaptureDevice{ID: id, Label: label, Kind: devices.KindVideo}
}
