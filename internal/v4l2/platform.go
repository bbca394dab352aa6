package v4l2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"arcam/internal/capture"
	"arcam/internal/devices"
	"arcam/internal/logging"
)

// device is the ioctl surface of an open node.
type device interface {
	QueryCap() (Capability, error)
	TryFormat(width, height uint32) (uint32, uint32, error)
	SetFormat(width, height uint32) (uint32, uint32, error)
	QueryControl(id uint32) (Control, bool, error)
	GetControl(id uint32) (int32, error)
	SetControl(id uint32, value int32) error
	Close() error
}

// Platform negotiates with V4L2 nodes on this host.
type Platform struct {
	devices.Catalog

	logger *slog.Logger
	open   func(path string) (device, error)
}

// NewPlatform wraps a catalog whose device IDs are /dev/video paths.
func NewPlatform(catalog devices.Catalog, logger *slog.Logger) *Platform {
	return &Platform{
		Catalog: catalog,
		logger:  logging.NewComponentLogger(logger, "v4l2"),
		open:    openFile,
	}
}

// RequestCapture opens the chosen node, checks the requested size with
// TRY_FMT and commits it with S_FMT. The returned session owns the node.
func (p *Platform) RequestCapture(ctx context.Context, c capture.Constraints) (*capture.Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	listed, err := p.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate video nodes: %w", err)
	}
	target, err := pickDevice(listed, c)
	if err != nil {
		return nil, err
	}

	dev, err := p.open(target.ID)
	if err != nil {
		return nil, platformError(err, "")
	}
	track, err := p.configure(dev, target, c)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	p.logger.Debug("video node opened",
		logging.String(logging.FieldDeviceID, target.ID),
		logging.Int("width", track.settings.Width),
		logging.Int("height", track.settings.Height),
	)
	return &capture.Session{
		ID:       uuid.NewString(),
		DeviceID: target.ID,
		Tracks:   []capture.Track{track},
	}, nil
}

func pickDevice(listed []devices.CaptureDevice, c capture.Constraints) (devices.CaptureDevice, error) {
	if len(listed) == 0 {
		return devices.CaptureDevice{}, &capture.PlatformError{Name: "NotFoundError", Message: "no video capture nodes"}
	}
	if c.DeviceID != "" {
		dev, ok := devices.Find(listed, c.DeviceID)
		if !ok {
			return devices.CaptureDevice{}, &capture.PlatformError{Name: "NotFoundError", Message: "device " + c.DeviceID + " is gone"}
		}
		return dev, nil
	}
	want := devices.FacingBack
	if c.FacingMode == "user" {
		want = devices.FacingFront
	}
	for _, dev := range listed {
		if dev.Facing == want {
			return dev, nil
		}
	}
	for _, dev := range listed {
		if dev.Facing == devices.FacingUnknown {
			return dev, nil
		}
	}
	return listed[0], nil
}

func (p *Platform) configure(dev device, target devices.CaptureDevice, c capture.Constraints) (*Track, error) {
	capInfo, err := dev.QueryCap()
	if err != nil {
		return nil, platformError(err, "")
	}
	if !capInfo.CanCapture() {
		return nil, &capture.PlatformError{Name: "NotFoundError", Message: target.ID + " is not a capture device"}
	}

	t := &Track{dev: dev, path: target.ID, label: capInfo.Card}
	if err := t.applySize(c.Width, c.Height); err != nil {
		return nil, err
	}
	t.loadControls()
	if t.zoom != nil && c.Zoom != nil {
		// Pin to the widest field of view. V4L2 zoom units are driver
		// specific, so a pinned 1x maps to the control minimum.
		if err := t.setControl(cidZoomAbsolute, int32(t.zoom.Min), "zoom"); err != nil {
			p.logger.Debug("zoom pin skipped", logging.Error(err))
		}
	}
	if c.FocusMode != "" {
		if err := t.applyFocusMode(c.FocusMode); err != nil {
			p.logger.Debug("focus mode skipped", logging.Error(err))
		}
	}
	t.settings.DeviceID = target.ID
	t.settings.FacingMode = facingMode(target.Facing)
	t.refreshControls()
	return t, nil
}

func facingMode(f devices.Facing) string {
	switch f {
	case devices.FacingFront:
		return "user"
	case devices.FacingBack:
		return "environment"
	default:
		return ""
	}
}

// Track is the video track of an open V4L2 node.
type Track struct {
	dev   device
	path  string
	label string

	mu       sync.Mutex
	settings capture.Settings
	zoom     *capture.Bounds
	focus    *capture.Bounds
	autoOK   bool
	stopped  bool
	stopOnce sync.Once
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
	caps := capture.Capabilities{Zoom: t.zoom, FocusDistance: t.focus}
	if t.autoOK {
		caps.FocusModes = []string{"continuous", "manual"}
	} else if t.focus != nil {
		caps.FocusModes = []string{"manual"}
	}
	return caps
}

func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// Stop closes the node.
func (t *Track) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		_ = t.dev.Close()
	})
}

// ApplyConstraints sets size, zoom, and focus. Aspect ratio and frame rate
// are accepted and ignored.
func (t *Track) ApplyConstraints(ctx context.Context, c capture.Constraints) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.Live() {
		return &capture.PlatformError{Name: "InvalidStateError", Message: "track stopped"}
	}
	if c.Width != nil || c.Height != nil {
		if err := t.applySize(c.Width, c.Height); err != nil {
			return err
		}
	}
	if c.Zoom != nil {
		if err := t.applyRange(cidZoomAbsolute, t.zoom, c.Zoom, "zoom"); err != nil {
			return err
		}
	}
	if c.FocusMode != "" {
		if err := t.applyFocusMode(c.FocusMode); err != nil {
			return err
		}
	}
	if c.FocusDistance != nil {
		if t.autoOK {
			_ = t.setControl(cidFocusAuto, 0, "focusMode")
		}
		if err := t.applyRange(cidFocusAbsolute, t.focus, c.FocusDistance, "focusDistance"); err != nil {
			return err
		}
	}
	t.refreshControls()
	return nil
}

func (t *Track) applySize(width, height *capture.Range) error {
	cur := t.Settings()
	w, h := cur.Width, cur.Height
	if v, ok := width.Target(); ok {
		w = int(math.Round(v))
	}
	if v, ok := height.Target(); ok {
		h = int(math.Round(v))
	}
	if w <= 0 || h <= 0 {
		return nil
	}

	tw, th, err := t.dev.TryFormat(uint32(w), uint32(h))
	if err != nil {
		return platformError(err, "")
	}
	if !width.Admits(float64(tw)) {
		return &capture.PlatformError{Name: "OverconstrainedError", Constraint: "width", Message: fmt.Sprintf("driver offers width %d", tw)}
	}
	if !height.Admits(float64(th)) {
		return &capture.PlatformError{Name: "OverconstrainedError", Constraint: "height", Message: fmt.Sprintf("driver offers height %d", th)}
	}
	sw, sh, err := t.dev.SetFormat(tw, th)
	if err != nil {
		return platformError(err, "")
	}

	t.mu.Lock()
	t.settings.Width = int(sw)
	t.settings.Height = int(sh)
	if sh > 0 {
		t.settings.AspectRatio = float64(sw) / float64(sh)
	}
	t.mu.Unlock()
	return nil
}

func (t *Track) loadControls() {
	zoom, okZoom, _ := t.dev.QueryControl(cidZoomAbsolute)
	focus, okFocus, _ := t.dev.QueryControl(cidFocusAbsolute)
	_, okAuto, _ := t.dev.QueryControl(cidFocusAuto)

	t.mu.Lock()
	defer t.mu.Unlock()
	if okZoom {
		t.zoom = boundsOf(zoom)
	}
	if okFocus {
		t.focus = boundsOf(focus)
	}
	t.autoOK = okAuto
}

func boundsOf(c Control) *capture.Bounds {
	return &capture.Bounds{Min: float64(c.Min), Max: float64(c.Max), Step: float64(c.Step)}
}

func (t *Track) refreshControls() {
	t.mu.Lock()
	zoomOK, focusOK, autoOK := t.zoom != nil, t.focus != nil, t.autoOK
	t.mu.Unlock()

	var zoom, focus *float64
	mode := ""
	if zoomOK {
		if v, err := t.dev.GetControl(cidZoomAbsolute); err == nil {
			f := float64(v)
			zoom = &f
		}
	}
	if focusOK {
		if v, err := t.dev.GetControl(cidFocusAbsolute); err == nil {
			f := float64(v)
			focus = &f
		}
	}
	if autoOK {
		if v, err := t.dev.GetControl(cidFocusAuto); err == nil {
			mode = "manual"
			if v != 0 {
				mode = "continuous"
			}
		}
	}

	t.mu.Lock()
	t.settings.Zoom = zoom
	t.settings.FocusDistance = focus
	t.settings.FocusMode = mode
	t.mu.Unlock()
}

func (t *Track) applyRange(id uint32, bounds *capture.Bounds, r *capture.Range, name string) error {
	target, ok := r.Target()
	if !ok {
		return nil
	}
	if bounds == nil {
		if r.Exact != nil {
			return &capture.PlatformError{Name: "OverconstrainedError", Constraint: name, Message: name + " is not supported"}
		}
		return nil
	}
	if target < bounds.Min || target > bounds.Max {
		if r.Exact != nil {
			return &capture.PlatformError{Name: "OverconstrainedError", Constraint: name, Message: fmt.Sprintf("%s %.0f outside %.0f-%.0f", name, target, bounds.Min, bounds.Max)}
		}
		target = math.Min(math.Max(target, bounds.Min), bounds.Max)
	}
	return t.setControl(id, int32(math.Round(target)), name)
}

func (t *Track) applyFocusMode(mode string) error {
	if !t.autoOK {
		return nil
	}
	value := int32(0)
	if mode == "continuous" {
		value = 1
	}
	return t.setControl(cidFocusAuto, value, "focusMode")
}

func (t *Track) setControl(id uint32, value int32, name string) error {
	if err := t.dev.SetControl(id, value); err != nil {
		return platformError(err, name)
	}
	return nil
}

// platformError names an errno the way a browser names the equivalent
// getUserMedia failure.
func platformError(err error, constraint string) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}
	name := "NotReadableError"
	switch errno {
	case unix.EACCES, unix.EPERM:
		name = "NotAllowedError"
	case unix.ENOENT, unix.ENODEV, unix.ENXIO:
		name = "NotFoundError"
	case unix.EINVAL, unix.ERANGE:
		if constraint != "" {
			name = "OverconstrainedError"
		}
	}
	return &capture.PlatformError{Name: name, Constraint: constraint, Message: err.Error()}
}
