package v4l2

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"arcam/internal/capture"
	"arcam/internal/devices"
	"arcam/internal/logging"
)

type fakeDevice struct {
	caps     Capability
	capErr   error
	offerW   uint32
	offerH   uint32
	controls map[uint32]Control
	values   map[uint32]int32
	setErr   map[uint32]error
	closed   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		caps: Capability{Driver: "uvcvideo", Card: "USB Camera", Caps: capVideoCapture},
		controls: map[uint32]Control{
			cidZoomAbsolute:  {ID: cidZoomAbsolute, Min: 100, Max: 500, Step: 1},
			cidFocusAbsolute: {ID: cidFocusAbsolute, Min: 0, Max: 250, Step: 5},
			cidFocusAuto:     {ID: cidFocusAuto, Min: 0, Max: 1, Step: 1},
		},
		values: map[uint32]int32{cidZoomAbsolute: 300, cidFocusAbsolute: 40, cidFocusAuto: 1},
		setErr: map[uint32]error{},
	}
}

func (d *fakeDevice) QueryCap() (Capability, error) { return d.caps, d.capErr }

func (d *fakeDevice) TryFormat(width, height uint32) (uint32, uint32, error) {
	if d.offerW != 0 {
		return d.offerW, d.offerH, nil
	}
	return width, height, nil
}

func (d *fakeDevice) SetFormat(width, height uint32) (uint32, uint32, error) {
	return width, height, nil
}

func (d *fakeDevice) QueryControl(id uint32) (Control, bool, error) {
	c, ok := d.controls[id]
	return c, ok, nil
}

func (d *fakeDevice) GetControl(id uint32) (int32, error) { return d.values[id], nil }

func (d *fakeDevice) SetControl(id uint32, value int32) error {
	if err := d.setErr[id]; err != nil {
		return err
	}
	d.values[id] = value
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

func testPlatform(dev *fakeDevice, listed ...devices.CaptureDevice) *Platform {
	p := NewPlatform(devices.NewStaticCatalog(listed), logging.NewNop())
	p.open = func(string) (device, error) { return dev, nil }
	return p
}

func video(id, label string) devices.CaptureDevice {
	return devices.CaptureDevice{ID: id, Label: label, Kind: devices.KindVideo}
}

func TestRequestCodesMatchKernelHeaders(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"QUERYCAP", vidiocQueryCap, 0x80685600},
		{"G_FMT", vidiocGetFmt, 0xC0D05604},
		{"S_FMT", vidiocSetFmt, 0xC0D05605},
		{"G_CTRL", vidiocGetCtrl, 0xC008561B},
		{"S_CTRL", vidiocSetCtrl, 0xC008561C},
		{"QUERYCTRL", vidiocQueryCtrl, 0xC0445624},
		{"TRY_FMT", vidiocTryFmt, 0xC0D05640},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
}

func TestDecodeCapabilityPrefersDeviceCaps(t *testing.T) {
	buf := make([]byte, capabilitySize)
	copy(buf[0:], "uvcvideo")
	copy(buf[16:], "Integrated Camera")
	native.PutUint32(buf[84:88], capDeviceCaps|capVideoCapture)
	native.PutUint32(buf[88:92], 0x04000000)

	got := decodeCapability(buf)
	if got.Driver != "uvcvideo" || got.Card != "Integrated Camera" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if got.CanCapture() {
		t.Fatal("expected metadata node without capture support")
	}
}

func TestPlatformErrorMapsErrno(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       capture.ErrorKind
	}{
		{"eacces", unix.EACCES, "", capture.KindPermissionDenied},
		{"eperm", &openError{path: "/dev/video0", err: unix.EPERM}, "", capture.KindPermissionDenied},
		{"enoent", unix.ENOENT, "", capture.KindDeviceNotFound},
		{"enodev", unix.ENODEV, "", capture.KindDeviceNotFound},
		{"erange on control", unix.ERANGE, "zoom", capture.KindOverConstrained},
		{"einval without constraint", unix.EINVAL, "", capture.KindUnknown},
		{"ebusy", unix.EBUSY, "", capture.KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := capture.Classify(platformError(tc.err, tc.constraint)); got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPickDevicePrefersFacing(t *testing.T) {
	listed := devices.Normalize([]devices.CaptureDevice{
		video("/dev/video0", "Front Camera"),
		video("/dev/video2", "USB Camera"),
		video("/dev/video4", "Rear Camera"),
	})

	dev, err := pickDevice(listed, capture.Constraints{FacingMode: "environment"})
	if err != nil || dev.ID != "/dev/video4" {
		t.Fatalf("environment picked %q err=%v", dev.ID, err)
	}
	dev, err = pickDevice(listed, capture.Constraints{FacingMode: "user"})
	if err != nil || dev.ID != "/dev/video0" {
		t.Fatalf("user picked %q err=%v", dev.ID, err)
	}
	_, err = pickDevice(listed, capture.Constraints{DeviceID: "/dev/video9"})
	if capture.Classify(err) != capture.KindDeviceNotFound {
		t.Fatalf("expected device-not-found, got %v", err)
	}
	_, err = pickDevice(nil, capture.Constraints{})
	if capture.Classify(err) != capture.KindDeviceNotFound {
		t.Fatalf("expected device-not-found for empty listing, got %v", err)
	}
}

func TestRequestCaptureGrantsTrack(t *testing.T) {
	dev := newFakeDevice()
	p := testPlatform(dev, video("/dev/video0", "USB Camera"))

	sess, err := p.RequestCapture(context.Background(), capture.Constraints{
		DeviceID:  "/dev/video0",
		Width:     capture.Span(640, 480, 1280),
		Height:    capture.Span(480, 360, 720),
		Zoom:      capture.Span(1, 1, 1),
		FocusMode: "continuous",
	})
	if err != nil {
		t.Fatalf("RequestCapture returned error: %v", err)
	}
	track, ok := sess.VideoTrack()
	if !ok {
		t.Fatal("expected a video track")
	}
	settings := track.Settings()
	if settings.DeviceID != "/dev/video0" || settings.Width != 640 || settings.Height != 480 {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if settings.Zoom == nil || *settings.Zoom != 100 {
		t.Fatalf("expected zoom pinned to control minimum, got %v", settings.Zoom)
	}
	if settings.FocusMode != "continuous" {
		t.Fatalf("expected continuous focus, got %q", settings.FocusMode)
	}
	caps := track.Capabilities()
	if caps.Zoom == nil || caps.Zoom.Max != 500 || len(caps.FocusModes) != 2 {
		t.Fatalf("unexpected capabilities %+v", caps)
	}

	sess.Stop()
	sess.Stop()
	if dev.closed != 1 {
		t.Fatalf("expected node closed once, got %d", dev.closed)
	}
	if track.Live() {
		t.Fatal("expected track to report stopped")
	}
}

func TestRequestCaptureRejectsDriverSize(t *testing.T) {
	dev := newFakeDevice()
	dev.offerW, dev.offerH = 320, 240
	p := testPlatform(dev, video("/dev/video0", "USB Camera"))

	_, err := p.RequestCapture(context.Background(), capture.Constraints{
		Width:  capture.Span(640, 480, 1280),
		Height: capture.Span(480, 360, 720),
	})
	var perr *capture.PlatformError
	if !errors.As(err, &perr) || perr.Constraint != "width" {
		t.Fatalf("expected width over-constraint, got %v", err)
	}
	if dev.closed != 1 {
		t.Fatal("expected node closed after rejection")
	}

	dev = newFakeDevice()
	dev.offerW, dev.offerH = 320, 240
	p = testPlatform(dev, video("/dev/video0", "USB Camera"))
	if _, err := p.RequestCapture(context.Background(), capture.Constraints{
		Width:  capture.Ideal(640),
		Height: capture.Ideal(480),
	}); err != nil {
		t.Fatalf("ideal-only request should accept the driver size: %v", err)
	}
}

func TestRequestCaptureNonCaptureNode(t *testing.T) {
	dev := newFakeDevice()
	dev.caps.Caps = 0
	p := testPlatform(dev, video("/dev/video1", "Metadata"))

	_, err := p.RequestCapture(context.Background(), capture.Constraints{})
	if capture.Classify(err) != capture.KindDeviceNotFound {
		t.Fatalf("expected device-not-found, got %v", err)
	}
}

func TestRequestCaptureOpenDenied(t *testing.T) {
	p := NewPlatform(devices.NewStaticCatalog([]devices.CaptureDevice{video("/dev/video0", "")}), logging.NewNop())
	p.open = func(path string) (device, error) { return nil, &openError{path: path, err: unix.EACCES} }

	_, err := p.RequestCapture(context.Background(), capture.Constraints{})
	if capture.Classify(err) != capture.KindPermissionDenied {
		t.Fatalf("expected permission-denied, got %v", err)
	}
}

func TestApplyConstraintsZoomAndFocus(t *testing.T) {
	dev := newFakeDevice()
	p := testPlatform(dev, video("/dev/video0", "USB Camera"))
	sess, err := p.RequestCapture(context.Background(), capture.Constraints{})
	if err != nil {
		t.Fatalf("RequestCapture returned error: %v", err)
	}
	defer sess.Stop()
	track, _ := sess.VideoTrack()
	ctx := context.Background()

	if err := track.ApplyConstraints(ctx, capture.Constraints{Zoom: capture.Exact(900)}); capture.Classify(err) != capture.KindOverConstrained {
		t.Fatalf("expected exact zoom outside range to be over-constrained, got %v", err)
	}
	if err := track.ApplyConstraints(ctx, capture.Constraints{Zoom: capture.Ideal(900)}); err != nil {
		t.Fatalf("ideal zoom should clamp: %v", err)
	}
	if got := track.Settings().Zoom; got == nil || *got != 500 {
		t.Fatalf("expected zoom clamped to 500, got %v", got)
	}

	if err := track.ApplyConstraints(ctx, capture.Constraints{FocusDistance: capture.Exact(0)}); err != nil {
		t.Fatalf("focus distance: %v", err)
	}
	settings := track.Settings()
	if settings.FocusMode != "manual" || settings.FocusDistance == nil || *settings.FocusDistance != 0 {
		t.Fatalf("expected manual focus at 0, got %+v", settings)
	}

	dev.setErr[cidZoomAbsolute] = unix.EBUSY
	if err := track.ApplyConstraints(ctx, capture.Constraints{Zoom: capture.Exact(200)}); capture.Classify(err) != capture.KindUnknown {
		t.Fatalf("expected unknown kind for busy control, got %v", err)
	}

	track.Stop()
	if err := track.ApplyConstraints(ctx, capture.Constraints{Zoom: capture.Exact(200)}); err == nil {
		t.Fatal("expected error applying to stopped track")
	}
}
