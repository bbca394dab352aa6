package v4l2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding from <asm-generic/ioctl.h>.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func ior(typ, nr, size uintptr) uintptr  { return ioc(iocRead, typ, nr, size) }
func iowr(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }

// Struct sizes on 64-bit Linux.
const (
	capabilitySize = 104
	formatSize     = 208
	queryCtrlSize  = 68
	controlSize    = 8
)

var (
	vidiocQueryCap  = ior('V', 0, capabilitySize)
	vidiocGetFmt    = iowr('V', 4, formatSize)
	vidiocSetFmt    = iowr('V', 5, formatSize)
	vidiocGetCtrl   = iowr('V', 27, controlSize)
	vidiocSetCtrl   = iowr('V', 28, controlSize)
	vidiocQueryCtrl = iowr('V', 36, queryCtrlSize)
	vidiocTryFmt    = iowr('V', 64, formatSize)
)

const (
	capVideoCapture = 0x00000001
	capDeviceCaps   = 0x80000000

	bufTypeVideoCapture = 1

	ctrlFlagDisabled = 0x0001

	cidCameraClassBase = 0x009a0900
	cidFocusAbsolute   = cidCameraClassBase + 10
	cidFocusAuto       = cidCameraClassBase + 12
	cidZoomAbsolute    = cidCameraClassBase + 13
)

// pix_format lives in the v4l2_format union at offset 8: the union is
// pointer-aligned.
const pixOffset = 8

var native = binary.LittleEndian

// Capability is the subset of v4l2_capability arcam reads.
type Capability struct {
	Driver string
	Card   string
	Bus    string
	Caps   uint32
}

// CanCapture reports single-planar video capture support.
func (c Capability) CanCapture() bool {
	return c.Caps&capVideoCapture != 0
}

func decodeCapability(buf []byte) Capability {
	caps := native.Uint32(buf[84:88])
	if caps&capDeviceCaps != 0 {
		caps = native.Uint32(buf[88:92])
	}
	return Capability{
		Driver: cString(buf[0:16]),
		Card:   cString(buf[16:48]),
		Bus:    cString(buf[48:80]),
		Caps:   caps,
	}
}

// Control is the subset of v4l2_queryctrl arcam reads.
type Control struct {
	ID      uint32
	Name    string
	Min     int32
	Max     int32
	Step    int32
	Default int32
	Flags   uint32
}

func decodeQueryCtrl(buf []byte) Control {
	return Control{
		ID:      native.Uint32(buf[0:4]),
		Name:    cString(buf[8:40]),
		Min:     int32(native.Uint32(buf[40:44])),
		Max:     int32(native.Uint32(buf[44:48])),
		Step:    int32(native.Uint32(buf[48:52])),
		Default: int32(native.Uint32(buf[52:56])),
		Flags:   native.Uint32(buf[56:60]),
	}
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// fileDevice is an open /dev/video node.
type fileDevice struct {
	fd   int
	path string
}

func openFile(path string) (device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &openError{path: path, err: err}
	}
	return &fileDevice{fd: fd, path: path}, nil
}

type openError struct {
	path string
	err  error
}

func (e *openError) Error() string { return fmt.Sprintf("open %s: %v", e.path, e.err) }
func (e *openError) Unwrap() error { return e.err }

func (d *fileDevice) ioctl(req uintptr, buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *fileDevice) QueryCap() (Capability, error) {
	buf := make([]byte, capabilitySize)
	if err := d.ioctl(vidiocQueryCap, buf); err != nil {
		return Capability{}, fmt.Errorf("VIDIOC_QUERYCAP: %w", err)
	}
	return decodeCapability(buf), nil
}

// format runs G_FMT, then req with the size replaced.
func (d *fileDevice) format(req uintptr, width, height uint32) (uint32, uint32, error) {
	buf := make([]byte, formatSize)
	native.PutUint32(buf[0:4], bufTypeVideoCapture)
	if err := d.ioctl(vidiocGetFmt, buf); err != nil {
		return 0, 0, fmt.Errorf("VIDIOC_G_FMT: %w", err)
	}
	native.PutUint32(buf[pixOffset:pixOffset+4], width)
	native.PutUint32(buf[pixOffset+4:pixOffset+8], height)
	if err := d.ioctl(req, buf); err != nil {
		return 0, 0, err
	}
	return native.Uint32(buf[pixOffset : pixOffset+4]), native.Uint32(buf[pixOffset+4 : pixOffset+8]), nil
}

func (d *fileDevice) TryFormat(width, height uint32) (uint32, uint32, error) {
	w, h, err := d.format(vidiocTryFmt, width, height)
	if err != nil {
		return 0, 0, fmt.Errorf("VIDIOC_TRY_FMT: %w", err)
	}
	return w, h, nil
}

func (d *fileDevice) SetFormat(width, height uint32) (uint32, uint32, error) {
	w, h, err := d.format(vidiocSetFmt, width, height)
	if err != nil {
		return 0, 0, fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}
	return w, h, nil
}

func (d *fileDevice) QueryControl(id uint32) (Control, bool, error) {
	buf := make([]byte, queryCtrlSize)
	native.PutUint32(buf[0:4], id)
	if err := d.ioctl(vidiocQueryCtrl, buf); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return Control{}, false, nil
		}
		return Control{}, false, fmt.Errorf("VIDIOC_QUERYCTRL: %w", err)
	}
	ctrl := decodeQueryCtrl(buf)
	return ctrl, ctrl.Flags&ctrlFlagDisabled == 0, nil
}

func (d *fileDevice) GetControl(id uint32) (int32, error) {
	buf := make([]byte, controlSize)
	native.PutUint32(buf[0:4], id)
	if err := d.ioctl(vidiocGetCtrl, buf); err != nil {
		return 0, fmt.Errorf("VIDIOC_G_CTRL: %w", err)
	}
	return int32(native.Uint32(buf[4:8])), nil
}

func (d *fileDevice) SetControl(id uint32, value int32) error {
	buf := make([]byte, controlSize)
	native.PutUint32(buf[0:4], id)
	native.PutUint32(buf[4:8], uint32(value))
	if err := d.ioctl(vidiocSetCtrl, buf); err != nil {
		return fmt.Errorf("VIDIOC_S_CTRL: %w", err)
	}
	return nil
}

func (d *fileDevice) Close() error {
	return unix.Close(d.fd)
}
