package devices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
)

func fakeKObj(t *testing.T, name, index string) string {
	t.Helper()
	dir := t.TempDir()
	if name != "" {
		if err := os.WriteFile(filepath.Join(dir, "name"), []byte(name+"\n"), 0o644); err != nil {
			t.Fatalf("write name: %v", err)
		}
	}
	if index != "" {
		if err := os.WriteFile(filepath.Join(dir, "index"), []byte(index+"\n"), 0o644); err != nil {
			t.Fatalf("write index: %v", err)
		}
	}
	return dir
}

func stubCrawl(devs []crawler.Device, crawlErr error) func(chan crawler.Device, chan error, netlink.Matcher) chan struct{} {
	return func(queue chan crawler.Device, errs chan error, matcher netlink.Matcher) chan struct{} {
		quit := make(chan struct{}, 1)
		if crawlErr != nil {
			errs <- crawlErr
			return quit
		}
		go func() {
			defer close(queue)
			for _, dev := range devs {
				if matcher != nil && !matcher.EvaluateEnv(dev.Env) {
					continue
				}
				select {
				case queue <- dev:
				case <-quit:
					return
				}
			}
		}()
		return quit
	}
}

func TestSysfsCatalogEnumerate(t *testing.T) {
	cat := NewSysfsCatalog(nil)
	cat.crawl = stubCrawl([]crawler.Device{
		{KObj: fakeKObj(t, "Rear Tele 3x", "0"), Env: map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "video10"}},
		{KObj: fakeKObj(t, "Integrated Camera", "0"), Env: map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "video2"}},
		{KObj: fakeKObj(t, "Integrated Camera", "1"), Env: map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "video3"}},
		{KObj: fakeKObj(t, "", ""), Env: map[string]string{"SUBSYSTEM": "video4linux", "DEVNAME": "/dev/video0"}},
		{KObj: fakeKObj(t, "sda", ""), Env: map[string]string{"SUBSYSTEM": "block", "DEVNAME": "sda"}},
	}, nil)

	devs, err := cat.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}
	want := []string{"/dev/video0", "/dev/video2", "/dev/video10"}
	if len(devs) != len(want) {
		t.Fatalf("expected %v, got %+v", want, devs)
	}
	for i, id := range want {
		if devs[i].ID != id {
			t.Fatalf("device %d: got %s want %s", i, devs[i].ID, id)
		}
	}
	if devs[0].Labeled() {
		t.Fatalf("expected unlabeled node kept, got %+v", devs[0])
	}
	if devs[2].Facing != FacingBack || devs[2].Label != "Rear Tele 3x" {
		t.Fatalf("unexpected telephoto entry %+v", devs[2])
	}
}

func TestSysfsCatalogPropagatesCrawlError(t *testing.T) {
	cat := NewSysfsCatalog(nil)
	cat.crawl = stubCrawl(nil, errors.New("no sysfs"))
	if _, err := cat.Enumerate(context.Background()); err == nil {
		t.Fatal("expected crawl error")
	}
}

func TestDeviceNode(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"DEVNAME": "video0"}, "/dev/video0"},
		{map[string]string{"DEVNAME": "/dev/video4"}, "/dev/video4"},
		{map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-1/video4linux/video7"}, "/dev/video7"},
		{map[string]string{}, ""},
	}
	for _, tt := range tests {
		if got := deviceNode(tt.env); got != tt.want {
			t.Errorf("deviceNode(%v) = %q, want %q", tt.env, got, tt.want)
		}
	}
}
