package devices

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"

	"arcam/internal/logging"
)

// SysfsCatalog lists video4linux capture nodes that exist right now.
type SysfsCatalog struct {
	logger *slog.Logger
	// crawl is swapped in tests; it mirrors crawler.ExistingDevices.
	crawl func(queue chan crawler.Device, errs chan error, matcher netlink.Matcher) chan struct{}
}

// NewSysfsCatalog returns a catalog backed by the udev sysfs crawler.
func NewSysfsCatalog(logger *slog.Logger) *SysfsCatalog {
	return &SysfsCatalog{
		logger: logging.NewComponentLogger(logger, "device-catalog"),
		crawl:  crawler.ExistingDevices,
	}
}

// Enumerate walks sysfs for video4linux devices. Metadata nodes (index > 0)
// are skipped because they cannot deliver frames.
func (c *SysfsCatalog) Enumerate(ctx context.Context) ([]CaptureDevice, error) {
	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	quit := c.crawl(queue, errs, videoMatcher())

	var found []CaptureDevice
	for {
		select {
		case <-ctx.Done():
			abandon(quit, queue)
			return nil, ctx.Err()
		case err := <-errs:
			if err != nil {
				// The walker has already finished or never started.
				close(quit)
				return nil, fmt.Errorf("crawl sysfs: %w", err)
			}
		case dev, ok := <-queue:
			if !ok {
				sortByNode(found)
				return Normalize(found), nil
			}
			captured, keep := c.fromCrawler(dev)
			if keep {
				found = append(found, captured)
			}
		}
	}
}

// abandon stops the crawler and drains anything it was about to send so the
// walker goroutine can exit.
func abandon(quit chan struct{}, queue chan crawler.Device) {
	close(quit)
	go func() {
		for range queue {
		}
	}()
}

func (c *SysfsCatalog) fromCrawler(dev crawler.Device) (CaptureDevice, bool) {
	node := deviceNode(dev.Env)
	if node == "" {
		c.logger.Debug("ignoring video4linux entry without device node",
			logging.String("kobj", dev.KObj),
		)
		return CaptureDevice{}, false
	}
	if idx := readAttr(dev.KObj, "index"); idx != "" && idx != "0" {
		c.logger.Debug("skipping metadata node",
			logging.String(logging.FieldDeviceID, node),
			logging.String("index", idx),
		)
		return CaptureDevice{}, false
	}
	label := readAttr(dev.KObj, "name")
	return CaptureDevice{
		ID:     node,
		Label:  label,
		Kind:   KindVideo,
		Facing: InferFacing(label),
	}, true
}

func videoMatcher() netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

// deviceNode resolves the /dev path from a uevent environment. Kernel uevent
// files carry a relative DEVNAME, udev events an absolute one.
func deviceNode(env map[string]string) string {
	if name := strings.TrimSpace(env["DEVNAME"]); name != "" {
		if filepath.IsAbs(name) {
			return name
		}
		return "/dev/" + name
	}
	devpath := strings.TrimSpace(env["DEVPATH"])
	if devpath == "" {
		return ""
	}
	return "/dev/" + filepath.Base(devpath)
}

func readAttr(kobj, attr string) string {
	if kobj == "" {
		return ""
	}
	path := kobj
	if !strings.HasPrefix(path, "/sys") {
		path = filepath.Join("/sys", kobj)
	}
	data, err := os.ReadFile(filepath.Join(path, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// sortByNode orders /dev/videoN numerically so enumeration order is stable
// across crawls.
func sortByNode(devs []CaptureDevice) {
	sort.SliceStable(devs, func(i, j int) bool {
		return nodeIndex(devs[i].ID) < nodeIndex(devs[j].ID)
	})
}

func nodeIndex(id string) int {
	digits := strings.TrimLeft(filepath.Base(id), "abcdefghijklmnopqrstuvwxyz")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
