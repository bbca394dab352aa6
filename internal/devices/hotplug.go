package devices

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"arcam/internal/events"
	"arcam/internal/logging"
)

// Publisher receives catalog change notifications.
type Publisher interface {
	Publish(events.Event)
}

// HotplugMonitor listens for udev netlink events on video4linux devices and
// publishes DevicesChanged so sessions re-read the catalog on their next
// negotiation attempt.
type HotplugMonitor struct {
	logger    *slog.Logger
	publisher Publisher

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor creates a monitor publishing to p.
func NewHotplugMonitor(logger *slog.Logger, p Publisher) *HotplugMonitor {
	return &HotplugMonitor{
		logger:    logging.NewComponentLogger(logger, "hotplug-monitor"),
		publisher: p,
	}
}

// Start begins listening. A netlink connection failure is logged and
// tolerated; catalogs are still read fresh on every negotiation.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; hotplug notifications disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "camera changes are only seen on the next negotiation"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, hotplugMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "camera hotplug detection may be affected"),
			)
		}
	}
}

// hotplugMatcher matches SUBSYSTEM=video4linux, ACTION=add|remove.
func hotplugMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(uevent netlink.UEvent) {
	node := deviceNode(uevent.Env)
	if node == "" {
		m.logger.Debug("ignoring event without device node",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	m.logger.Info("capture device changed",
		logging.String(logging.FieldEventType, "camera_hotplug"),
		logging.String(logging.FieldDeviceID, node),
		logging.String("action", string(uevent.Action)),
	)
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(events.Event{
		Type:     events.DevicesChanged,
		DeviceID: node,
		Detail:   string(uevent.Action),
	})
}
