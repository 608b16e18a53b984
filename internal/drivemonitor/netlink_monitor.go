package drivemonitor

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"engram/internal/logging"
)

// NetlinkEnricher listens for udev netlink disc-media events and nudges the
// Monitor's poll loop for the affected drive, so a real insertion is picked
// up within milliseconds instead of waiting out the rest of the poll
// interval. It is a latency optimization layered over the poll loop, never
// a replacement for it: if the netlink socket is unavailable the monitor
// still detects the disc on its next scheduled poll.
type NetlinkEnricher struct {
	monitor *Monitor
	drives  map[string]struct{}
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewNetlinkEnricher constructs an enricher over the given monitor for the
// provided set of drive device paths.
func NewNetlinkEnricher(monitor *Monitor, drives []string, logger *slog.Logger) *NetlinkEnricher {
	if monitor == nil {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	set := make(map[string]struct{}, len(drives))
	for _, d := range drives {
		set[d] = struct{}{}
	}
	return &NetlinkEnricher{
		monitor: monitor,
		drives:  set,
		logger:  logger.With(logging.String("component", "netlink-monitor")),
	}
}

// Start begins listening for udev netlink events. A connection failure is
// logged and treated as non-fatal: the daemon keeps running on poll-only
// detection.
func (m *NetlinkEnricher) Start(ctx context.Context) error {
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
		m.logger.Warn("failed to connect to netlink socket; falling back to poll-only detection",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldImpact, "disc detection latency bounded by sentinel_poll_interval only"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	quit := m.quit
	go m.loop(ctx, quit)
	m.logger.Info("netlink enricher started", logging.String(logging.FieldEventType, "netlink_monitor_started"))
	return nil
}

// Stop shuts the enricher down. Safe to call on a nil or unstarted receiver.
func (m *NetlinkEnricher) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

// Running reports whether the enricher is currently listening.
func (m *NetlinkEnricher) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *NetlinkEnricher) loop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildDiscMediaMatcher())
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handle(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", logging.Error(err), logging.String(logging.FieldEventType, "netlink_monitor_error"))
		}
	}
}

// buildDiscMediaMatcher matches block-device uevents for a drive that now
// holds readable media.
func buildDiscMediaMatcher() netlink.Matcher {
	action := "change|add"
	rule := netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	}
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(rule)
	return rules
}

func (m *NetlinkEnricher) handle(uevent netlink.UEvent) {
	devname := uevent.Env["DEVNAME"]
	if devname == "" {
		if devpath := uevent.Env["DEVPATH"]; devpath != "" {
			parts := strings.Split(devpath, "/")
			if len(parts) > 0 {
				devname = "/dev/" + parts[len(parts)-1]
			}
		}
	}
	if devname == "" {
		return
	}
	if _, ok := m.drives[devname]; !ok {
		return
	}
	m.logger.Debug("disc media detected via netlink, nudging poll loop",
		logging.String("drive_id", devname),
		logging.String(logging.FieldEventType, "netlink_disc_detected"))
	m.monitor.Nudge(devname)
}
