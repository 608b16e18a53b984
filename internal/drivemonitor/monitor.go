// Package drivemonitor watches optical drives for disc insertion and
// removal. It polls each configured drive at a fixed interval,
// comparing the drive's current presence/absence of a disc against the
// baseline established the last time it was checked, and emits an ordered
// Event for every state change.
//
// A udev netlink listener (netlink_monitor.go) layers an instant
// notification on top of the required poll loop: when it fires it just
// nudges the next poll of that drive forward rather than replacing the
// poll loop, so the monitor behaves identically whether or not netlink is
// available on the host.
package drivemonitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"engram/internal/logging"
)

// EventType distinguishes disc insertion from removal.
type EventType string

const (
	EventInserted EventType = "inserted"
	EventRemoved  EventType = "removed"
)

// Event is one (drive_id, event, volume_label) occurrence.
type Event struct {
	DriveID     string
	Type        EventType
	VolumeLabel string
}

// LabelReader reads the volume label of whatever disc currently sits in a
// drive. The lsblk-backed reader returns an error when no label can be
// read; the monitor logs that and treats the label as empty.
type LabelReader interface {
	ReadLabel(ctx context.Context, device string, timeout time.Duration) (string, error)
}

type labelReaderFunc func(ctx context.Context, device string, timeout time.Duration) (string, error)

func (f labelReaderFunc) ReadLabel(ctx context.Context, device string, timeout time.Duration) (string, error) {
	return f(ctx, device, timeout)
}

// DefaultLabelReader wraps the lsblk-backed ReadLabel function.
var DefaultLabelReader LabelReader = labelReaderFunc(ReadLabel)

// StatusChecker reports whether a drive currently holds readable media.
type StatusChecker func(device string) (DriveStatus, error)

// Options controls the monitor's tunables.
type Options struct {
	PollInterval time.Duration // default 2s
	LabelTimeout time.Duration // timeout for the lsblk label read
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.LabelTimeout <= 0 {
		o.LabelTimeout = 5 * time.Second
	}
	return o
}

type driveState struct {
	present bool
	label   string
}

// Monitor polls a fixed set of drives and emits insertion/removal events.
// Per-drive event ordering is strict; across drives, interleaving is
// permitted.
type Monitor struct {
	drives  []string
	status  StatusChecker
	labels  LabelReader
	ejector Ejector
	opts    Options
	logger  *slog.Logger

	events chan Event

	mu     sync.Mutex
	state  map[string]driveState
	nudge  map[string]chan struct{}
}

// New constructs a Monitor for the given set of drive device paths.
func New(drives []string, status StatusChecker, labels LabelReader, ejector Ejector, opts Options, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if status == nil {
		status = CheckDriveStatus
	}
	if labels == nil {
		labels = DefaultLabelReader
	}
	if ejector == nil {
		ejector = NewEjector()
	}
	nudge := make(map[string]chan struct{}, len(drives))
	for _, d := range drives {
		nudge[d] = make(chan struct{}, 1)
	}
	return &Monitor{
		drives:  drives,
		status:  status,
		labels:  labels,
		ejector: ejector,
		opts:    opts.withDefaults(),
		logger:  logger,
		events:  make(chan Event, 32),
		state:   make(map[string]driveState, len(drives)),
		nudge:   nudge,
	}
}

// Events returns the channel insertion/removal events are published on.
// The channel is closed when Start's context is cancelled and every
// per-drive loop has exited.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Start establishes a baseline for every drive, emitting a synthetic
// "inserted" for any drive that already holds media, then polls each drive
// independently at opts.PollInterval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, drive := range m.drives {
		drive := drive
		present, label, _ := m.check(ctx, drive)
		m.mu.Lock()
		m.state[drive] = driveState{present: present, label: label}
		m.mu.Unlock()
		if present {
			m.emit(Event{DriveID: drive, Type: EventInserted, VolumeLabel: label})
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.pollLoop(ctx, drive)
		}()
	}
	go func() {
		wg.Wait()
		close(m.events)
	}()
}

// Nudge requests an immediate out-of-cycle poll of a drive, used by the
// netlink enrichment signal to shorten the latency to the next scheduled
// poll without replacing it.
func (m *Monitor) Nudge(drive string) {
	m.mu.Lock()
	ch, ok := m.nudge[drive]
	m.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Eject requests the OS open the tray for drive. It never blocks the poll
// loop: callers run it from a separate goroutine or request handler.
func (m *Monitor) Eject(ctx context.Context, drive string) error {
	return m.ejector.Eject(ctx, drive)
}

func (m *Monitor) pollLoop(ctx context.Context, drive string) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	m.mu.Lock()
	nudgeCh := m.nudge[drive]
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx, drive)
		case <-nudgeCh:
			m.pollOnce(ctx, drive)
		}
	}
}

// pollOnce performs a single poll of drive and emits an event on state
// change. A poll failure logs at error level and leaves the baseline
// unchanged: it never marks the drive
// degraded, and monitoring continues on the next tick.
func (m *Monitor) pollOnce(ctx context.Context, drive string) {
	present, label, err := m.check(ctx, drive)
	if err != nil {
		return
	}

	m.mu.Lock()
	prev := m.state[drive]
	changed := prev.present != present
	if changed {
		m.state[drive] = driveState{present: present, label: label}
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	if present {
		m.emit(Event{DriveID: drive, Type: EventInserted, VolumeLabel: label})
	} else {
		m.emit(Event{DriveID: drive, Type: EventRemoved})
	}
}

func (m *Monitor) check(ctx context.Context, drive string) (present bool, label string, err error) {
	device := ExtractDevicePath(drive)
	if device == "" {
		device = drive
	}
	status, err := m.status(device)
	if err != nil {
		m.logger.Error("drive poll failed", logging.String("drive_id", drive), logging.Error(err))
		return false, "", err
	}
	if status != DriveStatusDiscOK {
		return false, "", nil
	}
	label, err = m.labels.ReadLabel(ctx, device, m.opts.LabelTimeout)
	if err != nil {
		m.logger.Warn("disc present but label read failed", logging.String("drive_id", drive), logging.Error(err))
	}
	return true, label, nil
}

func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("drive event dropped, subscriber channel full", logging.String("drive_id", ev.DriveID))
	}
}
