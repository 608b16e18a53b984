package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"engram/internal/api"
	"engram/internal/config"
	"engram/internal/drivemonitor"
	"engram/internal/events"
	"engram/internal/jobs"
	"engram/internal/logging"
	"engram/internal/organizer"
	"engram/internal/preflight"
	"engram/internal/ripcoord"
	"engram/internal/store"
)

// Daemon owns the long-running engramd process: it acquires the instance
// lock, starts the drive monitor and job manager, and bridges disc
// insertion events from the monitor into new jobs.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	bus    *events.Broadcaster
	jobs   *jobs.Manager

	monitor *drivemonitor.Monitor
	netlink *drivemonitor.NetlinkEnricher
	api     *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running        bool
	NetlinkActive  bool
	DatabasePath   string
	LockFilePath   string
	PID            int
}

// New constructs a daemon with its monitor and manager wired in. Callers
// assemble the job manager's stage handlers before calling this. org may be
// nil if the organizer stage hasn't been wired yet; the REST surface's
// conflict-resolution endpoint reports unavailable in that case. sim backs
// the simulate_insert testing hook and may be nil to disable it.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, bus *events.Broadcaster, mgr *jobs.Manager, monitor *drivemonitor.Monitor, org *organizer.Handler, sim *ripcoord.Simulator) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || bus == nil || mgr == nil || monitor == nil {
		return nil, errors.New("daemon requires config, store, logger, event bus, job manager, and drive monitor")
	}
	lockPath := filepath.Join(cfg.LogDir, "engram.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		bus:      bus,
		jobs:     mgr,
		monitor:  monitor,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.netlink = drivemonitor.NewNetlinkEnricher(monitor, cfg.OpticalDrives, logger)
	d.api = api.NewServer(cfg, st, mgr, bus, org, sim, logging.NewComponentLogger(logger, "api"))
	d.api.SetEject(d.Eject)
	return d, nil
}

// AttachLogStream exposes a log hub over the REST surface's /api/logs
// endpoint.
func (d *Daemon) AttachLogStream(hub *logging.StreamHub) {
	d.api.SetLogStream(hub)
}

// Start acquires the instance lock, fails over any job interrupted by a
// previous daemon run, and begins monitoring drives for insertions.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another engram daemon instance is already running")
	}

	for _, check := range []preflight.Status{
		preflight.CheckDirectoryAccess("staging_dir", d.cfg.StagingDir),
		preflight.CheckDirectoryAccess("movies_library_dir", d.cfg.MoviesLibraryDir),
		preflight.CheckDirectoryAccess("tv_library_dir", d.cfg.TVLibraryDir),
	} {
		if !check.Available {
			_ = d.lock.Unlock()
			return fmt.Errorf("%s: %s", check.Name, check.Detail)
		}
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.jobs.BindContext(d.ctx)

	if err := d.jobs.RecoverIncomplete(d.ctx); err != nil {
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("recover incomplete jobs: %w", err)
	}

	d.monitor.Start(d.ctx)
	go d.pumpDriveEvents(d.ctx)

	if err := d.api.Start(d.ctx); err != nil {
		d.logger.Warn("api server failed to start; REST/WS surface stays off",
			logging.Error(err), logging.String(logging.FieldEventType, "api_start_failed"))
	}

	if d.netlink != nil {
		if err := d.netlink.Start(d.ctx); err != nil {
			d.logger.Warn("netlink enricher failed to start; drive detection stays poll-only",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_start_failed"))
		}
	}

	d.running.Store(true)
	d.logger.Info("engram daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels background work and releases the instance lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}
	if d.netlink != nil {
		d.netlink.Stop()
	}
	d.api.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.jobs.Shutdown()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("engram daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop(context.Background())
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// pumpDriveEvents turns drive insertion events into new jobs, and drive
// removal events into a best-effort log line. A drive that already has an
// active job is a normal, not a fatal, outcome: the monitor doesn't know
// about job state, so it is the daemon's job to de-duplicate here.
func (d *Daemon) pumpDriveEvents(ctx context.Context) {
	for ev := range d.monitor.Events() {
		switch ev.Type {
		case drivemonitor.EventInserted:
			d.bus.BroadcastDriveInserted(ev.DriveID, ev.VolumeLabel)
			if _, err := d.jobs.StartJob(ctx, ev.DriveID, ev.VolumeLabel); err != nil {
				d.logger.Info("disc insertion did not start a new job",
					logging.String("drive_id", ev.DriveID), logging.Error(err))
			}
		case drivemonitor.EventRemoved:
			d.bus.BroadcastDriveEjected(ev.DriveID)
			d.logger.Info("disc removed", logging.String("drive_id", ev.DriveID))
		}
	}
}

// Eject requests the OS open the tray for drive, first cancelling any
// active job so ripping doesn't race the ejection.
func (d *Daemon) Eject(ctx context.Context, drive string) error {
	d.jobs.CancelJob(drive)
	return d.monitor.Eject(ctx, drive)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	netlinkActive := false
	if d.netlink != nil {
		netlinkActive = d.netlink.Running()
	}
	return Status{
		Running:       d.running.Load(),
		NetlinkActive: netlinkActive,
		DatabasePath:  filepath.Join(d.cfg.LogDir, "engram.db"),
		LockFilePath:  d.lockPath,
		PID:           os.Getpid(),
	}
}
