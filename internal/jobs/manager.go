package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"engram/internal/events"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/xerrors"
)

// ErrNotAwaitingReview is returned by ResumeJob when the job isn't in
// review_needed.
var ErrNotAwaitingReview = errors.New("job not awaiting review")

// ErrDriveBusy is returned by StartJob/ResumeJob when the drive already has
// an active job driver.
var ErrDriveBusy = errors.New("drive busy")

// StageHandler performs the work for one job state and reports the state to
// move to next. Returning an error makes Manager mark the job failed (via
// fail), with the error's message recorded on the job.
type StageHandler interface {
	Run(ctx context.Context, job *store.Job) (store.JobState, error)
}

// StageSet bundles the concrete handlers the manager dispatches to, one per
// job state that has work attached to it.
type StageSet struct {
	Analyst   StageHandler // runs on JobIdentifying
	RipCoord  StageHandler // runs on JobRipping
	Matcher   StageHandler // runs on JobMatching
	Organizer StageHandler // runs on JobOrganizing
}

// Manager owns the job lifecycle: creating jobs for newly inserted discs,
// advancing each through its stage handlers, and persisting every
// transition before broadcasting it. One drive runs at most one job at a
// time; Manager enforces that by tracking an active goroutine per drive ID.
type Manager struct {
	store  *store.Store
	bus    *events.Broadcaster
	logger *slog.Logger
	stages map[store.JobState]StageHandler

	mu        sync.Mutex
	baseCtx   context.Context
	active    map[string]context.CancelFunc
	cancelled map[string]bool
	wg        sync.WaitGroup
}

// NewManager constructs a Manager. Call ConfigureStages before Start.
func NewManager(st *store.Store, bus *events.Broadcaster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:     st,
		bus:       bus,
		logger:    logger,
		stages:    make(map[store.JobState]StageHandler),
		active:    make(map[string]context.CancelFunc),
		cancelled: make(map[string]bool),
	}
}

// BindContext sets the context job drivers derive their lifetime from.
// Jobs are started from short-lived request contexts (the REST surface)
// as well as the drive monitor; binding the daemon's context here keeps a
// driver alive past the request that started it while still stopping every
// driver when the daemon shuts down.
func (m *Manager) BindContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

func (m *Manager) base() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baseCtx != nil {
		return m.baseCtx
	}
	return context.Background()
}

// ConfigureStages registers the stage handlers the manager will dispatch to.
func (m *Manager) ConfigureStages(set StageSet) {
	stages := make(map[store.JobState]StageHandler, 4)
	if set.Analyst != nil {
		stages[store.JobIdentifying] = set.Analyst
	}
	if set.RipCoord != nil {
		stages[store.JobRipping] = set.RipCoord
	}
	if set.Matcher != nil {
		stages[store.JobMatching] = set.Matcher
	}
	if set.Organizer != nil {
		stages[store.JobOrganizing] = set.Organizer
	}
	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

// RecoverIncomplete fails every non-terminal job left over from a previous
// daemon run. Mid-stage state (an external MakeMKV process, an in-flight
// TMDB lookup) doesn't survive a restart, so resuming in place isn't safe;
// the drive has to be reinserted to try again.
func (m *Manager) RecoverIncomplete(ctx context.Context) error {
	all, err := m.store.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs for recovery: %w", err)
	}
	for _, job := range all {
		if job.Terminal() || job.State == store.JobReviewNeeded {
			continue
		}
		m.logger.Warn("failing job interrupted by restart",
			logging.Int64("job_id", job.ID), logging.String("state", string(job.State)))
		if err := m.store.SetJobState(ctx, job.ID, store.JobFailed, "interrupted by daemon restart", ""); err != nil {
			return fmt.Errorf("fail interrupted job %d: %w", job.ID, err)
		}
		m.bus.BroadcastJobFailed(job.ID, "interrupted by daemon restart")
	}
	return nil
}

// StartJob creates a job for a newly inserted disc and drives it through its
// stages in a background goroutine. It returns an error immediately if the
// drive already has an active job.
func (m *Manager) StartJob(ctx context.Context, driveID, volumeLabel string) (*store.Job, error) {
	existing, err := m.store.ActiveJobForDrive(ctx, driveID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStore, "jobs", "check active job", "could not check for an active job on this drive", err)
	}
	if existing != nil {
		return nil, xerrors.WrapDetail(xerrors.ErrStore, "jobs", "check active job",
			fmt.Sprintf("drive %s already has job #%d in state %s", driveID, existing.ID, existing.State),
			ErrDriveBusy, fmt.Sprintf("job_id=%d", existing.ID))
	}

	job, err := m.store.CreateJob(ctx, driveID, volumeLabel)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStore, "jobs", "create job", "could not create a job row for this disc", err)
	}
	m.bus.BroadcastJobCreated(job.ID, driveID)

	runCtx, cancel := context.WithCancel(m.base())
	m.mu.Lock()
	m.active[driveID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.active, driveID)
			m.mu.Unlock()
			cancel()
		}()
		m.drive(runCtx, job)
	}()

	return job, nil
}

// ResumeJob moves a job out of review_needed to the state a human reviewer
// picked and resumes driving it in a background goroutine. It fails if the
// job isn't currently awaiting review or already has an active driver.
func (m *Manager) ResumeJob(ctx context.Context, jobID int64, to store.JobState) (*store.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrStore, "jobs", "resume job", "could not load job", err)
	}
	if job.State != store.JobReviewNeeded {
		return nil, fmt.Errorf("%w: job #%d is not awaiting review (state=%s)", ErrNotAwaitingReview, job.ID, job.State)
	}

	m.mu.Lock()
	if _, busy := m.active[job.DriveID]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: drive %s already has an active job driver", ErrDriveBusy, job.DriveID)
	}
	m.mu.Unlock()

	logger := m.logger.With(logging.Int64("job_id", job.ID), logging.String("drive_id", job.DriveID))
	if err := m.transition(ctx, logger, job, to); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(m.base())
	m.mu.Lock()
	m.active[job.DriveID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.active, job.DriveID)
			m.mu.Unlock()
			cancel()
		}()
		m.drive(runCtx, job)
	}()

	return job, nil
}

// CancelJob stops the background driver for a drive's active job, marking
// it as a user-initiated cancel rather than a shutdown interruption: the
// driver persists JobFailed with "cancelled by user" instead of simply
// stopping in place for RecoverIncomplete to find later.
func (m *Manager) CancelJob(driveID string) {
	m.mu.Lock()
	cancel, ok := m.active[driveID]
	if ok {
		m.cancelled[driveID] = true
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelJobByID resolves jobID to its drive and cancels that drive's active
// driver, for callers (the REST surface) that only have a job id on hand.
func (m *Manager) CancelJobByID(ctx context.Context, jobID int64) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStore, "jobs", "cancel job", "could not load job", err)
	}
	if job.Terminal() {
		return fmt.Errorf("job #%d has already reached a terminal state (%s)", job.ID, job.State)
	}
	m.CancelJob(job.DriveID)
	return nil
}

func (m *Manager) consumeCancelled(driveID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancelled := m.cancelled[driveID]
	delete(m.cancelled, driveID)
	return cancelled
}

// Shutdown cancels every in-flight job driver and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.active))
	for _, cancel := range m.active {
		cancels = append(cancels, cancel)
	}
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	m.wg.Wait()
}

// drive advances a single job through identifying -> ripping -> matching ->
// organizing, stopping at review_needed or a terminal state. A freshly
// created job starts at identifying; a resumed job picks up wherever
// ResumeJob left it.
func (m *Manager) drive(ctx context.Context, job *store.Job) {
	logger := m.logger.With(logging.Int64("job_id", job.ID), logging.String("drive_id", job.DriveID))

	if job.State == store.JobIdle {
		if err := m.transition(ctx, logger, job, store.JobIdentifying); err != nil {
			return
		}
	}

	for {
		if job.Terminal() {
			if job.State == store.JobCompleted {
				m.bus.BroadcastJobCompleted(job.ID)
			}
			return
		}
		select {
		case <-ctx.Done():
			m.handleCancellation(logger, job)
			return
		default:
		}

		handler, ok := m.stages[job.State]
		if !ok {
			logger.Info("job reached a state with no handler, stopping", logging.String("state", string(job.State)))
			return
		}

		next, err := handler.Run(ctx, job)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				m.handleCancellation(logger, job)
				return
			}
			m.fail(ctx, logger, job, err)
			return
		}

		if next == store.JobReviewNeeded {
			if err := m.transition(ctx, logger, job, next); err != nil {
				return
			}
			logger.Info("job needs review, stopping automatic progression")
			return
		}

		if err := m.transition(ctx, logger, job, next); err != nil {
			return
		}
	}
}

// transition validates and persists a state move, then broadcasts it. A
// refused transition leaves the job exactly where it was; a
// broadcast failure never rolls back the persisted state: the store is the
// source of truth, the event feed is a best-effort mirror of it.
func (m *Manager) transition(ctx context.Context, logger *slog.Logger, job *store.Job, to store.JobState) error {
	if err := ValidateJobTransition(job.State, to); err != nil {
		logger.Error("refusing invalid job transition", logging.Error(err))
		return err
	}
	reason := ""
	if to == store.JobReviewNeeded {
		reason = job.ReviewReason
	}
	if err := m.store.SetJobState(ctx, job.ID, to, "", reason); err != nil {
		logger.Error("failed to persist job transition", logging.Error(err))
		return err
	}
	job.State = to
	m.bus.BroadcastJobStateChanged(job.ID, string(to), reason)
	return nil
}

// handleCancellation distinguishes a user-requested cancel from a shutdown
// interruption. A cancel persists JobFailed right away; a shutdown leaves
// the job in place for RecoverIncomplete to fail on the next daemon start.
func (m *Manager) handleCancellation(logger *slog.Logger, job *store.Job) {
	if !m.consumeCancelled(job.DriveID) {
		logger.Info("job driver stopped by shutdown")
		return
	}
	logger.Info("job cancelled by user")
	m.fail(context.Background(), logger, job, xerrors.Wrap(xerrors.ErrCancelled, "jobs", "cancel", "cancelled by user", errors.New("cancelled by user")))
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, job *store.Job, cause error) {
	message := cause.Error()
	details := xerrors.Inspect(cause)
	if details.Message != "" {
		message = details.Message
	}
	logger.Error("job failed", logging.Error(cause))
	if err := m.store.SetJobState(ctx, job.ID, store.JobFailed, message, ""); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	job.State = store.JobFailed
	m.bus.BroadcastJobFailed(job.ID, message)
}
