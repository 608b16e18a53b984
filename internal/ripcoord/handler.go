package ripcoord

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"engram/internal/events"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/xerrors"
)

// RipService is the extraction surface of a Coordinator (or the Router that
// fronts a real and a simulated one).
type RipService interface {
	Rip(ctx context.Context, driveID string, selected []SelectedTitle, stagingDir string) (<-chan RipEvent, error)
}

// Handler implements jobs.StageHandler for JobRipping: it selects the
// non-skipped titles the analyst discovered, rips them one at a time, and
// keeps the job/title rows and the event bus in sync with progress.
type Handler struct {
	coordinator RipService
	stagingRoot string
	store       *store.Store
	bus         *events.Broadcaster
	logger      *slog.Logger
	sampler     *logging.ProgressSampler
}

// NewHandler constructs the rip-stage job-manager handler.
func NewHandler(coordinator RipService, stagingRoot string, st *store.Store, bus *events.Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		coordinator: coordinator,
		stagingRoot: stagingRoot,
		store:       st,
		bus:         bus,
		logger:      logger,
		sampler:     logging.NewProgressSampler(10),
	}
}

// Run drives the rip() event stream for every selected title on job and
// reports the next job state. A title-scoped failure doesn't fail the job as
// long as at least one other title finishes; a job-scoped failure (nothing
// ripped) does.
func (h *Handler) Run(ctx context.Context, job *store.Job) (store.JobState, error) {
	logger := h.logger.With(logging.Int64("job_id", job.ID), logging.String("component", "ripcoord"))

	titles, err := h.store.ListTitlesByJob(ctx, job.ID)
	if err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrStore, "ripcoord", "list titles", "could not load titles for this job", err)
	}

	stagingDir := filepath.Join(h.stagingRoot, fmt.Sprintf("job-%d", job.ID))
	if err := h.store.SetJobStaging(ctx, job.ID, stagingDir); err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrStore, "ripcoord", "persist staging path", "could not persist the staging directory", err)
	}

	byIndex := make(map[int]*store.Title, len(titles))
	var selected []SelectedTitle
	for _, t := range titles {
		if t.Skipped {
			continue
		}
		byIndex[t.TitleIndex] = t
		selected = append(selected, SelectedTitle{Index: t.TitleIndex, ExpectedSize: t.ExpectedSize})
	}
	if len(selected) == 0 {
		return job.State, xerrors.Wrap(xerrors.ErrExternalTool, "ripcoord", "select titles", "no titles were left to rip after skipping play-all candidates", nil)
	}

	stream, err := h.coordinator.Rip(ctx, job.DriveID, selected, stagingDir)
	if err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrExternalTool, "ripcoord", "start rip", "could not start the rip", err)
	}

	totalExpected := int64(0)
	for _, s := range selected {
		totalExpected += s.ExpectedSize
	}
	speedCalcs := make(map[int]*SpeedCalculator, len(selected))
	cumulativeByTitle := make(map[int]int64, len(selected))
	finishedCount := 0
	startedCount := 0
	var firstFatal error

	for ev := range stream {
		switch ev.Type {
		case EventTitleStarted:
			title := byIndex[ev.TitleIndex]
			if title == nil {
				continue
			}
			speedCalcs[ev.TitleIndex] = NewSpeedCalculator(ev.ExpectedSize)
			startedCount++
			if err := h.store.SetTitleState(ctx, title.ID, store.TitleRipping); err != nil {
				logger.Warn("persist title state failed", logging.Error(err))
				continue
			}
			h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(store.TitleRipping))

		case EventBytesWritten:
			cumulativeByTitle[ev.TitleIndex] = ev.Bytes
			if calc := speedCalcs[ev.TitleIndex]; calc != nil {
				calc.Observe(time.Now(), ev.Bytes)
			}
			h.reportProgress(ctx, job, selected, cumulativeByTitle, totalExpected, speedCalcs[ev.TitleIndex], startedCount, logger)

		case EventTitleFinished:
			title := byIndex[ev.TitleIndex]
			if title == nil {
				continue
			}
			actualSize := cumulativeByTitle[ev.TitleIndex]
			if err := h.store.SetTitleRipResult(ctx, title.ID, actualSize, "", ev.OutputPath); err != nil {
				logger.Warn("persist rip result failed", logging.Error(err))
			}
			// Movie titles and disc extras skip the matching stage entirely;
			// only TV episode titles enter MATCHING.
			next := store.TitleMatching
			if job.ContentType != store.ContentTV || title.IsExtra {
				next = store.TitleMatched
			}
			if err := h.store.SetTitleState(ctx, title.ID, next); err != nil {
				logger.Warn("persist title state failed", logging.Error(err))
			}
			h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(next))
			finishedCount++

		case EventFatalError:
			if ev.TitleIndex >= 0 {
				title := byIndex[ev.TitleIndex]
				if title != nil {
					if err := h.store.SetTitleState(ctx, title.ID, store.TitleFailed); err != nil {
						logger.Warn("persist title failure failed", logging.Error(err))
					}
					h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(store.TitleFailed))
				}
				logger.Warn("title failed to rip", logging.Int("title_index", ev.TitleIndex), logging.String("reason", ev.Message))
				continue
			}
			if firstFatal == nil {
				firstFatal = fmt.Errorf("%s", ev.Message)
			}
		}
	}

	if finishedCount == 0 {
		message := "no titles finished ripping"
		if firstFatal != nil {
			message = firstFatal.Error()
		}
		return job.State, xerrors.Wrap(xerrors.ErrExternalTool, "ripcoord", "rip", message, firstFatal)
	}

	if job.ContentType != store.ContentTV {
		return store.JobOrganizing, nil
	}
	return store.JobMatching, nil
}

func (h *Handler) reportProgress(ctx context.Context, job *store.Job, selected []SelectedTitle, cumulative map[int]int64, totalExpected int64, calc *SpeedCalculator, startedCount int, logger *slog.Logger) {
	var totalDone int64
	for _, s := range selected {
		totalDone += cumulative[s.Index]
	}
	pct := 0
	if totalExpected > 0 {
		pct = int(float64(totalDone) / float64(totalExpected) * 100)
		if pct > 100 {
			pct = 100
		}
	}
	speedStr, eta := "", 0
	if calc != nil {
		speedStr = calc.SpeedString()
		eta = calc.ETASeconds()
	}
	if err := h.store.SetJobProgress(ctx, job.ID, pct, speedStr, eta, startedCount, len(selected)); err != nil {
		logger.Warn("persist progress failed", logging.Error(err))
		return
	}
	if h.sampler.ShouldLog(float64(pct), "rip", speedStr) {
		logger.Info("rip progress",
			logging.String(logging.FieldProgressStage, "rip"),
			logging.Int(logging.FieldProgressPercent, pct),
			logging.String(logging.FieldProgressMessage, speedStr),
			logging.Int(logging.FieldProgressETA, eta))
	}
	h.bus.BroadcastJobProgress(job.ID, pct, speedStr)
}
