package analyst

import (
	"context"
	"fmt"
	"log/slog"

	"engram/internal/events"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/xerrors"
)

// Scanner produces the title list for a drive, typically by invoking the
// rip tool in info mode (internal/ripcoord).
type Scanner interface {
	Scan(ctx context.Context, driveID string) ([]TitleInfo, error)
}

// Handler implements jobs.StageHandler for JobIdentifying.
type Handler struct {
	scanner      Scanner
	corroborator *Corroborator
	thresholds   Thresholds
	store        *store.Store
	bus          *events.Broadcaster
	logger       *slog.Logger
}

// NewHandler constructs the analyst's job-manager stage handler.
func NewHandler(scanner Scanner, corroborator *Corroborator, thresholds Thresholds, st *store.Store, bus *events.Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{scanner: scanner, corroborator: corroborator, thresholds: thresholds, store: st, bus: bus, logger: logger}
}

// Run scans the disc, classifies it, persists the titles and the job's
// detected metadata, and reports the next job state. Play-All titles are
// excluded from ripping; TV titles outside the episode cluster are flagged
// as disc extras so the matcher skips them and the organizer files them
// under Extras.
func (h *Handler) Run(ctx context.Context, job *store.Job) (store.JobState, error) {
	logger := h.logger.With(logging.Int64("job_id", job.ID), logging.String("component", "analyst"))

	titles, err := h.scanner.Scan(ctx, job.DriveID)
	if err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrExternalTool, "analyst", "scan", "could not read the disc's title list", err)
	}

	verdict := Classify(titles, job.VolumeLabel, h.thresholds)

	if h.corroborator != nil && verdict.DetectedName != "" {
		signal, lookupErr := h.corroborator.Lookup(ctx, verdict.DetectedName)
		if lookupErr != nil {
			logger.Warn("tmdb corroboration failed, continuing on heuristic alone", logging.Error(lookupErr))
		} else {
			verdict = Corroborate(verdict, signal)
		}
	}

	attrs := logging.DecisionAttrs("disc_classification", string(verdict.ContentType), verdict.ReviewReason)
	attrs = append(attrs,
		logging.Float64("confidence", verdict.Confidence),
		logging.Bool("needs_review", verdict.NeedsReview))
	logger.Info("disc classified", logging.Args(attrs...)...)

	var season *int
	if verdict.HasSeason {
		s := verdict.DetectedSeason
		season = &s
	}
	disc := max1(verdict.DetectedDisc)
	if err := h.store.SetJobAnalysis(ctx, job.ID, store.ContentType(verdict.ContentType), verdict.DetectedName, season, disc); err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrStore, "analyst", "persist analysis", "could not persist disc classification", err)
	}
	job.ContentType = store.ContentType(verdict.ContentType)
	job.DetectedTitle = verdict.DetectedName
	job.DetectedSeason = season
	job.DiscNumber = disc

	playAll := make(map[int]bool, len(verdict.PlayAllTitleIndices))
	for _, idx := range verdict.PlayAllTitleIndices {
		playAll[idx] = true
	}
	episode := make(map[int]bool, len(verdict.EpisodeTitleIndices))
	for _, idx := range verdict.EpisodeTitleIndices {
		episode[idx] = true
	}
	for _, t := range titles {
		title, err := h.store.CreateTitle(ctx, job.ID, t.Index, t.DurationSeconds, t.SizeBytes, t.ChapterCount)
		if err != nil {
			return job.State, xerrors.Wrap(xerrors.ErrStore, "analyst", "persist title", fmt.Sprintf("could not persist title %d", t.Index), err)
		}
		switch {
		case playAll[t.Index]:
			if err := h.store.SetTitleSkipped(ctx, title.ID, true); err != nil {
				return job.State, xerrors.Wrap(xerrors.ErrStore, "analyst", "flag play-all", "could not flag play-all title", err)
			}
		case job.ContentType == store.ContentTV && !episode[t.Index]:
			if err := h.store.SetTitleExtra(ctx, title.ID, true); err != nil {
				return job.State, xerrors.Wrap(xerrors.ErrStore, "analyst", "flag extra", "could not flag extra title", err)
			}
		}
	}

	if h.bus != nil {
		h.bus.BroadcastTitlesDiscovered(job.ID, len(titles), string(job.ContentType), job.DetectedTitle, season)
	}

	if verdict.NeedsReview {
		job.ReviewReason = verdict.ReviewReason
		return store.JobReviewNeeded, nil
	}
	return store.JobRipping, nil
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
