package organizer

import (
	"context"
	"fmt"
	"log/slog"

	"engram/internal/events"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/xerrors"
)

// Handler implements jobs.StageHandler for JobOrganizing: it files every
// matched, non-skipped title into the movies or TV library, applies the
// configured naming conflict policy, and reports the job's final state.
//
// A title whose destination collides under the "ask" policy isn't moved:
// its candidate destination is recorded, the title transitions to
// TitleReview, and the job parks in review_needed until
// ResolvePendingConflict picks a final disposition for each such title.
type Handler struct {
	store       *store.Store
	bus         *events.Broadcaster
	logger      *slog.Logger
	moviesRoot  string
	tvRoot      string
	defaultPolicy string
}

// NewHandler constructs the organize-stage job-manager handler.
func NewHandler(st *store.Store, bus *events.Broadcaster, logger *slog.Logger, moviesRoot, tvRoot, defaultPolicy string) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if defaultPolicy == "" {
		defaultPolicy = "ask"
	}
	return &Handler{store: st, bus: bus, logger: logger, moviesRoot: moviesRoot, tvRoot: tvRoot, defaultPolicy: defaultPolicy}
}

// Run files every matched, non-skipped title for job into the library.
// Titles still sitting in REVIEW (an unresolved match) are left exactly
// where they are; if any remain after the pass, the job parks in
// review_needed instead of completing.
func (h *Handler) Run(ctx context.Context, job *store.Job) (store.JobState, error) {
	logger := h.logger.With(logging.Int64("job_id", job.ID), logging.String("component", "organizer"))

	titles, err := h.store.ListTitlesByJob(ctx, job.ID)
	if err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrStore, "organizer", "list titles", "could not load titles for this job", err)
	}

	organized := 0
	pendingReview := 0
	extraIndex := 0
	season := 1
	if job.DetectedSeason != nil {
		season = *job.DetectedSeason
	}

	for _, title := range titles {
		if title.Skipped || title.RippedPath == "" {
			continue
		}
		if title.State == store.TitleReview {
			pendingReview++
			continue
		}
		if title.State != store.TitleMatched {
			continue
		}

		dst, err := h.destinationFor(job, title, season, &extraIndex)
		if err != nil {
			logger.Error("could not compute destination", logging.Error(err), logging.Int64("title_id", title.ID))
			if err := h.store.SetTitleState(ctx, title.ID, store.TitleFailed); err != nil {
				logger.Warn("persist title failure failed", logging.Error(err))
			}
			h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(store.TitleFailed))
			continue
		}

		policy := h.defaultPolicy
		if title.ConflictChoice != "" {
			policy = string(title.ConflictChoice)
		}
		outcome, err := resolveDestination(dst, policy)
		if err != nil {
			return job.State, xerrors.Wrap(xerrors.ErrOrganization, "organizer", "resolve conflict", "could not resolve a naming conflict", err)
		}

		switch {
		case outcome.Skip:
			if err := h.store.SetTitleConflictChoice(ctx, title.ID, store.ConflictSkip); err != nil {
				logger.Warn("persist conflict choice failed", logging.Error(err))
			}
			if err := h.store.SetTitleSkipped(ctx, title.ID, true); err != nil {
				logger.Warn("persist title skip failed", logging.Error(err))
			}
			if err := h.store.SetTitleState(ctx, title.ID, store.TitleComplete); err != nil {
				logger.Warn("persist title state failed", logging.Error(err))
			}
			h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(store.TitleComplete))
			organized++

		case outcome.Review:
			if err := h.store.SetTitleConflictChoice(ctx, title.ID, store.ConflictAsk); err != nil {
				logger.Warn("persist conflict choice failed", logging.Error(err))
			}
			if err := h.store.SetTitleOrganized(ctx, title.ID, title.RippedPath, outcome.Path); err != nil {
				logger.Warn("persist candidate destination failed", logging.Error(err))
			}
			if err := h.store.SetTitleState(ctx, title.ID, store.TitleReview); err != nil {
				logger.Warn("persist title state failed", logging.Error(err))
			}
			h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(store.TitleReview))
			logger.Warn("destination already occupied, leaving title staged for manual placement",
				logging.Int64("title_id", title.ID), logging.String("candidate", outcome.Path))
			pendingReview++

		default:
			if err := atomicMove(title.RippedPath, outcome.Path); err != nil {
				logger.Error("move failed", logging.Error(err), logging.Int64("title_id", title.ID))
				if err := h.store.SetTitleState(ctx, title.ID, store.TitleFailed); err != nil {
					logger.Warn("persist title failure failed", logging.Error(err))
				}
				h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(store.TitleFailed))
				continue
			}
			choice := store.ConflictResolution(policy)
			if choice == "" {
				choice = store.ConflictRename
			}
			if err := h.store.SetTitleConflictChoice(ctx, title.ID, choice); err != nil {
				logger.Warn("persist conflict choice failed", logging.Error(err))
			}
			if err := h.store.SetTitleOrganized(ctx, title.ID, title.RippedPath, outcome.Path); err != nil {
				logger.Warn("persist organized paths failed", logging.Error(err))
			}
			if err := h.store.SetTitleState(ctx, title.ID, store.TitleComplete); err != nil {
				logger.Warn("persist title state failed", logging.Error(err))
			}
			h.bus.BroadcastTitleStateChanged(job.ID, title.ID, string(store.TitleComplete))
			organized++
		}
	}

	if pendingReview > 0 {
		logger.Info("titles awaiting manual placement, parking job for review", logging.Int("pending_review", pendingReview))
		job.ReviewReason = "One or more titles have a naming conflict or unresolved match awaiting a decision"
		return store.JobReviewNeeded, nil
	}
	if organized == 0 {
		return job.State, xerrors.Wrap(xerrors.ErrOrganization, "organizer", "organize", "no titles were organized", nil)
	}
	return store.JobCompleted, nil
}

// ResolvePendingConflict performs the deferred move for a title the organize
// stage left staged under the "ask" policy. choice picks how to handle the
// still-occupied destination: overwrite it, rename around it, or skip the
// title and leave it in staging permanently.
func (h *Handler) ResolvePendingConflict(ctx context.Context, titleID int64, choice store.ConflictResolution) error {
	title, err := h.store.GetTitle(ctx, titleID)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrStore, "organizer", "resolve pending conflict", "could not load title", err)
	}
	if title.ConflictChoice != store.ConflictAsk {
		return fmt.Errorf("title %d has no pending conflict", titleID)
	}
	from := title.OrganizedFrom
	candidate := title.OrganizedTo
	if from == "" || candidate == "" {
		return fmt.Errorf("title %d is missing its staged paths", titleID)
	}

	switch choice {
	case store.ConflictSkip:
		if err := h.store.SetTitleConflictChoice(ctx, titleID, store.ConflictSkip); err != nil {
			return xerrors.Wrap(xerrors.ErrStore, "organizer", "resolve pending conflict", "could not persist conflict choice", err)
		}
		if err := h.store.SetTitleSkipped(ctx, titleID, true); err != nil {
			return xerrors.Wrap(xerrors.ErrStore, "organizer", "resolve pending conflict", "could not persist title skip", err)
		}

	case store.ConflictOverwrite, store.ConflictRename:
		dst := candidate
		if choice == store.ConflictRename {
			renamed, err := firstFreeName(candidate)
			if err != nil {
				return xerrors.Wrap(xerrors.ErrOrganization, "organizer", "resolve pending conflict", "could not find a free renamed destination", err)
			}
			dst = renamed
		}
		if err := atomicMove(from, dst); err != nil {
			return xerrors.Wrap(xerrors.ErrOrganization, "organizer", "resolve pending conflict", "move failed", err)
		}
		if err := h.store.SetTitleConflictChoice(ctx, titleID, choice); err != nil {
			return xerrors.Wrap(xerrors.ErrStore, "organizer", "resolve pending conflict", "could not persist conflict choice", err)
		}
		if err := h.store.SetTitleOrganized(ctx, titleID, from, dst); err != nil {
			return xerrors.Wrap(xerrors.ErrStore, "organizer", "resolve pending conflict", "could not persist organized paths", err)
		}

	default:
		return fmt.Errorf("unsupported conflict resolution %q", choice)
	}

	if err := h.store.SetTitleState(ctx, titleID, store.TitleComplete); err != nil {
		return xerrors.Wrap(xerrors.ErrStore, "organizer", "resolve pending conflict", "could not persist title state", err)
	}
	h.bus.BroadcastTitleStateChanged(title.JobID, titleID, string(store.TitleComplete))
	return nil
}

// destinationFor computes the library path for a title based on the job's
// detected content type, advancing extraIndex for each TV extra assigned.
func (h *Handler) destinationFor(job *store.Job, title *store.Title, season int, extraIndex *int) (string, error) {
	if job.ContentType == store.ContentTV {
		if title.IsExtra {
			*extraIndex++
			return ExtraPath(h.tvRoot, job.DetectedTitle, season, job.DiscNumber, *extraIndex), nil
		}
		if title.MatchedEpisode == "" {
			return "", fmt.Errorf("title %d has no matched episode code", title.ID)
		}
		return EpisodePath(h.tvRoot, job.DetectedTitle, season, title.MatchedEpisode), nil
	}
	return MoviePath(h.moviesRoot, job.DetectedTitle), nil
}
