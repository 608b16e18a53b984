package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"engram/internal/events"
	"engram/internal/logging"
	"engram/internal/store"
	"engram/internal/xerrors"
)

// Options controls the matcher's tunables. MinConfidence is the score
// floor a winning candidate must clear; MinScoreMargin is the gap between
// the best and second-best candidate below which a selection is logged as
// ambiguous even though the ranked key still picks a winner.
type Options struct {
	CacheDir       string
	WorkDir        string
	ChunkConfig    ChunkConfig
	MinConfidence  float64
	MinScoreMargin float64
	MaxConcurrent  int
}

// DefaultOptions returns the stock matcher tunables.
func DefaultOptions() Options {
	return Options{
		ChunkConfig:    DefaultChunkConfig(),
		MinConfidence:  0.55,
		MinScoreMargin: 0.03,
		MaxConcurrent:  2,
	}
}

func (o Options) withDefaults() Options {
	if o.ChunkConfig.ChunkSeconds == 0 {
		o.ChunkConfig = DefaultChunkConfig()
	}
	if o.MinConfidence == 0 {
		o.MinConfidence = 0.55
	}
	if o.MinScoreMargin <= 0 || o.MinScoreMargin >= 1 {
		o.MinScoreMargin = 0.03
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 2
	}
	return o
}

// Handler implements jobs.StageHandler for JobMatching. Movie jobs pass
// through untouched; TV jobs build a subtitle corpus once, fingerprint
// every ripped title concurrently under a semaphore, then resolve
// cross-title conflicts before reporting the next job state.
type Handler struct {
	store       *store.Store
	bus         *events.Broadcaster
	counter     EpisodeCounter
	providers   []SubtitleProvider
	transcriber Transcriber
	runner      CommandRunner
	opts        Options
	logger      *slog.Logger
}

// NewHandler constructs the matching-stage job-manager handler.
func NewHandler(st *store.Store, bus *events.Broadcaster, counter EpisodeCounter, providers []SubtitleProvider, transcriber Transcriber, runner CommandRunner, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:       st,
		bus:         bus,
		counter:     counter,
		providers:   providers,
		transcriber: transcriber,
		runner:      runner,
		opts:        opts.withDefaults(),
		logger:      logger,
	}
}

type titleResult struct {
	title     *store.Title
	candidate Candidate
	detail    *store.MatchDetail
}

// Run matches every non-skipped title against the show's canonical episodes
// and reports whether the job can proceed straight to organizing or needs a
// human to resolve a review.
func (h *Handler) Run(ctx context.Context, job *store.Job) (store.JobState, error) {
	logger := h.logger.With(logging.Int64("job_id", job.ID), logging.String("component", "matcher"))

	titles, err := h.store.ListTitlesByJob(ctx, job.ID)
	if err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrStore, "matcher", "list titles", "could not load titles for this job", err)
	}
	// Disc extras and anything a reviewer already settled arrive here in
	// MATCHED; only titles the rip stage parked in MATCHING need work.
	var toMatch []*store.Title
	for _, t := range titles {
		if !t.Skipped && !t.IsExtra && t.State == store.TitleMatching {
			toMatch = append(toMatch, t)
		}
	}

	if job.ContentType != store.ContentTV {
		for _, t := range toMatch {
			if err := h.store.SetTitleState(ctx, t.ID, store.TitleMatched); err != nil {
				logger.Warn("persist title state failed", logging.Error(err))
				continue
			}
			h.bus.BroadcastTitleStateChanged(job.ID, t.ID, string(store.TitleMatched))
		}
		return store.JobOrganizing, nil
	}
	if len(toMatch) == 0 {
		return store.JobOrganizing, nil
	}

	season := 1
	if job.DetectedSeason != nil {
		season = *job.DetectedSeason
	}
	corpus, err := BuildCorpus(ctx, h.opts.CacheDir, job.DetectedTitle, season, h.counter, h.providers, logger)
	if err != nil {
		return job.State, xerrors.Wrap(xerrors.ErrSubtitle, "matcher", "build corpus", "could not assemble the reference subtitle corpus", err)
	}
	subStatus := "complete"
	if !corpus.Complete {
		subStatus = "partial"
	}
	if err := h.store.SetJobSubtitleProgress(ctx, job.ID, len(corpus.Episodes), corpus.TotalKnown, 0); err != nil {
		logger.Warn("persist subtitle progress failed", logging.Error(err))
	}
	h.bus.BroadcastSubtitleProgress(job.ID, subStatus, len(corpus.Episodes), corpus.TotalKnown, 0)
	if len(corpus.Episodes) == 0 {
		logger.Warn("no reference subtitles available, every title will go to review",
			logging.String("show", job.DetectedTitle), logging.Int("season", season))
	}
	referenceVectors := buildReferenceVectors(corpus)

	var (
		mu      sync.Mutex
		results []titleResult
		needsReview bool
	)
	sem := make(chan struct{}, h.opts.MaxConcurrent)
	var wg sync.WaitGroup
	for _, t := range toMatch {
		t := t
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			candidates, detail := h.matchTitle(ctx, logger, t, referenceVectors)
			if len(candidates) == 0 {
				if err := h.store.SetTitleState(ctx, t.ID, store.TitleReview); err != nil {
					logger.Warn("persist title review state failed", logging.Error(err))
				} else {
					h.bus.BroadcastTitleStateChanged(job.ID, t.ID, string(store.TitleReview))
				}
				mu.Lock()
				needsReview = true
				mu.Unlock()
				return
			}

			best := candidates[0]
			margin := ScoreMargin(candidates)
			result, reason := "selected", "ranked_key_winner"
			if margin < h.opts.MinScoreMargin {
				result, reason = "ambiguous", "score_margin_below_threshold"
			}
			attrs := logging.DecisionAttrs("episode_match", result, reason)
			attrs = append(attrs,
				logging.String(logging.FieldDecisionSelected, best.EpisodeCode),
				logging.Int64("title_id", t.ID),
				logging.Float64("best_score", best.Score),
				logging.Float64("score_margin", margin),
				logging.Int("vote_count", best.VoteCount))
			logger.Info("episode candidate selected", logging.Args(attrs...)...)

			mu.Lock()
			results = append(results, titleResult{title: t, candidate: best, detail: detail})
			mu.Unlock()
		}()
	}
	wg.Wait()

	byCode := make(map[string][]TitleClaim)
	for _, r := range results {
		byCode[r.candidate.EpisodeCode] = append(byCode[r.candidate.EpisodeCode], TitleClaim{TitleID: r.title.ID, Candidate: r.candidate})
	}

	byID := make(map[int64]titleResult, len(results))
	for _, r := range results {
		byID[r.title.ID] = r
	}

	for code, claims := range byCode {
		if len(claims) == 1 {
			r := byID[claims[0].TitleID]
			if !h.commitMatch(ctx, logger, job, r) {
				needsReview = true
			}
			continue
		}
		resolved := ResolveConflict(claims)
		if resolved.Ambiguous {
			logger.Warn("ambiguous episode claim resolved by tiebreak",
				logging.String("episode_code", code), logging.Int64("winner_title_id", resolved.WinnerTitleID))
		}
		if !h.commitMatch(ctx, logger, job, byID[resolved.WinnerTitleID]) {
			needsReview = true
		}
		for _, loserID := range resolved.Losers {
			if err := h.store.SetTitleState(ctx, loserID, store.TitleReview); err != nil {
				logger.Warn("persist conflict-loser review state failed", logging.Error(err))
				continue
			}
			h.bus.BroadcastTitleStateChanged(job.ID, loserID, string(store.TitleReview))
			needsReview = true
		}
	}

	if needsReview {
		job.ReviewReason = "One or more titles could not be matched to an episode with enough confidence"
		return store.JobReviewNeeded, nil
	}
	return store.JobOrganizing, nil
}

// commitMatch persists a title's winning match if it clears the confidence
// floor, otherwise sends it to review. Returns false when the title ended up
// needing review.
func (h *Handler) commitMatch(ctx context.Context, logger *slog.Logger, job *store.Job, r titleResult) bool {
	if r.title == nil {
		return true
	}
	if r.candidate.Score < h.opts.MinConfidence {
		if err := h.store.SetTitleState(ctx, r.title.ID, store.TitleReview); err != nil {
			logger.Warn("persist title review state failed", logging.Error(err))
		} else {
			h.bus.BroadcastTitleStateChanged(job.ID, r.title.ID, string(store.TitleReview))
		}
		return false
	}
	if err := h.store.SetTitleMatch(ctx, r.title.ID, r.candidate.EpisodeCode, r.candidate.Score, r.detail); err != nil {
		logger.Warn("persist title match failed", logging.Error(err))
		return false
	}
	if err := h.store.SetTitleState(ctx, r.title.ID, store.TitleMatched); err != nil {
		logger.Warn("persist title state failed", logging.Error(err))
		return false
	}
	h.bus.BroadcastTitleMatched(job.ID, r.title.ID, r.candidate.EpisodeCode, r.candidate.Score)
	h.bus.BroadcastTitleStateChanged(job.ID, r.title.ID, string(store.TitleMatched))
	return true
}

// matchTitle extracts audio chunks from one title, transcribes and scores
// each against the corpus, and returns the ranked candidates. An empty
// result means the title
// couldn't be fingerprinted at all and must go to review.
func (h *Handler) matchTitle(ctx context.Context, logger *slog.Logger, title *store.Title, refs referenceSet) ([]Candidate, *store.MatchDetail) {
	chunkDir := filepath.Join(h.opts.WorkDir, fmt.Sprintf("job-%d-title-%d", title.JobID, title.TitleIndex))
	chunks, extractErrs := ExtractChunks(ctx, h.runner, title.RippedPath, title.DurationSeconds, h.opts.ChunkConfig, chunkDir)
	for _, e := range extractErrs {
		logger.Warn("chunk extraction failed", logging.Int64("title_id", title.ID), logging.Error(e))
	}
	if len(chunks) == 0 {
		logger.Warn("no audio chunks survived extraction", logging.Int64("title_id", title.ID))
		return nil, nil
	}

	var outcomes []ChunkOutcome
	for _, chunk := range chunks {
		text, err := h.transcriber.Transcribe(ctx, chunk.Path)
		if err != nil {
			logger.Warn("chunk transcription failed", logging.Int64("title_id", title.ID), logging.Error(err))
			continue
		}
		code, score := scoreTranscript(text, refs)
		outcomes = append(outcomes, ChunkOutcome{
			StartSeconds:    chunk.StartSeconds,
			DurationSeconds: h.opts.ChunkConfig.ChunkSeconds,
			EpisodeCode:     code,
			Score:           score,
		})
	}
	if len(outcomes) == 0 {
		return nil, nil
	}

	candidates := AggregateVotes(outcomes, float64(title.DurationSeconds))
	if len(candidates) == 0 {
		return nil, nil
	}
	detail := &store.MatchDetail{
		VoteCount:    candidates[0].VoteCount,
		Score:        candidates[0].Score,
		FileCoverage: candidates[0].FileCoverage,
	}
	for _, c := range candidates {
		detail.Candidates = append(detail.Candidates, store.MatchCandidate{
			EpisodeCode:  c.EpisodeCode,
			VoteCount:    c.VoteCount,
			Score:        c.Score,
			FileCoverage: c.FileCoverage,
		})
	}
	return candidates, detail
}
