package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"engram/internal/store"
)

// ReviewChoice tags which fields of ReviewResolution a reviewer filled in:
// a name/year correction or a title-to-episode map.
type ReviewChoice string

const (
	// ReviewChoiceNameYear disambiguates a movie/show name the analyst
	// found more than one plausible TMDB match for.
	ReviewChoiceNameYear ReviewChoice = "name_year"
	// ReviewChoiceEpisodeMap supplies title-index-to-episode-code
	// assignments the matcher couldn't resolve with enough confidence.
	ReviewChoiceEpisodeMap ReviewChoice = "episode_map"
)

// ReviewResolution is the payload a reviewer submits for a job sitting in
// review_needed. Only the fields matching Choice are read.
type ReviewResolution struct {
	Choice ReviewChoice

	// ReviewChoiceNameYear. SelectedTitleIndex, when non-nil, picks the
	// canonical title on an ambiguous-movie disc (theatrical vs. extended);
	// every other title is skipped from ripping and organizing.
	Name               string
	Year               int
	SelectedTitleIndex *int

	// ReviewChoiceEpisodeMap: title index -> canonical episode code
	// ("S01E03") or "extra" to mark the title a bonus feature.
	EpisodeMap map[int]string
}

// Validate reports whether the resolution is internally consistent for its
// declared Choice.
func (r ReviewResolution) Validate() error {
	switch r.Choice {
	case ReviewChoiceNameYear:
		if strings.TrimSpace(r.Name) == "" {
			return errors.New("name_year resolution requires a non-empty name")
		}
		return nil
	case ReviewChoiceEpisodeMap:
		if len(r.EpisodeMap) == 0 {
			return errors.New("episode_map resolution requires at least one assignment")
		}
		return nil
	default:
		return fmt.Errorf("unsupported review choice %q", r.Choice)
	}
}

// ResolveReview applies a reviewer's decision to a job waiting in
// review_needed and resumes its driver. name_year corrects the detected
// title and resumes straight to ripping, since the ambiguity that stopped
// the analyst is now settled by hand. episode_map writes the chosen episode
// per title directly and resumes to organizing, skipping the matcher the
// same way a human confirming a transcript match would.
func (m *Manager) ResolveReview(ctx context.Context, jobID int64, resolution ReviewResolution) (*store.Job, error) {
	if err := resolution.Validate(); err != nil {
		return nil, fmt.Errorf("invalid review resolution: %w", err)
	}

	switch resolution.Choice {
	case ReviewChoiceNameYear:
		job, err := m.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("load job: %w", err)
		}
		name := resolution.Name
		if resolution.Year > 0 {
			name = fmt.Sprintf("%s (%d)", resolution.Name, resolution.Year)
		}
		if err := m.store.SetJobAnalysis(ctx, jobID, job.ContentType, name, job.DetectedSeason, job.DiscNumber); err != nil {
			return nil, fmt.Errorf("record reviewer's name/year choice: %w", err)
		}
		if resolution.SelectedTitleIndex != nil {
			titles, err := m.store.ListTitlesByJob(ctx, jobID)
			if err != nil {
				return nil, fmt.Errorf("list titles: %w", err)
			}
			for _, t := range titles {
				if t.TitleIndex == *resolution.SelectedTitleIndex {
					continue
				}
				if err := m.store.SetTitleSkipped(ctx, t.ID, true); err != nil {
					return nil, fmt.Errorf("skip unselected title %d: %w", t.ID, err)
				}
			}
		}
		return m.ResumeJob(ctx, jobID, store.JobRipping)

	case ReviewChoiceEpisodeMap:
		titles, err := m.store.ListTitlesByJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("list titles: %w", err)
		}
		byIndex := make(map[int]*store.Title, len(titles))
		for _, t := range titles {
			byIndex[t.TitleIndex] = t
		}
		for index, episode := range resolution.EpisodeMap {
			title, ok := byIndex[index]
			if !ok {
				continue
			}
			if strings.EqualFold(episode, "extra") {
				if err := m.store.SetTitleExtra(ctx, title.ID, true); err != nil {
					return nil, fmt.Errorf("mark title %d an extra: %w", title.ID, err)
				}
				if err := m.store.SetTitleState(ctx, title.ID, store.TitleMatched); err != nil {
					return nil, fmt.Errorf("mark extra title %d ready for organizing: %w", title.ID, err)
				}
				continue
			}
			if err := m.store.SetTitleMatch(ctx, title.ID, episode, 1.0, nil); err != nil {
				return nil, fmt.Errorf("record reviewer's episode choice for title %d: %w", title.ID, err)
			}
			if err := m.store.SetTitleState(ctx, title.ID, store.TitleMatched); err != nil {
				return nil, fmt.Errorf("mark title %d matched: %w", title.ID, err)
			}
		}
		return m.ResumeJob(ctx, jobID, store.JobOrganizing)

	default:
		return nil, fmt.Errorf("unsupported review choice %q", resolution.Choice)
	}
}
