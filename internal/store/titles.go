package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateTitle inserts a pending title discovered by the disc analyst's scan.
func (s *Store) CreateTitle(ctx context.Context, jobID int64, titleIndex int, durationSeconds int, expectedSize int64, chapterCount int) (*Title, error) {
	now := timestamp(time.Now())
	res, err := s.execWithRetry(ctx,
		`INSERT INTO titles (job_id, title_index, duration_seconds, expected_size, chapter_count, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, titleIndex, durationSeconds, expectedSize, chapterCount, TitlePending, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert title: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTitle(ctx, id)
}

const titleColumns = `id, job_id, title_index, duration_seconds, expected_size, actual_size,
    chapter_count, is_selected, ripped_path, output_filename, resolution, edition, state,
    matched_episode, match_confidence, match_details, conflict_choice,
    organized_from, organized_to, is_extra, skipped, created_at, updated_at`

func scanTitle(row interface{ Scan(...any) error }) (*Title, error) {
	var t Title
	var rippedPath, outputFilename, resolution, edition, matchedEpisode, matchDetailsJSON sql.NullString
	var conflictChoice, organizedFrom, organizedTo sql.NullString
	var isSelected, isExtra, skipped int
	var created, updated string
	err := row.Scan(&t.ID, &t.JobID, &t.TitleIndex, &t.DurationSeconds, &t.ExpectedSize, &t.ActualSize,
		&t.ChapterCount, &isSelected, &rippedPath, &outputFilename, &resolution, &edition, &t.State,
		&matchedEpisode, &t.MatchConfidence, &matchDetailsJSON, &conflictChoice,
		&organizedFrom, &organizedTo, &isExtra, &skipped, &created, &updated)
	if err != nil {
		return nil, err
	}
	t.IsSelected = isSelected != 0
	t.IsExtra = isExtra != 0
	t.Skipped = skipped != 0
	t.RippedPath = rippedPath.String
	t.OutputFilename = outputFilename.String
	t.Resolution = resolution.String
	t.Edition = edition.String
	t.MatchedEpisode = matchedEpisode.String
	t.ConflictChoice = ConflictResolution(conflictChoice.String)
	t.OrganizedFrom = organizedFrom.String
	t.OrganizedTo = organizedTo.String
	if matchDetailsJSON.Valid && matchDetailsJSON.String != "" {
		var d MatchDetail
		if err := json.Unmarshal([]byte(matchDetailsJSON.String), &d); err != nil {
			return nil, fmt.Errorf("unmarshal match_details: %w", err)
		}
		t.MatchDetails = &d
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &t, nil
}

// GetTitle fetches a title by id.
func (s *Store) GetTitle(ctx context.Context, id int64) (*Title, error) {
	row := s.queryRowWithRetry(ctx, `SELECT `+titleColumns+` FROM titles WHERE id = ?`, id)
	title, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get title: %w", err)
	}
	return title, nil
}

// ListTitlesByJob returns every title belonging to a job, ordered by index.
func (s *Store) ListTitlesByJob(ctx context.Context, jobID int64) ([]*Title, error) {
	rows, err := s.queryWithRetry(ctx, `SELECT `+titleColumns+` FROM titles WHERE job_id = ? ORDER BY title_index ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list titles by job: %w", err)
	}
	defer rows.Close()
	var titles []*Title
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// SetTitleSelected marks a title as selected or skipped for ripping.
func (s *Store) SetTitleSelected(ctx context.Context, id int64, selected bool, outputFilename string) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET is_selected = ?, output_filename = ?, updated_at = ? WHERE id = ?`,
		boolToInt(selected), nullableString(outputFilename), timestamp(time.Now()), id)
}

// SetTitleState persists a new title state. The store performs no
// validation of the transition.
func (s *Store) SetTitleState(ctx context.Context, id int64, state TitleState) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET state = ?, updated_at = ? WHERE id = ?`,
		state, timestamp(time.Now()), id)
}

// SetTitleRipResult records the actual output size, resolution, and the path
// of the ripped file once the rip tool finishes a title.
func (s *Store) SetTitleRipResult(ctx context.Context, id int64, actualSize int64, resolution, rippedPath string) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET actual_size = ?, resolution = ?, ripped_path = ?, updated_at = ? WHERE id = ?`,
		actualSize, nullableString(resolution), nullableString(rippedPath), timestamp(time.Now()), id)
}

// SetTitleMatch records the matcher's result for a title.
func (s *Store) SetTitleMatch(ctx context.Context, id int64, episode string, confidence float64, detail *MatchDetail) error {
	detailValue, err := marshalMatchDetail(detail)
	if err != nil {
		return fmt.Errorf("marshal match detail: %w", err)
	}
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET matched_episode = ?, match_confidence = ?, match_details = ?, updated_at = ? WHERE id = ?`,
		nullableString(episode), confidence, detailValue, timestamp(time.Now()), id)
}

// SetTitleConflictChoice records how a naming conflict for this title was resolved.
func (s *Store) SetTitleConflictChoice(ctx context.Context, id int64, choice ConflictResolution) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET conflict_choice = ?, updated_at = ? WHERE id = ?`,
		string(choice), timestamp(time.Now()), id)
}

// SetTitleOrganized records the source/destination paths once a title has been filed into the library.
func (s *Store) SetTitleOrganized(ctx context.Context, id int64, from, to string) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET organized_from = ?, organized_to = ?, updated_at = ? WHERE id = ?`,
		nullableString(from), nullableString(to), timestamp(time.Now()), id)
}

// SetTitleExtra flags a title as a bonus/extra feature rather than a match candidate.
func (s *Store) SetTitleExtra(ctx context.Context, id int64, isExtra bool) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET is_extra = ?, updated_at = ? WHERE id = ?`,
		boolToInt(isExtra), timestamp(time.Now()), id)
}

// SetTitleSkipped flags a title as deliberately excluded from organizing (e.g. a commentary track).
func (s *Store) SetTitleSkipped(ctx context.Context, id int64, skipped bool) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE titles SET skipped = ?, updated_at = ? WHERE id = ?`,
		boolToInt(skipped), timestamp(time.Now()), id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
