package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a job or title lookup finds nothing.
var ErrNotFound = errors.New("not found")

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.Format(time.RFC3339Nano)
}

// CreateJob inserts a new job in state idle for a freshly inserted disc.
func (s *Store) CreateJob(ctx context.Context, driveID, volumeLabel string) (*Job, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (drive_id, volume_label, content_type, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		driveID, volumeLabel, ContentUnknown, JobIdle, timestamp(now), timestamp(now))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

const jobColumns = `id, drive_id, volume_label, content_type, detected_title, detected_season,
    disc_number, staging_path, state, progress_pct, progress_speed, progress_eta,
    current_title, total_titles, sub_downloaded, sub_total, sub_failed,
    error_message, review_reason, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var j Job
	var detectedTitle, stagingPath, progressSpeed, errMsg, reviewReason sql.NullString
	var detectedSeason sql.NullInt64
	var created, updated string
	err := row.Scan(&j.ID, &j.DriveID, &j.VolumeLabel, &j.ContentType, &detectedTitle, &detectedSeason,
		&j.DiscNumber, &stagingPath, &j.State, &j.ProgressPct, &progressSpeed, &j.ProgressETA,
		&j.CurrentTitle, &j.TotalTitles, &j.SubDownloaded, &j.SubTotal, &j.SubFailed,
		&errMsg, &reviewReason, &created, &updated)
	if err != nil {
		return nil, err
	}
	j.DetectedTitle = detectedTitle.String
	j.StagingPath = stagingPath.String
	j.ProgressSpeed = progressSpeed.String
	j.ErrorMessage = errMsg.String
	j.ReviewReason = reviewReason.String
	if detectedSeason.Valid {
		v := int(detectedSeason.Int64)
		j.DetectedSeason = &v
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &j, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.queryRowWithRetry(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns every job ordered by most recently updated first.
func (s *Store) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.queryWithRetry(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ActiveJobForDrive returns the non-terminal job currently occupying a
// drive, if any. REVIEW_NEEDED counts as active on its own drive.
func (s *Store) ActiveJobForDrive(ctx context.Context, driveID string) (*Job, error) {
	row := s.queryRowWithRetry(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE drive_id = ? AND state NOT IN (?, ?) ORDER BY id DESC LIMIT 1`,
		driveID, JobCompleted, JobFailed)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for drive: %w", err)
	}
	return job, nil
}

// DeleteJob removes a job and cascades to its titles.
func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetJobState persists a new job state. Callers (internal/jobs) are
// responsible for validating the transition before calling this; the store
// performs no validation of its own.
func (s *Store) SetJobState(ctx context.Context, id int64, state JobState, errorMessage, reviewReason string) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET state = ?, error_message = ?, review_reason = ?, updated_at = ? WHERE id = ?`,
		state, nullableString(errorMessage), nullableString(reviewReason), timestamp(time.Now()), id)
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// SetJobAnalysis records the disc analyst's result onto the job.
func (s *Store) SetJobAnalysis(ctx context.Context, id int64, contentType ContentType, detectedTitle string, detectedSeason *int, discNumber int) error {
	var season any
	if detectedSeason != nil {
		season = *detectedSeason
	}
	return s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET content_type = ?, detected_title = ?, detected_season = ?, disc_number = ?, updated_at = ? WHERE id = ?`,
		contentType, nullableString(detectedTitle), season, discNumber, timestamp(time.Now()), id)
}

// SetJobStaging records the staging directory assigned to a job.
func (s *Store) SetJobStaging(ctx context.Context, id int64, stagingPath string) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET staging_path = ?, updated_at = ? WHERE id = ?`,
		stagingPath, timestamp(time.Now()), id)
}

// SetJobProgress updates the rip/match progress fields on a job.
func (s *Store) SetJobProgress(ctx context.Context, id int64, pct int, speed string, etaSeconds, currentTitle, totalTitles int) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET progress_pct = ?, progress_speed = ?, progress_eta = ?,
            current_title = ?, total_titles = ?, updated_at = ? WHERE id = ?`,
		pct, nullableString(speed), etaSeconds, currentTitle, totalTitles, timestamp(time.Now()), id)
}

// SetJobSubtitleProgress updates the subtitle download counters on a job.
func (s *Store) SetJobSubtitleProgress(ctx context.Context, id int64, downloaded, total, failed int) error {
	return s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET sub_downloaded = ?, sub_total = ?, sub_failed = ?, updated_at = ? WHERE id = ?`,
		downloaded, total, failed, timestamp(time.Now()), id)
}

// marshalMatchDetail is used by the titles file; kept here to avoid an
// import cycle between the two persistence files.
func marshalMatchDetail(d *MatchDetail) (any, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
