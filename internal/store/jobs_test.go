package store

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateJobDefaultsToIdle(t *testing.T) {
	st := openTestStore(t)
	job, err := st.CreateJob(context.Background(), "/dev/sr0", "MY_LABEL")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.State != JobIdle {
		t.Errorf("expected idle, got %s", job.State)
	}
	if job.ContentType != ContentUnknown {
		t.Errorf("expected UNKNOWN content type, got %s", job.ContentType)
	}
	if job.DriveID != "/dev/sr0" || job.VolumeLabel != "MY_LABEL" {
		t.Errorf("unexpected job fields: %+v", job)
	}
}

func TestGetJobNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetJob(context.Background(), 999); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetJobStateRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	job, err := st.CreateJob(ctx, "/dev/sr0", "LABEL")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := st.SetJobState(ctx, job.ID, JobFailed, "boom", ""); err != nil {
		t.Fatalf("SetJobState: %v", err)
	}
	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != JobFailed {
		t.Errorf("expected failed, got %s", got.State)
	}
	if got.ErrorMessage != "boom" {
		t.Errorf("expected error message 'boom', got %q", got.ErrorMessage)
	}
	if !got.Terminal() {
		t.Error("expected failed job to report Terminal() true")
	}
}

func TestActiveJobForDriveExcludesOnlyTerminalStates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "/dev/sr0", "LABEL")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	active, err := st.ActiveJobForDrive(ctx, "/dev/sr0")
	if err != nil {
		t.Fatalf("ActiveJobForDrive: %v", err)
	}
	if active == nil || active.ID != job.ID {
		t.Fatalf("expected idle job to count as active, got %+v", active)
	}

	// review_needed still counts as active on its own drive.
	if err := st.SetJobState(ctx, job.ID, JobIdentifying, "", ""); err != nil {
		t.Fatalf("SetJobState identifying: %v", err)
	}
	if err := st.SetJobState(ctx, job.ID, JobReviewNeeded, "", "ambiguous label"); err != nil {
		t.Fatalf("SetJobState review_needed: %v", err)
	}
	active, err = st.ActiveJobForDrive(ctx, "/dev/sr0")
	if err != nil {
		t.Fatalf("ActiveJobForDrive: %v", err)
	}
	if active == nil || active.ID != job.ID {
		t.Fatalf("expected review_needed job to still count as active, got %+v", active)
	}

	if err := st.SetJobState(ctx, job.ID, JobCompleted, "", ""); err != nil {
		t.Fatalf("SetJobState completed: %v", err)
	}
	active, err = st.ActiveJobForDrive(ctx, "/dev/sr0")
	if err != nil {
		t.Fatalf("ActiveJobForDrive: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active job once completed, got %+v", active)
	}
}

func TestListJobsOrderedByMostRecentlyUpdated(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	first, err := st.CreateJob(ctx, "/dev/sr0", "FIRST")
	if err != nil {
		t.Fatalf("CreateJob first: %v", err)
	}
	second, err := st.CreateJob(ctx, "/dev/sr1", "SECOND")
	if err != nil {
		t.Fatalf("CreateJob second: %v", err)
	}
	// Touch the first job again so it becomes the most recently updated.
	if err := st.SetJobState(ctx, first.ID, JobFailed, "x", ""); err != nil {
		t.Fatalf("SetJobState: %v", err)
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID {
		t.Errorf("expected most recently updated job (%d) first, got %d", first.ID, jobs[0].ID)
	}
	if jobs[1].ID != second.ID {
		t.Errorf("expected second job last, got %d", jobs[1].ID)
	}
}

func TestDeleteJobNotFound(t *testing.T) {
	st := openTestStore(t)
	if err := st.DeleteJob(context.Background(), 12345); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetJobAnalysisPersistsSeasonPointer(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	job, err := st.CreateJob(ctx, "/dev/sr0", "LABEL")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	season := 2
	if err := st.SetJobAnalysis(ctx, job.ID, ContentTV, "Arrested Development", &season, 1); err != nil {
		t.Fatalf("SetJobAnalysis: %v", err)
	}
	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ContentType != ContentTV || got.DetectedTitle != "Arrested Development" {
		t.Errorf("unexpected analysis fields: %+v", got)
	}
	if got.DetectedSeason == nil || *got.DetectedSeason != 2 {
		t.Errorf("expected season pointer 2, got %v", got.DetectedSeason)
	}
	if got.DiscNumber != 1 {
		t.Errorf("expected disc number 1, got %d", got.DiscNumber)
	}
}

func TestSetJobProgressAndSubtitleProgress(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	job, err := st.CreateJob(ctx, "/dev/sr0", "LABEL")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := st.SetJobProgress(ctx, job.ID, 42, "1.5x", 120, 2, 5); err != nil {
		t.Fatalf("SetJobProgress: %v", err)
	}
	if err := st.SetJobSubtitleProgress(ctx, job.ID, 3, 5, 1); err != nil {
		t.Fatalf("SetJobSubtitleProgress: %v", err)
	}
	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ProgressPct != 42 || got.ProgressSpeed != "1.5x" || got.ProgressETA != 120 {
		t.Errorf("unexpected progress fields: %+v", got)
	}
	if got.CurrentTitle != 2 || got.TotalTitles != 5 {
		t.Errorf("unexpected title counters: %+v", got)
	}
	if got.SubDownloaded != 3 || got.SubTotal != 5 || got.SubFailed != 1 {
		t.Errorf("unexpected subtitle counters: %+v", got)
	}
}
