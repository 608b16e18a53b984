package jobs

import (
	"context"
	"testing"

	"engram/internal/events"
	"engram/internal/store"
	"engram/internal/testsupport"
)

func TestReviewResolutionValidate(t *testing.T) {
	cases := []struct {
		name       string
		resolution ReviewResolution
		wantErr    bool
	}{
		{"name_year ok", ReviewResolution{Choice: ReviewChoiceNameYear, Name: "The Terminator", Year: 1984}, false},
		{"name_year empty name", ReviewResolution{Choice: ReviewChoiceNameYear, Name: "  "}, true},
		{"episode_map ok", ReviewResolution{Choice: ReviewChoiceEpisodeMap, EpisodeMap: map[int]string{0: "S01E01"}}, false},
		{"episode_map empty", ReviewResolution{Choice: ReviewChoiceEpisodeMap}, true},
		{"unknown choice", ReviewResolution{Choice: "whatever"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.resolution.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func reviewFixture(t *testing.T) (*Manager, *store.Store, *store.Job) {
	t.Helper()
	st := testsupport.MustOpenStore(t)
	mgr := NewManager(st, events.New(), nil)

	ctx := context.Background()
	job, err := st.CreateJob(ctx, "/dev/sr0", "THE_TERMINATOR")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := st.SetJobState(ctx, job.ID, store.JobIdentifying, "", ""); err != nil {
		t.Fatalf("SetJobState: %v", err)
	}
	if err := st.SetJobState(ctx, job.ID, store.JobReviewNeeded, "", "Multiple long titles"); err != nil {
		t.Fatalf("SetJobState: %v", err)
	}
	return mgr, st, job
}

// TestResolveReviewNameYearSkipsUnselectedTitles covers the ambiguous-movie
// flow: the reviewer names the film and picks the
// theatrical cut; the other feature-length title must not rip or organize.
func TestResolveReviewNameYearSkipsUnselectedTitles(t *testing.T) {
	mgr, st, job := reviewFixture(t)
	ctx := context.Background()

	theatrical, err := st.CreateTitle(ctx, job.ID, 0, 6423, 30<<30, 24)
	if err != nil {
		t.Fatalf("CreateTitle: %v", err)
	}
	extended, err := st.CreateTitle(ctx, job.ID, 1, 6423, 31<<30, 25)
	if err != nil {
		t.Fatalf("CreateTitle: %v", err)
	}

	selected := 0
	resumed, err := mgr.ResolveReview(ctx, job.ID, ReviewResolution{
		Choice:             ReviewChoiceNameYear,
		Name:               "The Terminator",
		Year:               1984,
		SelectedTitleIndex: &selected,
	})
	if err != nil {
		t.Fatalf("ResolveReview: %v", err)
	}
	if resumed.State != store.JobRipping {
		t.Errorf("resumed state = %s, want ripping", resumed.State)
	}
	mgr.Shutdown()

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.DetectedTitle != "The Terminator (1984)" {
		t.Errorf("DetectedTitle = %q, want the name with year appended", got.DetectedTitle)
	}

	keep, _ := st.GetTitle(ctx, theatrical.ID)
	if keep.Skipped {
		t.Error("selected title must not be skipped")
	}
	skip, _ := st.GetTitle(ctx, extended.ID)
	if !skip.Skipped {
		t.Error("unselected title must be skipped")
	}
}

// TestResolveReviewEpisodeMapMarksMatchesAndExtras covers the reviewer
// assigning episode codes by hand: assigned titles become MATCHED with full
// confidence, "extra" assignments are flagged and ready for organizing.
func TestResolveReviewEpisodeMapMarksMatchesAndExtras(t *testing.T) {
	mgr, st, job := reviewFixture(t)
	ctx := context.Background()

	ep, err := st.CreateTitle(ctx, job.ID, 0, 1302, 2<<30, 5)
	if err != nil {
		t.Fatalf("CreateTitle: %v", err)
	}
	bonus, err := st.CreateTitle(ctx, job.ID, 1, 400, 1<<28, 1)
	if err != nil {
		t.Fatalf("CreateTitle: %v", err)
	}

	resumed, err := mgr.ResolveReview(ctx, job.ID, ReviewResolution{
		Choice:     ReviewChoiceEpisodeMap,
		EpisodeMap: map[int]string{0: "S01E03", 1: "extra"},
	})
	if err != nil {
		t.Fatalf("ResolveReview: %v", err)
	}
	if resumed.State != store.JobOrganizing {
		t.Errorf("resumed state = %s, want organizing", resumed.State)
	}
	mgr.Shutdown()

	matched, _ := st.GetTitle(ctx, ep.ID)
	if matched.MatchedEpisode != "S01E03" || matched.State != store.TitleMatched {
		t.Errorf("assigned title = (%q, %s), want (S01E03, matched)", matched.MatchedEpisode, matched.State)
	}
	if matched.MatchConfidence != 1.0 {
		t.Errorf("reviewer assignment confidence = %v, want 1.0", matched.MatchConfidence)
	}
	extra, _ := st.GetTitle(ctx, bonus.ID)
	if !extra.IsExtra || extra.State != store.TitleMatched {
		t.Errorf("extra title = (extra=%v, %s), want (true, matched)", extra.IsExtra, extra.State)
	}
}

// TestResolveReviewRefusesJobNotInReview covers ResumeJob's guard.
func TestResolveReviewRefusesJobNotInReview(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	mgr := NewManager(st, events.New(), nil)

	ctx := context.Background()
	job, err := st.CreateJob(ctx, "/dev/sr0", "SOME_DISC")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	_, err = mgr.ResolveReview(ctx, job.ID, ReviewResolution{Choice: ReviewChoiceNameYear, Name: "X"})
	if err == nil {
		t.Fatal("expected an error resolving a job that isn't awaiting review")
	}
}
