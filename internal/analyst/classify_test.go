package analyst

import (
	"strings"
	"testing"
)

func titles(durations ...int) []TitleInfo {
	out := make([]TitleInfo, len(durations))
	for i, d := range durations {
		out[i] = TitleInfo{Index: i, DurationSeconds: d, SizeBytes: int64(d) * 5_000_000, ChapterCount: 4}
	}
	return out
}

// TestClassifyArrestedDevelopmentS1D1 covers a typical TV season disc:
// eight near-equal episode titles plus three short extras.
func TestClassifyArrestedDevelopmentS1D1(t *testing.T) {
	ts := titles(1302, 1335, 1310, 1290, 1350, 1400, 1380, 1715, 999, 149, 389)
	v := Classify(ts, "ARRESTED_Development_S1D1", Defaults())

	if v.ContentType != ContentTV {
		t.Fatalf("expected TV, got %s", v.ContentType)
	}
	if !v.HasSeason || v.DetectedSeason != 1 {
		t.Errorf("expected season 1, got season=%d hasSeason=%v", v.DetectedSeason, v.HasSeason)
	}
	if !strings.Contains(v.DetectedName, "Arrested") {
		t.Errorf("expected detected name to contain Arrested, got %q", v.DetectedName)
	}
	if len(v.PlayAllTitleIndices) != 0 {
		t.Errorf("expected no play-all titles, got %v", v.PlayAllTitleIndices)
	}
	if v.NeedsReview {
		t.Error("expected a strong cluster + parsed season to need no review")
	}
}

// TestClassifyStarTrekPicardPlayAll covers a TV disc carrying a Play-All
// concatenation alongside its episodes.
func TestClassifyStarTrekPicardPlayAll(t *testing.T) {
	ts := titles(3396, 2692, 3328, 9416, 306)
	v := Classify(ts, "STAR TREK PICARD S1D3", Defaults())

	if v.ContentType != ContentTV {
		t.Fatalf("expected TV, got %s", v.ContentType)
	}
	if v.DetectedSeason != 1 {
		t.Errorf("expected season 1, got %d", v.DetectedSeason)
	}
	found := false
	for _, idx := range v.PlayAllTitleIndices {
		if idx == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected title index 3 flagged as play-all, got %v", v.PlayAllTitleIndices)
	}
}

// TestClassifyPlayAllBoundaryAt120Percent covers the boundary behavior that
// a play-all duration at exactly 1.20*S is still detected.
func TestClassifyPlayAllBoundaryAt120Percent(t *testing.T) {
	// Three-title cluster sums to 3600s; a play-all candidate at exactly
	// 1.2x that (4320s) must still be flagged.
	ts := []TitleInfo{
		{Index: 0, DurationSeconds: 1200},
		{Index: 1, DurationSeconds: 1200},
		{Index: 2, DurationSeconds: 1200},
		{Index: 3, DurationSeconds: 4320},
	}
	v := Classify(ts, "SHOW_SEASON_1", Defaults())
	found := false
	for _, idx := range v.PlayAllTitleIndices {
		if idx == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected play-all boundary detection at 1.20x sum, got %v", v.PlayAllTitleIndices)
	}
}

// TestClassifyAmbiguousMovie covers two feature-length titles of equal
// duration, both long, neither dominant.
func TestClassifyAmbiguousMovie(t *testing.T) {
	ts := []TitleInfo{
		{Index: 0, DurationSeconds: 6423},
		{Index: 1, DurationSeconds: 6423},
		{Index: 2, DurationSeconds: 180},
		{Index: 3, DurationSeconds: 90},
	}
	v := Classify(ts, "THE TERMINATOR", Defaults())

	if v.ContentType != ContentMovie {
		t.Fatalf("expected MOVIE, got %s", v.ContentType)
	}
	if !v.NeedsReview {
		t.Error("expected needs_review=true for an ambiguous movie")
	}
	if !strings.Contains(v.ReviewReason, "Multiple") {
		t.Errorf("expected review reason to mention Multiple, got %q", v.ReviewReason)
	}
}

// TestClassifyGenericLabel checks every generic volume label, case
// insensitively and ignoring trailing digits, yields no detected name.
func TestClassifyGenericLabel(t *testing.T) {
	ts := titles(6600) // one 110-minute title, single dominant movie duration-wise
	for _, label := range []string{
		"LOGICAL_VOLUME_ID", "logical_volume_id", "VIDEO_TS", "BDMV", "DISC", "DISC1",
		"DVD", "BLURAY", "BD", "NO_LABEL", "UNTITLED", "VOLUME", "NEW_VOLUME", "new_volume2",
	} {
		v := Classify(ts, label, Defaults())
		if v.DetectedName != "" {
			t.Errorf("label %q: expected empty detected name, got %q", label, v.DetectedName)
		}
		if v.HasSeason {
			t.Errorf("label %q: expected no season detected", label)
		}
		if !v.NeedsReview {
			t.Errorf("label %q: expected needs_review=true", label)
		}
		if !strings.Contains(strings.ToLower(v.ReviewReason), "generic") {
			t.Errorf("label %q: expected review reason to mention the generic label, got %q", label, v.ReviewReason)
		}
	}
}

// TestClassifyEmptyDisc covers the boundary behavior: an empty disc (no
// titles) classifies as UNKNOWN and needs review.
func TestClassifyEmptyDisc(t *testing.T) {
	v := Classify(nil, "ANYTHING", Defaults())
	if v.ContentType != ContentUnknown {
		t.Errorf("expected UNKNOWN, got %s", v.ContentType)
	}
	if !v.NeedsReview {
		t.Error("expected needs_review=true for an empty disc")
	}
	if v.ReviewReason != "No titles" {
		t.Errorf("expected reason 'No titles', got %q", v.ReviewReason)
	}
}

// TestClassifyIdempotent covers the round-trip property: applying the same
// volume label twice to the analyst yields identical results.
func TestClassifyIdempotent(t *testing.T) {
	ts := titles(1302, 1335, 1310, 1290, 1350, 1400, 1380, 1715, 999, 149, 389)
	a := Classify(ts, "ARRESTED_Development_S1D1", Defaults())
	b := Classify(ts, "ARRESTED_Development_S1D1", Defaults())
	if a.ContentType != b.ContentType || a.DetectedName != b.DetectedName || a.DetectedSeason != b.DetectedSeason ||
		a.NeedsReview != b.NeedsReview || a.Confidence != b.Confidence {
		t.Errorf("classify is not idempotent: %+v != %+v", a, b)
	}
}

// TestClassifySingleDominantMovie covers a clean single-feature disc with
// short extras: MOVIE, high confidence, no review.
func TestClassifySingleDominantMovie(t *testing.T) {
	ts := []TitleInfo{
		{Index: 0, DurationSeconds: 7200},
		{Index: 1, DurationSeconds: 120},
		{Index: 2, DurationSeconds: 90},
	}
	v := Classify(ts, "THE_ITALIAN_JOB", Defaults())
	if v.ContentType != ContentMovie {
		t.Fatalf("expected MOVIE, got %s", v.ContentType)
	}
	if v.NeedsReview {
		t.Error("expected a single dominant movie to need no review")
	}
	if v.Confidence < 0.8 {
		t.Errorf("expected high confidence, got %f", v.Confidence)
	}
	if v.DetectedName != "The Italian Job" {
		t.Errorf("expected title-cased name, got %q", v.DetectedName)
	}
}

// TestIsGenericLabelIgnoresDiscSuffixAndCase covers the precise matching
// rule: case-insensitive, ignoring trailing digits or disc suffixes.
func TestIsGenericLabelIgnoresDiscSuffixAndCase(t *testing.T) {
	for _, label := range []string{"disc", "DISC", "Disc1", "DISC_2", "bd", "BD25"} {
		if !isGenericLabel(label) {
			t.Errorf("expected %q to be recognized as generic", label)
		}
	}
	if isGenericLabel("BREAKING_BAD") {
		t.Error("expected a real show name not to be treated as generic")
	}
}
