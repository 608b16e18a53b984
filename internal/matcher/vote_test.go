package matcher

import "testing"

func TestAggregateVotesPicksHighestVoteCount(t *testing.T) {
	outcomes := []ChunkOutcome{
		{StartSeconds: 0, DurationSeconds: 30, EpisodeCode: "S01E03", Score: 0.8},
		{StartSeconds: 100, DurationSeconds: 30, EpisodeCode: "S01E03", Score: 0.7},
		{StartSeconds: 300, DurationSeconds: 30, EpisodeCode: "S01E04", Score: 0.9},
	}
	candidates := AggregateVotes(outcomes, 1200)
	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(candidates))
	}
	if candidates[0].EpisodeCode != "S01E03" {
		t.Errorf("winner = %q, want S01E03", candidates[0].EpisodeCode)
	}
	if candidates[0].VoteCount != 2 {
		t.Errorf("VoteCount = %d, want 2", candidates[0].VoteCount)
	}
	if candidates[0].Score != 0.8 {
		t.Errorf("Score = %v, want 0.8", candidates[0].Score)
	}
}

func TestAggregateVotesBreaksTiesByScore(t *testing.T) {
	outcomes := []ChunkOutcome{
		{StartSeconds: 0, DurationSeconds: 30, EpisodeCode: "S01E01", Score: 0.6},
		{StartSeconds: 300, DurationSeconds: 30, EpisodeCode: "S01E02", Score: 0.9},
	}
	candidates := AggregateVotes(outcomes, 1200)
	if candidates[0].EpisodeCode != "S01E02" {
		t.Errorf("winner = %q, want S01E02", candidates[0].EpisodeCode)
	}
}

func TestAggregateVotesFileCoverageUnionsOverlappingChunks(t *testing.T) {
	outcomes := []ChunkOutcome{
		{StartSeconds: 0, DurationSeconds: 30, EpisodeCode: "S01E01", Score: 0.5},
		{StartSeconds: 20, DurationSeconds: 30, EpisodeCode: "S01E01", Score: 0.5},
	}
	candidates := AggregateVotes(outcomes, 100)
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(candidates))
	}
	if got := candidates[0].FileCoverage; got != 0.5 {
		t.Errorf("FileCoverage = %v, want 0.5 (union 0-50 of 100)", got)
	}
}

func TestResolveConflictPicksStrongerClaim(t *testing.T) {
	claims := []TitleClaim{
		{TitleID: 1, Candidate: Candidate{EpisodeCode: "S01E01", VoteCount: 2, Score: 0.7, FileCoverage: 0.3}},
		{TitleID: 2, Candidate: Candidate{EpisodeCode: "S01E01", VoteCount: 3, Score: 0.6, FileCoverage: 0.2}},
	}
	result := ResolveConflict(claims)
	if result.WinnerTitleID != 2 {
		t.Errorf("WinnerTitleID = %d, want 2 (higher vote count)", result.WinnerTitleID)
	}
	if len(result.Losers) != 1 || result.Losers[0] != 1 {
		t.Errorf("Losers = %v, want [1]", result.Losers)
	}
}

func TestResolveConflictFlagsAmbiguousTiebreak(t *testing.T) {
	claims := []TitleClaim{
		{TitleID: 1, Candidate: Candidate{EpisodeCode: "S01E01", VoteCount: 2, Score: 0.70, FileCoverage: 0.3}},
		{TitleID: 2, Candidate: Candidate{EpisodeCode: "S01E01", VoteCount: 2, Score: 0.68, FileCoverage: 0.2}},
	}
	result := ResolveConflict(claims)
	if !result.Ambiguous {
		t.Error("expected ambiguous result for close scores with equal vote counts")
	}
}

func TestScoreMargin(t *testing.T) {
	if got := ScoreMargin(nil); got != 0 {
		t.Errorf("ScoreMargin(nil) = %v, want 0", got)
	}
	one := []Candidate{{EpisodeCode: "S01E01", Score: 0.6}}
	if got := ScoreMargin(one); got != 1 {
		t.Errorf("ScoreMargin(single) = %v, want 1", got)
	}
	two := []Candidate{
		{EpisodeCode: "S01E01", Score: 0.71},
		{EpisodeCode: "S01E02", Score: 0.69},
	}
	if got := ScoreMargin(two); got < 0.019 || got > 0.021 {
		t.Errorf("ScoreMargin = %v, want ~0.02", got)
	}
}
