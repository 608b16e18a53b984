package matcher

import "sort"

// ChunkOutcome is one extracted chunk's best scoring episode, after
// transcription and scoring. EpisodeCode is empty if nothing scored above
// zero against the corpus.
type ChunkOutcome struct {
	StartSeconds    float64
	DurationSeconds float64
	EpisodeCode     string
	Score           float64
}

// Candidate is one episode's aggregated vote tally for a title: how many
// chunks picked it, the strongest per-chunk similarity, and what fraction
// of the title's runtime those chunks cover.
type Candidate struct {
	EpisodeCode  string
	VoteCount    int
	Score        float64
	FileCoverage float64
}

type interval struct{ start, end float64 }

// AggregateVotes tallies chunk outcomes per episode code and returns every
// candidate ranked by (vote_count desc, score desc, file_coverage desc),
// the same order used for both per-title winner selection and cross-title
// conflict resolution.
func AggregateVotes(outcomes []ChunkOutcome, titleDurationSeconds float64) []Candidate {
	type accumulator struct {
		votes     int
		bestScore float64
		intervals []interval
	}
	byCode := make(map[string]*accumulator)
	var order []string
	for _, o := range outcomes {
		if o.EpisodeCode == "" {
			continue
		}
		acc, ok := byCode[o.EpisodeCode]
		if !ok {
			acc = &accumulator{}
			byCode[o.EpisodeCode] = acc
			order = append(order, o.EpisodeCode)
		}
		acc.votes++
		if o.Score > acc.bestScore {
			acc.bestScore = o.Score
		}
		acc.intervals = append(acc.intervals, interval{start: o.StartSeconds, end: o.StartSeconds + o.DurationSeconds})
	}

	candidates := make([]Candidate, 0, len(order))
	for _, code := range order {
		acc := byCode[code]
		coverage := 0.0
		if titleDurationSeconds > 0 {
			coverage = unionDuration(acc.intervals) / titleDurationSeconds
			if coverage > 1 {
				coverage = 1
			}
		}
		candidates = append(candidates, Candidate{
			EpisodeCode:  code,
			VoteCount:    acc.votes,
			Score:        acc.bestScore,
			FileCoverage: coverage,
		})
	}
	sortCandidates(candidates)
	return candidates
}

// sortCandidates orders by the ranked key (vote_count desc, score desc,
// file_coverage desc) used throughout the matcher.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.FileCoverage > b.FileCoverage
	})
}

func unionDuration(intervals []interval) float64 {
	if len(intervals) == 0 {
		return 0
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })
	total := 0.0
	curStart, curEnd := intervals[0].start, intervals[0].end
	for _, iv := range intervals[1:] {
		if iv.start > curEnd {
			total += curEnd - curStart
			curStart, curEnd = iv.start, iv.end
			continue
		}
		if iv.end > curEnd {
			curEnd = iv.end
		}
	}
	total += curEnd - curStart
	return total
}

// ScoreMargin returns the score gap between the best and second-best
// candidate in an already-ranked list. A lone candidate has nothing to be
// confused with and reports the full range.
func ScoreMargin(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	if len(candidates) < 2 {
		return 1
	}
	margin := candidates[0].Score - candidates[1].Score
	if margin < 0 {
		margin = -margin
	}
	return margin
}

// TitleClaim is one title's winning candidate for a given episode code,
// entering cross-title conflict resolution.
type TitleClaim struct {
	TitleID   int64
	Candidate Candidate
}

// ConflictResult is the outcome of resolving one episode code's competing
// claims: the winning title and whether the top two were close enough to
// flag as ambiguous (scores within 0.05 of each other with equal vote
// counts).
type ConflictResult struct {
	WinnerTitleID int64
	Ambiguous     bool
	Losers        []int64
}

// ResolveConflict picks the strongest claim when more than one title's
// matcher run landed on the same episode code.
func ResolveConflict(claims []TitleClaim) ConflictResult {
	sort.SliceStable(claims, func(i, j int) bool {
		a, b := claims[i].Candidate, claims[j].Candidate
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.FileCoverage > b.FileCoverage
	})
	result := ConflictResult{WinnerTitleID: claims[0].TitleID}
	for _, c := range claims[1:] {
		result.Losers = append(result.Losers, c.TitleID)
	}
	if len(claims) > 1 {
		top, second := claims[0].Candidate, claims[1].Candidate
		diff := top.Score - second.Score
		if diff < 0 {
			diff = -diff
		}
		result.Ambiguous = diff < 0.05 && top.VoteCount == second.VoteCount
	}
	return result
}
