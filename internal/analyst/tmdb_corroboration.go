package analyst

import (
	"context"
	"strings"

	"engram/internal/analyst/tmdb"
)

const highPopularityThreshold = 50.0

// Signal is TMDB's opinion about a disc's content type, independent of the
// duration-clustering heuristic.
type Signal struct {
	ContentType ContentType
	Confidence  float64
	TMDBID      int64
	Name        string
}

// Corroborator queries TMDB for both a TV and a movie match and returns the
// stronger signal, following the popularity-ratio ambiguity rule: when both
// media types return a result and their popularities are within a factor of
// two of each other, the pick is kept but confidence drops to 0.60.
type Corroborator struct {
	searcher tmdb.Searcher
}

// NewCorroborator wraps a TMDB searcher.
func NewCorroborator(searcher tmdb.Searcher) *Corroborator {
	return &Corroborator{searcher: searcher}
}

// Lookup queries TMDB for name and returns the strongest signal, or nil if
// neither search endpoint returned anything (including after retrying name
// variations).
func (c *Corroborator) Lookup(ctx context.Context, name string) (*Signal, error) {
	if c == nil || c.searcher == nil || strings.TrimSpace(name) == "" {
		return nil, nil
	}

	tvResult, movieResult, err := c.searchBoth(ctx, name)
	if err != nil {
		return nil, err
	}
	if tvResult == nil && movieResult == nil {
		for _, variation := range nameVariations(name) {
			tvResult, movieResult, err = c.searchBoth(ctx, variation)
			if err != nil {
				return nil, err
			}
			if tvResult != nil || movieResult != nil {
				break
			}
		}
	}
	if tvResult == nil && movieResult == nil {
		return nil, nil
	}

	tvPop, moviePop := 0.0, 0.0
	if tvResult != nil {
		tvPop = tvResult.Popularity
	}
	if movieResult != nil {
		moviePop = movieResult.Popularity
	}

	if tvResult != nil && movieResult != nil {
		if tvPop > 0 && moviePop > 0 {
			ratio := tvPop / moviePop
			if ratio < 1 {
				ratio = moviePop / tvPop
			}
			if ratio < 2 {
				if tvPop >= moviePop {
					return tvSignal(*tvResult, true), nil
				}
				return movieSignal(*movieResult, true), nil
			}
		}
		if tvPop >= moviePop {
			return tvSignal(*tvResult, false), nil
		}
		return movieSignal(*movieResult, false), nil
	}
	if tvResult != nil {
		return tvSignal(*tvResult, false), nil
	}
	return movieSignal(*movieResult, false), nil
}

func (c *Corroborator) searchBoth(ctx context.Context, query string) (*tmdb.Result, *tmdb.Result, error) {
	tvResp, err := c.searcher.SearchTVWithOptions(ctx, query, tmdb.SearchOptions{})
	if err != nil {
		return nil, nil, err
	}
	movieResp, err := c.searcher.SearchMovieWithOptions(ctx, query, tmdb.SearchOptions{})
	if err != nil {
		return nil, nil, err
	}
	var tvResult, movieResult *tmdb.Result
	if tvResp != nil && len(tvResp.Results) > 0 {
		tvResult = &tvResp.Results[0]
	}
	if movieResp != nil && len(movieResp.Results) > 0 {
		movieResult = &movieResp.Results[0]
	}
	return tvResult, movieResult, nil
}

func tvSignal(result tmdb.Result, ambiguous bool) *Signal {
	name := result.Name
	if name == "" {
		name = result.Title
	}
	return &Signal{
		ContentType: ContentTV,
		Confidence:  confidenceFor(result.Popularity, ambiguous),
		TMDBID:      result.ID,
		Name:        name,
	}
}

func movieSignal(result tmdb.Result, ambiguous bool) *Signal {
	name := result.Title
	if name == "" {
		name = result.Name
	}
	return &Signal{
		ContentType: ContentMovie,
		Confidence:  confidenceFor(result.Popularity, ambiguous),
		TMDBID:      result.ID,
		Name:        name,
	}
}

func confidenceFor(popularity float64, ambiguous bool) float64 {
	switch {
	case ambiguous:
		return 0.60
	case popularity > highPopularityThreshold:
		return 0.85
	default:
		return 0.70
	}
}

// nameVariations proposes alternate queries when the literal parsed name
// returns nothing: the name without a leading "The ", and the part of the
// name before its first ':' or '-'.
func nameVariations(name string) []string {
	trimmed := strings.TrimSpace(name)
	var variations []string
	if withoutArticle, ok := strings.CutPrefix(trimmed, "The "); ok {
		variations = append(variations, withoutArticle)
	}
	if idx := strings.IndexAny(trimmed, ":-"); idx > 0 {
		variations = append(variations, strings.TrimSpace(trimmed[:idx]))
	}
	return variations
}

// Corroborate folds a TMDB signal into the heuristic verdict: TMDB wins
// when it disagrees and is more confident, and any override of a strong
// heuristic result still asks for review.
func Corroborate(verdict Verdict, signal *Signal) Verdict {
	if signal == nil {
		return verdict
	}
	if signal.ContentType == verdict.ContentType {
		if signal.Confidence > verdict.Confidence {
			verdict.Confidence = signal.Confidence
		}
		return verdict
	}
	if signal.Confidence <= verdict.Confidence {
		return verdict
	}
	wasStrong := !verdict.NeedsReview
	verdict.ContentType = signal.ContentType
	verdict.Confidence = signal.Confidence
	if signal.Name != "" {
		verdict.DetectedName = signal.Name
	}
	if wasStrong {
		verdict.NeedsReview = true
		verdict.ReviewReason = "TMDB contradicted a strong disc-heuristic classification"
	}
	return verdict
}
