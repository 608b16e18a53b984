// Package analyst classifies a freshly scanned disc as TV, a movie, or
// unknown, using duration clustering over the title list plus an optional
// TMDB corroboration signal. It runs during a job's JobIdentifying state
// and writes its verdict (content type, detected name/season, and whether
// the result needs human review) back onto the job.
package analyst
