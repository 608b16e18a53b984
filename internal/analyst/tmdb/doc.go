// Package tmdb is a minimal client for the TMDB v3 API covering what the
// disc analyst and matcher need: movie/TV/multi search for classification
// corroboration, and season/details lookups for canonical episode counts.
// Every call goes through one request helper so timeout, language, and
// error handling stay uniform.
package tmdb
