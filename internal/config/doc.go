// Package config loads, normalizes, and validates Engram's configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ENGRAM_TMDB_API_KEY. The Config type centralizes every knob the daemon and
// CLI need: staging/library directories, TMDB and subtitle-provider
// credentials, and the per-stage tunables (analyst thresholds, coordinator
// timeouts, monitor poll interval, matcher concurrency, organizer conflict
// policy) the pipeline components read.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
