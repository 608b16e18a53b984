package testsupport

import (
	"path/filepath"
	"testing"

	"engram/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.TMDBAPIKey = "test-key"
	cfg.StagingDir = filepath.Join(base, "staging")
	cfg.MoviesLibraryDir = filepath.Join(base, "movies")
	cfg.TVLibraryDir = filepath.Join(base, "tv")
	cfg.SubtitleCacheDir = filepath.Join(base, "subcache")
	cfg.LogDir = filepath.Join(base, "logs")
	cfg.ReviewDir = filepath.Join(base, "review")
	cfg.APIBind = "127.0.0.1:0"
	cfg.OpticalDrives = []string{"/dev/sr0"}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithTMDBKey sets the TMDB API key on the test config.
func WithTMDBKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.TMDBAPIKey = key
	}
}

// WithOpticalDrive overrides the optical drive list on the test config.
func WithOpticalDrive(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.OpticalDrives = []string{path}
	}
}
