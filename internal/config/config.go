package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config encapsulates the daemon's settings: library and staging paths,
// external tool paths, provider credentials, and every pipeline tunable.
// Credential fields fall back to an environment variable when unset in the
// TOML file.
type Config struct {
	StagingDir        string `toml:"staging_dir"`
	MoviesLibraryDir  string `toml:"movies_library_dir"`
	TVLibraryDir      string `toml:"tv_library_dir"`
	SubtitleCacheDir  string `toml:"subtitle_cache_dir"`
	LogDir            string `toml:"log_dir"`
	ReviewDir         string `toml:"review_dir"`
	OpticalDrives     []string `toml:"optical_drives"`
	APIBind           string `toml:"api_bind"`

	RipToolPath   string `toml:"rip_tool_path"`
	FFmpegPath    string `toml:"ffmpeg_path"`
	TranscodingEnabled bool `toml:"transcoding_enabled"` // always false; Non-goal, field kept for settings round-trip

	TMDBAPIKey              string  `toml:"tmdb_api_key"`
	TMDBBaseURL             string  `toml:"tmdb_base_url"`
	TMDBLanguage            string  `toml:"tmdb_language"`
	TMDBConfidenceThreshold float64 `toml:"tmdb_confidence_threshold"`

	SubtitlesEnabled       bool     `toml:"subtitles_enabled"`
	OpenSubtitlesAPIKey    string   `toml:"opensubtitles_api_key"`
	OpenSubtitlesUserAgent string   `toml:"opensubtitles_user_agent"`
	OpenSubtitlesUserToken string   `toml:"opensubtitles_user_token"`
	OpenSubtitlesLanguages []string `toml:"opensubtitles_languages"`

	// Disc Analyst thresholds, mirroring analyst.Thresholds.
	AnalystMovieMinDurationSeconds   int     `toml:"analyst_movie_min_duration_seconds"`
	AnalystTVMinDurationSeconds      int     `toml:"analyst_tv_min_duration_seconds"`
	AnalystTVMaxDurationSeconds      int     `toml:"analyst_tv_max_duration_seconds"`
	AnalystTVDurationVarianceSeconds int     `toml:"analyst_tv_duration_variance_seconds"`
	AnalystTVMinClusterSize          int     `toml:"analyst_tv_min_cluster_size"`
	AnalystMovieDominance            float64 `toml:"analyst_movie_dominance"`

	// Ripping Coordinator tunables, mirroring ripcoord.Options.
	RipScanTimeoutSeconds       int `toml:"rip_scan_timeout_seconds"`
	RipFilePollIntervalSeconds  int `toml:"rip_file_poll_interval_seconds"`
	RipFileReadyTimeoutSeconds  int `toml:"rip_file_ready_timeout_seconds"`

	// Drive Monitor tunables, mirroring drivemonitor.Options.
	MonitorPollIntervalSeconds int `toml:"monitor_poll_interval_seconds"`
	MonitorLabelTimeoutSeconds int `toml:"monitor_label_timeout_seconds"`

	// Matcher tunables, mirroring matcher.Options.
	MatcherChunkSeconds    float64 `toml:"matcher_chunk_seconds"`
	MatcherMinConfidence   float64 `toml:"matcher_min_confidence"`
	MatcherMinScoreMargin  float64 `toml:"matcher_min_score_margin"`
	MatcherMaxConcurrent   int     `toml:"matcher_max_concurrent"`

	// Organizer conflict policy default: one of
	// "ask", "overwrite", "skip", "rename".
	ConflictResolutionDefault string `toml:"conflict_resolution_default"`

	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`
}

const (
	defaultStagingDir       = "~/.local/share/engram/staging"
	defaultMoviesLibraryDir = "~/library/movies"
	defaultTVLibraryDir     = "~/library/tv"
	defaultSubtitleCacheDir = "~/.local/share/engram/cache/subtitles"
	defaultLogDir           = "~/.local/share/engram/logs"
	defaultReviewDir        = "~/review"
	defaultOpticalDrive     = "/dev/sr0"
	defaultAPIBind          = "127.0.0.1:7487"
	defaultTMDBLanguage     = "en-US"
	defaultTMDBBaseURL      = "https://api.themoviedb.org/3"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultOpenSubtitlesUserAgent = "Engram/dev"
	defaultRipToolPath      = "makemkvcon"
	defaultFFmpegPath       = "ffmpeg"
)

// Default returns a Config populated with the documented defaults.
func Default() Config {
	return Config{
		StagingDir:                       defaultStagingDir,
		MoviesLibraryDir:                 defaultMoviesLibraryDir,
		TVLibraryDir:                     defaultTVLibraryDir,
		SubtitleCacheDir:                 defaultSubtitleCacheDir,
		LogDir:                           defaultLogDir,
		ReviewDir:                        defaultReviewDir,
		OpticalDrives:                    []string{defaultOpticalDrive},
		APIBind:                          defaultAPIBind,
		RipToolPath:                      defaultRipToolPath,
		FFmpegPath:                       defaultFFmpegPath,
		TranscodingEnabled:               false,
		TMDBLanguage:                     defaultTMDBLanguage,
		TMDBBaseURL:                      defaultTMDBBaseURL,
		TMDBConfidenceThreshold:          0.8,
		OpenSubtitlesLanguages:           []string{"en"},
		OpenSubtitlesUserAgent:           defaultOpenSubtitlesUserAgent,
		AnalystMovieMinDurationSeconds:   4800,
		AnalystTVMinDurationSeconds:      1080,
		AnalystTVMaxDurationSeconds:      4200,
		AnalystTVDurationVarianceSeconds: 120,
		AnalystTVMinClusterSize:          3,
		AnalystMovieDominance:            0.6,
		RipScanTimeoutSeconds:            120,
		RipFilePollIntervalSeconds:       5,
		RipFileReadyTimeoutSeconds:       600,
		MonitorPollIntervalSeconds:       2,
		MonitorLabelTimeoutSeconds:       5,
		MatcherChunkSeconds:              30,
		MatcherMinConfidence:             0.55,
		MatcherMinScoreMargin:            0.03,
		MatcherMaxConcurrent:             2,
		ConflictResolutionDefault:        "ask",
		LogFormat:                        defaultLogFormat,
		LogLevel:                         defaultLogLevel,
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/engram/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/engram/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("engram.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.StagingDir, err = expandPath(c.StagingDir); err != nil {
		return fmt.Errorf("staging_dir: %w", err)
	}
	if c.MoviesLibraryDir, err = expandPath(c.MoviesLibraryDir); err != nil {
		return fmt.Errorf("movies_library_dir: %w", err)
	}
	if c.TVLibraryDir, err = expandPath(c.TVLibraryDir); err != nil {
		return fmt.Errorf("tv_library_dir: %w", err)
	}
	if strings.TrimSpace(c.SubtitleCacheDir) == "" {
		c.SubtitleCacheDir = defaultSubtitleCacheDir
	}
	if c.SubtitleCacheDir, err = expandPath(c.SubtitleCacheDir); err != nil {
		return fmt.Errorf("subtitle_cache_dir: %w", err)
	}
	if c.LogDir, err = expandPath(c.LogDir); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	if c.ReviewDir, err = expandPath(c.ReviewDir); err != nil {
		return fmt.Errorf("review_dir: %w", err)
	}

	if len(c.OpticalDrives) == 0 {
		c.OpticalDrives = []string{defaultOpticalDrive}
	}

	c.APIBind = strings.TrimSpace(c.APIBind)
	if c.APIBind == "" {
		c.APIBind = defaultAPIBind
	}

	c.RipToolPath = strings.TrimSpace(c.RipToolPath)
	if c.RipToolPath == "" {
		c.RipToolPath = defaultRipToolPath
	}
	c.FFmpegPath = strings.TrimSpace(c.FFmpegPath)
	if c.FFmpegPath == "" {
		c.FFmpegPath = defaultFFmpegPath
	}
	// Transcoding is an explicit Non-goal: the core never invokes an
	// encoder regardless of what a config file sets here.
	c.TranscodingEnabled = false

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch c.LogFormat {
	case "", "console":
		c.LogFormat = "console"
	case "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q", c.LogFormat)
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	if c.TMDBAPIKey == "" {
		if value, ok := os.LookupEnv("ENGRAM_TMDB_API_KEY"); ok {
			c.TMDBAPIKey = value
		}
	}
	c.TMDBBaseURL = strings.TrimSpace(c.TMDBBaseURL)
	if c.TMDBBaseURL == "" {
		c.TMDBBaseURL = defaultTMDBBaseURL
	}
	c.TMDBLanguage = strings.TrimSpace(c.TMDBLanguage)
	if c.TMDBLanguage == "" {
		c.TMDBLanguage = defaultTMDBLanguage
	}

	c.OpenSubtitlesAPIKey = strings.TrimSpace(c.OpenSubtitlesAPIKey)
	if c.OpenSubtitlesAPIKey == "" {
		if value, ok := os.LookupEnv("ENGRAM_OPENSUBTITLES_API_KEY"); ok {
			c.OpenSubtitlesAPIKey = strings.TrimSpace(value)
		}
	}
	c.OpenSubtitlesUserAgent = strings.TrimSpace(c.OpenSubtitlesUserAgent)
	if c.OpenSubtitlesUserAgent == "" {
		c.OpenSubtitlesUserAgent = defaultOpenSubtitlesUserAgent
	}
	c.OpenSubtitlesUserToken = strings.TrimSpace(c.OpenSubtitlesUserToken)
	if c.OpenSubtitlesUserToken == "" {
		if value, ok := os.LookupEnv("ENGRAM_OPENSUBTITLES_USER_TOKEN"); ok {
			c.OpenSubtitlesUserToken = strings.TrimSpace(value)
		}
	}
	if len(c.OpenSubtitlesLanguages) == 0 {
		c.OpenSubtitlesLanguages = []string{"en"}
	} else {
		langs := make([]string, 0, len(c.OpenSubtitlesLanguages))
		seen := make(map[string]struct{}, len(c.OpenSubtitlesLanguages))
		for _, lang := range c.OpenSubtitlesLanguages {
			normalized := strings.ToLower(strings.TrimSpace(lang))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			langs = append(langs, normalized)
		}
		if len(langs) == 0 {
			langs = []string{"en"}
		}
		c.OpenSubtitlesLanguages = langs
	}

	if c.AnalystMovieMinDurationSeconds <= 0 {
		c.AnalystMovieMinDurationSeconds = 4800
	}
	if c.AnalystTVMinDurationSeconds <= 0 {
		c.AnalystTVMinDurationSeconds = 1080
	}
	if c.AnalystTVMaxDurationSeconds <= 0 {
		c.AnalystTVMaxDurationSeconds = 4200
	}
	if c.AnalystTVDurationVarianceSeconds <= 0 {
		c.AnalystTVDurationVarianceSeconds = 120
	}
	if c.AnalystTVMinClusterSize <= 0 {
		c.AnalystTVMinClusterSize = 3
	}
	if c.AnalystMovieDominance <= 0 {
		c.AnalystMovieDominance = 0.6
	}

	if c.RipScanTimeoutSeconds <= 0 {
		c.RipScanTimeoutSeconds = 120
	}
	if c.RipFilePollIntervalSeconds <= 0 {
		c.RipFilePollIntervalSeconds = 5
	}
	if c.RipFileReadyTimeoutSeconds <= 0 {
		c.RipFileReadyTimeoutSeconds = 600
	}

	if c.MonitorPollIntervalSeconds <= 0 {
		c.MonitorPollIntervalSeconds = 2
	}
	if c.MonitorLabelTimeoutSeconds <= 0 {
		c.MonitorLabelTimeoutSeconds = 5
	}

	if c.MatcherChunkSeconds <= 0 {
		c.MatcherChunkSeconds = 30
	}
	if c.MatcherMinConfidence <= 0 {
		c.MatcherMinConfidence = 0.55
	}
	if c.MatcherMinScoreMargin <= 0 || c.MatcherMinScoreMargin >= 1 {
		c.MatcherMinScoreMargin = 0.03
	}
	if c.MatcherMaxConcurrent <= 0 {
		c.MatcherMaxConcurrent = 2
	}

	c.ConflictResolutionDefault = strings.ToLower(strings.TrimSpace(c.ConflictResolutionDefault))
	if c.ConflictResolutionDefault == "" {
		c.ConflictResolutionDefault = "ask"
	}

	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.TMDBAPIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/engram/config.toml"
		}
		return fmt.Errorf("tmdb_api_key is required. Set ENGRAM_TMDB_API_KEY env var or edit %s", defaultPath)
	}
	if c.MoviesLibraryDir == "" {
		return errors.New("movies_library_dir must be set")
	}
	if c.TVLibraryDir == "" {
		return errors.New("tv_library_dir must be set")
	}
	if len(c.OpticalDrives) == 0 {
		return errors.New("optical_drives must include at least one device path")
	}
	if c.TMDBConfidenceThreshold < 0 || c.TMDBConfidenceThreshold > 1 {
		return errors.New("tmdb_confidence_threshold must be between 0 and 1")
	}
	if c.AnalystMovieDominance <= 0 || c.AnalystMovieDominance > 1 {
		return errors.New("analyst_movie_dominance must be between 0 (exclusive) and 1")
	}
	if c.AnalystTVMaxDurationSeconds <= c.AnalystTVMinDurationSeconds {
		return errors.New("analyst_tv_max_duration_seconds must be greater than analyst_tv_min_duration_seconds")
	}
	if c.MatcherMinConfidence < 0 || c.MatcherMinConfidence > 1 {
		return errors.New("matcher_min_confidence must be between 0 and 1")
	}
	switch c.ConflictResolutionDefault {
	case "ask", "overwrite", "skip", "rename":
	default:
		return fmt.Errorf("conflict_resolution_default: unsupported value %q", c.ConflictResolutionDefault)
	}
	if c.SubtitlesEnabled {
		if strings.TrimSpace(c.OpenSubtitlesAPIKey) == "" {
			return errors.New("opensubtitles_api_key must be set when subtitles_enabled is true")
		}
		if strings.TrimSpace(c.OpenSubtitlesUserAgent) == "" {
			return errors.New("opensubtitles_user_agent must be set when subtitles_enabled is true")
		}
		if len(c.OpenSubtitlesLanguages) == 0 {
			return errors.New("opensubtitles_languages must include at least one language when subtitles_enabled is true")
		}
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.StagingDir, c.MoviesLibraryDir, c.TVLibraryDir, c.SubtitleCacheDir, c.LogDir, c.ReviewDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AnalystMovieMinDuration returns the movie minimum-duration threshold as a duration.
func (c *Config) AnalystMovieMinDuration() time.Duration {
	return time.Duration(c.AnalystMovieMinDurationSeconds) * time.Second
}

// RipScanTimeout returns the info-mode scan timeout as a duration.
func (c *Config) RipScanTimeout() time.Duration {
	return time.Duration(c.RipScanTimeoutSeconds) * time.Second
}

// RipFilePollInterval returns the rip-progress poll cadence as a duration.
func (c *Config) RipFilePollInterval() time.Duration {
	return time.Duration(c.RipFilePollIntervalSeconds) * time.Second
}

// RipFileReadyTimeout returns the rip-completion wait ceiling as a duration.
func (c *Config) RipFileReadyTimeout() time.Duration {
	return time.Duration(c.RipFileReadyTimeoutSeconds) * time.Second
}

// MonitorPollInterval returns the drive-monitor poll cadence as a duration.
func (c *Config) MonitorPollInterval() time.Duration {
	return time.Duration(c.MonitorPollIntervalSeconds) * time.Second
}

// MonitorLabelTimeout returns the volume-label read timeout as a duration.
func (c *Config) MonitorLabelTimeout() time.Duration {
	return time.Duration(c.MonitorLabelTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := `# Engram Configuration
# ====================
# Edit the REQUIRED settings below, then customize optional settings when needed.

# ============================================================================
# REQUIRED SETTINGS
# ============================================================================

tmdb_api_key = "your_tmdb_api_key_here"              # Get from themoviedb.org/settings/api

movies_library_dir = "~/library/movies"              # Final destination for organized movies
tv_library_dir = "~/library/tv"                      # Final destination for organized TV episodes

# ============================================================================
# PATHS & HARDWARE
# ============================================================================

staging_dir = "~/.local/share/engram/staging"        # Working directory for in-progress rips
subtitle_cache_dir = "~/.local/share/engram/cache/subtitles"
log_dir = "~/.local/share/engram/logs"
review_dir = "~/review"                              # Items awaiting manual resolution
optical_drives = ["/dev/sr0"]                        # One or more optical drive device paths
api_bind = "127.0.0.1:7487"                          # REST+WS bind address (host:port)

rip_tool_path = "makemkvcon"                         # External ripping tool executable
ffmpeg_path = "ffmpeg"                                # Used for audio-chunk extraction during matching
transcoding_enabled = false                          # Always false; transcoding is out of scope

# ============================================================================
# TMDB & SUBTITLES
# ============================================================================

tmdb_language = "en-US"
tmdb_base_url = "https://api.themoviedb.org/3"
tmdb_confidence_threshold = 0.8

subtitles_enabled = false
opensubtitles_api_key = ""
opensubtitles_user_agent = "Engram/dev"
opensubtitles_user_token = ""
opensubtitles_languages = ["en"]

# ============================================================================
# DISC ANALYST THRESHOLDS
# ============================================================================

analyst_movie_min_duration_seconds = 4800
analyst_tv_min_duration_seconds = 1080
analyst_tv_max_duration_seconds = 4200
analyst_tv_duration_variance_seconds = 120
analyst_tv_min_cluster_size = 3
analyst_movie_dominance = 0.6

# ============================================================================
# RIPPING COORDINATOR
# ============================================================================

rip_scan_timeout_seconds = 120
rip_file_poll_interval_seconds = 5
rip_file_ready_timeout_seconds = 600

# ============================================================================
# DRIVE MONITOR
# ============================================================================

monitor_poll_interval_seconds = 2
monitor_label_timeout_seconds = 5

# ============================================================================
# MATCHER
# ============================================================================

matcher_chunk_seconds = 30
matcher_min_confidence = 0.55
matcher_min_score_margin = 0.03
matcher_max_concurrent = 2

# ============================================================================
# ORGANIZER
# ============================================================================

conflict_resolution_default = "ask"                  # one of: ask, overwrite, skip, rename

# ============================================================================
# LOGGING
# ============================================================================

log_format = "console"                              # "console" or "json"
log_level = "info"                                  # info, debug, warn, error
`

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
