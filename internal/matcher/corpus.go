package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"engram/internal/logging"
	"engram/internal/textutil"
)

// Subtitle is one episode's reference SRT, already located on disk.
type Subtitle struct {
	EpisodeCode string // canonical "S01E03" form
	Path        string
}

// EpisodeCounter reports how many episodes a season has, so the corpus
// builder knows when it has complete coverage. TMDB fills this role.
type EpisodeCounter interface {
	EpisodeCount(ctx context.Context, showName string, season int) (int, error)
}

// SubtitleProvider fetches a season's subtitles from a remote source.
// Providers are queried in a fixed order: a primary and a fallback.
type SubtitleProvider interface {
	Name() string
	FetchSeason(ctx context.Context, showName string, season int) ([]Subtitle, error)
}

// Corpus is the reference material one matching pass is scored against: one
// plain-text transcript per canonical episode.
type Corpus struct {
	ShowName  string
	Season    int
	Episodes  map[string]string // episode code -> plain text
	Complete  bool
	TotalKnown int
}

var (
	episodeCodePattern = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,3})`)
	episodeXPattern     = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
)

func canonicalEpisodeCode(season, episode int) string {
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

// episodeCodeFromFilename extracts an episode code from a cached subtitle's
// filename, matching SxxEyy or NxNN conventions.
func episodeCodeFromFilename(name string) (string, bool) {
	if m := episodeCodePattern.FindStringSubmatch(name); len(m) == 3 {
		season, err1 := strconv.Atoi(m[1])
		episode, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			return canonicalEpisodeCode(season, episode), true
		}
	}
	if m := episodeXPattern.FindStringSubmatch(name); len(m) == 3 {
		season, err1 := strconv.Atoi(m[1])
		episode, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			return canonicalEpisodeCode(season, episode), true
		}
	}
	return "", false
}

func sanitizeShowName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// showCacheDir returns the local subtitle cache directory for one show,
// e.g. "<cacheDir>/data/breaking_bad".
func showCacheDir(cacheDir, showName string) string {
	return filepath.Join(cacheDir, "data", sanitizeShowName(showName))
}

// loadLocalCache reads every *.srt file in the show's cache directory whose
// filename encodes an episode code, without regard to season: callers filter
// by season via the returned map's keys.
func loadLocalCache(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read subtitle cache dir: %w", err)
	}
	found := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".srt") {
			continue
		}
		code, ok := episodeCodeFromFilename(entry.Name())
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(plainTextFromSRT(cleanSRT(data)))
		if text == "" {
			continue
		}
		found[code] = text
	}
	return found, nil
}

// BuildCorpus assembles the reference subtitle text for one (show, season),
// preferring the local cache and falling back to providers in order when
// coverage is incomplete. Provider results are written back into the cache
// so future jobs for the same season skip the network entirely.
func BuildCorpus(ctx context.Context, cacheDir, showName string, season int, counter EpisodeCounter, providers []SubtitleProvider, logger *slog.Logger) (*Corpus, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	dir := showCacheDir(cacheDir, showName)
	local, err := loadLocalCache(dir)
	if err != nil {
		return nil, err
	}

	corpus := &Corpus{ShowName: showName, Season: season, Episodes: filterSeason(local, season)}

	totalKnown := 0
	if counter != nil {
		if count, err := counter.EpisodeCount(ctx, showName, season); err == nil && count > 0 {
			totalKnown = count
		} else if err != nil {
			logger.Warn("episode count lookup failed, proceeding with partial coverage", logging.Error(err))
		}
	}
	corpus.TotalKnown = totalKnown
	corpus.Complete = totalKnown > 0 && len(corpus.Episodes) >= totalKnown

	if corpus.Complete || len(providers) == 0 {
		return corpus, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("could not create subtitle cache dir, skipping provider writes", logging.Error(err))
	}

	for _, provider := range providers {
		if corpus.Complete {
			break
		}
		fetched, err := provider.FetchSeason(ctx, showName, season)
		if err != nil {
			logger.Warn("subtitle provider failed, trying next", logging.String("provider", provider.Name()), logging.Error(err))
			continue
		}
		for _, sub := range fetched {
			if _, have := corpus.Episodes[sub.EpisodeCode]; have {
				continue
			}
			data, err := os.ReadFile(sub.Path)
			if err != nil {
				continue
			}
			cleaned := cleanSRT(data)
			text := strings.TrimSpace(plainTextFromSRT(cleaned))
			if text == "" {
				continue
			}
			corpus.Episodes[sub.EpisodeCode] = text
			cacheName := fmt.Sprintf("%s - %s.srt", textutil.SanitizeFileName(showName), sub.EpisodeCode)
			cachePath := filepath.Join(dir, cacheName)
			if err := os.WriteFile(cachePath, cleaned, 0o644); err != nil {
				logger.Warn("could not write subtitle to cache", logging.String("path", cachePath), logging.Error(err))
			}
		}
		if totalKnown > 0 {
			corpus.Complete = len(corpus.Episodes) >= totalKnown
		}
	}
	return corpus, nil
}

func filterSeason(all map[string]string, season int) map[string]string {
	prefix := fmt.Sprintf("S%02dE", season)
	filtered := make(map[string]string, len(all))
	for code, text := range all {
		if strings.HasPrefix(strings.ToUpper(code), prefix) {
			filtered[code] = text
		}
	}
	return filtered
}

// episodeCodes returns the corpus's episode codes sorted for deterministic
// logging and testing.
func (c *Corpus) episodeCodes() []string {
	codes := make([]string, 0, len(c.Episodes))
	for code := range c.Episodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
