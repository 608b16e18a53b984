package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"engram/internal/analyst/tmdb"
)

// DefaultCommandRunner shells out via os/exec, the same way internal/ripcoord
// and internal/analyst invoke their external tools.
func DefaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// TMDBEpisodeCounter implements EpisodeCounter against a TMDB searcher: it
// resolves the show name to an ID via a TV search, then reads the season's
// episode count from season details.
type TMDBEpisodeCounter struct {
	searcher tmdb.Searcher
}

// NewTMDBEpisodeCounter constructs an EpisodeCounter backed by a TMDB client.
func NewTMDBEpisodeCounter(searcher tmdb.Searcher) *TMDBEpisodeCounter {
	return &TMDBEpisodeCounter{searcher: searcher}
}

// EpisodeCount resolves showName to a TMDB TV id and returns the named
// season's episode count.
func (c *TMDBEpisodeCounter) EpisodeCount(ctx context.Context, showName string, season int) (int, error) {
	resp, err := c.searcher.SearchTVWithOptions(ctx, showName, tmdb.SearchOptions{})
	if err != nil {
		return 0, fmt.Errorf("search tv: %w", err)
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("no tmdb tv result for %q", showName)
	}
	details, err := c.searcher.GetSeasonDetails(ctx, resp.Results[0].ID, season)
	if err != nil {
		return 0, fmt.Errorf("get season details: %w", err)
	}
	return len(details.Episodes), nil
}

// OpenSubtitlesProvider implements SubtitleProvider against the OpenSubtitles
// REST API. It downloads every episode subtitle for a season into workDir
// and returns paths keyed by canonical episode code.
type OpenSubtitlesProvider struct {
	APIKey     string
	UserAgent  string
	UserToken  string
	Languages  []string
	WorkDir    string
	httpClient *http.Client
}

// NewOpenSubtitlesProvider constructs a provider that writes downloaded
// subtitles under workDir before handing paths back to BuildCorpus.
func NewOpenSubtitlesProvider(apiKey, userAgent, userToken string, languages []string, workDir string) *OpenSubtitlesProvider {
	return &OpenSubtitlesProvider{
		APIKey:     apiKey,
		UserAgent:  userAgent,
		UserToken:  userToken,
		Languages:  languages,
		WorkDir:    workDir,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Name identifies this provider in logs.
func (p *OpenSubtitlesProvider) Name() string { return "opensubtitles" }

type osSearchResult struct {
	Data []struct {
		Attributes struct {
			FeatureDetails struct {
				SeasonNumber  int `json:"season_number"`
				EpisodeNumber int `json:"episode_number"`
			} `json:"feature_details"`
			Files []struct {
				FileID int64 `json:"file_id"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

type osDownloadResult struct {
	Link     string `json:"link"`
	FileName string `json:"file_name"`
}

// FetchSeason searches OpenSubtitles for every episode of (showName, season)
// and downloads each result's first file into WorkDir.
func (p *OpenSubtitlesProvider) FetchSeason(ctx context.Context, showName string, season int) ([]Subtitle, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("opensubtitles api key not configured")
	}
	endpoint, err := url.Parse("https://api.opensubtitles.com/api/v1/subtitles")
	if err != nil {
		return nil, fmt.Errorf("parse opensubtitles url: %w", err)
	}
	q := url.Values{}
	q.Set("query", showName)
	q.Set("season_number", strconv.Itoa(season))
	if len(p.Languages) > 0 {
		q.Set("languages", strings.Join(p.Languages, ","))
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	p.addHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search subtitles: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles search returned %d", resp.StatusCode)
	}
	var search osSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if err := os.MkdirAll(p.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create provider workdir: %w", err)
	}

	var subs []Subtitle
	for _, entry := range search.Data {
		if len(entry.Attributes.Files) == 0 {
			continue
		}
		code := canonicalEpisodeCode(entry.Attributes.FeatureDetails.SeasonNumber, entry.Attributes.FeatureDetails.EpisodeNumber)
		path, err := p.download(ctx, entry.Attributes.Files[0].FileID, code)
		if err != nil {
			continue
		}
		subs = append(subs, Subtitle{EpisodeCode: code, Path: path})
	}
	return subs, nil
}

func (p *OpenSubtitlesProvider) download(ctx context.Context, fileID int64, episodeCode string) (string, error) {
	body, err := json.Marshal(map[string]int64{"file_id": fileID})
	if err != nil {
		return "", fmt.Errorf("marshal download request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.opensubtitles.com/api/v1/download", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.addHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request download link: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("opensubtitles download returned %d", resp.StatusCode)
	}
	var dl osDownloadResult
	if err := json.NewDecoder(resp.Body).Decode(&dl); err != nil {
		return "", fmt.Errorf("decode download response: %w", err)
	}

	fileResp, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.Link, nil)
	if err != nil {
		return "", fmt.Errorf("build file fetch: %w", err)
	}
	fileHTTP, err := p.httpClient.Do(fileResp)
	if err != nil {
		return "", fmt.Errorf("fetch subtitle file: %w", err)
	}
	defer fileHTTP.Body.Close()

	dest := filepath.Join(p.WorkDir, episodeCode+".srt")
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create subtitle file: %w", err)
	}
	defer out.Close()
	if _, err := out.ReadFrom(fileHTTP.Body); err != nil {
		return "", fmt.Errorf("write subtitle file: %w", err)
	}
	return dest, nil
}

func (p *OpenSubtitlesProvider) addHeaders(req *http.Request) {
	req.Header.Set("Api-Key", p.APIKey)
	req.Header.Set("User-Agent", p.UserAgent)
	if p.UserToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.UserToken)
	}
}

// ExecTranscriber implements Transcriber by invoking an external speech-to-
// text binary and reading its plain-text stdout. Production config points
// Binary at a whisper-family CLI.
type ExecTranscriber struct {
	Binary string
}

// NewExecTranscriber constructs a Transcriber around a configured binary.
func NewExecTranscriber(binary string) *ExecTranscriber {
	if strings.TrimSpace(binary) == "" {
		binary = "whisperx-cli"
	}
	return &ExecTranscriber{Binary: binary}
}

// Transcribe runs the configured binary against audioPath and returns its
// stdout, trimmed.
func (t *ExecTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Binary, "--audio", audioPath, "--output", "-") //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return strings.TrimSpace(string(out)), nil
}
