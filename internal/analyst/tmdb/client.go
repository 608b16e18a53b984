package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Result represents a single TMDB search match.
type Result struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	MediaType    string  `json:"media_type"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
}

// Response models the TMDB paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Episode describes a single TMDB episode entry.
type Episode struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Runtime       int    `json:"runtime"`
	AirDate       string `json:"air_date"`
}

// SeasonDetails captures the full TMDB season payload (episodes included).
type SeasonDetails struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

// Searcher defines the TMDB operations the analyst and matcher consume.
type Searcher interface {
	SearchMovieWithOptions(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	SearchTVWithOptions(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	SearchMultiWithOptions(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*SeasonDetails, error)
	GetMovieDetails(ctx context.Context, movieID int64) (*Result, error)
	GetTVDetails(ctx context.Context, showID int64) (*Result, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchOptions contains optional parameters for TMDB searches.
type SearchOptions struct {
	Year    int    `json:"year,omitempty"`
	Studio  string `json:"studio,omitempty"`
	Runtime int    `json:"runtime,omitempty"` // in minutes
}

// CacheKey returns a stable string representation for caching.
func (c SearchOptions) CacheKey() string {
	var builder strings.Builder
	builder.WriteString("y=")
	builder.WriteString(strconv.Itoa(c.Year))
	builder.WriteString("|r=")
	builder.WriteString(strconv.Itoa(c.Runtime))
	builder.WriteString("|s=")
	builder.WriteString(strings.ToLower(strings.TrimSpace(c.Studio)))
	return builder.String()
}

// get issues one API request against path, decoding the 200 response into
// out. label names the operation in errors; it surfaces the HTTP status so
// callers and logs can tell a 404 from a rate limit.
func (c *Client) get(ctx context.Context, path, label string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb %s returned %d (latency=%v)", label, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", label, err)
	}
	return nil
}

func searchParams(query string, extra func(url.Values)) (url.Values, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", strings.TrimSpace(query))
	if extra != nil {
		extra(params)
	}
	return params, nil
}

// SearchMovie searches TMDB for the supplied title.
func (c *Client) SearchMovie(ctx context.Context, query string) (*Response, error) {
	return c.SearchMovieWithOptions(ctx, query, SearchOptions{})
}

// SearchMovieWithOptions performs a TMDB movie search with optional filters.
func (c *Client) SearchMovieWithOptions(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	params, err := searchParams(query, func(p url.Values) {
		if opts.Year > 0 {
			p.Set("primary_release_year", strconv.Itoa(opts.Year))
		}
		// Studio filtering would need a name-to-company-ID lookup first;
		// TMDB filters by company ID, not name.
		if opts.Runtime > 0 {
			p.Set("runtime.gte", strconv.Itoa(opts.Runtime-10))
			p.Set("runtime.lte", strconv.Itoa(opts.Runtime+10))
		}
	})
	if err != nil {
		return nil, err
	}
	var payload Response
	if err := c.get(ctx, "/search/movie", "search", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchTVWithOptions performs a TMDB TV search with optional filters.
func (c *Client) SearchTVWithOptions(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	params, err := searchParams(query, func(p url.Values) {
		if opts.Year > 0 {
			p.Set("first_air_date_year", strconv.Itoa(opts.Year))
		}
	})
	if err != nil {
		return nil, err
	}
	var payload Response
	if err := c.get(ctx, "/search/tv", "tv search", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchMultiWithOptions performs a TMDB multi search across media types.
func (c *Client) SearchMultiWithOptions(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	params, err := searchParams(query, func(p url.Values) {
		if opts.Year > 0 {
			p.Set("year", strconv.Itoa(opts.Year))
		}
	})
	if err != nil {
		return nil, err
	}
	var payload Response
	if err := c.get(ctx, "/search/multi", "multi search", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetSeasonDetails fetches a season's full metadata, episodes included.
func (c *Client) GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*SeasonDetails, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	if seasonNumber <= 0 {
		return nil, errors.New("season number must be positive")
	}
	var payload SeasonDetails
	path := fmt.Sprintf("/tv/%d/season/%d", showID, seasonNumber)
	if err := c.get(ctx, path, "season fetch", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetMovieDetails fetches movie details by TMDB ID.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int64) (*Result, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload Result
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", movieID), "movie details", nil, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "movie"
	return &payload, nil
}

// GetTVDetails fetches TV show details by TMDB ID.
func (c *Client) GetTVDetails(ctx context.Context, showID int64) (*Result, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	var payload Result
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", showID), "tv details", nil, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "tv"
	return &payload, nil
}
