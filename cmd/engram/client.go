package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"engram/internal/jobs"
	"engram/internal/preflight"
	"engram/internal/store"
)

// apiClient is a thin HTTP binding over the daemon's REST surface.
// The CLI never touches the store or job manager directly; everything goes
// through the same endpoints a remote dashboard would use.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(bind string) *apiClient {
	return &apiClient{
		baseURL: "http://" + bind,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapConnectError(err, c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapConnectError(err error, baseURL string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("engram daemon is not reachable at %s. Start it with: engramd", baseURL)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

type statusResponse struct {
	Status    string    `json:"status"`
	JobsTotal int       `json:"jobs_total"`
	Time      time.Time `json:"time"`
}

func (c *apiClient) status(ctx context.Context) (statusResponse, error) {
	var out statusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

func (c *apiClient) listJobs(ctx context.Context) ([]store.Job, error) {
	var out []store.Job
	err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &out)
	return out, err
}

func (c *apiClient) getJob(ctx context.Context, id int64) (store.Job, error) {
	var out store.Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

func (c *apiClient) listTitles(ctx context.Context, jobID int64) ([]store.Title, error) {
	var out []store.Title
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+strconv.FormatInt(jobID, 10)+"/titles", nil, &out)
	return out, err
}

func (c *apiClient) cancelJob(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+strconv.FormatInt(id, 10)+"/cancel", nil, nil)
}

func (c *apiClient) deleteJob(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+strconv.FormatInt(id, 10), nil, nil)
}

// reviewRequestBody mirrors the json tags the daemon's resolveReviewRequest
// decodes; jobs.ReviewResolution itself carries no tags, so the wire shape
// is kept separate here rather than relying on field-name matching.
type reviewRequestBody struct {
	Choice             jobs.ReviewChoice `json:"choice"`
	Name               string            `json:"name,omitempty"`
	Year               int               `json:"year,omitempty"`
	SelectedTitleIndex *int              `json:"selected_title_index,omitempty"`
	EpisodeMap         map[int]string    `json:"episode_map,omitempty"`
}

func (c *apiClient) resolveReview(ctx context.Context, jobID int64, resolution jobs.ReviewResolution) (store.Job, error) {
	var out store.Job
	body := reviewRequestBody{
		Choice:             resolution.Choice,
		Name:               resolution.Name,
		Year:               resolution.Year,
		SelectedTitleIndex: resolution.SelectedTitleIndex,
		EpisodeMap:         resolution.EpisodeMap,
	}
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+strconv.FormatInt(jobID, 10)+"/resolve_review", body, &out)
	return out, err
}

func (c *apiClient) resolveConflict(ctx context.Context, titleID int64, choice store.ConflictResolution) error {
	body := map[string]store.ConflictResolution{"choice": choice}
	return c.do(ctx, http.MethodPost, "/api/titles/"+strconv.FormatInt(titleID, 10)+"/resolve_conflict", body, nil)
}

func (c *apiClient) simulateInsert(ctx context.Context, drive, volumeLabel, contentType string, simulateRipping bool) (store.Job, error) {
	var out store.Job
	body := map[string]any{"volume_label": volumeLabel}
	if contentType != "" {
		body["content_type"] = contentType
	}
	if simulateRipping {
		body["simulate_ripping"] = true
	}
	err := c.do(ctx, http.MethodPost, "/api/drives/"+url.PathEscape(drive)+"/simulate_insert", body, &out)
	return out, err
}

func (c *apiClient) eject(ctx context.Context, drive string) error {
	return c.do(ctx, http.MethodPost, "/api/drives/"+url.PathEscape(drive)+"/eject", nil, nil)
}

func (c *apiClient) detectTools(ctx context.Context) ([]preflight.Status, error) {
	var out []preflight.Status
	err := c.do(ctx, http.MethodGet, "/api/tools/detect", nil, &out)
	return out, err
}

func (c *apiClient) validateTool(ctx context.Context, path string) (preflight.Status, error) {
	var out preflight.Status
	err := c.do(ctx, http.MethodPost, "/api/tools/validate?path="+url.QueryEscape(path), nil, &out)
	return out, err
}
