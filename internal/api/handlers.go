package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"engram/internal/jobs"
	"engram/internal/logging"
	"engram/internal/preflight"
	"engram/internal/store"
)

var (
	errJobManagerUnavailable = errors.New("organizer not configured on this server")
	errMissingPathParam      = errors.New("missing required query parameter \"path\"")
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

// handleStatus reports daemon liveness and a snapshot job count, enough for
// a load balancer or the CLI's status command to tell the daemon is up.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobList, err := s.store.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"jobs_total": len(jobList),
		"time":      time.Now().UTC(),
	})
}

// handleListJobs implements the list_jobs REST operation.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobList, err := s.store.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobList)
}

// handleGetJob implements get_job(id).
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleDeleteJob implements delete_job(id).
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.DeleteJob(r.Context(), id); err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, err)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCancelJob implements cancel_job(id): cooperative cancel, transitions
// the job to FAILED with message "cancelled by user".
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.jobsMgr.CancelJobByID(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// resolveReviewRequest mirrors jobs.ReviewResolution over the wire; only the
// fields matching Choice need to be set.
type resolveReviewRequest struct {
	Choice             jobs.ReviewChoice `json:"choice"`
	Name               string            `json:"name,omitempty"`
	Year               int               `json:"year,omitempty"`
	SelectedTitleIndex *int              `json:"selected_title_index,omitempty"`
	EpisodeMap         map[int]string    `json:"episode_map,omitempty"`
}

// handleResolveReview implements resolve_review(job_id, choice, data).
func (s *Server) handleResolveReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req resolveReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resolution := jobs.ReviewResolution{
		Choice:             req.Choice,
		Name:               req.Name,
		Year:               req.Year,
		SelectedTitleIndex: req.SelectedTitleIndex,
		EpisodeMap:         req.EpisodeMap,
	}
	job, err := s.jobsMgr.ResolveReview(r.Context(), id, resolution)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleListTitles lists every title belonging to a job.
func (s *Server) handleListTitles(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "jobID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	titleList, err := s.store.ListTitlesByJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, titleList)
}

type resolveConflictRequest struct {
	Choice store.ConflictResolution `json:"choice"`
}

// handleResolveConflict resolves an organizer naming conflict the "ask"
// policy left pending for a title.
func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "titleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.organizer == nil {
		writeError(w, http.StatusServiceUnavailable, errJobManagerUnavailable)
		return
	}
	title, err := s.store.GetTitle(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := s.organizer.ResolvePendingConflict(r.Context(), id, req.Choice); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.maybeCompleteReviewedJob(r, title.JobID)
	w.WriteHeader(http.StatusAccepted)
}

// maybeCompleteReviewedJob closes out a job parked in review_needed by the
// organize stage once its last pending conflict has been resolved.
func (s *Server) maybeCompleteReviewedJob(r *http.Request, jobID int64) {
	ctx := r.Context()
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil || job.State != store.JobReviewNeeded {
		return
	}
	titles, err := s.store.ListTitlesByJob(ctx, jobID)
	if err != nil {
		return
	}
	for _, t := range titles {
		if t.State == store.TitleReview {
			return
		}
	}
	if _, err := s.jobsMgr.ResumeJob(ctx, jobID, store.JobCompleted); err != nil {
		s.logger.Warn("could not complete reviewed job", logging.Error(err))
	}
}

type simulateInsertRequest struct {
	VolumeLabel     string `json:"volume_label"`
	ContentType     string `json:"content_type,omitempty"`
	SimulateRipping bool   `json:"simulate_ripping,omitempty"`
}

// handleSimulateInsert implements the simulate_insert testing hook: it has
// the same effect as a real disc insertion, driving the job
// manager exactly as the daemon's drive monitor would. With
// simulate_ripping set, the drive's scan and rip are served by the scripted
// simulator instead of the real tool, shaped by content_type.
func (s *Server) handleSimulateInsert(w http.ResponseWriter, r *http.Request) {
	drive := chi.URLParam(r, "drive")
	var req simulateInsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SimulateRipping {
		if s.simulator == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("simulated ripping not configured on this server"))
			return
		}
		s.simulator.Prepare(drive, req.VolumeLabel, req.ContentType)
	}
	job, err := s.jobsMgr.StartJob(r.Context(), drive, req.VolumeLabel)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// handleEject implements the drive-eject auxiliary operation,
// cancelling any active job on the drive before the tray opens.
func (s *Server) handleEject(w http.ResponseWriter, r *http.Request) {
	drive := chi.URLParam(r, "drive")
	if s.eject == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("eject not configured on this server"))
		return
	}
	if err := s.eject(r.Context(), drive); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleDetectTools implements detect_tools: pre-flight checks on the rip
// tool and ffmpeg.
func (s *Server) handleDetectTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, preflight.CheckSystemDeps(s.ripTool, s.ffmpegPath))
}

// handleValidateTool implements validate_tool(path): returns found/version/error.
func (s *Server) handleValidateTool(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, errMissingPathParam)
		return
	}
	writeJSON(w, http.StatusOK, preflight.ValidateTool(path))
}

// handleLogs serves the daemon's recent structured log events from the
// in-memory stream hub. Pass since=<seq> to page forward and wait=true to
// long-poll for the next batch.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logHub == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("log streaming not configured on this server"))
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	wait := r.URL.Query().Get("wait") == "true"
	events, next, err := s.logHub.Fetch(r.Context(), since, limit, wait)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "next": next})
}
