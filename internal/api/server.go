package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"engram/internal/config"
	"engram/internal/events"
	"engram/internal/jobs"
	"engram/internal/logging"
	"engram/internal/organizer"
	"engram/internal/ripcoord"
	"engram/internal/store"
)

// Server exposes the daemon's store and job manager over HTTP: job/title
// CRUD, review resolution, a simulated-insert testing hook, rip-tool
// preflight checks, a prometheus scrape endpoint, and a websocket mirror of
// the event broadcaster.
type Server struct {
	bind   string
	logger *slog.Logger

	store      *store.Store
	jobsMgr    *jobs.Manager
	bus        *events.Broadcaster
	organizer  *organizer.Handler
	simulator  *ripcoord.Simulator
	eject      func(ctx context.Context, driveID string) error
	logHub     *logging.StreamHub
	metrics    *Metrics
	ripTool    string
	ffmpegPath string

	router   chi.Router
	listener net.Listener
	server   *http.Server
}

// NewServer wires a Server against the daemon's shared components.
func NewServer(cfg *config.Config, st *store.Store, mgr *jobs.Manager, bus *events.Broadcaster, org *organizer.Handler, sim *ripcoord.Simulator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:       strings.TrimSpace(cfg.APIBind),
		logger:     logger,
		store:      st,
		jobsMgr:    mgr,
		bus:        bus,
		organizer:  org,
		simulator:  sim,
		metrics:    NewMetrics(),
		ripTool:    cfg.RipToolPath,
		ffmpegPath: cfg.FFmpegPath,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/api/status", s.handleStatus)

	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{jobID}", s.handleGetJob)
	r.Delete("/api/jobs/{jobID}", s.handleDeleteJob)
	r.Post("/api/jobs/{jobID}/cancel", s.handleCancelJob)
	r.Post("/api/jobs/{jobID}/resolve_review", s.handleResolveReview)
	r.Get("/api/jobs/{jobID}/titles", s.handleListTitles)
	r.Post("/api/titles/{titleID}/resolve_conflict", s.handleResolveConflict)

	r.Post("/api/drives/{drive}/simulate_insert", s.handleSimulateInsert)
	r.Post("/api/drives/{drive}/eject", s.handleEject)

	r.Get("/api/tools/detect", s.handleDetectTools)
	r.Post("/api/tools/validate", s.handleValidateTool)

	r.Get("/api/logs", s.handleLogs)

	r.Get("/ws", s.handleWebsocket)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	s.router = r
	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// SetEject installs the drive-eject operation, typically the daemon's
// cancel-then-eject wrapper. Without one, the eject endpoint reports
// unavailable.
func (s *Server) SetEject(eject func(ctx context.Context, driveID string) error) {
	s.eject = eject
}

// SetLogStream installs the in-memory log hub the /api/logs endpoint reads
// from. Without one, the endpoint reports unavailable.
func (s *Server) SetLogStream(hub *logging.StreamHub) {
	s.logHub = hub
}

// Start binds the listener and serves in a background goroutine. It stops
// serving when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	s.metrics.StartSampling(ctx, s.store, s.logger)

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the HTTP server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(start)))
	})
}
