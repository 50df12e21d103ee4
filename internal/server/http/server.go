// Package httpserver provides the HTTP REST API for the citation graph
// service.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theke/citation-graph-service/internal/database"
	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/jobs"
	"github.com/theke/citation-graph-service/internal/repository"
)

// validate checks request payload struct tags.
var validate = validator.New()

// JobService is the slice of jobs.Manager the handlers need.
type JobService interface {
	Submit(ctx context.Context, paperID uuid.UUID, jobType domain.JobType, opts jobs.SubmitOptions) (*domain.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	ListJobs(ctx context.Context, paperID uuid.UUID) ([]*domain.Job, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	papers     repository.PaperRepository
	citations  repository.CitationRepository
	jobService JobService
	extractor  jobs.CitationExtractor
	db         *database.DB
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates the HTTP server with all dependencies. db may be
// nil in tests; health probes then skip the database check.
func NewServer(
	cfg Config,
	papers repository.PaperRepository,
	citations repository.CitationRepository,
	jobService JobService,
	extractor jobs.CitationExtractor,
	db *database.DB,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		papers:     papers,
		citations:  citations,
		jobService: jobService,
		extractor:  extractor,
		db:         db,
		logger:     logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Router exposes the chi router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/papers/{paperID}", func(r chi.Router) {
			r.Post("/citations/extract", s.extractCitations)
			r.Get("/citations", s.listCitations)
			r.Post("/summary", s.triggerSummary)
			r.Get("/jobs", s.listJobs)
		})
		r.Get("/citations/network", s.citationNetwork)
		r.Post("/citations/{citationID}/resolve", s.resolveCitation)
		r.Get("/jobs/{jobID}", s.getJob)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeDomainError maps domain errors onto HTTP status codes. A job
// conflict carries the blocking job's id so clients can poll it.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var conflict *domain.JobConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":         "a job of this type is already active for the paper",
			"active_job_id": conflict.ActiveJobID.String(),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoReferencesFound):
		writeError(w, http.StatusNotFound, "no references found in any source")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrJobAlreadyActive):
		writeError(w, http.StatusConflict, "a job of this type is already active for the paper")
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited by an upstream source")
	case errors.Is(err, domain.ErrJobTerminal):
		writeError(w, http.StatusConflict, "job is already terminal")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// paperIDParam parses the paperID URL parameter.
func paperIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "paperID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid paper id %q", raw)
	}
	return id, nil
}
