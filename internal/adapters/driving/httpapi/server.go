// Package httpapi exposes the ingestion pipeline over HTTP. It is a thin
// driving adapter: handlers decode the request, call the core service and
// translate domain sentinels to status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
	"github.com/archivista/lore-ingest/internal/core/ports/driving"
	"github.com/archivista/lore-ingest/internal/logger"
	"github.com/archivista/lore-ingest/internal/metrics"
)

// Pipeline is the coordinator surface the API needs: the ingest operations
// plus the catalog of registered profiles and extractors.
type Pipeline interface {
	driving.Ingestor

	Profiles() []string
	Extractors() []string
}

// Pinger reports whether the canonical store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API over the ingestion pipeline.
type Server struct {
	pipeline  Pipeline
	store     driven.WorkStore
	pinger    Pinger
	logger    *zap.Logger
	gatherer  prometheus.Gatherer
	httpStats *metrics.HTTP
	uploadDir string
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithMetrics attaches request instrumentation and a /metrics endpoint.
func WithMetrics(stats *metrics.HTTP, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.httpStats = stats
		s.gatherer = gatherer
	}
}

// WithUploadDir sets the directory multipart uploads are spooled to before
// ingestion. Defaults to the system temp directory.
func WithUploadDir(dir string) Option {
	return func(s *Server) { s.uploadDir = dir }
}

// NewServer creates the HTTP API server.
func NewServer(pipeline Pipeline, store driven.WorkStore, pinger Pinger, log *zap.Logger, opts ...Option) *Server {
	s := &Server{
		pipeline: pipeline,
		store:    store,
		pinger:   pinger,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all routes and middleware mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.loggerMiddleware)
	if s.httpStats != nil {
		r.Use(s.httpStats.Middleware)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)
		r.Get("/readyz", s.handleReadyz)
		r.Get("/profiles", s.handleProfiles)
		r.Get("/extractors", s.handleExtractors)

		r.Post("/ingest", s.handleIngest)

		r.Route("/works", func(r chi.Router) {
			r.Get("/", s.handleListWorks)
			r.Route("/{workID}", func(r chi.Router) {
				r.Get("/", s.handleGetWork)
				r.Get("/scenes", s.handleListScenes)
				r.Get("/chunks", s.handleListChunks)
				r.Get("/slice", s.handleSlice)
				r.Post("/resegment", s.handleResegment)
			})
		})
	})

	if s.gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.logger.With(zap.String("request_id", chimiddleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), l)))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusOf maps domain sentinels to HTTP status codes. Unrecognised errors
// are internal.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrRangeOutOfBounds):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrExtraction), errors.Is(err, domain.ErrEncoding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflictingRun):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// safeMessage returns the sentinel message for known errors without exposing
// wrapped internals on 5xx responses.
func safeMessage(err error) string {
	status := statusOf(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, domain.ErrStoreUnavailable) {
		return "internal error"
	}
	return err.Error()
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
	} else {
		log.Warn("request rejected", zap.Error(err), zap.String("path", r.URL.Path))
	}
	writeError(w, status, safeMessage(err))
}
