package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaehk/yt-subtitle-analyzer/config"
	"github.com/jaehk/yt-subtitle-analyzer/middleware"
	"github.com/jaehk/yt-subtitle-analyzer/services/summary"
	"github.com/jaehk/yt-subtitle-analyzer/services/transcript"
	"github.com/jaehk/yt-subtitle-analyzer/validation"
)

type Server struct {
	transcript *TranscriptHandler
	summary    *SummaryHandler
	config     *config.Config
	logger     *logrus.Logger
	server     *http.Server
	startTime  time.Time
}

type ServerOption func(*Server)

// NewServer creates a new API server with the provided services and options
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// WithServices sets up the handlers with the provided services
func WithServices(transcriptSvc transcript.Service, summarySvc summary.Service) ServerOption {
	return func(s *Server) {
		validator := validation.NewValidator(s.config)
		s.transcript = NewTranscriptHandler(transcriptSvc, validator)
		if summarySvc != nil {
			s.summary = NewSummaryHandler(summarySvc, validator)
		}
	}
}

// WithLogger sets a custom logger for the server
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// routes sets up all the routes for the API
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.addV1Routes(mux)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.middleware(mux)
}

// addV1Routes adds all the v1 API routes
func (s *Server) addV1Routes(mux *http.ServeMux) {
	const v1Prefix = "/api/v1"

	// Subtitle extraction endpoints
	mux.HandleFunc("POST "+v1Prefix+"/analyze", s.transcript.HandleAnalyze)
	mux.HandleFunc("GET "+v1Prefix+"/analyze/{id}", s.transcript.HandleGetByID)
	mux.HandleFunc("GET "+v1Prefix+"/transcript", s.transcript.HandleGetByURL)

	// Summary endpoint, registered only when a generator is configured
	if s.summary != nil {
		mux.HandleFunc("POST "+v1Prefix+"/summarize", s.summary.HandleSummarize)
	}

	// Service description
	mux.HandleFunc("GET "+v1Prefix+"/about", s.handleAbout)
}

// middleware assembles the chain from the configured preset.
func (s *Server) middleware(handler http.Handler) http.Handler {
	mw := s.config.Middleware

	var middlewares []func(http.Handler) http.Handler

	if mw.EnableRecover {
		middlewares = append(middlewares, middleware.Recovery(s.logger))
	}
	if mw.EnableRequestID {
		middlewares = append(middlewares, middleware.RequestID())
	}
	if mw.EnableLogger {
		middlewares = append(middlewares, middleware.Logging(s.logger))
	}
	if mw.EnableCORS {
		middlewares = append(middlewares, middleware.CORS(s.config.CORS))
	}
	if mw.EnableTimeout {
		middlewares = append(middlewares, middleware.Timeout(s.config.RequestTimeout))
	}
	if mw.EnableRateLimit && s.config.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.BurstSize,
		)
		middlewares = append(middlewares, rateLimiter.Middleware)
	}

	return middleware.Chain(handler, middlewares...)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   s.config.Version,
		"uptime":    time.Since(s.startTime).String(),
	}

	if s.config.Debug {
		status["debug"] = true
		status["goroutines"] = runtime.NumGoroutine()
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status["memory"] = map[string]interface{}{
			"allocated": m.Alloc,
			"total":     m.TotalAlloc,
			"system":    m.Sys,
			"gc_cycles": m.NumGC,
		}
	}

	respondJSON(w, r, http.StatusOK, status)
}

// handleAbout describes the service and how to call it.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	about := map[string]interface{}{
		"name":    "yt-subtitle-analyzer",
		"version": s.config.Version,
		"instructions": "POST a YouTube URL to /api/v1/analyze to extract subtitles. " +
			"Uploaded subtitles are preferred over automatic captions. " +
			"Poll /api/v1/analyze/{id} for the result, then POST the id to /api/v1/summarize for an analysis.",
		"default_language": s.config.Subtitle.DefaultLanguage,
	}

	respondJSON(w, r, http.StatusOK, about)
}
