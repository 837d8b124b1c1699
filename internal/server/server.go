// Package server provides the HTTP API for Keikaku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/keikaku/internal/chunker"
	"github.com/hyperjump/keikaku/internal/config"
	"github.com/hyperjump/keikaku/internal/differ"
	"github.com/hyperjump/keikaku/internal/ingest"
	"github.com/hyperjump/keikaku/internal/jobs"
	"github.com/hyperjump/keikaku/internal/storage"
)

// Server is the HTTP server for the Keikaku API.
type Server struct {
	storage  storage.Storage
	ingestor *ingest.Ingestor
	chunker  *chunker.Chunker
	differ   *differ.Differ
	worker   *jobs.Worker
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Storage,
	ingestor *ingest.Ingestor,
	c *chunker.Chunker,
	d *differ.Differ,
	worker *jobs.Worker,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		storage:  store,
		ingestor: ingestor,
		chunker:  c,
		differ:   d,
		worker:   worker,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/projects", s.handleCreateProject)
	r.Get("/api/v1/projects", s.handleListProjects)
	r.Get("/api/v1/projects/{id}", s.handleGetProject)
	r.Post("/api/v1/projects/{id}/documents", s.handleIngestDocument)
	r.Get("/api/v1/projects/{id}/documents", s.handleListDocuments)
	r.Get("/api/v1/projects/{id}/diff", s.handleDiff)
	r.Get("/api/v1/projects/{id}/backlog", s.handleGetBacklog)
	r.Get("/api/v1/projects/{id}/backlog/export", s.handleExportBacklog)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Get("/api/v1/documents/{id}/chunks", s.handleGetChunks)
	r.Post("/api/v1/retrieve", s.handleRetrieve)
	r.Post("/api/v1/plan", s.handleSubmitPlan)
	r.Get("/api/v1/jobs/{id}", s.handleGetJob)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
