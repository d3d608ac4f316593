// Package server provides the HTTP API for docuchat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/docuchat/internal/config"
	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/internal/session"
	"go.uber.org/zap"
)

// requestTimeout bounds one request; a build over a large batch or a slow model is the long case.
const requestTimeout = 5 * time.Minute

// WatchService is the optional directory watcher feeding one session.
type WatchService interface {
	Directory() string
	SessionID() string
	Sync(ctx context.Context) (*models.BuildReport, error)
}

// Server is the HTTP server for the docuchat API.
type Server struct {
	sessions *session.Manager
	config   *config.ServerConfig
	upload   config.UploadConfig
	logger   *zap.Logger
	watch    WatchService // optional; nil disables /api/v1/watch
	server   *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	sessions *session.Manager,
	cfg *config.ServerConfig,
	upload config.UploadConfig,
	logger *zap.Logger,
	watch WatchService,
) *Server {
	return &Server{
		sessions: sessions,
		config:   cfg,
		upload:   upload,
		logger:   logger,
		watch:    watch,
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/documents", s.handleUploadDocuments)
			r.Post("/messages", s.handleAsk)
			r.Get("/messages", s.handleListMessages)
		})
		r.Get("/watch", s.handleWatchStatus)
		r.Post("/watch/sync", s.handleWatchSync)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
