// Package server wires the router: which paths hit which handlers, what
// middleware runs, and how the process starts and stops.
//
// The server owns no storage. The composition root (cmd/snipvault) builds
// the engine, bridge, registry, and services, and hands them in through
// Dependencies — the server only arranges them behind routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/backup"
	"github.com/ameline/snipvault/internal/handler"
	"github.com/ameline/snipvault/internal/middleware"
	"github.com/ameline/snipvault/internal/migrate"
	"github.com/ameline/snipvault/internal/repository"
	"github.com/ameline/snipvault/internal/schema"
)

// Config holds server configuration.
type Config struct {
	Port int
}

// Dependencies is everything the routes need, built by the composition root.
type Dependencies struct {
	Backends   *backend.Registry
	Namespaces repository.NamespaceRepository
	Schema     *schema.Manager
	Backup     *backup.Service
	Migrator   *migrate.Migrator
	Saver      handler.Notifier
}

// Server is the HTTP server for the REST service.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New assembles the router. Route surface:
//
//	GET    /health                 liveness probe
//	GET    /api/snippets           list snippets
//	GET    /api/snippets/{id}      get one snippet
//	POST   /api/snippets           create (or id-keyed upsert)
//	PUT    /api/snippets/{id}      update
//	DELETE /api/snippets/{id}      delete
//	GET    /api/namespaces         list namespaces
//	POST   /api/namespaces         create (or id-keyed upsert)
//	PUT    /api/namespaces/{id}    rename
//	DELETE /api/namespaces/{id}    delete (refused for the default)
//	POST   /api/admin/wipe         destructive reset
//	GET    /api/admin/stats        dataset statistics
//	GET    /api/admin/export       JSON archive download
//	POST   /api/admin/import       JSON archive restore
//	GET    /api/admin/storage      storage configuration
//	POST   /api/admin/migrate/to-remote   push dataset to a remote service
//	POST   /api/admin/migrate/to-local    pull dataset back to the engine
func New(cfg Config, deps Dependencies, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	// Middleware order matters: request id and real IP first, recovery
	// before anything that can panic, then our logger.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(logger))

	snippetHandler := handler.NewSnippetHandler(deps.Backends, deps.Saver, logger)
	namespaceHandler := handler.NewNamespaceHandler(deps.Backends, deps.Namespaces, deps.Saver, logger)
	adminHandler := handler.NewAdminHandler(deps.Schema, deps.Backup, deps.Saver, logger)
	storageHandler := handler.NewStorageHandler(deps.Backends, deps.Migrator, logger)

	s.router.Get("/health", adminHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/snippets", snippetHandler.HandleList)
		r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
		r.Post("/snippets", snippetHandler.HandleCreate)
		r.Put("/snippets/{id}", snippetHandler.HandleUpdate)
		r.Delete("/snippets/{id}", snippetHandler.HandleDelete)

		r.Get("/namespaces", namespaceHandler.HandleList)
		r.Post("/namespaces", namespaceHandler.HandleCreate)
		r.Put("/namespaces/{id}", namespaceHandler.HandleUpdate)
		r.Delete("/namespaces/{id}", namespaceHandler.HandleDelete)

		r.Post("/admin/wipe", adminHandler.HandleWipe)
		r.Get("/admin/stats", adminHandler.HandleStats)
		r.Get("/admin/export", adminHandler.HandleExport)
		r.Post("/admin/import", adminHandler.HandleImport)

		r.Get("/admin/storage", storageHandler.HandleGet)
		r.Post("/admin/migrate/to-remote", storageHandler.HandleMigrateToRemote)
		r.Post("/admin/migrate/to-local", storageHandler.HandleMigrateToLocal)
	})

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully,
// giving in-flight requests 30 seconds to finish.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
