// Package migrate moves the full dataset between the embedded engine and a
// remote service, switching the active backend only after every row has
// landed on the target.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/engine"
	"github.com/ameline/snipvault/internal/model"
)

// Migrator copies snippets and namespaces across backends. Both directions
// share the same shape: validate, probe, copy namespaces then snippets
// (snippets reference namespaces, so order matters), then flip the registry.
//
// A failure at any step leaves the registry untouched, so a migration is
// always safe to retry.
type Migrator struct {
	registry  *backend.Registry
	local     backend.Backend
	eng       *engine.Engine
	newRemote func(baseURL string) backend.Backend
	logger    *slog.Logger
}

// New creates a Migrator. local is the embedded adapter (never resolved via
// the registry — migration addresses both sides explicitly); newRemote may be
// nil, defaulting to backend.NewRemote.
func New(registry *backend.Registry, local backend.Backend, eng *engine.Engine, newRemote func(string) backend.Backend, logger *slog.Logger) *Migrator {
	if newRemote == nil {
		newRemote = func(u string) backend.Backend { return backend.NewRemote(u) }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		registry:  registry,
		local:     local,
		eng:       eng,
		newRemote: newRemote,
		logger:    logger,
	}
}

// LocalToRemote pushes the embedded dataset to the service at baseURL and
// switches the active backend to it. Returns the number of snippets copied.
//
// An empty local dataset is a no-op: nothing is pushed and the backend is
// not switched.
func (m *Migrator) LocalToRemote(ctx context.Context, baseURL string) (int, error) {
	remote, err := m.probe(ctx, baseURL)
	if err != nil {
		return 0, err
	}

	snippets, err := m.local.GetAllSnippets(ctx)
	if err != nil {
		return 0, apperror.Migration(err, "reading local snippets")
	}
	if len(snippets) == 0 {
		m.logger.Info("local dataset is empty, skipping migration")
		return 0, nil
	}

	namespaces, err := m.local.GetAllNamespaces(ctx)
	if err != nil {
		return 0, apperror.Migration(err, "reading local namespaces")
	}

	if err := copyAll(ctx, remote, namespaces, snippets); err != nil {
		return 0, err
	}

	if err := m.registry.UseRemote(baseURL); err != nil {
		return 0, apperror.Migration(err, "switching to remote backend")
	}

	m.logger.Info("migrated to remote backend",
		slog.String("url", baseURL),
		slog.Int("snippets", len(snippets)),
		slog.Int("namespaces", len(namespaces)),
	)
	return len(snippets), nil
}

// RemoteToLocal pulls the dataset from the service at baseURL into the
// embedded engine, switches the active backend to Local, and flushes the
// engine so the imported rows are durable immediately. Returns the number of
// snippets copied.
func (m *Migrator) RemoteToLocal(ctx context.Context, baseURL string) (int, error) {
	remote, err := m.probe(ctx, baseURL)
	if err != nil {
		return 0, err
	}

	snippets, err := remote.GetAllSnippets(ctx)
	if err != nil {
		return 0, apperror.Migration(err, "reading remote snippets")
	}
	if len(snippets) == 0 {
		m.logger.Info("remote dataset is empty, skipping migration")
		return 0, nil
	}

	namespaces, err := remote.GetAllNamespaces(ctx)
	if err != nil {
		return 0, apperror.Migration(err, "reading remote namespaces")
	}

	if err := copyAll(ctx, m.local, namespaces, snippets); err != nil {
		return 0, err
	}

	if err := m.registry.UseLocal(); err != nil {
		return 0, apperror.Migration(err, "switching to local backend")
	}

	if m.eng != nil {
		if err := m.eng.Flush(ctx); err != nil {
			return 0, apperror.Migration(err, "flushing imported data")
		}
		if err := m.eng.Reload(ctx); err != nil {
			return 0, apperror.Migration(err, "reloading engine after import")
		}
	}

	m.logger.Info("migrated to local backend",
		slog.Int("snippets", len(snippets)),
		slog.Int("namespaces", len(namespaces)),
	)
	return len(snippets), nil
}

// probe validates the URL and confirms the target answers its health check
// before any data moves.
func (m *Migrator) probe(ctx context.Context, baseURL string) (backend.Backend, error) {
	if !backend.ValidRemoteURL(baseURL) {
		return nil, apperror.ValidationFailed("remoteUrl", fmt.Sprintf("invalid remote url: %q", baseURL))
	}

	remote := m.newRemote(baseURL)
	if !remote.TestConnection(ctx) {
		return nil, apperror.Migration(nil, fmt.Sprintf("remote backend at %s is unreachable", baseURL))
	}
	return remote, nil
}

// copyAll upserts namespaces before snippets so every snippet's namespace
// reference already exists on the target.
func copyAll(ctx context.Context, target backend.Backend, namespaces []model.Namespace, snippets []model.Snippet) error {
	for i := range namespaces {
		if err := target.PutNamespace(ctx, &namespaces[i]); err != nil {
			return apperror.Migration(err, fmt.Sprintf("copying namespace %s", namespaces[i].ID))
		}
	}
	for i := range snippets {
		if err := target.PutSnippet(ctx, &snippets[i]); err != nil {
			return apperror.Migration(err, fmt.Sprintf("copying snippet %s", snippets[i].ID))
		}
	}
	return nil
}
