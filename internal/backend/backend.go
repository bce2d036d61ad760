// Package backend abstracts where snippet and namespace data lives.
//
// Two interchangeable sources of truth implement Backend: Local (the
// embedded engine behind the DAOs) and Remote (an external HTTP service).
// The Registry is the storage configuration — it decides which one is
// active, and the decision can change at runtime (after a migration), so
// callers resolve Registry.Active() per operation instead of caching an
// adapter reference.
package backend

import (
	"context"

	"github.com/ameline/snipvault/internal/model"
)

// Backend kind names, also persisted in the configuration preference.
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// Backend is the capability surface every storage backend provides.
//
// Put operations are id-keyed upserts with caller-supplied ids and
// timestamps; Create operations mint ids. TestConnection is a reachability
// probe — it must never mutate state and must fail within a bounded time.
type Backend interface {
	Kind() string

	GetAllSnippets(ctx context.Context) ([]model.Snippet, error)
	GetSnippet(ctx context.Context, id string) (*model.Snippet, error)
	CreateSnippet(ctx context.Context, s *model.Snippet) error
	UpdateSnippet(ctx context.Context, s *model.Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
	PutSnippet(ctx context.Context, s *model.Snippet) error

	GetAllNamespaces(ctx context.Context) ([]model.Namespace, error)
	CreateNamespace(ctx context.Context, ns *model.Namespace) error
	PutNamespace(ctx context.Context, ns *model.Namespace) error
	DeleteNamespace(ctx context.Context, id string) error

	TestConnection(ctx context.Context) bool
}
