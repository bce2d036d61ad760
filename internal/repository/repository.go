package repository

import (
	"context"

	"github.com/ameline/snipvault/internal/model"
)

// NamespaceRepository is the DAO for namespaces.
//
// GetAll returns the default namespace first, then the rest alphabetically.
// Delete enforces the referential-integrity contract: snippets belonging to
// the deleted namespace are reassigned to the default namespace, and the
// default namespace itself is never deletable.
type NamespaceRepository interface {
	GetAll(ctx context.Context) ([]model.Namespace, error)
	GetByID(ctx context.Context, id string) (*model.Namespace, error)
	Create(ctx context.Context, ns *model.Namespace) error
	Update(ctx context.Context, ns *model.Namespace) error
	Delete(ctx context.Context, id string) error

	// Put is an id-keyed upsert that writes the namespace exactly as given.
	// Migration and import use it; interactive code uses Create.
	Put(ctx context.Context, ns *model.Namespace) error
}

// SnippetRepository is the DAO for snippets. Templates are snippets with
// IsTemplate set, so they share this repository; ListTemplates is the
// filtered view.
type SnippetRepository interface {
	GetAll(ctx context.Context) ([]model.Snippet, error)
	ListTemplates(ctx context.Context) ([]model.Snippet, error)
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	Create(ctx context.Context, snippet *model.Snippet) error
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error

	// Put is an id-keyed upsert that preserves the given ids and timestamps,
	// which is what makes migration re-runnable after a partial failure.
	Put(ctx context.Context, snippet *model.Snippet) error
}
