package backend

import (
	"context"

	"github.com/ameline/snipvault/internal/model"
	"github.com/ameline/snipvault/internal/repository/sqlite"
)

var _ Backend = (*Local)(nil)

// Local is a thin pass-through to the DAOs over the embedded engine.
type Local struct {
	db *sqlite.DB
}

func NewLocal(db *sqlite.DB) *Local {
	return &Local{db: db}
}

func (l *Local) Kind() string { return KindLocal }

func (l *Local) GetAllSnippets(ctx context.Context) ([]model.Snippet, error) {
	return l.db.Snippets.GetAll(ctx)
}

func (l *Local) GetSnippet(ctx context.Context, id string) (*model.Snippet, error) {
	return l.db.Snippets.GetByID(ctx, id)
}

func (l *Local) CreateSnippet(ctx context.Context, s *model.Snippet) error {
	return l.db.Snippets.Create(ctx, s)
}

func (l *Local) UpdateSnippet(ctx context.Context, s *model.Snippet) error {
	return l.db.Snippets.Update(ctx, s)
}

func (l *Local) DeleteSnippet(ctx context.Context, id string) error {
	return l.db.Snippets.Delete(ctx, id)
}

func (l *Local) PutSnippet(ctx context.Context, s *model.Snippet) error {
	return l.db.Snippets.Put(ctx, s)
}

func (l *Local) GetAllNamespaces(ctx context.Context) ([]model.Namespace, error) {
	return l.db.Namespaces.GetAll(ctx)
}

func (l *Local) CreateNamespace(ctx context.Context, ns *model.Namespace) error {
	return l.db.Namespaces.Create(ctx, ns)
}

func (l *Local) PutNamespace(ctx context.Context, ns *model.Namespace) error {
	return l.db.Namespaces.Put(ctx, ns)
}

func (l *Local) DeleteNamespace(ctx context.Context, id string) error {
	return l.db.Namespaces.Delete(ctx, id)
}

// TestConnection always succeeds — the embedded engine is in-process.
func (l *Local) TestConnection(ctx context.Context) bool {
	return true
}
