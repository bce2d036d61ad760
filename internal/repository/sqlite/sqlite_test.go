package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ameline/snipvault/internal/engine"
	"github.com/ameline/snipvault/internal/model"
)

// Each test gets its own engine on a throwaway working file with no bridge —
// fast, isolated, destroyed with the temp dir.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	e, err := engine.Open(context.Background(), engine.Options{
		WorkPath: filepath.Join(t.TempDir(), "work.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return New(e)
}

func createTestSnippet(t *testing.T, db *DB, title, namespaceID string) *model.Snippet {
	t.Helper()
	s := &model.Snippet{
		Title:       title,
		Code:        "print('hi')",
		Language:    "python",
		NamespaceID: namespaceID,
	}
	if err := db.Snippets.Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create test snippet: %v", err)
	}
	return s
}

func createTestNamespace(t *testing.T, db *DB, name string) *model.Namespace {
	t.Helper()
	ns := &model.Namespace{Name: name}
	if err := db.Namespaces.Create(context.Background(), ns); err != nil {
		t.Fatalf("failed to create test namespace: %v", err)
	}
	return ns
}
