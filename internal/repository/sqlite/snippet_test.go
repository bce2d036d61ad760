package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/model"
)

func TestSnippetCreate(t *testing.T) {
	db := newTestDB(t)

	s := &model.Snippet{
		Title:    "Hello World",
		Code:     "print('hello')",
		Language: "python",
	}
	if err := db.Snippets.Create(context.Background(), s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if s.ID == "" {
		t.Error("Create() did not set snippet.ID")
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
	if !s.CreatedAt.Equal(s.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v on create", s.CreatedAt, s.UpdatedAt)
	}
	if s.NamespaceID != model.DefaultNamespaceID {
		t.Errorf("NamespaceID = %q, want default %q", s.NamespaceID, model.DefaultNamespaceID)
	}
	if s.Category != "general" {
		t.Errorf("Category = %q, want default %q", s.Category, "general")
	}
}

func TestSnippetCreate_UniqueIDs(t *testing.T) {
	db := newTestDB(t)

	// Create a burst of snippets in a tight loop — same-millisecond ids must
	// not collide (xid composes a counter with the timestamp).
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := createTestSnippet(t, db, "burst", "")
		if seen[s.ID] {
			t.Fatalf("duplicate id generated: %s", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestSnippetCreate_Validation(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		name    string
		snippet model.Snippet
	}{
		{"missing title", model.Snippet{Code: "x", Language: "go"}},
		{"missing language", model.Snippet{Title: "t", Code: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Snippets.Create(context.Background(), &tt.snippet)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSnippetGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Snippets.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSnippetUpdate_AdvancesUpdatedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "original", "")

	// Millisecond timestamp precision: make sure the clock moves.
	time.Sleep(5 * time.Millisecond)

	s.Code = "print('v2')"
	if err := db.Snippets.Update(ctx, s); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := db.Snippets.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Code != "print('v2')" {
		t.Errorf("Code = %q, want %q", found.Code, "print('v2')")
	}
	if !found.UpdatedAt.After(found.CreatedAt) {
		t.Errorf("UpdatedAt %v not after CreatedAt %v", found.UpdatedAt, found.CreatedAt)
	}
}

func TestSnippetUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	s := &model.Snippet{ID: "nonexistent", Title: "t", Code: "c", Language: "go"}
	err := db.Snippets.Update(context.Background(), s)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestSnippetDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "to delete", "")

	if err := db.Snippets.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Snippets.GetByID(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete: error = %v, want ErrNotFound", err)
	}
}

func TestSnippetDelete_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Snippets.Delete(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestListTemplates_FiltersOnFlag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestSnippet(t, db, "plain", "")
	tpl := &model.Snippet{Title: "tpl", Code: "x", Language: "go", IsTemplate: true}
	if err := db.Snippets.Create(ctx, tpl); err != nil {
		t.Fatalf("Create(template) error = %v", err)
	}

	templates, err := db.Snippets.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("ListTemplates() returned %d, want 1", len(templates))
	}
	if templates[0].ID != tpl.ID {
		t.Errorf("ListTemplates()[0].ID = %q, want %q", templates[0].ID, tpl.ID)
	}

	// GetAll still sees both.
	all, err := db.Snippets.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("GetAll() returned %d, want 2", len(all))
	}
}

func TestSnippetPut_PreservesTimestamps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := &model.Snippet{
		ID: "migrated-1", Title: "from remote", Code: "x", Language: "go",
		Category: "general", CreatedAt: created, UpdatedAt: updated,
	}
	if err := db.Snippets.Put(ctx, s); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// Re-running the same Put must converge, not fail on the primary key.
	if err := db.Snippets.Put(ctx, s); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	found, err := db.Snippets.GetByID(ctx, "migrated-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !found.CreatedAt.Equal(created) || !found.UpdatedAt.Equal(updated) {
		t.Errorf("timestamps = (%v, %v), want (%v, %v)",
			found.CreatedAt, found.UpdatedAt, created, updated)
	}
}

func TestSnippetCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	total, templates, err := db.Snippets.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if total != 0 || templates != 0 {
		t.Errorf("Counts() on empty db = (%d, %d), want (0, 0)", total, templates)
	}

	createTestSnippet(t, db, "plain one", "")
	createTestSnippet(t, db, "plain two", "")
	tpl := &model.Snippet{Title: "tpl", Code: "x", Language: "go", IsTemplate: true}
	if err := db.Snippets.Create(ctx, tpl); err != nil {
		t.Fatalf("Create(template) error = %v", err)
	}

	total, templates, err = db.Snippets.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if templates != 1 {
		t.Errorf("templates = %d, want 1", templates)
	}
}
