package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/engine"
	"github.com/ameline/snipvault/internal/model"
	"github.com/ameline/snipvault/internal/repository"
)

// SnippetStore is the snippet DAO.
type SnippetStore struct {
	eng *engine.Engine
}

// Compile-time check that *SnippetStore satisfies the snippet DAO.
var _ repository.SnippetRepository = (*SnippetStore)(nil)

const snippetColumns = `id, title, description, code, language, category,
	has_preview, namespace_id, is_template, created_at, updated_at`

func scanSnippet(row interface{ Scan(...any) error }, s *model.Snippet) error {
	return row.Scan(
		&s.ID, &s.Title, &s.Description, &s.Code, &s.Language, &s.Category,
		&s.HasPreview, &s.NamespaceID, &s.IsTemplate, &s.CreatedAt, &s.UpdatedAt,
	)
}

func (db *SnippetStore) listSnippets(ctx context.Context, where string, args ...any) ([]model.Snippet, error) {
	rows, err := db.eng.Query(ctx,
		`SELECT `+snippetColumns+` FROM snippets `+where+` ORDER BY updated_at DESC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, 16)
	for rows.Next() {
		var s model.Snippet
		if err := scanSnippet(rows, &s); err != nil {
			return nil, apperror.Query(err, "scanning snippet row")
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Query(err, "iterating snippets")
	}

	return snippets, nil
}

// GetAll returns every snippet, templates included, most recently updated
// first.
func (db *SnippetStore) GetAll(ctx context.Context) ([]model.Snippet, error) {
	return db.listSnippets(ctx, ``)
}

// ListTemplates returns only snippets with the template flag set.
func (db *SnippetStore) ListTemplates(ctx context.Context) ([]model.Snippet, error) {
	return db.listSnippets(ctx, `WHERE is_template = 1`)
}

// Counts returns the total snippet count and the template count in one
// query, without materializing any rows.
func (db *SnippetStore) Counts(ctx context.Context) (total, templates int, err error) {
	err = db.eng.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_template), 0) FROM snippets`,
	).Scan(&total, &templates)
	if err != nil {
		return 0, 0, apperror.Query(err, "counting snippets")
	}
	return total, templates, nil
}

func (db *SnippetStore) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var s model.Snippet
	err := scanSnippet(db.eng.QueryRow(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id), &s)
	if err != nil {
		if errIsNoRows(err) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, apperror.Query(err, "getting snippet")
	}
	return &s, nil
}

// Create inserts a new snippet. The id is an xid — time-ordered and composed
// with a process counter, so ids generated in the same millisecond stay
// unique. Both timestamps are set equal on create.
func (db *SnippetStore) Create(ctx context.Context, s *model.Snippet) error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return apperror.ValidationFailed("title", "snippet title is required")
	}
	if s.Language == "" {
		return apperror.ValidationFailed("language", "snippet language is required")
	}
	if s.Category == "" {
		s.Category = "general"
	}
	if s.NamespaceID == "" {
		s.NamespaceID = model.DefaultNamespaceID
	}

	s.ID = xid.New().String()
	ts := now()
	s.CreatedAt = ts
	s.UpdatedAt = ts

	_, err := db.eng.Exec(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Title, s.Description, s.Code, s.Language, s.Category,
		boolToInt(s.HasPreview), s.NamespaceID, boolToInt(s.IsTemplate),
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// Update rewrites a snippet in place and advances updatedAt. createdAt and id
// are immutable; updatedAt never moves backwards even across clock skew.
func (db *SnippetStore) Update(ctx context.Context, s *model.Snippet) error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return apperror.ValidationFailed("title", "snippet title is required")
	}

	ts := now()
	if ts.Before(s.CreatedAt) {
		ts = s.CreatedAt
	}
	s.UpdatedAt = ts

	result, err := db.eng.Exec(ctx,
		`UPDATE snippets
		 SET title = ?, description = ?, code = ?, language = ?, category = ?,
		     has_preview = ?, namespace_id = ?, is_template = ?, updated_at = ?
		 WHERE id = ?`,
		s.Title, s.Description, s.Code, s.Language, s.Category,
		boolToInt(s.HasPreview), s.NamespaceID, boolToInt(s.IsTemplate),
		s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", s.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("snippet", s.ID)
	}

	return nil
}

func (db *SnippetStore) Delete(ctx context.Context, id string) error {
	result, err := db.eng.Exec(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}

// Put upserts a snippet preserving its id and timestamps. Re-running a
// partially failed migration re-issues the same Puts, which converge.
func (db *SnippetStore) Put(ctx context.Context, s *model.Snippet) error {
	if s.ID == "" {
		return apperror.ValidationFailed("id", "snippet id is required")
	}
	if s.NamespaceID == "" {
		s.NamespaceID = model.DefaultNamespaceID
	}
	if s.CreatedAt.IsZero() {
		ts := now()
		s.CreatedAt = ts
		s.UpdatedAt = ts
	}

	_, err := db.eng.Exec(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			code = excluded.code,
			language = excluded.language,
			category = excluded.category,
			has_preview = excluded.has_preview,
			namespace_id = excluded.namespace_id,
			is_template = excluded.is_template,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		s.ID, s.Title, s.Description, s.Code, s.Language, s.Category,
		boolToInt(s.HasPreview), s.NamespaceID, boolToInt(s.IsTemplate),
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting snippet %s: %w", s.ID, err)
	}

	return nil
}
