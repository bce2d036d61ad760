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

// NamespaceStore is the namespace DAO.
type NamespaceStore struct {
	eng *engine.Engine
}

var _ repository.NamespaceRepository = (*NamespaceStore)(nil)

const namespaceColumns = `id, name, created_at, is_default`

func scanNamespace(row interface{ Scan(...any) error }, ns *model.Namespace) error {
	return row.Scan(&ns.ID, &ns.Name, &ns.CreatedAt, &ns.IsDefault)
}

// GetAll returns the default namespace first, then the rest alphabetically.
func (db *NamespaceStore) GetAll(ctx context.Context) ([]model.Namespace, error) {
	rows, err := db.eng.Query(ctx,
		`SELECT `+namespaceColumns+` FROM namespaces
		 ORDER BY is_default DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing namespaces: %w", err)
	}
	defer rows.Close()

	namespaces := make([]model.Namespace, 0, 8)
	for rows.Next() {
		var ns model.Namespace
		if err := scanNamespace(rows, &ns); err != nil {
			return nil, apperror.Query(err, "scanning namespace row")
		}
		namespaces = append(namespaces, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Query(err, "iterating namespaces")
	}

	return namespaces, nil
}

// Count returns the number of namespaces without materializing rows.
func (db *NamespaceStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.eng.QueryRow(ctx, `SELECT COUNT(*) FROM namespaces`).Scan(&n); err != nil {
		return 0, apperror.Query(err, "counting namespaces")
	}
	return n, nil
}

func (db *NamespaceStore) GetByID(ctx context.Context, id string) (*model.Namespace, error) {
	var ns model.Namespace
	err := scanNamespace(db.eng.QueryRow(ctx,
		`SELECT `+namespaceColumns+` FROM namespaces WHERE id = ?`, id), &ns)
	if err != nil {
		if errIsNoRows(err) {
			return nil, apperror.NotFound("namespace", id)
		}
		return nil, apperror.Query(err, "getting namespace")
	}
	return &ns, nil
}

// Create inserts a new, non-default namespace. The one default namespace is
// created by engine bootstrap and never through this path.
func (db *NamespaceStore) Create(ctx context.Context, ns *model.Namespace) error {
	ns.Name = strings.TrimSpace(ns.Name)
	if ns.Name == "" {
		return apperror.ValidationFailed("name", "namespace name is required")
	}

	ns.ID = xid.New().String()
	ns.CreatedAt = now()
	ns.IsDefault = false

	_, err := db.eng.Exec(ctx,
		`INSERT INTO namespaces (id, name, created_at, is_default)
		 VALUES (?, ?, ?, 0)`,
		ns.ID, ns.Name, ns.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating namespace: %w", err)
	}

	return nil
}

// Update renames a namespace. The default flag is immutable.
func (db *NamespaceStore) Update(ctx context.Context, ns *model.Namespace) error {
	ns.Name = strings.TrimSpace(ns.Name)
	if ns.Name == "" {
		return apperror.ValidationFailed("name", "namespace name is required")
	}

	result, err := db.eng.Exec(ctx,
		`UPDATE namespaces SET name = ? WHERE id = ?`,
		ns.Name, ns.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating namespace %s: %w", ns.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("namespace", ns.ID)
	}

	return nil
}

// Delete removes a namespace after reassigning its snippets to the default
// namespace:
//
//  1. look up the default namespace id — none at all is an invariant violation
//  2. refuse to delete the default namespace itself
//  3. reassign every snippet in the target namespace to the default
//  4. delete the namespace row
//
// Steps 3 and 4 run without a transaction wrapper. An interruption between
// them leaves snippets already reassigned and the namespace still present —
// still-valid state, and the delete is safe to retry.
func (db *NamespaceStore) Delete(ctx context.Context, id string) error {
	var defaultID string
	err := db.eng.QueryRow(ctx,
		`SELECT id FROM namespaces WHERE is_default = 1`).Scan(&defaultID)
	if err != nil {
		if errIsNoRows(err) {
			return apperror.Invariant("no default namespace exists")
		}
		return apperror.Query(err, "looking up default namespace")
	}

	if id == defaultID {
		return apperror.Invariant("cannot delete the default namespace")
	}

	if _, err := db.eng.Exec(ctx,
		`UPDATE snippets SET namespace_id = ? WHERE namespace_id = ?`,
		defaultID, id,
	); err != nil {
		return fmt.Errorf("sqlite: reassigning snippets from namespace %s: %w", id, err)
	}

	result, err := db.eng.Exec(ctx, `DELETE FROM namespaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting namespace %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("namespace", id)
	}

	return nil
}

// Put upserts a namespace exactly as given, preserving id, timestamp, and
// the default flag. Used by migration and import, where the rows come from a
// database that already upheld the invariants.
func (db *NamespaceStore) Put(ctx context.Context, ns *model.Namespace) error {
	if ns.ID == "" {
		return apperror.ValidationFailed("id", "namespace id is required")
	}

	_, err := db.eng.Exec(ctx,
		`INSERT INTO namespaces (id, name, created_at, is_default)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			is_default = excluded.is_default`,
		ns.ID, ns.Name, ns.CreatedAt, boolToInt(ns.IsDefault),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting namespace %s: %w", ns.ID, err)
	}

	return nil
}
