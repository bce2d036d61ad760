// Package schema checks the embedded database's health and repairs it.
//
// The database persists as an opaque byte image, so schema evolution cannot
// be expressed as incremental migrations without a version marker. The policy
// here is detect-and-wipe: Validate proactively probes for every required
// table and column (including later additions like the namespaces table), and
// Repair destroys and recreates everything from DDL. A stored schema_version
// marker would allow additive migrations instead; that is the obvious next
// step if wiping ever becomes too costly.
//
// State machine: unknown → {healthy, corrupted}; corrupted → healthy only via
// Repair, which callers must confirm explicitly — it loses all data.
package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/engine"
)

// required lists every table and column the data layer depends on. Probing
// columns too matters: an old image can have the snippets table but predate
// namespace support entirely.
var required = map[string][]string{
	"namespaces": {"id", "name", "created_at", "is_default"},
	"snippets": {
		"id", "title", "description", "code", "language", "category",
		"has_preview", "namespace_id", "is_template", "created_at", "updated_at",
	},
}

type Manager struct {
	eng    *engine.Engine
	logger *slog.Logger
}

func NewManager(eng *engine.Engine, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{eng: eng, logger: logger}
}

// Validate reports nil when every required table and column exists, and
// apperror.ErrSchemaCorrupted naming the first missing piece otherwise.
func (m *Manager) Validate(ctx context.Context) error {
	for table, columns := range required {
		var count int
		err := m.eng.QueryRow(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
			table,
		).Scan(&count)
		if err != nil {
			return apperror.Query(err, fmt.Sprintf("probing table %s", table))
		}
		if count == 0 {
			return apperror.SchemaCorrupted(fmt.Sprintf("missing table %s", table))
		}

		have, err := m.tableColumns(ctx, table)
		if err != nil {
			return err
		}
		for _, col := range columns {
			if !have[col] {
				return apperror.SchemaCorrupted(fmt.Sprintf("missing column %s.%s", table, col))
			}
		}
	}

	return nil
}

// tableColumns reads pragma_table_info, the same probe the engine's original
// service used before deciding to recreate its tables.
func (m *Manager) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := m.eng.Query(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperror.Query(err, "scanning pragma_table_info")
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Query(err, "iterating pragma_table_info")
	}

	return have, nil
}

// Repair wipes the database and recreates it from DDL, losing all prior
// data. It also flushes the fresh image durable immediately — a corrupted
// image must not outlive a successful repair.
func (m *Manager) Repair(ctx context.Context) error {
	m.logger.Warn("repairing schema: all data will be lost")

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS snippets`,
		`DROP TABLE IF EXISTS namespaces`,
	} {
		if _, err := m.eng.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	if err := m.eng.Bootstrap(ctx); err != nil {
		return err
	}

	if err := m.eng.Flush(ctx); err != nil {
		return fmt.Errorf("schema: persisting repaired image: %w", err)
	}

	m.logger.Info("schema repaired")
	return nil
}
