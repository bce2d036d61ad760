// Package engine wraps the embedded relational engine that owns all snippet
// and namespace state.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the binary as a single
// file, with no server process. That is exactly the deployment model this
// data layer needs: the whole database is one opaque byte image that the
// durable-storage bridge can load and save wholesale.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
//
// LIFECYCLE:
// The engine operates on a working file. Open() asks the bridge for a prior
// byte image; if one exists it is materialized into the working file, and if
// not the schema DDL is applied and the default namespace inserted. The
// engine never touches durable storage after that — mutations are visible to
// in-process reads immediately, and become durable only when somebody (the
// persistence middleware, the migration service) calls Snapshot() and hands
// the bytes back to the bridge.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	// Blank import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/durable"
	"github.com/ameline/snipvault/internal/model"
)

// DDL is the full schema. CREATE TABLE IF NOT EXISTS keeps it idempotent, so
// the same statements serve first-time initialization and repair.
const DDL = `
CREATE TABLE IF NOT EXISTS namespaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snippets (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	code         TEXT NOT NULL,
	language     TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT 'general',
	has_preview  INTEGER NOT NULL DEFAULT 0,
	namespace_id TEXT REFERENCES namespaces(id),
	is_template  INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snippets_namespace_id ON snippets(namespace_id);
CREATE INDEX IF NOT EXISTS idx_snippets_updated_at ON snippets(updated_at);
`

// Options configures an Engine.
type Options struct {
	// WorkPath is where the working SQLite file lives. The file is
	// disposable — the bridge holds the durable copy.
	WorkPath string

	// Bridge supplies the prior byte image, if any. Nil means a purely
	// ephemeral engine (tests).
	Bridge *durable.Store

	Logger *slog.Logger
}

// Engine is the process-wide embedded database. Construct it once in the
// composition root and inject it; there is no ambient singleton.
//
// mu guards conn: Reload and Close swap or nil the pool under the write
// lock, so every path that touches conn holds at least the read lock.
// Queries running concurrently with a Reload either finish on the old pool
// or wait for the new one; they never observe a nil pool.
type Engine struct {
	mu       sync.RWMutex
	conn     *sql.DB
	workPath string
	bridge   *durable.Store
	logger   *slog.Logger
}

// Open materializes the stored byte image (if any) and opens the engine.
// A fresh database gets the DDL and the default namespace. An unreadable
// image surfaces as apperror.ErrEngineInit — corruption is reported up, not
// silently recovered.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		workPath: opts.WorkPath,
		bridge:   opts.Bridge,
		logger:   opts.Logger,
	}

	if err := e.open(ctx); err != nil {
		return nil, err
	}

	return e, nil
}

// open does the real work; Reload reuses it.
func (e *Engine) open(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(e.workPath), 0o755); err != nil {
		return fmt.Errorf("engine: creating work dir: %w", err)
	}

	if e.bridge != nil {
		image, err := e.bridge.LoadImage()
		if err != nil {
			return apperror.EngineInit(err, "loading stored byte image")
		}
		if image != nil {
			if err := os.WriteFile(e.workPath, image, 0o644); err != nil {
				return apperror.EngineInit(err, "materializing byte image")
			}
			e.logger.Info("engine restored from durable image",
				slog.Int("bytes", len(image)),
			)
		}
	}

	conn, err := sql.Open("sqlite", e.workPath)
	if err != nil {
		return apperror.EngineInit(err, "opening database")
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return apperror.EngineInit(err, "pinging database")
	}

	// DELETE journal mode keeps the database in one self-contained file, so
	// a snapshot of that file is the complete byte image. WAL would split
	// state across -wal/-shm sidecar files.
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		conn.Close()
		return apperror.EngineInit(err, "setting journal mode")
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return apperror.EngineInit(err, "enabling foreign keys")
	}

	// Reading sqlite_master both detects a corrupt image (the query fails on
	// a file that is not a database) and tells us whether to bootstrap.
	var objects int
	err = conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`,
	).Scan(&objects)
	if err != nil {
		conn.Close()
		return apperror.EngineInit(err, "byte image unreadable")
	}

	e.conn = conn

	if objects == 0 {
		if err := e.bootstrap(ctx); err != nil {
			conn.Close()
			e.conn = nil
			return err
		}
		e.logger.Info("engine bootstrapped with fresh schema")
	}

	return nil
}

// Bootstrap applies the DDL and ensures the default namespace exists.
// Idempotent; schema repair reuses it after wiping.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bootstrap(ctx)
}

// bootstrap is Bootstrap without the lock, for callers already holding mu
// (open runs under Reload's write lock).
func (e *Engine) bootstrap(ctx context.Context) error {
	if _, err := e.conn.ExecContext(ctx, DDL); err != nil {
		return apperror.Query(err, "applying schema DDL")
	}

	return e.ensureDefaultNamespace(ctx)
}

// EnsureDefaultNamespace inserts the default namespace if and only if no
// default exists — the single-default invariant holds from first init on.
func (e *Engine) EnsureDefaultNamespace(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ensureDefaultNamespace(ctx)
}

func (e *Engine) ensureDefaultNamespace(ctx context.Context) error {
	var defaults int
	err := e.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM namespaces WHERE is_default = 1`,
	).Scan(&defaults)
	if err != nil {
		return apperror.Query(err, "counting default namespaces")
	}
	if defaults > 0 {
		return nil
	}

	_, err = e.conn.ExecContext(ctx,
		`INSERT INTO namespaces (id, name, created_at, is_default)
		 VALUES (?, 'Default', CURRENT_TIMESTAMP, 1)`,
		model.DefaultNamespaceID,
	)
	if err != nil {
		return apperror.Query(err, "inserting default namespace")
	}

	return nil
}

// Exec runs a statement that returns no rows.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	res, err := e.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Query(err, "statement failed")
	}
	return res, nil
}

// Query runs a statement that returns rows. Callers must Close the rows.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Query(err, "query failed")
	}
	return rows, nil
}

// QueryRow runs a statement expected to return at most one row. The query
// executes inside QueryRowContext, so releasing the lock before the caller
// scans is safe.
func (e *Engine) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conn.QueryRowContext(ctx, query, args...)
}

// Snapshot returns a consistent byte image of the current database.
//
// VACUUM INTO writes a complete, compacted copy to a fresh file even while
// the pool is open, which is safer than reading the live working file (a
// concurrent write could hand us a torn page).
func (e *Engine) Snapshot(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tmp := e.workPath + ".snapshot"
	// VACUUM INTO refuses to overwrite; clear any leftover from a crashed run.
	_ = os.Remove(tmp)

	if _, err := e.conn.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return nil, apperror.Query(err, "snapshotting database")
	}
	defer os.Remove(tmp)

	image, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("engine: reading snapshot: %w", err)
	}

	return image, nil
}

// Flush snapshots the engine and saves the image through the bridge in one
// step. No-op without a bridge.
func (e *Engine) Flush(ctx context.Context) error {
	if e.bridge == nil {
		return nil
	}

	image, err := e.Snapshot(ctx)
	if err != nil {
		return err
	}

	return e.bridge.SaveImage(image)
}

// Reload closes the pool and re-initializes from the bridge's current image.
// The migration service calls this after a remote→local pull so the running
// engine matches the freshly written image.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			return fmt.Errorf("engine: closing before reload: %w", err)
		}
		e.conn = nil
	}

	return e.open(ctx)
}

// Close closes the connection pool. The working file is left behind; the
// durable image is the copy that matters.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}
