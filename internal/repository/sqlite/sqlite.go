// Package sqlite implements the repository interfaces on top of the embedded
// engine.
//
// The engine owns the connection, the schema DDL, and the byte-image
// lifecycle; this package owns row↔struct mapping and the invariant-enforcing
// CRUD. Repositories never hold object references across calls — every
// operation re-reads or re-writes through the engine, so there is no cached
// mutable graph to keep consistent.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/ameline/snipvault/internal/engine"
)

// DB bundles the repositories over one engine.
type DB struct {
	Namespaces *NamespaceStore
	Snippets   *SnippetStore
}

func New(eng *engine.Engine) *DB {
	return &DB{
		Namespaces: &NamespaceStore{eng: eng},
		Snippets:   &SnippetStore{eng: eng},
	}
}

// now returns the current time at millisecond precision in UTC. Truncating
// keeps timestamps stable across a JSON round trip through the REST service.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// boolToInt maps Go bools onto SQLite's 0/1 INTEGER convention.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// errIsNoRows reports the "zero rows" case, which is not a database failure.
func errIsNoRows(err error) bool {
	return err == sql.ErrNoRows
}
