// Package backup exports the dataset to a portable JSON archive, restores
// from one, and reports dataset statistics.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/durable"
	"github.com/ameline/snipvault/internal/model"
	"github.com/ameline/snipvault/internal/repository/sqlite"
)

// ArchiveVersion is bumped when the archive layout changes incompatibly.
const ArchiveVersion = 1

// Archive is the export format. Namespaces come before snippets so an import
// can replay the file top to bottom without dangling references.
type Archive struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Namespaces []model.Namespace `json:"namespaces"`
	Snippets   []model.Snippet   `json:"snippets"`
}

// Stats summarizes the dataset and its storage.
type Stats struct {
	SnippetCount      int    `json:"snippetCount"`
	TemplateCount     int    `json:"templateCount"`
	NamespaceCount    int    `json:"namespaceCount"`
	StorageType       string `json:"storageType"`
	DatabaseSizeBytes int64  `json:"databaseSizeBytes"`
}

// Service reads and writes archives against the embedded DAOs. Export and
// import always address local storage directly, regardless of which backend
// is active — an archive is a snapshot of the embedded dataset.
type Service struct {
	db       *sqlite.DB
	bridge   *durable.Store
	registry *backend.Registry
}

func NewService(db *sqlite.DB, bridge *durable.Store, registry *backend.Registry) *Service {
	return &Service{db: db, bridge: bridge, registry: registry}
}

// Export collects the full dataset into an archive.
func (s *Service) Export(ctx context.Context) (*Archive, error) {
	namespaces, err := s.db.Namespaces.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	snippets, err := s.db.Snippets.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	return &Archive{
		Version:    ArchiveVersion,
		ExportedAt: time.Now().UTC().Truncate(time.Millisecond),
		Namespaces: namespaces,
		Snippets:   snippets,
	}, nil
}

// ExportJSON writes the archive to w, indented for hand inspection.
func (s *Service) ExportJSON(ctx context.Context, w io.Writer) error {
	archive, err := s.Export(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(archive); err != nil {
		return fmt.Errorf("backup: encoding archive: %w", err)
	}
	return nil
}

// Import replays an archive into local storage, namespaces first. Every row
// is an id-keyed upsert, so importing the same archive twice converges
// instead of duplicating. Returns the number of snippets imported.
func (s *Service) Import(ctx context.Context, archive *Archive) (int, error) {
	if archive.Version > ArchiveVersion {
		return 0, fmt.Errorf("backup: unsupported archive version %d", archive.Version)
	}

	for i := range archive.Namespaces {
		if err := s.db.Namespaces.Put(ctx, &archive.Namespaces[i]); err != nil {
			return 0, err
		}
	}
	for i := range archive.Snippets {
		if err := s.db.Snippets.Put(ctx, &archive.Snippets[i]); err != nil {
			return 0, err
		}
	}
	return len(archive.Snippets), nil
}

// ImportJSON decodes an archive from r and imports it.
func (s *Service) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var archive Archive
	if err := json.NewDecoder(r).Decode(&archive); err != nil {
		return 0, fmt.Errorf("backup: decoding archive: %w", err)
	}
	return s.Import(ctx, &archive)
}

// Stats reports dataset counts, the configured storage backend, and the size
// of the durable byte image. Counts come from COUNT queries — snippet code
// bodies are never materialized for a stats call.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	namespaces, err := s.db.Namespaces.Count(ctx)
	if err != nil {
		return nil, err
	}
	snippets, templates, err := s.db.Snippets.Counts(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		SnippetCount:   snippets,
		TemplateCount:  templates,
		NamespaceCount: namespaces,
		StorageType:    s.registry.Selection().Backend,
	}

	if s.bridge != nil {
		size, err := s.bridge.ImageSize()
		if err != nil {
			return nil, err
		}
		stats.DatabaseSizeBytes = size
	}

	return stats, nil
}
