package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/backup"
	"github.com/ameline/snipvault/internal/durable"
	"github.com/ameline/snipvault/internal/engine"
	"github.com/ameline/snipvault/internal/handler"
	"github.com/ameline/snipvault/internal/migrate"
	"github.com/ameline/snipvault/internal/model"
	"github.com/ameline/snipvault/internal/repository/sqlite"
	"github.com/ameline/snipvault/internal/schema"
)

// recordingNotifier counts persistence notifications.
type recordingNotifier struct {
	mu      sync.Mutex
	actions []string
}

func (n *recordingNotifier) Notify(action string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, action)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.actions)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer stands up the full stack over a temp directory and returns
// a live httptest server for it.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithSaver(t, nil)
}

func newTestServerWithSaver(t *testing.T, saver handler.Notifier) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	bridge, err := durable.Open(filepath.Join(dir, "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bridge.Close() })

	eng, err := engine.Open(ctx, engine.Options{
		WorkPath: filepath.Join(dir, "work", "snippets.sqlite"),
		Bridge:   bridge,
	})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	db := sqlite.New(eng)
	local := backend.NewLocal(db)
	registry, err := backend.NewRegistry(bridge, "", local, nil, nil)
	require.NoError(t, err)

	schemaManager := schema.NewManager(eng, nil)
	backupService := backup.NewService(db, bridge, registry)
	migrator := migrate.New(registry, local, eng, nil, nil)

	srv := New(Config{Port: 0}, Dependencies{
		Backends:   registry,
		Namespaces: db.Namespaces,
		Schema:     schemaManager,
		Backup:     backupService,
		Migrator:   migrator,
		Saver:      saver,
	}, testLogger())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	resp := doJSON(t, http.MethodGet, ts.URL+"/health", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestSnippetCRUD(t *testing.T) {
	ts := newTestServer(t)

	// Create.
	var created model.Snippet
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "hello", Code: "print('hi')", Language: "python"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.DefaultNamespaceID, created.NamespaceID)

	// Read back.
	var got model.Snippet
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/snippets/"+created.ID, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", got.Title)

	// Update.
	got.Title = "hello v2"
	var updated model.Snippet
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/snippets/"+created.ID, got, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello v2", updated.Title)

	// List.
	var list []model.Snippet
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/snippets", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)

	// Delete.
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/snippets/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/snippets/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnippetCreateWithIDUpserts(t *testing.T) {
	ts := newTestServer(t)

	s := model.Snippet{ID: "fixed-id", Title: "first", Code: "x", Language: "go"}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/snippets", s, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	s.Title = "second"
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/snippets", s, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var list []model.Snippet
	doJSON(t, http.MethodGet, ts.URL+"/api/snippets", nil, &list)
	require.Len(t, list, 1, "posting the same id twice must not duplicate")
	assert.Equal(t, "second", list[0].Title)
}

func TestSnippetValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "", Code: "x", Language: "go"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNamespaceLifecycle(t *testing.T) {
	ts := newTestServer(t)

	var ns model.Namespace
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/namespaces", model.Namespace{Name: "Work"}, &ns)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, ns.ID)

	// A snippet filed under the new namespace.
	var snip model.Snippet
	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "filed", Code: "x", Language: "go", NamespaceID: ns.ID}, &snip)

	// Rename.
	ns.Name = "Work Stuff"
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/namespaces/"+ns.ID, ns, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete: snippet survives, reassigned to the default namespace.
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/namespaces/"+ns.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var got model.Snippet
	doJSON(t, http.MethodGet, ts.URL+"/api/snippets/"+snip.ID, nil, &got)
	assert.Equal(t, model.DefaultNamespaceID, got.NamespaceID)
}

func TestDefaultNamespaceUndeletable(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/namespaces/"+model.DefaultNamespaceID, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteMissingNamespace(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/namespaces/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWipeRestoresDefaultNamespace(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "doomed", Code: "x", Language: "go"}, nil)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/admin/wipe", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snippets []model.Snippet
	doJSON(t, http.MethodGet, ts.URL+"/api/snippets", nil, &snippets)
	assert.Empty(t, snippets)

	var namespaces []model.Namespace
	doJSON(t, http.MethodGet, ts.URL+"/api/namespaces", nil, &namespaces)
	require.Len(t, namespaces, 1)
	assert.True(t, namespaces[0].IsDefault)
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "a", Code: "x", Language: "go", IsTemplate: true}, nil)
	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "b", Code: "y", Language: "go"}, nil)

	var stats backup.Stats
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/admin/stats", nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2, stats.SnippetCount)
	assert.Equal(t, 1, stats.TemplateCount)
	assert.Equal(t, 1, stats.NamespaceCount)
	assert.Equal(t, backend.KindLocal, stats.StorageType)
}

func TestExportImportEndpoints(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "kept", Code: "x", Language: "go"}, nil)

	resp, err := http.Get(ts.URL + "/api/admin/export")
	require.NoError(t, err)
	archive, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Wipe, then restore from the archive.
	doJSON(t, http.MethodPost, ts.URL+"/api/admin/wipe", nil, nil)

	resp, err = http.Post(ts.URL+"/api/admin/import", "application/json", bytes.NewReader(archive))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var imported map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&imported))
	assert.Equal(t, 1, imported["imported"])

	var snippets []model.Snippet
	doJSON(t, http.MethodGet, ts.URL+"/api/snippets", nil, &snippets)
	require.Len(t, snippets, 1)
	assert.Equal(t, "kept", snippets[0].Title)
}

func TestStorageEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var state struct {
		Backend string `json:"backend"`
		Locked  bool   `json:"locked"`
	}
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/admin/storage", nil, &state)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, backend.KindLocal, state.Backend)
	assert.False(t, state.Locked)
}

func TestMigrationEndpoints(t *testing.T) {
	// Two full stacks: ts is the one under test, peer plays the remote
	// service it migrates to and from.
	ts := newTestServer(t)
	peer := newTestServer(t)

	for i := 0; i < 3; i++ {
		doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
			model.Snippet{Title: fmt.Sprintf("s%d", i), Code: "x", Language: "go"}, nil)
	}

	// Push to the peer and switch over.
	var pushed map[string]int
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/admin/migrate/to-remote",
		map[string]string{"url": peer.URL}, &pushed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, pushed["migrated"])

	var state struct {
		Backend string `json:"backend"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/admin/storage", nil, &state)
	assert.Equal(t, backend.KindRemote, state.Backend)

	// The peer now holds the rows, and ts serves them through the remote
	// backend.
	var peerRows []model.Snippet
	doJSON(t, http.MethodGet, peer.URL+"/api/snippets", nil, &peerRows)
	assert.Len(t, peerRows, 3)

	var viaRemote []model.Snippet
	doJSON(t, http.MethodGet, ts.URL+"/api/snippets", nil, &viaRemote)
	assert.Len(t, viaRemote, 3)

	// And pull back.
	var pulled map[string]int
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/admin/migrate/to-local",
		map[string]string{"url": peer.URL}, &pulled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, pulled["migrated"])

	doJSON(t, http.MethodGet, ts.URL+"/api/admin/storage", nil, &state)
	assert.Equal(t, backend.KindLocal, state.Backend)
}

func TestSaverNotifiedOnlyWhileLocalActive(t *testing.T) {
	rec := &recordingNotifier{}
	ts := newTestServerWithSaver(t, rec)
	peer := newTestServer(t)

	// Local backend active: a mutation schedules a save.
	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "local write", Code: "x", Language: "go"}, nil)
	require.Equal(t, 1, rec.count())

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/admin/migrate/to-remote",
		map[string]string{"url": peer.URL}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Remote backend active: mutations land on the peer and leave the local
	// image untouched, so no save is scheduled.
	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "remote write", Code: "y", Language: "go"}, nil)
	var ns model.Namespace
	doJSON(t, http.MethodPost, ts.URL+"/api/namespaces", model.Namespace{Name: "Remote NS"}, &ns)
	doJSON(t, http.MethodDelete, ts.URL+"/api/namespaces/"+ns.ID, nil, nil)
	assert.Equal(t, 1, rec.count(), "remote-backed mutations must not schedule local saves")

	// Back on the local backend, notifications resume.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/admin/migrate/to-local",
		map[string]string{"url": peer.URL}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "local again", Code: "z", Language: "go"}, nil)
	assert.Equal(t, 2, rec.count())
}

func TestMigrateToUnreachableRemote(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/api/snippets",
		model.Snippet{Title: "stays", Code: "x", Language: "go"}, nil)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/admin/migrate/to-remote",
		map[string]string{"url": "http://127.0.0.1:1"}, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var state struct {
		Backend string `json:"backend"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/admin/storage", nil, &state)
	assert.Equal(t, backend.KindLocal, state.Backend)
}
