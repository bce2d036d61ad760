package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/model"
)

var _ Backend = (*Remote)(nil)

const (
	defaultRequestTimeout = 10 * time.Second

	// probeTimeout bounds TestConnection so a migration attempt fails fast
	// on an unreachable host instead of hanging.
	probeTimeout = 3 * time.Second
)

// Remote routes every DAO operation to the external REST service at baseURL.
// Any non-2xx response is a failure of the corresponding operation: 404 maps
// to ErrNotFound, everything else to ErrConnection.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates an adapter bound to baseURL (scheme + host, no trailing
// slash needed).
func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

// ValidRemoteURL reports whether raw is usable as a service base URL.
func ValidRemoteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *Remote) Kind() string { return KindRemote }

// do performs one REST call. A non-nil out is filled from the response body.
func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("remote: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return apperror.Connection(err, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperror.NotFound("resource", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the error message; the service
		// returns {"error": "..."} on failures.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperror.Connection(nil,
			fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperror.Connection(err, fmt.Sprintf("decoding %s %s response", method, path))
		}
	}

	return nil
}

func (r *Remote) GetAllSnippets(ctx context.Context) ([]model.Snippet, error) {
	var snippets []model.Snippet
	if err := r.do(ctx, http.MethodGet, "/api/snippets", nil, &snippets); err != nil {
		return nil, err
	}
	return snippets, nil
}

func (r *Remote) GetSnippet(ctx context.Context, id string) (*model.Snippet, error) {
	var s model.Snippet
	if err := r.do(ctx, http.MethodGet, "/api/snippets/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSnippet mints the id and timestamps client-side, as the original
// browser client did, then posts the complete entity.
func (r *Remote) CreateSnippet(ctx context.Context, s *model.Snippet) error {
	if s.ID == "" {
		s.ID = xid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
		s.UpdatedAt = s.CreatedAt
	}
	return r.do(ctx, http.MethodPost, "/api/snippets", s, s)
}

func (r *Remote) UpdateSnippet(ctx context.Context, s *model.Snippet) error {
	s.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return r.do(ctx, http.MethodPut, "/api/snippets/"+url.PathEscape(s.ID), s, s)
}

func (r *Remote) DeleteSnippet(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/api/snippets/"+url.PathEscape(id), nil, nil)
}

// PutSnippet pushes the snippet as-is. The service's POST endpoint upserts
// by id, which is what makes a re-run migration converge.
func (r *Remote) PutSnippet(ctx context.Context, s *model.Snippet) error {
	return r.do(ctx, http.MethodPost, "/api/snippets", s, nil)
}

func (r *Remote) GetAllNamespaces(ctx context.Context) ([]model.Namespace, error) {
	var namespaces []model.Namespace
	if err := r.do(ctx, http.MethodGet, "/api/namespaces", nil, &namespaces); err != nil {
		return nil, err
	}
	return namespaces, nil
}

func (r *Remote) CreateNamespace(ctx context.Context, ns *model.Namespace) error {
	if ns.ID == "" {
		ns.ID = xid.New().String()
	}
	if ns.CreatedAt.IsZero() {
		ns.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	ns.IsDefault = false
	return r.do(ctx, http.MethodPost, "/api/namespaces", ns, ns)
}

func (r *Remote) PutNamespace(ctx context.Context, ns *model.Namespace) error {
	return r.do(ctx, http.MethodPost, "/api/namespaces", ns, nil)
}

func (r *Remote) DeleteNamespace(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/api/namespaces/"+url.PathEscape(id), nil, nil)
}

// TestConnection probes GET /health within probeTimeout. It never mutates
// state and reports reachability as a plain boolean.
func (r *Remote) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
