package backend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/durable"
)

// prefStorage is the durable key-value slot holding the serialized storage
// configuration. Deliberately outside the relational engine — the
// configuration must be readable before (and even without) the engine.
const prefStorage = "storage"

// Selection is the persisted storage configuration.
type Selection struct {
	Backend   string `json:"backend"` // "local" | "remote"
	RemoteURL string `json:"remoteUrl,omitempty"`
}

// Registry resolves and owns the active backend strategy.
//
// Resolution order, strict precedence:
//  1. environment override — forces Remote and locks user-facing controls
//  2. previously saved preference from the durable pref slot
//  3. default — Local
//
// UseLocal/UseRemote are the invalidation hooks the migration service fires
// on a backend switch; they persist the preference and swap the active
// strategy without a restart.
type Registry struct {
	mu        sync.RWMutex
	prefs     *durable.Store
	local     Backend
	newRemote func(baseURL string) Backend
	logger    *slog.Logger

	envURL string
	sel    Selection
	active Backend
}

// NewRegistry resolves the initial selection. envURL is the deploy-time
// override (empty means none); newRemote may be nil, defaulting to NewRemote.
func NewRegistry(prefs *durable.Store, envURL string, local Backend, newRemote func(string) Backend, logger *slog.Logger) (*Registry, error) {
	if newRemote == nil {
		newRemote = func(u string) Backend { return NewRemote(u) }
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		prefs:     prefs,
		local:     local,
		newRemote: newRemote,
		logger:    logger,
		envURL:    envURL,
	}

	if envURL != "" {
		if !ValidRemoteURL(envURL) {
			return nil, apperror.ValidationFailed("remoteUrl",
				fmt.Sprintf("environment override is not a valid url: %q", envURL))
		}
		r.sel = Selection{Backend: KindRemote, RemoteURL: envURL}
		r.active = newRemote(envURL)
		logger.Info("storage backend forced by environment override",
			slog.String("url", envURL),
		)
		return r, nil
	}

	sel, err := r.loadSelection()
	if err != nil {
		return nil, err
	}
	r.sel = sel

	if sel.Backend == KindRemote && ValidRemoteURL(sel.RemoteURL) {
		r.active = newRemote(sel.RemoteURL)
	} else {
		r.sel = Selection{Backend: KindLocal}
		r.active = local
	}

	logger.Info("storage backend resolved", slog.String("backend", r.sel.Backend))
	return r, nil
}

func (r *Registry) loadSelection() (Selection, error) {
	raw, err := r.prefs.GetPref(prefStorage)
	if err != nil {
		return Selection{}, err
	}
	if raw == nil {
		return Selection{Backend: KindLocal}, nil
	}

	var sel Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		// A mangled preference falls back to Local rather than wedging
		// startup; the user can re-select Remote.
		r.logger.Warn("discarding unreadable storage preference",
			slog.String("error", err.Error()),
		)
		return Selection{Backend: KindLocal}, nil
	}
	return sel, nil
}

func (r *Registry) saveSelection(sel Selection) error {
	raw, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("backend: encoding selection: %w", err)
	}
	return r.prefs.PutPref(prefStorage, raw)
}

// Active returns the current strategy. Resolve per operation — the active
// backend changes at runtime after a migration.
func (r *Registry) Active() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Selection returns the current persisted configuration.
func (r *Registry) Selection() Selection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sel
}

// Locked reports whether the environment override is pinning the backend,
// which disables the user-facing configuration controls.
func (r *Registry) Locked() bool {
	return r.envURL != ""
}

// UseLocal switches the active backend to the embedded engine and persists
// the preference.
func (r *Registry) UseLocal() error {
	if r.Locked() {
		return apperror.ValidationFailed("backend",
			"backend selection is locked by the environment override")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sel := Selection{Backend: KindLocal}
	if err := r.saveSelection(sel); err != nil {
		return err
	}
	r.sel = sel
	r.active = r.local
	r.logger.Info("storage backend switched", slog.String("backend", KindLocal))
	return nil
}

// UseRemote switches the active backend to the HTTP service at baseURL and
// persists the preference.
func (r *Registry) UseRemote(baseURL string) error {
	if r.Locked() {
		return apperror.ValidationFailed("backend",
			"backend selection is locked by the environment override")
	}
	if !ValidRemoteURL(baseURL) {
		return apperror.ValidationFailed("remoteUrl", fmt.Sprintf("invalid remote url: %q", baseURL))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sel := Selection{Backend: KindRemote, RemoteURL: baseURL}
	if err := r.saveSelection(sel); err != nil {
		return err
	}
	r.sel = sel
	r.active = r.newRemote(baseURL)
	r.logger.Info("storage backend switched",
		slog.String("backend", KindRemote),
		slog.String("url", baseURL),
	)
	return nil
}
