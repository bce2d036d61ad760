// Package persist flushes the engine's byte image to durable storage after
// data-changing operations, debounced so a burst of edits costs one snapshot.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Action names for the operations that dirty the dataset. Anything not in
// the configured action set never triggers a flush.
const (
	ActionSnippetCreate   = "snippet.create"
	ActionSnippetUpdate   = "snippet.update"
	ActionSnippetDelete   = "snippet.delete"
	ActionNamespaceCreate = "namespace.create"
	ActionNamespaceUpdate = "namespace.update"
	ActionNamespaceDelete = "namespace.delete"
	ActionImport          = "import"
	ActionWipe            = "wipe"
)

// Flusher snapshots current state into durable storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Options controls the saver's behavior.
type Options struct {
	Enabled        bool
	Debounce       time.Duration
	Logging        bool
	Actions        []string
	RetryOnFailure bool
	MaxRetries     int
	RetryDelay     time.Duration
}

// DefaultOptions returns the production configuration: every mutating action
// persists, debounced by one second, with three retries on failure.
func DefaultOptions() Options {
	return Options{
		Enabled:  true,
		Debounce: time.Second,
		Actions: []string{
			ActionSnippetCreate, ActionSnippetUpdate, ActionSnippetDelete,
			ActionNamespaceCreate, ActionNamespaceUpdate, ActionNamespaceDelete,
			ActionImport, ActionWipe,
		},
		RetryOnFailure: true,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Saver runs a single background worker that coalesces persistence requests.
// Notify never blocks and a flush in flight absorbs any notifications that
// arrive while it runs; at most one flush executes at a time.
//
// Persistence failures are logged and swallowed — a failed flush must never
// fail the user operation that triggered it. The next notification schedules
// a fresh attempt.
type Saver struct {
	flusher Flusher
	opts    Options
	actions map[string]struct{}
	logger  *slog.Logger

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	flushes int // completed flushes, for introspection and tests
}

// NewSaver starts the worker. The returned Saver must be Closed to stop it.
func NewSaver(flusher Flusher, opts Options, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	actions := make(map[string]struct{}, len(opts.Actions))
	for _, a := range opts.Actions {
		actions[a] = struct{}{}
	}

	s := &Saver{
		flusher: flusher,
		opts:    opts,
		actions: actions,
		logger:  logger,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	if opts.Enabled {
		s.wg.Add(1)
		go s.loop()
	}
	return s
}

// Notify reports that action just mutated the dataset. Unknown actions and a
// disabled saver are ignored. Never blocks.
func (s *Saver) Notify(action string) {
	if !s.opts.Enabled {
		return
	}
	if _, ok := s.actions[action]; !ok {
		return
	}
	if s.opts.Logging {
		s.logger.Debug("persistence scheduled", slog.String("action", action))
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Flushes returns the number of completed flushes.
func (s *Saver) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Close stops the worker. If a notification is pending it is flushed once,
// without the debounce wait, so Close never drops dirty state.
func (s *Saver) Close() {
	if !s.opts.Enabled {
		return
	}
	close(s.done)
	s.wg.Wait()
}

func (s *Saver) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			s.drainAndFlush()
			return
		case <-s.kick:
		}

		timer := time.NewTimer(s.opts.Debounce)
	debounce:
		for {
			select {
			case <-s.done:
				timer.Stop()
				s.attempt()
				return
			case <-s.kick:
				// Another mutation inside the window restarts it.
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(s.opts.Debounce)
			case <-timer.C:
				break debounce
			}
		}

		s.attempt()
	}
}

func (s *Saver) drainAndFlush() {
	select {
	case <-s.kick:
		s.attempt()
	default:
	}
}

// attempt flushes, retrying up to MaxRetries on failure. A terminal failure
// is logged once and dropped.
func (s *Saver) attempt() {
	attempts := 1
	if s.opts.RetryOnFailure && s.opts.MaxRetries > 0 {
		attempts += s.opts.MaxRetries
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(s.opts.RetryDelay):
			case <-s.done:
				// Closing: one last immediate try below, no more waiting.
			}
		}

		if err = s.flusher.Flush(context.Background()); err == nil {
			s.mu.Lock()
			s.flushes++
			s.mu.Unlock()
			if s.opts.Logging {
				s.logger.Debug("state persisted")
			}
			return
		}

		s.logger.Warn("persistence attempt failed",
			slog.Int("attempt", i+1),
			slog.Int("of", attempts),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Error("persistence failed, giving up until the next change",
		slog.String("error", err.Error()),
	)
}
