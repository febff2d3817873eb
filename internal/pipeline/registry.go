package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"actionfigure/internal/infra"
)

// Factory builds an orchestrator for a new session id.
type Factory func(id string) (*Orchestrator, error)

// Registry holds the in-memory sessions served over HTTP. Each session owns
// one orchestrator; nothing is persisted.
type Registry struct {
	factory Factory
	logger  *infra.Logger

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
}

func NewRegistry(factory Factory, logger *infra.Logger) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("pipeline: session factory is required")
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Registry{factory: factory, logger: logger, sessions: make(map[string]*Orchestrator)}, nil
}

// Create starts a new idle session.
func (r *Registry) Create() (*Orchestrator, error) {
	o, err := r.factory(uuid.NewString())
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[o.ID()] = o
	r.mu.Unlock()
	r.logger.Debug().Str("session", o.ID()).Msg("pipeline: session created")
	return o, nil
}

func (r *Registry) Get(id string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[id]
	return o, ok
}

// Delete closes and forgets a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	o, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		o.Close()
		r.logger.Debug().Str("session", id).Msg("pipeline: session deleted")
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions without an active run whose last activity is older
// than idle. It returns the number of sessions removed.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	var stale []*Orchestrator
	r.mu.Lock()
	for id, o := range r.sessions {
		if o.State().Phase.Active() {
			continue
		}
		if now.Sub(o.LastActivity()) >= idle {
			stale = append(stale, o)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, o := range stale {
		o.Close()
	}
	if len(stale) > 0 {
		r.logger.Info().Int("sessions", len(stale)).Msg("pipeline: swept idle sessions")
	}
	return len(stale)
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now, idle)
		}
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Orchestrator)
	r.mu.Unlock()
	for _, o := range sessions {
		o.Close()
	}
}
