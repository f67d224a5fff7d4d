package app

import (
	"context"
	"sync"

	"github.com/dkeye/Signalling/internal/core"
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type sessionEntry struct {
	Signal   core.Signaller
	Endpoint *domain.Endpoint
	Media    core.MediaConnection
	Cancel   context.CancelFunc
}

// Registry tracks the live signalling sessions of the server.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	log      zerolog.Logger
}

func NewRegistry(l zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		log:      l.With().Str("module", "app.registry").Logger(),
	}
}

// Bind registers sig under sid. A previous session with the same id is
// cancelled and returned.
func (r *Registry) Bind(sid core.SessionID, sig core.Signaller, cancel context.CancelFunc) (core.Signaller, bool) {
	r.mu.Lock()
	prev, had := r.sessions[sid]
	r.sessions[sid] = &sessionEntry{Signal: sig, Cancel: cancel}
	r.mu.Unlock()

	r.log.Info().Str("sid", string(sid)).Bool("replaced", had).Msg("bound signal")
	if !had {
		return nil, false
	}
	prev.Cancel()
	if prev.Media != nil {
		prev.Media.Close()
	}
	return prev.Signal, true
}

// Unbind removes sid if it is still bound to sig and releases its resources.
func (r *Registry) Unbind(sid core.SessionID, sig core.Signaller) bool {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if !ok || e.Signal != sig {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, sid)
	r.mu.Unlock()

	e.Cancel()
	if e.Media != nil {
		e.Media.Close()
	}
	r.log.Info().Str("sid", string(sid)).Msg("unbound signal")
	return true
}

func (r *Registry) SetEndpoint(sid core.SessionID, ep *domain.Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if ok {
		e.Endpoint = ep
		r.log.Info().Str("sid", string(sid)).Str("endpoint", string(ep.ID)).Msg("updated endpoint")
	}
	return ok
}

func (r *Registry) Endpoint(sid core.SessionID) (*domain.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Endpoint == nil {
		return nil, false
	}
	return e.Endpoint, true
}

// SetMedia attaches mc to sid, closing any connection it replaces.
func (r *Registry) SetMedia(sid core.SessionID, mc core.MediaConnection) bool {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	var old core.MediaConnection
	if ok {
		old, e.Media = e.Media, mc
	}
	r.mu.Unlock()
	if old != nil && old != mc {
		old.Close()
	}
	return ok
}

// ClearMedia detaches mc from sid if it is still the current connection.
func (r *Registry) ClearMedia(sid core.SessionID, mc core.MediaConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok && e.Media == mc {
		e.Media = nil
	}
}

func (r *Registry) Media(sid core.SessionID) (core.MediaConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Media == nil {
		return nil, false
	}
	return e.Media, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Signallers snapshots the outbound side of every session.
func (r *Registry) Signallers() []core.Signaller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.sessions, func(_ core.SessionID, e *sessionEntry) core.Signaller {
		return e.Signal
	})
}
