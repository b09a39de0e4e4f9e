package sessions

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Rahul-7375/attendance-cist/models"
)

// Registry tracks the active session per presenter so a second device
// cannot start a parallel session and a stop request can reach the running
// monitor. Owned by the transport layer, passed in explicitly rather than
// living as package state.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{cancels: make(map[string]context.CancelFunc)}
}

// Add registers a running session's cancel func. It fails if the presenter
// already has one.
func (r *Registry) Add(presenterID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cancels[presenterID]; exists {
		return models.ErrSessionAlreadyActive
	}
	r.cancels[presenterID] = cancel
	log.Info().Str("presenter", presenterID).Msg("session registered")
	return nil
}

// Remove drops the presenter's entry without cancelling. Called by the
// session's own teardown path.
func (r *Registry) Remove(presenterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, presenterID)
}

// Stop cancels the presenter's running session, if any.
func (r *Registry) Stop(presenterID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[presenterID]
	delete(r.cancels, presenterID)
	r.mu.Unlock()
	if ok {
		cancel()
		log.Info().Str("presenter", presenterID).Msg("session stopped by request")
	}
	return ok
}
