package staging

import (
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
)

// Registry keeps open sessions by id for the HTTP host.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: map[string]*Session{},
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns a not-found error for unknown or swept sessions.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "staging session not found").
			WithDetails(map[string]any{"session_id": id})
	}
	return s, nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and closes the open ones
// as cancelled. It returns the removed ids.
func (r *Registry) Sweep() []string {
	if r.ttl <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, s := range r.sessions {
		if s.idleSince().After(cutoff) {
			continue
		}
		if s.State() == StateOpen {
			_ = s.Cancel()
		}
		delete(r.sessions, id)
		removed = append(removed, id)
	}
	return removed
}
