package session

import (
	"sync"

	"github.com/okian/readcoach/pkg/metrics"
)

// Registry holds active sessions in memory, keyed by session ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put stores s, replacing any session with the same ID.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.UpdateActiveSessions(n)
}

// Get returns the session id if it belongs to userID. Sessions of other
// users are reported as not found.
func (r *Registry) Get(userID, id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// With runs fn on the session id of userID while holding the session's
// lock, so concurrent requests for one session apply in order.
func (r *Registry) With(userID, id string, fn func(*Session) error) error {
	s, err := r.Get(userID, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// Delete removes the session id.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.UpdateActiveSessions(n)
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
