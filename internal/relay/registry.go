package relay

import (
	"log/slog"
	"sync"
)

// Registry maps a user identity to the set of live sessions for that user.
// A user may have several simultaneous sessions (two PCs, two windows); a
// session belongs to at most one user's set at a time.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[*Session]struct{}),
	}
}

// Register associates a session with a user identity. If the session was
// previously registered under a different user it is moved atomically, so a
// session never appears in two sets.
func (r *Registry) Register(userID string, s *Session) {
	prev := s.UserID()
	s.setUserID(userID)

	r.mu.Lock()
	if prev != "" && prev != userID {
		r.removeLocked(prev, s)
	}

	// The monitor may have torn the session down while this register was
	// in flight; a closed session must never enter a set.
	if !s.Open() {
		r.mu.Unlock()
		return
	}

	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[userID] = set
	}
	set[s] = struct{}{}
	count := len(set)
	r.mu.Unlock()

	slog.Info("User session registered", "user_id", userID, "session_id", s.ID(), "sessions", count)
}

// Unregister removes a session from whatever set it belongs to, pruning the
// set when it becomes empty. Safe to call for anonymous or already-removed
// sessions.
func (r *Registry) Unregister(s *Session) {
	userID := s.UserID()
	if userID == "" {
		return
	}

	r.mu.Lock()
	removed := r.removeLocked(userID, s)
	r.mu.Unlock()

	if removed {
		slog.Info("User session unregistered", "user_id", userID, "session_id", s.ID())
	}
}

func (r *Registry) removeLocked(userID string, s *Session) bool {
	set, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.sessions, userID)
	}
	return true
}

// SessionsFor returns the live sessions for a user. Absence is an empty
// slice, never an error.
func (r *Registry) SessionsFor(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Snapshot returns a copy of the full user -> sessions mapping, for the
// presence API.
func (r *Registry) Snapshot() map[string][]*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]*Session, len(r.sessions))
	for userID, set := range r.sessions {
		sessions := make([]*Session, 0, len(set))
		for s := range set {
			sessions = append(sessions, s)
		}
		out[userID] = sessions
	}
	return out
}
