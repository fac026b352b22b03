package relay

import (
	"log/slog"
	"sync"
)

// Tracker maps a session to the single registro it claims to be actively
// timing. At most one claim per session; a new claim overwrites the old one.
type Tracker struct {
	mu    sync.Mutex
	tasks map[*Session]string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		tasks: make(map[*Session]string),
	}
}

// Claim records that a session is actively timing a registro, replacing any
// prior claim for that session.
func (t *Tracker) Claim(s *Session, registroID string) {
	t.mu.Lock()
	// A session closed mid-claim has already been released; do not leak a
	// ghost claim for it.
	if !s.Open() {
		t.mu.Unlock()
		return
	}
	t.tasks[s] = registroID
	count := len(t.tasks)
	t.mu.Unlock()

	slog.Info("Active task claimed", "user_id", s.UserID(), "session_id", s.ID(), "registro_id", registroID, "active_claims", count)
}

// Release clears the session's claim. No-op if it had none.
func (t *Tracker) Release(s *Session) {
	t.mu.Lock()
	_, had := t.tasks[s]
	delete(t.tasks, s)
	t.mu.Unlock()

	if had {
		slog.Info("Active task released", "user_id", s.UserID(), "session_id", s.ID())
	}
}

// ClaimFor returns the session's claimed registro id, if any.
func (t *Tracker) ClaimFor(s *Session) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	registroID, ok := t.tasks[s]
	return registroID, ok
}

// StillClaimed reports whether any live, open session in the given set
// currently claims the registro. The tracker lock is held for the whole
// scan so a concurrent re-claim is either fully visible or strictly after
// this check, never half-seen.
func (t *Tracker) StillClaimed(sessions []*Session, registroID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range sessions {
		if !s.Open() {
			continue
		}
		if t.tasks[s] == registroID {
			return true
		}
	}
	return false
}
