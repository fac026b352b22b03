package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor periodically pings every open connection, registered or not, and
// terminates those that stop answering. That pushes vanished peers (network
// partition, crash, forced termination) through the same disconnect path as
// a clean close, which is what arms the reconciler for them.
type Monitor struct {
	mu       sync.Mutex
	tracked  map[*Session]struct{}
	interval time.Duration
}

// NewMonitor creates a monitor with the given heartbeat interval, which is
// also the pong deadline for each ping.
func NewMonitor(interval time.Duration) *Monitor {
	return &Monitor{
		tracked:  make(map[*Session]struct{}),
		interval: interval,
	}
}

// Track starts heartbeating a session. Called on accept, before the client
// has registered.
func (m *Monitor) Track(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[s] = struct{}{}
}

// Untrack stops heartbeating a session.
func (m *Monitor) Untrack(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tracked, s)
}

// Run drives the heartbeat loop until ctx is done. onDead is invoked for
// every session whose ping goes unanswered within one interval, normally
// Handler.CloseSession.
func (m *Monitor) Run(ctx context.Context, onDead func(s *Session, cause error)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	slog.Info("Heartbeat monitor started", "interval", m.interval)

	for {
		select {
		case <-ticker.C:
			m.sweep(ctx, onDead)
		case <-ctx.Done():
			slog.Info("Heartbeat monitor shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (m *Monitor) sweep(ctx context.Context, onDead func(s *Session, cause error)) {
	for _, s := range m.snapshot() {
		go func(s *Session) {
			pingCtx, cancel := context.WithTimeout(ctx, m.interval)
			defer cancel()

			if err := s.wire.Ping(pingCtx); err != nil && s.Open() {
				slog.Warn("Heartbeat failed, terminating connection", "session_id", s.ID(), "user_id", s.UserID(), "error", err)
				onDead(s, err)
			}
		}(s)
	}
}

func (m *Monitor) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.tracked))
	for s := range m.tracked {
		out = append(out, s)
	}
	return out
}
