package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// Handler accepts WebSocket connections and runs one read loop per session.
type Handler struct {
	registry   *Registry
	tracker    *Tracker
	router     *Router
	reconciler *Reconciler
	monitor    *Monitor
}

// NewHandler creates the WebSocket connection handler.
func NewHandler(registry *Registry, tracker *Tracker, router *Router, reconciler *Reconciler, monitor *Monitor) *Handler {
	return &Handler{
		registry:   registry,
		tracker:    tracker,
		router:     router,
		reconciler: reconciler,
		monitor:    monitor,
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Clients are desktop apps that send no Origin header; there is no
	// browser origin to verify.
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}

	s := NewSession(&wsWire{conn: ws})
	slog.Info("WebSocket connection established", "session_id", s.ID(), "ip", r.RemoteAddr)

	h.monitor.Track(s)
	defer h.monitor.Untrack(s)

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			h.CloseSession(s, err)
			return
		}
		h.router.Handle(s, data)
	}
}

// CloseSession runs the disconnect path for a session: immediate registry
// and tracker cleanup, then a grace cycle if the session held a claim. Safe
// to call more than once; only the first call has any effect.
func (h *Handler) CloseSession(s *Session, cause error) {
	s.closeOnce.Do(func() {
		s.markClosed()

		userID := s.UserID()
		registroID, hadClaim := h.tracker.ClaimFor(s)
		h.tracker.Release(s)
		h.registry.Unregister(s)
		_ = s.wire.Close("connection closed")

		logClose(s, userID, cause)

		if hadClaim && userID != "" {
			h.reconciler.Schedule(userID, registroID)
		}
	})
}

// logClose distinguishes clean closes from transport errors; both take the
// same reconciliation path.
func logClose(s *Session, userID string, cause error) {
	switch {
	case cause == nil || websocket.CloseStatus(cause) != -1:
		slog.Info("Connection closed", "session_id", s.ID(), "user_id", userID)
	case errors.Is(cause, context.Canceled):
		slog.Debug("Connection context cancelled", "session_id", s.ID(), "user_id", userID)
	default:
		slog.Warn("Connection terminated with transport error", "session_id", s.ID(), "user_id", userID, "error", cause)
	}
}
