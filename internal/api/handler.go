// Package api provides the HTTP diagnostics surface of the relay.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/trazzo/bitacora-relay/internal/relay"
	"github.com/trazzo/bitacora-relay/internal/store"
)

// Handler serves health and presence endpoints.
type Handler struct {
	repo     store.Repository
	registry *relay.Registry
	tracker  *relay.Tracker
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, registry *relay.Registry, tracker *relay.Tracker) *Handler {
	return &Handler{
		repo:     repo,
		registry: registry,
		tracker:  tracker,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/status", h.Status)
	r.Get("/api/presence", h.Presence)
}

// Status returns the health of the relay and its store.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
		"checks": map[string]string{"relay": "ok"},
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Status check failed", "error", err)
		status["status"] = "degraded"
		status["checks"].(map[string]string)["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		status["checks"].(map[string]string)["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// PresenceEntry describes one online user.
type PresenceEntry struct {
	UserID          string   `json:"userId"`
	Sessions        int      `json:"sessions"`
	ActiveRegistros []string `json:"activeRegistros"`
}

// Presence returns every online user with their session count and active
// task claims.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()

	entries := make([]PresenceEntry, 0, len(snapshot))
	for userID, sessions := range snapshot {
		entry := PresenceEntry{
			UserID:          userID,
			Sessions:        len(sessions),
			ActiveRegistros: []string{},
		}
		for _, s := range sessions {
			if registroID, ok := h.tracker.ClaimFor(s); ok {
				entry.ActiveRegistros = append(entry.ActiveRegistros, registroID)
			}
		}
		sort.Strings(entry.ActiveRegistros)
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })

	JSON(w, http.StatusOK, map[string]interface{}{
		"online": len(entries),
		"users":  entries,
	})
}
