package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/trazzo/bitacora-relay/internal/domain"
	"github.com/trazzo/bitacora-relay/internal/store"
)

// storeTimeout bounds the guarded update against the system of record.
const storeTimeout = 5 * time.Second

// Reconciler repairs the "disconnected mid-task" inconsistency: when a
// session drops while claiming a registro, it waits out a grace window for
// the client to reconnect and re-claim, and otherwise pauses the registro in
// the system of record.
type Reconciler struct {
	registry *Registry
	tracker  *Tracker
	repo     store.Repository
	notify   func(userID string, payload any)
	grace    time.Duration
}

// NewReconciler creates a reconciler. notify is used for the synthetic
// status_update after a successful pause, normally Router.SendToUser.
func NewReconciler(registry *Registry, tracker *Tracker, repo store.Repository, notify func(userID string, payload any), grace time.Duration) *Reconciler {
	return &Reconciler{
		registry: registry,
		tracker:  tracker,
		repo:     repo,
		notify:   notify,
		grace:    grace,
	}
}

// Schedule arms a grace cycle for a captured (userID, registroID) pair. The
// caller has already removed the dead session from the registry and tracker;
// only the external mutation is delayed. The timer is never aborted early:
// reconnecting merely changes the outcome of the check when it fires.
func (r *Reconciler) Schedule(userID, registroID string) {
	slog.Info("Grace period armed", "user_id", userID, "registro_id", registroID, "grace", r.grace)
	time.AfterFunc(r.grace, func() {
		r.resolve(userID, registroID)
	})
}

func (r *Reconciler) resolve(userID, registroID string) {
	if r.tracker.StillClaimed(r.registry.SessionsFor(userID), registroID) {
		slog.Info("Grace period cancelled, registro re-claimed", "user_id", userID, "registro_id", registroID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rows, err := r.repo.PauseIfEnProceso(ctx, registroID)
	if err != nil {
		// Fail open: the registro keeps its current state and the relay
		// keeps running.
		slog.Error("Grace period pause failed", "user_id", userID, "registro_id", registroID, "error", err)
		return
	}
	if rows == 0 {
		slog.Info("Grace period pause skipped, registro no longer en proceso", "user_id", userID, "registro_id", registroID)
		return
	}

	slog.Info("Registro paused after grace period", "user_id", userID, "registro_id", registroID)

	// The user may be connected again on a screen that never re-claimed
	// the task; tell their sessions about the pause.
	r.notify(userID, StatusUpdatePayload{
		Type:               kindStatusUpdate,
		RegistroID:         registroID,
		Estado:             domain.EstadoPausado.Texto(),
		TiempoTranscurrido: 0,
		FromUserID:         SystemUserID,
	})
}
