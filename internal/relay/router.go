package relay

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Message kinds understood by the relay. Field names on the wire are those
// the Bitacora desktop client sends.
const (
	kindRegister       = "register"
	kindAssignment     = "assignment"
	kindStatusUpdate   = "status_update"
	kindRegisterTask   = "register_task"
	kindUnregisterTask = "unregister_task"
)

// SystemUserID is the provenance stamped on relay-originated payloads.
const SystemUserID = "SYSTEM"

// envelope is the superset of every inbound message shape.
type envelope struct {
	Type               string `json:"type"`
	UserID             string `json:"userId"`
	ToUserID           string `json:"toUserId"`
	RegistroID         string `json:"registroId"`
	Tipo               string `json:"tipo"`
	Titulo             string `json:"titulo"`
	Prioridad          string `json:"prioridad"`
	Estado             string `json:"estado"`
	Proyecto           string `json:"proyecto"`
	TiempoTranscurrido any    `json:"tiempoTranscurrido"`
}

// AssignmentPayload is the outbound shape forwarded to the destination
// user's sessions when a registro is assigned.
type AssignmentPayload struct {
	Type       string `json:"type"`
	RegistroID string `json:"registroId"`
	Tipo       string `json:"tipo"`
	Titulo     string `json:"titulo"`
	Prioridad  string `json:"prioridad"`
	Estado     string `json:"estado"`
	Proyecto   string `json:"proyecto"`
	FromUserID string `json:"fromUserId"`
}

// StatusUpdatePayload is the outbound shape for state changes, both
// client-originated and the reconciler's synthetic pause notification.
type StatusUpdatePayload struct {
	Type               string `json:"type"`
	RegistroID         string `json:"registroId"`
	Estado             string `json:"estado"`
	TiempoTranscurrido any    `json:"tiempoTranscurrido"`
	FromUserID         string `json:"fromUserId"`
}

// Router decodes inbound envelopes, dispatches by message kind, and fans
// outbound payloads out to every live session of the target user.
type Router struct {
	registry *Registry
	tracker  *Tracker
}

// NewRouter creates a router over the shared registry and tracker.
func NewRouter(registry *Registry, tracker *Tracker) *Router {
	return &Router{
		registry: registry,
		tracker:  tracker,
	}
}

// Handle processes one inbound frame. Malformed messages and unknown kinds
// are logged and dropped; the connection stays alive.
func (r *Router) Handle(s *Session, data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Dropping unparseable message", "session_id", s.ID(), "error", err)
		return
	}

	switch msg.Type {
	case kindRegister:
		r.handleRegister(s, msg)
	case kindAssignment:
		r.handleAssignment(s, msg)
	case kindStatusUpdate:
		r.handleStatusUpdate(s, msg)
	case kindRegisterTask:
		r.handleRegisterTask(s, msg)
	case kindUnregisterTask:
		r.handleUnregisterTask(s)
	default:
		slog.Warn("Dropping message of unknown type", "type", msg.Type, "session_id", s.ID())
	}
}

func (r *Router) handleRegister(s *Session, msg envelope) {
	userID := strings.TrimSpace(msg.UserID)
	if userID == "" {
		slog.Warn("Dropping register message without userId", "session_id", s.ID())
		return
	}
	r.registry.Register(userID, s)
}

func (r *Router) handleAssignment(s *Session, msg envelope) {
	toUserID := strings.TrimSpace(msg.ToUserID)
	if toUserID == "" {
		slog.Warn("Dropping assignment message without toUserId", "session_id", s.ID())
		return
	}

	payload := AssignmentPayload{
		Type:       kindAssignment,
		RegistroID: msg.RegistroID,
		Tipo:       msg.Tipo,
		Titulo:     msg.Titulo,
		Prioridad:  msg.Prioridad,
		Estado:     msg.Estado,
		Proyecto:   msg.Proyecto,
		FromUserID: s.UserID(),
	}

	slog.Info("Forwarding assignment", "to_user_id", toUserID, "registro_id", msg.RegistroID, "from_user_id", payload.FromUserID)
	r.SendToUser(toUserID, payload)
}

func (r *Router) handleStatusUpdate(s *Session, msg envelope) {
	toUserID := strings.TrimSpace(msg.ToUserID)
	if toUserID == "" {
		slog.Warn("Dropping status_update message without toUserId", "session_id", s.ID())
		return
	}

	elapsed := msg.TiempoTranscurrido
	if elapsed == nil {
		elapsed = 0
	}
	payload := StatusUpdatePayload{
		Type:               kindStatusUpdate,
		RegistroID:         msg.RegistroID,
		Estado:             msg.Estado,
		TiempoTranscurrido: elapsed,
		FromUserID:         s.UserID(),
	}

	slog.Info("Forwarding status_update", "to_user_id", toUserID, "registro_id", msg.RegistroID, "estado", msg.Estado)
	r.SendToUser(toUserID, payload)
}

func (r *Router) handleRegisterTask(s *Session, msg envelope) {
	// Recovery path: register and register_task can arrive out of order
	// after a reconnect, so accept the identity from the message itself.
	if s.UserID() == "" {
		if userID := strings.TrimSpace(msg.UserID); userID != "" {
			slog.Info("Recovering userId from register_task", "user_id", userID, "session_id", s.ID())
			r.registry.Register(userID, s)
		}
	}

	if s.UserID() == "" || msg.RegistroID == "" {
		slog.Warn("Dropping register_task message", "user_id", s.UserID(), "registro_id", msg.RegistroID, "session_id", s.ID())
		return
	}
	r.tracker.Claim(s, msg.RegistroID)
}

func (r *Router) handleUnregisterTask(s *Session) {
	if s.UserID() == "" {
		return
	}
	r.tracker.Release(s)
}

// SendToUser delivers a payload to every live session of a user. Each send
// runs in its own goroutine with its own write deadline so a slow peer
// cannot stall delivery to the others. A user with no sessions is a no-op.
func (r *Router) SendToUser(userID string, payload any) {
	sessions := r.registry.SessionsFor(userID)
	if len(sessions) == 0 {
		slog.Info("No live sessions for user, payload dropped", "user_id", userID)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal outbound payload", "user_id", userID, "error", err)
		return
	}

	for _, s := range sessions {
		go func(s *Session) {
			if err := s.send(data); err != nil {
				slog.Debug("Failed to deliver payload", "user_id", userID, "session_id", s.ID(), "error", err)
			}
		}(s)
	}
}
