// Package relay implements the real-time presence and notification relay:
// per-user session registry, active-task claims, message routing, and the
// grace-period reconciliation that pauses a registro when its session is
// gone for good.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeTimeout bounds each outbound frame so one backed-up peer cannot hold
// a delivery goroutine forever.
const writeTimeout = 5 * time.Second

// ErrSessionClosed is returned by Session sends after the session is torn
// down.
var ErrSessionClosed = errors.New("session closed")

// Wire is the transport side of a session. *websocket.Conn satisfies it
// through wsWire; tests substitute in-memory fakes.
type Wire interface {
	// Write sends one text frame.
	Write(ctx context.Context, data []byte) error

	// Ping sends a ping and blocks until the pong or ctx expiry.
	Ping(ctx context.Context) error

	// Close closes the underlying connection.
	Close(reason string) error
}

// Session is one live client connection. The transport owns the wire; the
// registry and tracker hold non-owning references. A session is anonymous
// until a register message arrives.
type Session struct {
	id   string
	wire Wire

	mu     sync.Mutex
	userID string
	open   bool

	// closeOnce guards the disconnect path: a session that is closed by
	// the monitor and then again by its read loop reconciles exactly once.
	closeOnce sync.Once
}

// NewSession wraps a wire in a fresh, open, anonymous session.
func NewSession(wire Wire) *Session {
	return &Session{
		id:   uuid.NewString(),
		wire: wire,
		open: true,
	}
}

// ID returns the opaque session identifier.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the registered user identity, or "" while anonymous.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) setUserID(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// Open reports whether the session has not been torn down yet.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}

// send delivers one already-marshaled frame with a bounded write deadline.
func (s *Session) send(data []byte) error {
	if !s.Open() {
		return ErrSessionClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.wire.Write(ctx, data)
}

// wsWire adapts *websocket.Conn to Wire.
type wsWire struct {
	conn *websocket.Conn
}

func (w *wsWire) Write(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsWire) Ping(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

func (w *wsWire) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, reason)
}
