package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trazzo/bitacora-relay/internal/domain"
)

// fakeWire is an in-memory Wire that records delivered frames.
type fakeWire struct {
	mu       sync.Mutex
	frames   chan []byte
	writeErr error
	pingErr  error
	closed   bool
}

func newFakeWire() *fakeWire {
	return &fakeWire{frames: make(chan []byte, 16)}
}

func (w *fakeWire) Write(ctx context.Context, data []byte) error {
	w.mu.Lock()
	err := w.writeErr
	w.mu.Unlock()
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	w.frames <- buf
	return nil
}

func (w *fakeWire) Ping(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pingErr
}

func (w *fakeWire) Close(reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWire) wasClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// recvFrame waits for one delivered frame.
func recvFrame(t *testing.T, w *fakeWire, timeout time.Duration) []byte {
	t.Helper()
	select {
	case data := <-w.frames:
		return data
	case <-time.After(timeout):
		t.Fatalf("no frame delivered within %v", timeout)
		return nil
	}
}

// expectNoFrame asserts nothing is delivered within the window.
func expectNoFrame(t *testing.T, w *fakeWire, timeout time.Duration) {
	t.Helper()
	select {
	case data := <-w.frames:
		t.Fatalf("unexpected frame delivered: %s", data)
	case <-time.After(timeout):
	}
}

func newFakeSession() (*Session, *fakeWire) {
	w := newFakeWire()
	return NewSession(w), w
}

// fakeRepo implements store.Repository and records guarded pause calls.
type fakeRepo struct {
	mu         sync.Mutex
	pauseCalls []string
	pauseRows  int64
	pauseErr   error
}

func (f *fakeRepo) GetRegistro(ctx context.Context, registroID string) (*domain.Registro, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertRegistro(ctx context.Context, registro *domain.Registro) error {
	return nil
}

func (f *fakeRepo) PauseIfEnProceso(ctx context.Context, registroID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return 0, f.pauseErr
	}
	f.pauseCalls = append(f.pauseCalls, registroID)
	return f.pauseRows, nil
}

func (f *fakeRepo) Ping(ctx context.Context) error {
	return nil
}

func (f *fakeRepo) Close() error {
	return nil
}

func (f *fakeRepo) pausedRegistros() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.pauseCalls))
	copy(out, f.pauseCalls)
	return out
}
