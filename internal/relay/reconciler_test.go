package relay

import (
	"errors"
	"testing"
	"time"
)

const (
	testGrace = 30 * time.Millisecond
	graceWait = 300 * time.Millisecond
)

// newTestRelay wires a full relay core around a fake repository with a short
// grace period.
func newTestRelay(repo *fakeRepo) (*Handler, *Registry, *Tracker, *Router) {
	reg := NewRegistry()
	tr := NewTracker()
	router := NewRouter(reg, tr)
	rec := NewReconciler(reg, tr, repo, router.SendToUser, testGrace)
	h := NewHandler(reg, tr, router, rec, NewMonitor(time.Hour))
	return h, reg, tr, router
}

func waitForPause(t *testing.T, repo *fakeRepo, want int) {
	t.Helper()
	deadline := time.Now().Add(graceWait)
	for time.Now().Before(deadline) {
		if len(repo.pausedRegistros()) >= want {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(repo.pausedRegistros()); got != want {
		t.Fatalf("Expected %d pause calls, got %d (%v)", want, got, repo.pausedRegistros())
	}
}

func TestReconcilerPausesAfterGrace(t *testing.T) {
	repo := &fakeRepo{pauseRows: 1}
	h, reg, tr, _ := newTestRelay(repo)

	s, _ := newFakeSession()
	reg.Register("42", s)
	tr.Claim(s, "555")

	h.CloseSession(s, nil)

	// Cleanup is immediate; only the store mutation waits.
	if _, ok := tr.ClaimFor(s); ok {
		t.Errorf("Claim must be released at close, before the grace period")
	}
	if len(reg.SessionsFor("42")) != 0 {
		t.Errorf("Session must leave the registry at close")
	}

	waitForPause(t, repo, 1)
	if repo.pausedRegistros()[0] != "555" {
		t.Errorf("Expected pause for registro 555, got %v", repo.pausedRegistros())
	}
}

func TestReconcilerSyntheticUpdateReachesOtherScreens(t *testing.T) {
	repo := &fakeRepo{pauseRows: 1}
	h, reg, tr, _ := newTestRelay(repo)

	s, _ := newFakeSession()
	reg.Register("42", s)
	tr.Claim(s, "555")
	h.CloseSession(s, nil)

	// The user reconnects on another screen but never re-claims the task.
	other, otherWire := newFakeSession()
	reg.Register("42", other)

	got := decodeFrame(t, recvFrame(t, otherWire, graceWait))
	if got["type"] != "status_update" || got["registroId"] != "555" {
		t.Errorf("Unexpected synthetic payload: %v", got)
	}
	if got["estado"] != "En Pausa" {
		t.Errorf("Expected estado En Pausa, got %v", got["estado"])
	}
	if got["fromUserId"] != "SYSTEM" {
		t.Errorf("Expected SYSTEM provenance, got %v", got["fromUserId"])
	}
	if got["tiempoTranscurrido"] != float64(0) {
		t.Errorf("Expected zero elapsed time, got %v", got["tiempoTranscurrido"])
	}
}

func TestReconcilerCancelledOnReclaim(t *testing.T) {
	repo := &fakeRepo{pauseRows: 1}
	h, reg, tr, router := newTestRelay(repo)

	s, _ := newFakeSession()
	reg.Register("42", s)
	tr.Claim(s, "555")
	h.CloseSession(s, nil)

	// Reconnect within the grace window and re-assert the claim, the way
	// the client does: register, then register_task.
	s2, _ := newFakeSession()
	router.Handle(s2, []byte(`{"type":"register","userId":"42"}`))
	router.Handle(s2, []byte(`{"type":"register_task","registroId":"555"}`))

	time.Sleep(graceWait)
	if got := len(repo.pausedRegistros()); got != 0 {
		t.Errorf("Expected no pause after re-claim, got %v", repo.pausedRegistros())
	}
}

func TestReconcilerReconnectOnDifferentTaskStillPauses(t *testing.T) {
	repo := &fakeRepo{pauseRows: 1}
	h, reg, tr, router := newTestRelay(repo)

	s, _ := newFakeSession()
	reg.Register("42", s)
	tr.Claim(s, "555")
	h.CloseSession(s, nil)

	// Reconnecting and immediately starting a different registro is not
	// cause to skip pausing the original one.
	s2, _ := newFakeSession()
	router.Handle(s2, []byte(`{"type":"register","userId":"42"}`))
	router.Handle(s2, []byte(`{"type":"register_task","registroId":"999"}`))

	waitForPause(t, repo, 1)
	if repo.pausedRegistros()[0] != "555" {
		t.Errorf("Expected pause for the original registro 555, got %v", repo.pausedRegistros())
	}
}

func TestReconcilerZeroRowsNoSyntheticUpdate(t *testing.T) {
	repo := &fakeRepo{pauseRows: 0}
	h, reg, tr, _ := newTestRelay(repo)

	s, _ := newFakeSession()
	reg.Register("42", s)
	tr.Claim(s, "555")
	h.CloseSession(s, nil)

	other, otherWire := newFakeSession()
	reg.Register("42", other)

	waitForPause(t, repo, 1)
	// The registro had already left EnProceso; no synthetic update.
	expectNoFrame(t, otherWire, 100*time.Millisecond)
}

func TestReconcilerStoreFailureFailsOpen(t *testing.T) {
	repo := &fakeRepo{pauseErr: errors.New("connection reset")}
	h, reg, tr, _ := newTestRelay(repo)

	s, _ := newFakeSession()
	reg.Register("42", s)
	tr.Claim(s, "555")
	h.CloseSession(s, nil)

	other, otherWire := newFakeSession()
	reg.Register("42", other)

	// The cycle ends quietly: no synthetic update, no crash.
	expectNoFrame(t, otherWire, graceWait)
}

func TestCloseSessionIdempotent(t *testing.T) {
	repo := &fakeRepo{pauseRows: 1}
	h, reg, tr, _ := newTestRelay(repo)

	s, wire := newFakeSession()
	reg.Register("42", s)
	tr.Claim(s, "555")

	h.CloseSession(s, nil)
	h.CloseSession(s, errors.New("broken pipe"))

	if !wire.wasClosed() {
		t.Errorf("Wire should be closed")
	}

	time.Sleep(graceWait)
	if got := len(repo.pausedRegistros()); got != 1 {
		t.Errorf("Double close must reconcile once, got %d pause calls", got)
	}
}

func TestCloseSessionAnonymousNoCycle(t *testing.T) {
	repo := &fakeRepo{pauseRows: 1}
	h, _, _, _ := newTestRelay(repo)

	s, _ := newFakeSession()
	h.CloseSession(s, nil)

	time.Sleep(graceWait)
	if got := len(repo.pausedRegistros()); got != 0 {
		t.Errorf("Anonymous session without claim must not arm a grace cycle, got %d", got)
	}
}
