package relay

import (
	"testing"
)

func TestTrackerClaimOverwrites(t *testing.T) {
	tr := NewTracker()
	s, _ := newFakeSession()

	tr.Claim(s, "100")
	tr.Claim(s, "200")

	registroID, ok := tr.ClaimFor(s)
	if !ok {
		t.Fatalf("Expected a claim for the session")
	}
	if registroID != "200" {
		t.Errorf("Expected claim 200 after overwrite, got %q", registroID)
	}
}

func TestTrackerRelease(t *testing.T) {
	tr := NewTracker()
	s, _ := newFakeSession()

	tr.Claim(s, "100")
	tr.Release(s)

	if _, ok := tr.ClaimFor(s); ok {
		t.Errorf("Expected no claim after release")
	}

	// Releasing again is a no-op.
	tr.Release(s)
}

func TestTrackerStillClaimed(t *testing.T) {
	tr := NewTracker()
	s1, _ := newFakeSession()
	s2, _ := newFakeSession()

	tr.Claim(s1, "555")
	tr.Claim(s2, "999")

	if !tr.StillClaimed([]*Session{s1, s2}, "555") {
		t.Errorf("Expected 555 to still be claimed by s1")
	}
	if tr.StillClaimed([]*Session{s2}, "555") {
		t.Errorf("s2 claims a different registro; 555 should not count as claimed")
	}
	if tr.StillClaimed(nil, "555") {
		t.Errorf("Empty session set cannot claim anything")
	}
}

func TestTrackerStillClaimedIgnoresClosedSessions(t *testing.T) {
	tr := NewTracker()
	s, _ := newFakeSession()

	tr.Claim(s, "555")
	s.markClosed()

	if tr.StillClaimed([]*Session{s}, "555") {
		t.Errorf("A closed session must not count as a live claim")
	}
}
