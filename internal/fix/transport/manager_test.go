package transport

import (
	"testing"

	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
)

func TestManager_SessionStatesSortedByID(t *testing.T) {
	m := NewManager()
	key := session.SessionKey{SenderCompID: "GATEWAY", TargetCompID: "COUNTERPARTY"}

	s3 := session.New(session.Acceptor, key, 3, "FIXT.1.1", "conn-3", session.DefaultConfig(), nil, nil, fakeLogger{})
	s1 := session.New(session.Acceptor, key, 1, "FIXT.1.1", "conn-1", session.DefaultConfig(), nil, nil, fakeLogger{})
	m.register(s3)
	m.register(s1)

	states := m.SessionStates()
	if len(states) != 2 {
		t.Fatalf("want 2 sessions, got %d", len(states))
	}
	if states[0].SessionID != 1 || states[1].SessionID != 3 {
		t.Fatalf("want sorted [1,3], got [%d,%d]", states[0].SessionID, states[1].SessionID)
	}

	m.unregister(1)
	if len(m.SessionStates()) != 1 {
		t.Fatalf("want 1 session after unregister")
	}
}
