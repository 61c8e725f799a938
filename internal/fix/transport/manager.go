// Package transport wires the FIX session state machine to raw TCP
// connections: an Acceptor for inbound counterparties, an Initiator for
// outbound ones, and a Manager tracking every live Session on this node for
// the admin API.
package transport

import (
	"sort"
	"sync"

	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
)

// Logger is the logging interface required by the transport layer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Manager owns the set of live FIX sessions on this node. It implements
// admingrpc.SessionInspector.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*session.Session
}

// NewManager returns an empty session Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*session.Session)}
}

func (m *Manager) register(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID()] = s
}

func (m *Manager) unregister(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// SessionStates returns a snapshot of every live session, sorted by id.
func (m *Manager) SessionStates() []session.AdminState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]session.AdminState, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.AdminState())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
