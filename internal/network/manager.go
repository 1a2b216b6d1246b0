package network

import (
	"encoding"
	"fmt"
	"sync"
	"time"

	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// Manager tracks live sessions and which world entity each one puppets.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session // session id → session
	byPlayer map[uint64]uint64   // player entity id → session id
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[uint64]*Session),
		byPlayer: make(map[uint64]uint64),
	}
}

// Add registers s. Registering the same session twice is an error.
//
// Precondition: s must be non-nil.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID()]; exists {
		return fmt.Errorf("session %d already registered", s.ID())
	}
	m.sessions[s.ID()] = s
	return nil
}

// Remove forgets session id and any player binding it held.
//
// Postcondition: Returns the removed session, or false if it was unknown.
func (m *Manager) Remove(id uint64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if pid := s.PlayerID(); pid != 0 && m.byPlayer[pid] == id {
		delete(m.byPlayer, pid)
	}
	delete(m.sessions, id)
	return s, true
}

// Get returns the session with the given id.
func (m *Manager) Get(id uint64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// BindPlayer associates player entity playerID with session id.
//
// Precondition: the session must be registered.
// Postcondition: SessionForPlayer(playerID) returns the session.
func (m *Manager) BindPlayer(id, playerID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %d not found", id)
	}
	if prev := s.PlayerID(); prev != 0 {
		delete(m.byPlayer, prev)
	}
	s.SetPlayer(playerID)
	m.byPlayer[playerID] = id
	return nil
}

// UnbindPlayer removes the player binding of session id, returning the
// entity it puppeted (0 if none).
func (m *Manager) UnbindPlayer(id uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0
	}
	pid := s.PlayerID()
	if pid != 0 && m.byPlayer[pid] == id {
		delete(m.byPlayer, pid)
	}
	s.SetPlayer(0)
	return pid
}

// SessionForPlayer returns the session puppeting player entity playerID.
func (m *Manager) SessionForPlayer(playerID uint64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every registered session.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// InWorld returns a snapshot of sessions currently puppeting a player.
func (m *Manager) InWorld() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byPlayer))
	for _, id := range m.byPlayer {
		if s, ok := m.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// IdleSessions returns sessions with no inbound traffic within window of now.
func (m *Manager) IdleSessions(now time.Time, window time.Duration) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Idle(now, window) {
			out = append(out, s)
		}
	}
	return out
}

// SendToPlayer queues m for the session puppeting playerID. It reports
// whether a session was found.
func (m *Manager) SendToPlayer(playerID uint64, t protocol.PacketType, msg encoding.BinaryMarshaler) bool {
	s, ok := m.SessionForPlayer(playerID)
	if !ok {
		return false
	}
	_ = s.Send(t, msg)
	return true
}

// Broadcast queues msg for every in-world session, marshalling it once.
func (m *Manager) Broadcast(t protocol.PacketType, msg encoding.BinaryMarshaler) error {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", t, err)
	}
	for _, s := range m.InWorld() {
		_ = s.SendRaw(t, payload)
	}
	return nil
}
