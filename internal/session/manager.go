// Package session manages live learning sessions: the WebSocket signal
// stream, the per-session fusion engine, and data retention.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/braincell-ai/braincell/internal/fusion"
	"github.com/coder/websocket"
)

// Session is one live learning session: a WebSocket connection plus the
// fusion engine fed by its signal stream.
type Session struct {
	StudentID string
	SessionID string
	Engine    *fusion.Engine

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Send writes one JSON event to the session's WebSocket. Writes are
// serialized: the decay ticker, classifier goroutines, and the input
// loop all push events concurrently.
func (s *Session) Send(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// Manager tracks active live sessions per student and tab.
type Manager struct {
	mu     sync.RWMutex
	active map[string]map[string]*Session
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]map[string]*Session),
	}
}

// Get returns the live session for a student and tab, or nil.
func (m *Manager) Get(studentID, sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[studentID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a live session for a student/tab, replacing any
// previous one.
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[s.StudentID]; !exists {
		m.active[s.StudentID] = make(map[string]*Session)
	}

	if existing, exists := m.active[s.StudentID][s.SessionID]; exists && existing != s {
		if existing.conn != nil {
			_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
		}
	}

	m.active[s.StudentID][s.SessionID] = s
	slog.Info("Learning session registered", "student_id", s.StudentID, "session_id", s.SessionID)
}

// Unregister removes a live session. Stale unregisters (a replaced
// session tearing down) are ignored.
func (m *Manager) Unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[s.StudentID]; ok {
		if current, exists := sessions[s.SessionID]; exists && current == s {
			delete(sessions, s.SessionID)
			if len(sessions) == 0 {
				delete(m.active, s.StudentID)
			}
			slog.Info("Learning session unregistered", "student_id", s.StudentID, "session_id", s.SessionID)
		}
	}
}

// CloseAll forcefully terminates all live sessions for a student.
func (m *Manager) CloseAll(studentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[studentID]
	if !ok {
		return
	}

	for sid, s := range sessions {
		if s.conn != nil {
			_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
		}
		slog.Info("Learning session closed", "student_id", studentID, "session_id", sid)
	}
	delete(m.active, studentID)
}
