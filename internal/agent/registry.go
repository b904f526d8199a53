package agent

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Closer is the part of *websocket.Conn the registry needs.
type Closer interface {
	Close(code websocket.StatusCode, reason string) error
}

// Registry tracks open chat sockets by user and session token so they can be
// closed when the session ends.
type Registry struct {
	mu     sync.RWMutex
	active map[int64]map[Closer]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[int64]map[Closer]string)}
}

// Register records conn as opened by userID with token.
func (m *Registry) Register(userID int64, token string, conn Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[userID]; !ok {
		m.active[userID] = make(map[Closer]string)
	}
	m.active[userID][conn] = token
	slog.Info("Chat socket registered", "user_id", userID, "connections", len(m.active[userID]))
}

// Unregister forgets conn. Unknown connections are ignored.
func (m *Registry) Unregister(userID int64, conn Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.active[userID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; !exists {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(m.active, userID)
	}
	slog.Info("Chat socket unregistered", "user_id", userID)
}

// Count returns the number of open sockets for userID.
func (m *Registry) Count(userID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// CloseToken closes and forgets every socket opened with token.
func (m *Registry) CloseToken(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	var closing []Closer
	for userID, conns := range m.active {
		for conn, t := range conns {
			if t != token {
				continue
			}
			closing = append(closing, conn)
			delete(conns, conn)
		}
		if len(conns) == 0 {
			delete(m.active, userID)
		}
	}
	m.mu.Unlock()

	for _, conn := range closing {
		_ = conn.Close(websocket.StatusPolicyViolation, "session ended")
	}
	if len(closing) > 0 {
		slog.Info("Chat sockets closed on logout", "connections", len(closing))
	}
}
