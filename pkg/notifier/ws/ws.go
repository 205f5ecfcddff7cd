package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps websocket.Conn with metadata. WriteJSON on gorilla conns
// is not safe for concurrent writers, so every write goes through the mutex.
type Connection struct {
	Conn     *websocket.Conn
	UserID   string
	LastSeen time.Time

	writeMu sync.Mutex
}

func (c *Connection) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// Manager tracks live connections per user and fans pushed payloads out to
// all of a user's open sockets.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{} // userID -> set of connections
}

func NewManager() *Manager {
	return &Manager{
		connections: make(map[string]map[*Connection]struct{}),
	}
}

// Add registers a connection for a user
func (m *Manager) Add(userID string, conn *websocket.Conn) *Connection {
	c := &Connection{Conn: conn, UserID: userID, LastSeen: time.Now()}

	m.mu.Lock()
	if _, ok := m.connections[userID]; !ok {
		m.connections[userID] = make(map[*Connection]struct{})
	}
	m.connections[userID][c] = struct{}{}
	total := len(m.connections[userID])
	m.mu.Unlock()

	log.Printf("WS connected: %s (total=%d)", userID, total)
	return c
}

// Remove disconnects and removes a connection
func (m *Manager) Remove(c *Connection) {
	m.mu.Lock()
	if conns, ok := m.connections[c.UserID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(m.connections, c.UserID)
		}
	}
	m.mu.Unlock()

	_ = c.Conn.Close()
	log.Printf("WS disconnected: %s", c.UserID)
}

// Send pushes a JSON payload to all connections of a user.
func (m *Manager) Send(userID string, payload interface{}) {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections[userID]))
	for c := range m.connections[userID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(payload); err != nil {
			log.Printf("⚠️ failed WS send to %s: %v", userID, err)
			m.Remove(c)
		}
	}
}

// Broadcast sends to all users.
func (m *Manager) Broadcast(payload interface{}) {
	m.mu.RLock()
	var conns []*Connection
	for _, set := range m.connections {
		for c := range set {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(payload); err != nil {
			m.Remove(c)
		}
	}
}

// Heartbeat pings every connection on the given interval and drops the ones
// whose pong went stale. Run it on its own goroutine; it returns when ctx is
// cancelled.
func (m *Manager) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		var conns []*Connection
		for _, set := range m.connections {
			for c := range set {
				conns = append(conns, c)
			}
		}
		m.mu.RUnlock()

		for _, c := range conns {
			if time.Since(c.LastSeen) > 2*interval {
				m.Remove(c)
				continue
			}
			c.writeMu.Lock()
			err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				m.Remove(c)
			}
		}
	}
}
