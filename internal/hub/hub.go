// Package hub fans freshly published render models out to connected browser
// sessions over WebSocket. Each session belongs to one role view and receives
// every model published for that role.
package hub

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/pool-dashboard/internal/dashboard"
	"github.com/example/pool-dashboard/internal/observability"
)

// Session is one connected browser. Writes are serialized per connection;
// gorilla/websocket allows at most one concurrent writer.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) send(model dashboard.RenderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(model)
}

// Hub holds live sessions keyed by role.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[dashboard.Role]map[string]*Session
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[dashboard.Role]map[string]*Session),
	}
}

// Add registers a connection under a role and returns its session id.
func (h *Hub) Add(role dashboard.Role, id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byRole, ok := h.sessions[role]
	if !ok {
		byRole = make(map[string]*Session)
		h.sessions[role] = byRole
	}
	byRole[id] = &Session{conn: conn}
	observability.WSClients.Inc()
	h.logger.Info("ws session added", "role", string(role), "session", id)
}

// Remove drops a session. Safe when the id was never added or already removed.
func (h *Hub) Remove(role dashboard.Role, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byRole, ok := h.sessions[role]
	if !ok {
		return
	}
	if _, ok := byRole[id]; !ok {
		return
	}
	delete(byRole, id)
	observability.WSClients.Dec()
	h.logger.Info("ws session removed", "role", string(role), "session", id)
}

// Broadcast pushes a render model to every session of its role. Sessions that
// fail to write are dropped; the browser reconnects and re-reads the snapshot.
func (h *Hub) Broadcast(model dashboard.RenderModel) {
	h.mu.RLock()
	targets := make(map[string]*Session, len(h.sessions[model.Role]))
	for id, s := range h.sessions[model.Role] {
		targets[id] = s
	}
	h.mu.RUnlock()

	for id, s := range targets {
		if err := s.send(model); err != nil {
			h.logger.Warn("ws send failed, dropping session", "role", string(model.Role), "session", id, "error", err)
			h.Remove(model.Role, id)
		}
	}
}
