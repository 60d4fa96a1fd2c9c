package ws

import (
	"sync"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/glasses"
)

// Hub tracks the active glasses session per user id.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*glasses.Session
}

func NewHub() *Hub {
	return &Hub{sessions: map[string]*glasses.Session{}}
}

func (h *Hub) Add(userID string, s *glasses.Session) {
	h.mu.Lock()
	h.sessions[userID] = s
	h.mu.Unlock()
}

func (h *Hub) Get(userID string) (*glasses.Session, bool) {
	h.mu.RLock()
	s, ok := h.sessions[userID]
	h.mu.RUnlock()
	return s, ok
}

// Remove drops the entry for userID only if it still maps to s, so a
// reconnect that replaced the session is not clobbered by the old one's exit.
func (h *Hub) Remove(userID string, s *glasses.Session) {
	h.mu.Lock()
	if cur, ok := h.sessions[userID]; ok && cur == s {
		delete(h.sessions, userID)
	}
	h.mu.Unlock()
}
