package service

import (
	"log/slog"
	"sync"
)

// Hub is the process-wide binding table: authenticated user id to the one
// active connection. Relay and call signaling read it to resolve fan-out
// targets, so every access goes through the mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[int]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int]*Client),
	}
}

// Bind records the connection as the user's binding and returns the previous
// one, if any. The previous connection is superseded silently.
func (h *Hub) Bind(userID int, client *Client) *Client {
	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = client
	h.mu.Unlock()

	slog.Info("User connected", "user_id", userID, "superseded", prev != nil)
	return prev
}

// Unbind removes the binding only if it still points at the given client, so
// a superseded connection tearing down cannot evict its replacement. Returns
// whether a binding was removed; safe to call with no binding present.
func (h *Hub) Unbind(userID int, client *Client) bool {
	h.mu.Lock()
	current, ok := h.clients[userID]
	if ok && current == client {
		delete(h.clients, userID)
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok {
		slog.Info("User disconnected", "user_id", userID)
	}
	return ok
}

func (h *Hub) Get(userID int) (*Client, bool) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	return client, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
