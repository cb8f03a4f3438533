package server

import (
	"encoding/json"
	"sync"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub maps transient connection identifiers to outbound channels. It is the
// room package's Notifier: events for identifiers whose connection is gone
// are silently dropped, which is exactly what a stale seat binding needs.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]chan []byte)}
}

// Register binds a connection identifier to its send channel.
func (h *Hub) Register(connID string, send chan []byte) {
	h.mu.Lock()
	h.conns[connID] = send
	h.mu.Unlock()
}

// Unregister removes a connection and closes its channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	if send, ok := h.conns[connID]; ok {
		close(send)
		delete(h.conns, connID)
	}
	h.mu.Unlock()
}

// Send delivers one event to one connection without blocking. The lock is
// held across the push so Unregister cannot close the channel mid-send.
func (h *Hub) Send(connID, event string, payload any) {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(WSMessage{Type: event, Payload: p})

	h.mu.RLock()
	defer h.mu.RUnlock()
	send, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case send <- msg:
	default:
		// drop message if buffer full
	}
}
