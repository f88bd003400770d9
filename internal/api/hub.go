package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// liveHub manages WebSocket connections for real-time dashboard updates.
type liveHub struct {
	clients    map[*liveClient]bool
	register   chan *liveClient
	unregister chan *liveClient
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

type liveClient struct {
	hub  *liveHub
	conn *websocket.Conn
	send chan []byte
}

// LiveEvent is the message shape pushed to connected dashboards.
type LiveEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newLiveHub() *liveHub {
	return &liveHub{
		clients:    make(map[*liveClient]bool),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *liveHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Dashboard WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("Dashboard WebSocket client disconnected")
		}
	}
}

// Broadcast pushes an event to every connected dashboard. Slow clients are
// skipped rather than blocking the sender.
func (h *liveHub) Broadcast(eventType string, payload any) {
	msg := LiveEvent{
		Type:    eventType,
		Payload: liveMustJSON(payload),
	}
	data, _ := json.Marshal(msg)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func liveMustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// handleWS upgrades the connection and registers the client with the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &liveClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	s.hub.register <- client

	welcomeMsg, _ := json.Marshal(LiveEvent{
		Type:    "hello",
		Payload: liveMustJSON(map[string]any{"loaded": s.store.Loaded()}),
	})
	client.send <- welcomeMsg

	go client.writePump()
	go client.readPump()
}

func (c *liveClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *liveClient) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
