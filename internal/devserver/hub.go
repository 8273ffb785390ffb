package devserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event names and intents on the dev socket; these mirror the client
// transport contract.
const (
	eventConnected = "connected"
	eventNew       = "notification:new"
	eventUpdated   = "notification:updated"
	eventRead      = "notification:read"
	eventImportant = "notification:important"
	eventDeleted   = "notification:deleted"

	intentMarkRead      = "notification:markRead"
	intentMarkImportant = "notification:markImportant"
	intentDelete        = "notification:delete"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

type hub struct {
	server   *Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string][]*wsClient
}

func newHub(server *Server) *hub {
	return &hub{
		server: server,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[string][]*wsClient{},
	}
}

func (h *hub) serve(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("devserver: websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], client)
	h.mu.Unlock()

	_ = client.write(frame{Event: eventConnected})
	h.readPump(userID, client)
}

func (h *hub) readPump(userID string, client *wsClient) {
	defer func() {
		h.remove(userID, client)
		client.conn.Close()
	}()
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		h.handleIntent(userID, f)
	}
}

// handleIntent applies socket-side mutation intents. Intents are best-effort
// duplicates of the REST mutations, so unknown ids are silently ignored.
func (h *hub) handleIntent(userID string, f frame) {
	var body struct {
		ID          string `json:"id"`
		IsImportant bool   `json:"isImportant"`
	}
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &body); err != nil {
			return
		}
	}
	if body.ID == "" {
		return
	}

	s := h.server
	switch f.Event {
	case intentMarkRead:
		s.mu.Lock()
		if n := s.findLocked(userID, body.ID); n != nil && !n.Read {
			now := time.Now()
			n.Read = true
			n.ReadAt = &now
			updated := *n
			s.mu.Unlock()
			h.broadcast(userID, eventRead, updated)
			return
		}
		s.mu.Unlock()
	case intentMarkImportant:
		s.mu.Lock()
		if n := s.findLocked(userID, body.ID); n != nil {
			n.IsImportant = body.IsImportant
			updated := *n
			s.mu.Unlock()
			h.broadcast(userID, eventImportant, updated)
			return
		}
		s.mu.Unlock()
	case intentDelete:
		s.mu.Lock()
		u := s.userLocked(userID)
		for i := range u.notifications {
			if u.notifications[i].ID == body.ID {
				u.notifications = append(u.notifications[:i], u.notifications[i+1:]...)
				s.mu.Unlock()
				h.broadcast(userID, eventDeleted, map[string]string{"id": body.ID})
				return
			}
		}
		s.mu.Unlock()
	}
}

func (h *hub) remove(userID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[userID]
	for i, c := range clients {
		if c == client {
			h.clients[userID] = append(clients[:i], clients[i+1:]...)
			return
		}
	}
}

func (h *hub) broadcast(userID, event string, payload interface{}) {
	f := frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("devserver: broadcast %s: %v", event, err)
			return
		}
		f.Data = data
	}

	h.mu.Lock()
	clients := make([]*wsClient, len(h.clients[userID]))
	copy(clients, h.clients[userID])
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(f); err != nil {
			log.Printf("devserver: write to socket: %v", err)
		}
	}
}
