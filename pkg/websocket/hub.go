package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub fans live session updates out to tracking-link viewers. Each
// session gets a room; viewers join the room for the session their link
// points at and only ever receive, never send.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
}

type Message struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.joinRoom(client, client.SessionID)
	log.Printf("Viewer joined session %s", client.SessionID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		if room, exists := h.rooms[client.SessionID]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, client.SessionID)
			}
		}

		log.Printf("Viewer left session %s", client.SessionID)
	}
}

// SendLocationUpdate broadcasts a position to every viewer of a session.
func (h *Hub) SendLocationUpdate(sessionID string, location map[string]interface{}) {
	h.sendToRoom(sessionID, Message{
		Type:      "location_update",
		SessionID: sessionID,
		Timestamp: time.Now().Unix(),
		Data:      location,
	})
}

// SendSessionEnded tells viewers the episode is over so they can stop
// rendering a live position.
func (h *Hub) SendSessionEnded(sessionID string) {
	h.sendToRoom(sessionID, Message{
		Type:      "session_ended",
		SessionID: sessionID,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) sendToRoom(sessionID string, message Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, exists := h.rooms[sessionID]
	if !exists {
		return
	}

	data, _ := json.Marshal(message)
	for client := range room {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
			delete(room, client)
		}
	}
}

func (h *Hub) joinRoom(client *Client, sessionID string) {
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]bool)
	}
	h.rooms[sessionID][client] = true
}
