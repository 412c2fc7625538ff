package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/protocol"
)

// Hub tracks live connections and their room memberships, and fans events
// out to them. Delivery to each client goes through a buffered send channel;
// a client whose buffer is full is treated as dead and closed rather than
// allowed to stall the room.
type Hub struct {
	mu          sync.RWMutex
	connections map[model.ConnectionID]*Client
	rooms       map[model.RoomCode]map[model.ConnectionID]*Client

	logger *slog.Logger
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[model.ConnectionID]*Client),
		rooms:       make(map[model.RoomCode]map[model.ConnectionID]*Client),
		logger:      logger.With(slog.String("component", "ws_hub")),
	}
}

// Register adds a connected client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[client.ID] = client

	h.logger.Debug("client registered",
		slog.String("connection_id", string(client.ID)),
		slog.Int("total_connections", len(h.connections)),
	)
}

// Unregister removes a client from the hub and any room it joined, and
// closes its send channel. Safe to call more than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(client)
}

func (h *Hub) unregisterLocked(client *Client) {
	if _, ok := h.connections[client.ID]; !ok {
		return
	}
	delete(h.connections, client.ID)
	for code, members := range h.rooms {
		if _, ok := members[client.ID]; ok {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	close(client.send)

	h.logger.Debug("client unregistered", slog.String("connection_id", string(client.ID)))
}

// Join subscribes a connection to a room's broadcasts
func (h *Hub) Join(code model.RoomCode, conn model.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.connections[conn]
	if !ok {
		return
	}
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[model.ConnectionID]*Client)
	}
	h.rooms[code][conn] = client
}

// Leave unsubscribes a connection from a room's broadcasts
func (h *Hub) Leave(code model.RoomCode, conn model.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[code]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(h.rooms, code)
	}
}

// ToRoom delivers an event to every connection in a room
func (h *Hub) ToRoom(code model.RoomCode, event protocol.Event) {
	h.deliverToRoom(code, "", event)
}

// ToRoomExcept delivers an event to every room member except the sender
func (h *Hub) ToRoomExcept(code model.RoomCode, sender model.ConnectionID, event protocol.Event) {
	h.deliverToRoom(code, sender, event)
}

// ToConnection delivers an event to a single connection
func (h *Hub) ToConnection(conn model.ConnectionID, event protocol.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshalling event failed",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.connections[conn]; ok {
		h.sendLocked(client, data)
	}
}

func (h *Hub) deliverToRoom(code model.RoomCode, except model.ConnectionID, event protocol.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshalling event failed",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.rooms[code] {
		if id == except {
			continue
		}
		h.sendLocked(client, data)
	}
}

// sendLocked pushes marshalled bytes to a client without blocking. The
// caller must hold h.mu for writing.
func (h *Hub) sendLocked(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("client send buffer full, closing connection",
			slog.String("connection_id", string(client.ID)),
		)
		h.unregisterLocked(client)
		client.conn.Close()
	}
}
