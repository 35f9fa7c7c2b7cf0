package gateway

import (
	"sync"

	"github.com/quizarena/quiz-arena/internal/presence"
)

// Hub is the broadcast gateway: it knows which connections belong to which
// user and which connections joined which room, and fans events out to them.
// It is the only component that touches the transport directly.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn            // connID -> conn
	byUser map[string]map[string]*Conn // userID -> connID -> conn
	byRoom map[string]map[string]*Conn // roomID -> connID -> conn
	userOf map[string]string           // connID -> userID
	rooms  map[string]map[string]bool  // connID -> joined roomIDs
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
		byRoom: make(map[string]map[string]*Conn),
		userOf: make(map[string]string),
		rooms:  make(map[string]map[string]bool),
	}
}

func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

// Bind associates a connection with its user identity. Set once; a second
// bind for the same connection is ignored.
func (h *Hub) Bind(c *Conn, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, bound := h.userOf[c.id]; bound {
		return
	}
	h.userOf[c.id] = userID
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[string]*Conn)
		h.byUser[userID] = set
	}
	set[c.id] = c
}

// JoinRoom adds the connection to a room's broadcast group.
func (h *Hub) JoinRoom(c *Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byRoom[roomID]
	if !ok {
		set = make(map[string]*Conn)
		h.byRoom[roomID] = set
	}
	set[c.id] = c
	joined, ok := h.rooms[c.id]
	if !ok {
		joined = make(map[string]bool)
		h.rooms[c.id] = joined
	}
	joined[roomID] = true
}

// LeaveRoom removes the connection from a room's broadcast group. Unknown
// memberships are a no-op.
func (h *Hub) LeaveRoom(c *Conn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.byRoom[roomID]; ok {
		delete(set, c.id)
		if len(set) == 0 {
			delete(h.byRoom, roomID)
		}
	}
	if joined, ok := h.rooms[c.id]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(h.rooms, c.id)
		}
	}
}

// Unregister removes the connection from every group it belongs to.
// Idempotent for unknown connections.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	if userID, ok := h.userOf[connID]; ok {
		delete(h.userOf, connID)
		if set, ok := h.byUser[userID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.byUser, userID)
			}
		}
	}
	for roomID := range h.rooms[connID] {
		if set, ok := h.byRoom[roomID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.byRoom, roomID)
			}
		}
	}
	delete(h.rooms, connID)
}

// ToUser delivers an event to every connection bound to the user.
func (h *Hub) ToUser(userID, event string, payload any) {
	for _, c := range h.userConns(userID) {
		c.send(event, payload)
	}
}

// ToRoom delivers an event to every connection joined to the room.
func (h *Hub) ToRoom(roomID, event string, payload any) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byRoom[roomID]))
	for _, c := range h.byRoom[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.send(event, payload)
	}
}

// All delivers an event to every live connection. Used for presence fan-out.
func (h *Hub) All(event string, payload any) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.send(event, payload)
	}
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) userConns(userID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.byUser[userID]))
	for _, c := range h.byUser[userID] {
		out = append(out, c)
	}
	return out
}

// BindPresence subscribes the hub to the registry's edge-triggered presence
// transitions and fans them out to all connections.
func BindPresence(reg *presence.Registry, hub *Hub) {
	reg.Subscribe(
		func(userID string) { hub.All(evOnline, presencePayload{UserID: userID}) },
		func(userID string) { hub.All(evOffline, presencePayload{UserID: userID}) },
	)
}
