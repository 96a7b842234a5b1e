package ws

import (
	"sync"
)

// LobbyRoom receives the auction list updates.
const LobbyRoom = "lobby"

// Hub keeps one room per auction id plus the lobby. A room exists while it
// has members.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*room)} }

func (h *Hub) get(name string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[name]
}

// Broadcast is called by the Redis subscribers.
func (h *Hub) Broadcast(name string, msg []byte) {
	if r := h.get(name); r != nil {
		r.broadcast(msg)
	}
}

// Join adds c to the room and returns the channel closed when the room's
// auction finishes.
func (h *Hub) Join(name string, c *clientConn) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[name]
	if !ok {
		r = newRoom()
		h.rooms[name] = r
	}
	r.add(c)
	return r.finished
}

// Leave removes c and drops the room once it is empty.
func (h *Hub) Leave(name string, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[name]
	if !ok {
		c.close()
		return
	}
	if r.remove(c) == 0 {
		delete(h.rooms, name)
	}
}

// Finish marks the auction of the room as ended.
func (h *Hub) Finish(name string) {
	if r := h.get(name); r != nil {
		r.finish()
	}
}

// Size reports how many connections are in the room.
func (h *Hub) Size(name string) int {
	if r := h.get(name); r != nil {
		return r.size()
	}
	return 0
}

func (h *Hub) roomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
