package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// room is the set of connections watching one auction (or the lobby).
// finished closes once the auction ends so countdowns stop early.
type room struct {
	mu       sync.RWMutex
	conns    map[*clientConn]struct{}
	finished chan struct{}
	once     sync.Once
}

func newRoom() *room {
	return &room{conns: map[*clientConn]struct{}{}, finished: make(chan struct{})}
}

func (r *room) add(c *clientConn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

// remove drops c and reports how many connections are left.
func (r *room) remove(c *clientConn) int {
	r.mu.Lock()
	delete(r.conns, c)
	n := len(r.conns)
	r.mu.Unlock()
	c.close()
	return n
}

func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *room) finish() {
	r.once.Do(func() { close(r.finished) })
}

// broadcast writes msg to every member. A failed write closes that
// connection; its reader then leaves the room through the hub.
func (r *room) broadcast(msg []byte) {
	r.mu.RLock()
	conns := make([]*clientConn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			c.close()
		}
	}
}
