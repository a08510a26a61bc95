package realtime

import "sync"

// Hub tracks live connections and the room each one has joined.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
	rooms map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[*Conn]struct{}),
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Remove drops c from the hub and from any room it joined.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	for code, members := range h.rooms {
		if _, ok := members[c]; ok {
			h.leaveLocked(code, c)
		}
	}
}

func (h *Hub) Join(code string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[code]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[code] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) Leave(code string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(code, c)
}

func (h *Hub) leaveLocked(code string, c *Conn) {
	members := h.rooms[code]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, code)
	}
}

// Evict removes every member of a room and returns them.
func (h *Hub) Evict(code string) []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[code]
	delete(h.rooms, code)
	out := make([]*Conn, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Members returns a point-in-time copy of a room's connections.
func (h *Hub) Members(code string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.rooms[code]))
	for c := range h.rooms[code] {
		out = append(out, c)
	}
	return out
}

// All returns every connection, joined or not.
func (h *Hub) All() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Stats reports live connection and room counts.
func (h *Hub) Stats() (conns, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns), len(h.rooms)
}
