package realtime

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubMembership(t *testing.T) {
	h := NewHub()
	a, b, c := &Conn{id: "a"}, &Conn{id: "b"}, &Conn{id: "c"}
	for _, conn := range []*Conn{a, b, c} {
		h.Add(conn)
	}

	h.Join("ROOM1", a)
	h.Join("ROOM1", b)
	h.Join("ROOM2", c)

	assert.ElementsMatch(t, []*Conn{a, b}, h.Members("ROOM1"))
	conns, rooms := h.Stats()
	assert.Equal(t, 3, conns)
	assert.Equal(t, 2, rooms)

	h.Leave("ROOM1", a)
	assert.Equal(t, []*Conn{b}, h.Members("ROOM1"))

	h.Remove(b)
	assert.Empty(t, h.Members("ROOM1"))
	_, rooms = h.Stats()
	assert.Equal(t, 1, rooms, "empty rooms are dropped")

	assert.Equal(t, []*Conn{c}, h.Evict("ROOM2"))
	assert.Empty(t, h.Members("ROOM2"))
	assert.ElementsMatch(t, []*Conn{a, c}, h.All())
}

func TestCheckOrigin(t *testing.T) {
	open := checkOrigin([]string{"*"})
	strict := checkOrigin([]string{"https://bingo.example"})

	for _, tc := range []struct {
		origin       string
		open, strict bool
	}{
		{"", true, true},
		{"https://bingo.example", true, true},
		{"https://BINGO.example", true, true},
		{"https://evil.example", true, false},
	} {
		req := httptest.NewRequest("GET", "/ws", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.open, open(req), tc.origin)
		assert.Equal(t, tc.strict, strict(req), tc.origin)
	}
}
