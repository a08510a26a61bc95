package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192
)

// Conn is one websocket participant. It starts unjoined and joins at most
// one room at a time.
type Conn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once

	mu      sync.RWMutex
	room    string
	seed    string
	roomKey string
	host    bool
}

func newConn(ws *websocket.Conn, logger *slog.Logger, queue int) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
		logger: logger.With("conn_id", id),
	}
}

func (c *Conn) ID() string { return c.id }

// Close tears down the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Send queues msg without blocking. A connection whose queue is full is
// closed so it cannot hold up delivery to the rest of its room.
func (c *Conn) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("send queue full, closing connection", "room", c.Room())
		c.Close()
		return false
	}
}

func (c *Conn) sendMessage(typ string, data any) {
	msg, err := encode(typ, data)
	if err != nil {
		c.logger.Error("encoding message", "type", typ, "error", err)
		return
	}
	c.Send(msg)
}

func (c *Conn) sendError(code, message string) {
	c.sendMessage(TypeError, ErrorMessage{Code: code, Message: message})
}

func (c *Conn) setJoined(room, seed, roomKey string, host bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room, c.seed, c.roomKey, c.host = room, seed, roomKey, host
}

func (c *Conn) clearJoined() {
	c.setJoined("", "", "", false)
}

// Room returns the joined room code, or "" before a successful join.
func (c *Conn) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *Conn) IsHost() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

type connState struct {
	room    string
	seed    string
	roomKey string
	host    bool
}

func (c *Conn) state() connState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return connState{room: c.room, seed: c.seed, roomKey: c.roomKey, host: c.host}
}

// readPump feeds client messages to handle until the socket fails.
func (c *Conn) readPump(ctx context.Context, handle func(context.Context, *Conn, Envelope)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.sendError(CodeBadRequest, "message must be a {type, data} object")
			continue
		}
		handle(ctx, c, env)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
