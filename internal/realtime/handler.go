package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
)

// TypeJoinRoom is the legacy join whose data is the bare room code string.
const TypeJoinRoom = "join_room"

// Handler upgrades requests to websocket connections served by s.
// allowedOrigins lists browser origins; "*" or an empty list accepts any.
func (s *Service) Handler(allowedOrigins []string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("websocket upgrade failed", "error", err)
			return
		}
		s.serve(r.Context(), ws, r.RemoteAddr)
	})
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(a, origin)
		})
	}
}

func (s *Service) serve(ctx context.Context, ws *websocket.Conn, remote string) {
	c := newConn(ws, s.logger, s.opts.SendQueueSize)
	s.hub.Add(c)
	s.logger.Info("socket_connected", "conn_id", c.ID(), "remote", remote)

	go c.writePump()
	c.readPump(ctx, s.dispatch)

	s.hub.Remove(c)
	s.logger.Info("socket_disconnected", "conn_id", c.ID(), "room", c.Room())
}

func decodeData[T any](c *Conn, env Envelope) (T, bool) {
	var v T
	if len(env.Data) == 0 {
		c.sendError(CodeBadRequest, env.Type+" requires data")
		return v, false
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		c.sendError(CodeBadRequest, "malformed "+env.Type+" data")
		return v, false
	}
	return v, true
}

func (s *Service) dispatch(ctx context.Context, c *Conn, env Envelope) {
	switch env.Type {
	case TypeJoin:
		if req, ok := decodeData[JoinRequest](c, env); ok {
			s.join(ctx, c, req)
		}
	case TypeJoinRoom:
		if code, ok := decodeData[string](c, env); ok {
			s.join(ctx, c, JoinRequest{RoomCode: code})
		}
	case TypeDaubUpdate:
		if d, ok := decodeData[DaubUpdate](c, env); ok {
			s.daub(ctx, c, d)
		}
	case TypeCallBingo:
		if req, ok := decodeData[CallBingoRequest](c, env); ok {
			s.callBingo(ctx, c, req)
		}
	case TypeCallNumber:
		if req, ok := decodeData[CallNumberRequest](c, env); ok {
			s.callNumber(ctx, c, req)
		}
	default:
		c.sendError(CodeUnknownType, "unknown message type "+env.Type)
	}
}
