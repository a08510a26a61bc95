// Package realtime is the synchronization service: it admits websocket
// participants to rooms, enforces seed membership, and fans out every store
// mutation to the room after the write commits.
package realtime

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
	"github.com/KeiJoi/ffxivbingo4all/internal/keylock"
	"github.com/KeiJoi/ffxivbingo4all/internal/store"
)

const (
	DefaultLockTimeout   = 5 * time.Second
	DefaultSendQueueSize = 64
)

// Publisher receives room events for read-only observers such as the SSE
// spectator stream. Only player-safe payloads are published.
type Publisher interface {
	Publish(roomCode, event string, data any)
}

type Options struct {
	// Verify makes the server re-evaluate every bingo claim.
	Verify        bool
	AdminKey      string
	LockTimeout   time.Duration
	SendQueueSize int
	Publisher     Publisher
}

type Service struct {
	store  store.Store
	hub    *Hub
	locks  *keylock.Locker
	logger *slog.Logger
	opts   Options
}

func NewService(st store.Store, logger *slog.Logger, opts Options) *Service {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = DefaultSendQueueSize
	}
	return &Service{
		store:  st,
		hub:    NewHub(),
		locks:  keylock.New(),
		logger: logger.With("component", "realtime"),
		opts:   opts,
	}
}

func (s *Service) Hub() *Hub { return s.hub }

// withRoom runs fn while holding the room's lock. Every write and the
// broadcast that follows it happen under the same lock, so a joiner either
// sees the write in its snapshot or receives the broadcast after it.
func (s *Service) withRoom(ctx context.Context, code string, fn func(context.Context) error) error {
	if code == "" {
		return fmt.Errorf("%w: room code required", bingo.ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, code)
	if err != nil {
		s.logger.Error("room lock timed out", "room", code, "error", err)
		return fmt.Errorf("%w: room %q busy: %v", bingo.ErrStorageUnavailable, code, err)
	}
	defer unlock()
	return fn(ctx)
}

func (s *Service) publish(code, event string, data any) {
	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(code, event, data)
	}
}

// broadcast sends one message to every member of a room that include
// accepts. A nil include sends to everyone.
func (s *Service) broadcast(code, typ string, data any, include func(*Conn) bool) {
	msg, err := encode(typ, data)
	if err != nil {
		s.logger.Error("encoding broadcast", "type", typ, "room", code, "error", err)
		return
	}
	for _, c := range s.hub.Members(code) {
		if include == nil || include(c) {
			c.Send(msg)
		}
	}
}

func (s *Service) broadcastRoomState(r *bingo.Room) {
	s.broadcast(r.Code, TypeRoomState, roomStateFor(r, true), (*Conn).IsHost)
	s.broadcast(r.Code, TypeRoomState, roomStateFor(r, false), func(c *Conn) bool { return !c.IsHost() })
	s.publish(r.Code, TypeRoomState, roomStateFor(r, false))
}

func (s *Service) isAdmin(key string) bool {
	return s.opts.AdminKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.AdminKey)) == 1
}

// isHost reports whether roomKey grants host rights on an existing room.
// Keys for rooms that do not exist grant nothing; only a host write through
// HostSync or CallNumber claims a new room.
func (s *Service) isHost(ctx context.Context, code, roomKey string) (bool, error) {
	if roomKey == "" {
		return false, nil
	}
	if s.isAdmin(roomKey) {
		return true, nil
	}
	err := s.store.Authorize(ctx, code, roomKey)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bingo.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// HostSync replaces called numbers, issued cards and configuration with the
// host's copy and broadcasts the new room state.
func (s *Service) HostSync(ctx context.Context, code, roomKey string, state store.HostState) (*bingo.Room, error) {
	var room *bingo.Room
	err := s.withRoom(ctx, code, func(ctx context.Context) error {
		r, err := s.store.ReplaceHostState(ctx, code, roomKey, state)
		if err != nil {
			return err
		}
		room = r
		s.logger.Info("host_sync_updated",
			"room", code,
			"called", len(r.CalledNumbers),
			"issued", len(r.IssuedCards),
			"game_type", r.Config.GameType.String(),
		)
		s.broadcastRoomState(r)
		return nil
	})
	return room, err
}

// CallNumber appends n to the room's called numbers. Repeated calls report
// added=false and broadcast nothing.
func (s *Service) CallNumber(ctx context.Context, code, roomKey string, n int) (added bool, called []int, err error) {
	err = s.withRoom(ctx, code, func(ctx context.Context) error {
		a, r, err := s.store.AppendCalledNumber(ctx, code, roomKey, n)
		if err != nil {
			return err
		}
		added, called = a, r.CalledNumbers
		if !a {
			s.logger.Info("number_already_called", "room", code, "number", n)
			return nil
		}
		s.logger.Info("number_called", "room", code, "number", n)
		msg := NumberCalled{RoomCode: code, Number: n, CalledNumbers: r.CalledNumbers}
		s.broadcast(code, TypeNumberCalled, msg, nil)
		s.publish(code, TypeNumberCalled, msg)
		return nil
	})
	return added, called, err
}

// Reset clears the session and broadcasts the emptied room state.
func (s *Service) Reset(ctx context.Context, code, roomKey string, v bingo.ResetVariant) (*bingo.Room, error) {
	var room *bingo.Room
	err := s.withRoom(ctx, code, func(ctx context.Context) error {
		r, err := s.store.ResetRoom(ctx, code, roomKey, v)
		if err != nil {
			return err
		}
		room = r
		s.logger.Info("room_reset", "room", code, "variant", string(v))
		s.broadcastRoomState(r)
		return nil
	})
	return room, err
}

// CloseRoom deletes a room owned by roomKey and detaches its connections.
func (s *Service) CloseRoom(ctx context.Context, code, roomKey string) error {
	return s.withRoom(ctx, code, func(ctx context.Context) error {
		if err := s.store.CloseRoom(ctx, code, roomKey); err != nil {
			return err
		}
		s.roomClosed(code)
		return nil
	})
}

// AdminCloseRoom deletes any room.
func (s *Service) AdminCloseRoom(ctx context.Context, code string) error {
	return s.withRoom(ctx, code, func(ctx context.Context) error {
		if err := s.store.DeleteRoom(ctx, code); err != nil {
			return err
		}
		s.roomClosed(code)
		return nil
	})
}

// RoomsClosed detaches connections from rooms deleted elsewhere, such as by
// the retention sweeper.
func (s *Service) RoomsClosed(codes []string) {
	for _, code := range codes {
		s.roomClosed(code)
	}
}

func (s *Service) roomClosed(code string) {
	s.logger.Info("room_closed", "room", code)
	msg := RoomClosed{RoomCode: code}
	s.broadcast(code, TypeRoomClosed, msg, nil)
	for _, c := range s.hub.Evict(code) {
		c.clearJoined()
	}
	s.publish(code, TypeRoomClosed, msg)
}

// Snapshot returns the same view a websocket join would receive. A seed that
// is not issued in an enforced room yields bingo.ErrInvalidMembership.
func (s *Service) Snapshot(ctx context.Context, code, seed, roomKey string) (Snapshot, error) {
	host, err := s.isHost(ctx, code, roomKey)
	if err != nil {
		return Snapshot{}, err
	}
	room, err := s.store.LoadRoom(ctx, code)
	if err != nil {
		return Snapshot{}, err
	}
	if !host && !room.Admits(seed) {
		s.logger.Warn("cheat_detected", "room", code, "reason", ReasonInvalidSeed, "via", "rest")
		return Snapshot{}, bingo.ErrInvalidMembership
	}
	return snapshotFor(room, seed, host), nil
}

// Shutdown closes every live connection.
func (s *Service) Shutdown() {
	for _, c := range s.hub.All() {
		c.Close()
	}
}

func (s *Service) join(ctx context.Context, c *Conn, req JoinRequest) {
	code := strings.TrimSpace(req.RoomCode)
	if code == "" {
		c.sendError(CodeBadRequest, "roomCode required")
		return
	}
	s.logger.Info("join_room", "conn_id", c.ID(), "room", code, "with_seed", req.Seed != "", "with_key", req.RoomKey != "")

	if prev := c.Room(); prev != "" {
		s.hub.Leave(prev, c)
		c.clearJoined()
	}

	err := s.withRoom(ctx, code, func(ctx context.Context) error {
		host, err := s.isHost(ctx, code, req.RoomKey)
		if err != nil {
			return err
		}
		room, err := s.store.LoadRoom(ctx, code)
		if errors.Is(err, bingo.ErrNotFound) {
			c.sendMessage(TypeInitState, missingSnapshot(code))
			return nil
		}
		if err != nil {
			return err
		}
		if !host && !room.Admits(req.Seed) {
			return bingo.ErrInvalidMembership
		}

		c.sendMessage(TypeInitState, snapshotFor(room, req.Seed, host))
		if host {
			key := req.RoomKey
			if s.isAdmin(key) {
				key = ""
			}
			c.setJoined(code, "", key, true)
		} else {
			c.setJoined(code, req.Seed, "", false)
		}
		s.hub.Join(code, c)
		return nil
	})
	if err != nil {
		s.reject(c, code, ReasonInvalidSeed, err)
	}
}

// sameSeed rejects a player who presents a seed other than the one joined
// with.
func (s *Service) sameSeed(c *Conn, st connState, seed string) bool {
	if st.host || st.seed == "" || st.seed == seed {
		return true
	}
	s.logger.Warn("cheat_detected", "conn_id", c.ID(), "room", st.room, "reason", ReasonSeedMismatch)
	c.sendMessage(TypeCheatDetected, CheatDetected{Reason: ReasonSeedMismatch})
	return false
}

func (s *Service) daub(ctx context.Context, c *Conn, d DaubUpdate) {
	st := c.state()
	if st.room == "" {
		c.sendError(CodeNotJoined, "join a room first")
		return
	}
	if !bingo.ValidNumber(d.Number) || d.CardIndex < 0 || d.CardIndex >= bingo.MaxCardCount {
		c.sendError(CodeBadRequest, "invalid daub")
		return
	}
	if !s.sameSeed(c, st, d.Seed) {
		return
	}

	err := s.withRoom(ctx, st.room, func(ctx context.Context) error {
		room, err := s.store.LoadRoom(ctx, st.room)
		if err != nil {
			return err
		}
		if !st.host && !room.Admits(d.Seed) {
			return bingo.ErrInvalidMembership
		}
		changed, err := s.store.SetDaub(ctx, st.room, d.Seed, d.CardIndex, d.Number, d.Marked)
		if err != nil || !changed {
			return err
		}
		s.broadcast(st.room, TypeDaubUpdated, DaubUpdated{RoomCode: st.room, DaubUpdate: d}, func(o *Conn) bool {
			if o == c {
				return false
			}
			other := o.state()
			return other.host || other.seed == d.Seed
		})
		return nil
	})
	if err != nil {
		s.reject(c, st.room, ReasonInvalidSeed, err)
	}
}

func (s *Service) callBingo(ctx context.Context, c *Conn, req CallBingoRequest) {
	st := c.state()
	if st.room == "" {
		c.sendError(CodeNotJoined, "join a room first")
		return
	}
	if !s.sameSeed(c, st, req.Seed) {
		return
	}

	err := s.withRoom(ctx, st.room, func(ctx context.Context) error {
		win, err := s.store.RecordWin(ctx, st.room, req.Seed, req.CallerName, s.opts.Verify)
		if err != nil {
			return err
		}
		s.logger.Info("bingo_called", "room", st.room, "caller", win.CallerName, "verified", s.opts.Verify)
		msg := BingoCalled{
			RoomCode:  st.room,
			Name:      win.CallerName,
			Seed:      win.Seed,
			Timestamp: win.Timestamp.UnixMilli(),
		}
		holdsSeed := func(o *Conn) bool {
			other := o.state()
			return other.host || other.seed == win.Seed
		}
		s.broadcast(st.room, TypeBingoCalled, msg, holdsSeed)
		msg.Seed = ""
		s.broadcast(st.room, TypeBingoCalled, msg, func(o *Conn) bool { return !holdsSeed(o) })
		s.publish(st.room, TypeBingoCalled, msg)
		return nil
	})
	if errors.Is(err, bingo.ErrUnverifiedWin) {
		s.logger.Info("bingo_rejected", "room", st.room, "conn_id", c.ID())
		c.sendMessage(TypeBingoRejected, BingoRejected{RoomCode: st.room, Reason: ReasonNotVerified})
		return
	}
	if err != nil {
		s.reject(c, st.room, ReasonInvalidSeed, err)
	}
}

func (s *Service) callNumber(ctx context.Context, c *Conn, req CallNumberRequest) {
	st := c.state()
	if st.room == "" {
		c.sendError(CodeNotJoined, "join a room first")
		return
	}
	if !st.host || st.roomKey == "" {
		c.sendError(CodeForbidden, "only the host can call numbers")
		return
	}
	if _, _, err := s.CallNumber(ctx, st.room, st.roomKey, req.Number); err != nil {
		s.reject(c, st.room, ReasonInvalidSeed, err)
	}
}

// reject maps an operation error onto the message the client receives.
// Membership failures become cheat_detected; nothing here closes the socket.
func (s *Service) reject(c *Conn, room, reason string, err error) {
	switch {
	case errors.Is(err, bingo.ErrInvalidMembership):
		s.logger.Warn("cheat_detected", "conn_id", c.ID(), "room", room, "reason", reason)
		c.sendMessage(TypeCheatDetected, CheatDetected{Reason: reason})
	case errors.Is(err, bingo.ErrValidation):
		c.sendError(CodeBadRequest, err.Error())
	case errors.Is(err, bingo.ErrNotFound):
		c.sendError(CodeNotFound, "room not found")
	case errors.Is(err, bingo.ErrForbidden):
		c.sendError(CodeForbidden, "room key does not match")
	case errors.Is(err, bingo.ErrStorageUnavailable):
		c.sendError(CodeUnavailable, "storage unavailable, retry later")
	default:
		s.logger.Error("unexpected realtime error", "conn_id", c.ID(), "room", room, "error", err)
		c.sendError(CodeUnavailable, "internal error")
	}
}
