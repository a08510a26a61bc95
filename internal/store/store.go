// Package store persists rooms. It is the single source of truth for called
// numbers, issued-card membership, marks and game configuration.
package store

import (
	"context"
	"time"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
)

// RoomSummary is the administrative view of a room.
type RoomSummary struct {
	Code        string         `json:"code"`
	Players     int            `json:"players"`
	TotalCards  int            `json:"totalCards"`
	CalledCount int            `json:"calledCount"`
	Wins        int            `json:"wins"`
	GameType    bingo.GameType `json:"gameType"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// HostState is the full state a host pushes on every local change.
type HostState struct {
	CalledNumbers []int
	IssuedCards   map[string]bingo.IssuedCard
	Config        bingo.Config
}

// Store is the room state store. Every mutation is idempotent and serialized
// per room code; different rooms never wait on each other.
//
// Operations that take a roomKey treat it as a capability: they create the
// room on first use and return bingo.ErrForbidden when an existing room was
// created under a different key. Operations without a roomKey never create
// rooms.
type Store interface {
	LoadRoom(ctx context.Context, code string) (*bingo.Room, error)
	SaveRoom(ctx context.Context, code, roomKey string, room *bingo.Room) (*bingo.Room, error)
	Authorize(ctx context.Context, code, roomKey string) error

	AppendCalledNumber(ctx context.Context, code, roomKey string, n int) (added bool, room *bingo.Room, err error)
	ReplaceHostState(ctx context.Context, code, roomKey string, state HostState) (*bingo.Room, error)
	ResetRoom(ctx context.Context, code, roomKey string, v bingo.ResetVariant) (*bingo.Room, error)

	SetDaub(ctx context.Context, code, seed string, cardIndex, n int, marked bool) (changed bool, err error)
	RecordWin(ctx context.Context, code, seed, callerName string, verify bool) (bingo.Win, error)

	ListRoomsByKey(ctx context.Context, roomKey string) ([]RoomSummary, error)
	ListRooms(ctx context.Context) ([]RoomSummary, error)
	CloseRoom(ctx context.Context, code, roomKey string) error
	DeleteRoom(ctx context.Context, code string) error
	DeleteInactive(ctx context.Context, before time.Time) ([]string, error)
}

func summarize(r *bingo.Room) RoomSummary {
	return RoomSummary{
		Code:        r.Code,
		Players:     len(r.IssuedCards),
		TotalCards:  r.Payout().TotalCards,
		CalledCount: len(r.CalledNumbers),
		Wins:        len(r.WinHistory),
		GameType:    r.Config.GameType,
		UpdatedAt:   r.UpdatedAt,
	}
}
