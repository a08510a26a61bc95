package realtime

import (
	"encoding/json"
	"sort"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
)

// Message types sent by clients.
const (
	TypeJoin       = "join"
	TypeDaubUpdate = "daub_update"
	TypeCallBingo  = "call_bingo"
	TypeCallNumber = "call_number"
)

// Message types sent by the server.
const (
	TypeInitState     = "init_state"
	TypeNumberCalled  = "number_called"
	TypeRoomState     = "room_state"
	TypeDaubUpdated   = "daub_updated"
	TypeBingoCalled   = "bingo_called"
	TypeBingoRejected = "bingo_rejected"
	TypeCheatDetected = "cheat_detected"
	TypeRoomClosed    = "room_closed"
	TypeError         = "error"
)

// Reasons carried by cheat_detected and bingo_rejected.
const (
	ReasonInvalidSeed  = "invalid_seed"
	ReasonSeedMismatch = "seed_mismatch"
	ReasonNotVerified  = "not_verified"
)

// Error codes carried by error messages.
const (
	CodeBadRequest  = "bad_request"
	CodeNotJoined   = "not_joined"
	CodeNotFound    = "not_found"
	CodeForbidden   = "forbidden"
	CodeUnavailable = "storage_unavailable"
	CodeUnknownType = "unknown_type"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}

type JoinRequest struct {
	RoomCode string `json:"roomCode"`
	Seed     string `json:"seed,omitempty"`
	RoomKey  string `json:"roomKey,omitempty"`
}

type DaubUpdate struct {
	Seed      string `json:"seed"`
	CardIndex int    `json:"cardIndex"`
	Number    int    `json:"number"`
	Marked    bool   `json:"marked"`
}

type CallBingoRequest struct {
	Seed       string `json:"seed"`
	CallerName string `json:"callerName"`
}

type CallNumberRequest struct {
	Number int `json:"number"`
}

// Player is the public view of one issued seed. The seed itself is only
// revealed to hosts.
type Player struct {
	OwnerName string `json:"ownerName"`
	CardCount int    `json:"cardCount"`
}

// Snapshot is the full room view sent on join.
type Snapshot struct {
	Exists        bool         `json:"exists"`
	RoomCode      string       `json:"roomCode"`
	CalledNumbers []int        `json:"calledNumbers"`
	Enforced      bool         `json:"enforced"`
	Config        bingo.Config `json:"config"`
	Payout        bingo.Payout `json:"payout"`
	Players       []Player     `json:"players"`
	WinHistory    []bingo.Win  `json:"winHistory"`
	LastWin       *bingo.Win   `json:"lastWin,omitempty"`

	// Set for a player who joined with a seed.
	Seed      string        `json:"seed,omitempty"`
	CardCount int           `json:"cardCount,omitempty"`
	Marks     map[int][]int `json:"marks,omitempty"`

	// Set for hosts only.
	IssuedCards map[string]bingo.IssuedCard `json:"issuedCards,omitempty"`
	AllMarks    map[string]map[int][]int    `json:"allMarks,omitempty"`
}

// RoomState is broadcast after host-driven changes.
type RoomState struct {
	RoomCode      string                      `json:"roomCode"`
	CalledNumbers []int                       `json:"calledNumbers"`
	Enforced      bool                        `json:"enforced"`
	Config        bingo.Config                `json:"config"`
	Payout        bingo.Payout                `json:"payout"`
	Players       []Player                    `json:"players"`
	IssuedCards   map[string]bingo.IssuedCard `json:"issuedCards,omitempty"`
}

type NumberCalled struct {
	RoomCode      string `json:"roomCode"`
	Number        int    `json:"number"`
	CalledNumbers []int  `json:"calledNumbers"`
}

type DaubUpdated struct {
	RoomCode string `json:"roomCode"`
	DaubUpdate
}

type BingoCalled struct {
	RoomCode  string `json:"roomCode"`
	Name      string `json:"name"`
	Seed      string `json:"seed,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type BingoRejected struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

type CheatDetected struct {
	Reason string `json:"reason"`
}

type RoomClosed struct {
	RoomCode string `json:"roomCode"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func players(r *bingo.Room) []Player {
	seeds := make([]string, 0, len(r.IssuedCards))
	for seed := range r.IssuedCards {
		seeds = append(seeds, seed)
	}
	sort.Strings(seeds)

	out := make([]Player, 0, len(seeds))
	for _, seed := range seeds {
		c := r.IssuedCards[seed]
		out = append(out, Player{OwnerName: c.OwnerName, CardCount: c.CardCount})
	}
	return out
}

// snapshotFor builds the join snapshot for a host or for the holder of seed.
// Other players' seeds and marks are never included for non-hosts.
func snapshotFor(r *bingo.Room, seed string, host bool) Snapshot {
	s := Snapshot{
		Exists:        true,
		RoomCode:      r.Code,
		CalledNumbers: r.CalledNumbers,
		Enforced:      r.Enforced(),
		Config:        r.Config,
		Payout:        r.Payout(),
		Players:       players(r),
		WinHistory:    r.WinHistory,
		LastWin:       r.LastWin,
	}
	if host {
		s.IssuedCards = r.IssuedCards
		s.AllMarks = r.Marks
		return s
	}
	if c, ok := r.IssuedCards[seed]; ok {
		s.Seed = seed
		s.CardCount = c.CardCount
		s.Marks = r.MarksFor(seed)
	}
	return s
}

func missingSnapshot(code string) Snapshot {
	return Snapshot{
		RoomCode:      code,
		CalledNumbers: []int{},
		Players:       []Player{},
		WinHistory:    []bingo.Win{},
	}
}

func roomStateFor(r *bingo.Room, host bool) RoomState {
	s := RoomState{
		RoomCode:      r.Code,
		CalledNumbers: r.CalledNumbers,
		Enforced:      r.Enforced(),
		Config:        r.Config,
		Payout:        r.Payout(),
		Players:       players(r),
	}
	if host {
		s.IssuedCards = r.IssuedCards
	}
	return s
}

// PublicState is the room view safe to show anyone, such as a stream overlay.
func PublicState(r *bingo.Room) RoomState {
	return roomStateFor(r, false)
}
