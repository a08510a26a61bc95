// Package bingo defines the core domain: the deterministic card generator,
// the win-pattern evaluator and the Room model. It has zero external
// dependencies so the same rules run on the server and in tooling.
package bingo

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultLetters      = "BINGO"
	MaxCallerNameLength = 32
	unknownCaller       = "Unknown"
)

// IssuedCard records who holds a seed and how many cards it covers.
type IssuedCard struct {
	OwnerName string `json:"ownerName"`
	CardCount int    `json:"cardCount"`
	ShortCode string `json:"shortCode,omitempty"`
}

// Economics are display-only values the host configures.
type Economics struct {
	CostPerCard     int     `json:"costPerCard"`
	StartingPot     int     `json:"startingPot"`
	PrizePercentage float64 `json:"prizePercentage"`
}

// Payout is derived from Economics and the issued cards.
type Payout struct {
	TotalCards int     `json:"totalCards"`
	TotalPot   int     `json:"totalPot"`
	PrizePool  float64 `json:"prizePool"`
}

// Theme carries the presentation strings the browser client renders.
type Theme struct {
	Letters    string `json:"letters"`
	Background string `json:"bg,omitempty"`
	Card       string `json:"card,omitempty"`
	Header     string `json:"header,omitempty"`
	Text       string `json:"text,omitempty"`
	Daub       string `json:"daub,omitempty"`
	Venue      string `json:"venue,omitempty"`
}

// Config is the host-controlled game configuration.
type Config struct {
	GameType  GameType  `json:"gameType"`
	Economics Economics `json:"economics"`
	Theme     Theme     `json:"theme"`
}

// Win is one accepted bingo claim.
type Win struct {
	CallerName string    `json:"callerName"`
	Seed       string    `json:"seed"`
	Timestamp  time.Time `json:"timestamp"`
}

// Room is the authoritative state of one bingo session.
type Room struct {
	Code          string                   `json:"code"`
	CalledNumbers []int                    `json:"calledNumbers"`
	IssuedCards   map[string]IssuedCard    `json:"issuedCards"`
	Marks         map[string]map[int][]int `json:"marks"`
	Config        Config                   `json:"config"`
	WinHistory    []Win                    `json:"winHistory"`
	LastWin       *Win                     `json:"lastWin,omitempty"`
	UpdatedAt     time.Time                `json:"updatedAt"`

	// Locked is set once cards have been issued and stays set until Reset.
	Locked bool `json:"enforced,omitempty"`
}

// NewRoom returns an empty room in open mode.
func NewRoom(code string) *Room {
	r := &Room{Code: code}
	r.Normalize()
	return r
}

// Enforced reports whether joins and updates must present an issued seed.
// Issuing a card enforces the room until the next Reset, even if the host
// later withdraws every card.
func (r *Room) Enforced() bool {
	return r.Locked || len(r.IssuedCards) > 0
}

// Admits reports whether seed passes the membership check.
func (r *Room) Admits(seed string) bool {
	if !r.Enforced() {
		return true
	}
	_, ok := r.IssuedCards[seed]
	return ok
}

func (r *Room) HasCalled(n int) bool {
	return slices.Contains(r.CalledNumbers, n)
}

// CallNumber appends n unless it was already called.
func (r *Room) CallNumber(n int) (added bool, err error) {
	if !ValidNumber(n) {
		return false, fmt.Errorf("%w: number %d outside 1-%d", ErrValidation, n, MaxNumber)
	}
	if r.HasCalled(n) {
		return false, nil
	}
	r.CalledNumbers = append(r.CalledNumbers, n)
	return true, nil
}

// SetMark adds or removes n from the mark set of one card. Requests for seeds
// or card indexes outside the issued cards are ignored.
func (r *Room) SetMark(seed string, cardIndex, n int, marked bool) (changed bool) {
	issued, ok := r.IssuedCards[seed]
	if !ok || cardIndex < 0 || cardIndex >= issued.CardCount || !ValidNumber(n) {
		return false
	}
	current := r.Marks[seed][cardIndex]
	i, found := slices.BinarySearch(current, n)
	switch {
	case marked && !found:
		if r.Marks == nil {
			r.Marks = make(map[string]map[int][]int)
		}
		if r.Marks[seed] == nil {
			r.Marks[seed] = make(map[int][]int)
		}
		r.Marks[seed][cardIndex] = slices.Insert(current, i, n)
		return true
	case !marked && found:
		current = slices.Delete(current, i, i+1)
		if len(current) == 0 {
			delete(r.Marks[seed], cardIndex)
		} else {
			r.Marks[seed][cardIndex] = current
		}
		if len(r.Marks[seed]) == 0 {
			delete(r.Marks, seed)
		}
		return true
	}
	return false
}

// MarksFor returns a copy of the marks held under seed.
func (r *Room) MarksFor(seed string) map[int][]int {
	out := make(map[int][]int, len(r.Marks[seed]))
	for i, nums := range r.Marks[seed] {
		out[i] = slices.Clone(nums)
	}
	return out
}

// ReplaceHostState overwrites called numbers, issued cards and configuration
// with the host's copy and prunes marks for seeds that are no longer issued.
func (r *Room) ReplaceHostState(called []int, issued map[string]IssuedCard, cfg Config) {
	r.CalledNumbers = slices.Clone(called)
	r.IssuedCards = make(map[string]IssuedCard, len(issued))
	for seed, card := range issued {
		r.IssuedCards[seed] = card
	}
	r.Config = cfg
	r.Normalize()
}

// RecordWin appends a win and moves the last-win pointer.
func (r *Room) RecordWin(seed, callerName string, at time.Time) Win {
	w := Win{CallerName: NormalizeCallerName(callerName), Seed: seed, Timestamp: at.UTC()}
	r.WinHistory = append(r.WinHistory, w)
	r.LastWin = &w
	return w
}

// VerifyWin regenerates every card issued under seed and reports the first
// card index whose marks, restricted to called numbers, satisfy the room's
// game type.
func (r *Room) VerifyWin(seed string) (cardIndex int, ok bool) {
	issued, found := r.IssuedCards[seed]
	if !found {
		return 0, false
	}
	for i := 0; i < issued.CardCount; i++ {
		var daubed []int
		for _, n := range r.Marks[seed][i] {
			if r.HasCalled(n) {
				daubed = append(daubed, n)
			}
		}
		if Evaluate(r.Config.GameType, CardFor(seed, i).Marks(daubed)) {
			return i, true
		}
	}
	return 0, false
}

// ResetVariant selects what a reset keeps.
type ResetVariant string

const (
	ResetFull       ResetVariant = "full"
	ResetKeepConfig ResetVariant = "keep_config"
)

func ParseResetVariant(s string) (ResetVariant, error) {
	switch ResetVariant(s) {
	case "", ResetKeepConfig:
		return ResetKeepConfig, nil
	case ResetFull:
		return ResetFull, nil
	}
	return "", fmt.Errorf("%w: unknown reset variant %q", ErrValidation, s)
}

// Reset clears the session. The room returns to open mode.
func (r *Room) Reset(v ResetVariant) {
	r.CalledNumbers = nil
	r.IssuedCards = nil
	r.Marks = nil
	r.WinHistory = nil
	r.LastWin = nil
	r.Locked = false
	if v == ResetFull {
		r.Config = Config{}
	}
	r.Normalize()
}

// Payout derives pot values from the issued cards.
func (r *Room) Payout() Payout {
	total := 0
	for _, c := range r.IssuedCards {
		total += c.CardCount
	}
	e := r.Config.Economics
	pot := e.StartingPot + total*e.CostPerCard
	return Payout{
		TotalCards: total,
		TotalPot:   pot,
		PrizePool:  float64(pot) * e.PrizePercentage / 100,
	}
}

// Normalize repairs a room in place: it drops invalid and duplicate called
// numbers, clamps card counts, prunes marks that fall outside the issued cards
// and fills in configuration defaults.
func (r *Room) Normalize() {
	seen := make(map[int]bool, len(r.CalledNumbers))
	called := make([]int, 0, len(r.CalledNumbers))
	for _, n := range r.CalledNumbers {
		if ValidNumber(n) && !seen[n] {
			seen[n] = true
			called = append(called, n)
		}
	}
	r.CalledNumbers = called

	issued := make(map[string]IssuedCard, len(r.IssuedCards))
	for seed, c := range r.IssuedCards {
		if strings.TrimSpace(seed) == "" || c.CardCount < 1 {
			continue
		}
		c.CardCount = min(c.CardCount, MaxCardCount)
		c.OwnerName = strings.TrimSpace(c.OwnerName)
		issued[seed] = c
	}
	r.IssuedCards = issued
	if len(issued) > 0 {
		r.Locked = true
	}

	marks := make(map[string]map[int][]int)
	for seed, cards := range r.Marks {
		c, ok := issued[seed]
		if !ok {
			continue
		}
		for i, nums := range cards {
			if i < 0 || i >= c.CardCount {
				continue
			}
			kept := make([]int, 0, len(nums))
			for _, n := range nums {
				if ValidNumber(n) {
					kept = append(kept, n)
				}
			}
			slices.Sort(kept)
			kept = slices.Compact(kept)
			if len(kept) == 0 {
				continue
			}
			if marks[seed] == nil {
				marks[seed] = make(map[int][]int)
			}
			marks[seed][i] = kept
		}
	}
	r.Marks = marks

	if r.WinHistory == nil {
		r.WinHistory = []Win{}
	}
	r.Config.normalize()
}

func (c *Config) normalize() {
	if !c.GameType.Valid() {
		c.GameType = SingleLine
	}
	c.Economics.CostPerCard = max(c.Economics.CostPerCard, 0)
	c.Economics.StartingPot = max(c.Economics.StartingPot, 0)
	c.Economics.PrizePercentage = min(max(c.Economics.PrizePercentage, 0), 100)

	c.Theme.Letters = NormalizeLetters(c.Theme.Letters)
	c.Theme.Background = NormalizeHex(c.Theme.Background)
	c.Theme.Card = NormalizeHex(c.Theme.Card)
	c.Theme.Header = NormalizeHex(c.Theme.Header)
	c.Theme.Text = NormalizeHex(c.Theme.Text)
	c.Theme.Daub = NormalizeHex(c.Theme.Daub)
	c.Theme.Venue = strings.TrimSpace(c.Theme.Venue)
}

// Clone returns a deep copy of r.
func (r *Room) Clone() *Room {
	out := *r
	out.CalledNumbers = slices.Clone(r.CalledNumbers)
	out.IssuedCards = make(map[string]IssuedCard, len(r.IssuedCards))
	for k, v := range r.IssuedCards {
		out.IssuedCards[k] = v
	}
	out.Marks = make(map[string]map[int][]int, len(r.Marks))
	for seed := range r.Marks {
		out.Marks[seed] = r.MarksFor(seed)
	}
	out.WinHistory = slices.Clone(r.WinHistory)
	if r.LastWin != nil {
		w := *r.LastWin
		out.LastWin = &w
	}
	return &out
}

// NormalizeCallerName trims a claimant name and caps it at 32 characters.
func NormalizeCallerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return unknownCaller
	}
	if utf8.RuneCountInString(name) > MaxCallerNameLength {
		name = string([]rune(name)[:MaxCallerNameLength])
	}
	return name
}

// NormalizeLetters upper-cases custom header letters, keeping at most five.
func NormalizeLetters(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLetters
	}
	if utf8.RuneCountInString(s) > Size {
		s = string([]rune(s)[:Size])
	}
	return strings.ToUpper(s)
}

var hexColor = regexp.MustCompile(`^(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// NormalizeHex returns a 6-digit upper-case color without the leading '#',
// or "" when s is not a 3- or 6-digit hex color.
func NormalizeHex(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if !hexColor.MatchString(s) {
		return ""
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	return strings.ToUpper(s)
}
