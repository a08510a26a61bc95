package bingo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Marks is a card's mark state indexed [row][col].
type Marks [Size][Size]bool

// GameType selects the win pattern a room plays.
type GameType int

const (
	SingleLine GameType = iota
	TwoLines
	FourCorners
	Blackout
)

var gameTypeNames = [...]string{
	SingleLine:  "single_line",
	TwoLines:    "two_lines",
	FourCorners: "four_corners",
	Blackout:    "blackout",
}

func (g GameType) String() string {
	if g < 0 || int(g) >= len(gameTypeNames) {
		return fmt.Sprintf("GameType(%d)", int(g))
	}
	return gameTypeNames[g]
}

// Valid reports whether g is one of the defined game types.
func (g GameType) Valid() bool {
	return g >= SingleLine && g <= Blackout
}

// ParseGameType accepts the snake_case wire name as well as the display
// spellings the host plugin uses ("Single Line", "TwoLines", ...).
func ParseGameType(s string) (GameType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	switch key {
	case "", "singleline", "line":
		return SingleLine, nil
	case "twolines", "doubleline":
		return TwoLines, nil
	case "fourcorners", "corners":
		return FourCorners, nil
	case "blackout", "fullhouse", "coverall":
		return Blackout, nil
	}
	return SingleLine, fmt.Errorf("%w: unknown game type %q", ErrValidation, s)
}

func (g GameType) MarshalJSON() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: game type %d", ErrValidation, int(g))
	}
	return json.Marshal(g.String())
}

func (g *GameType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: game type must be a string", ErrValidation)
	}
	parsed, err := ParseGameType(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

type line [Size][2]int

// lines holds the 12 candidate lines: 5 rows, 5 columns, 2 diagonals.
var lines = func() []line {
	out := make([]line, 0, 2*Size+2)
	for r := 0; r < Size; r++ {
		var l line
		for c := 0; c < Size; c++ {
			l[c] = [2]int{r, c}
		}
		out = append(out, l)
	}
	for c := 0; c < Size; c++ {
		var l line
		for r := 0; r < Size; r++ {
			l[r] = [2]int{r, c}
		}
		out = append(out, l)
	}
	var diag, anti line
	for i := 0; i < Size; i++ {
		diag[i] = [2]int{i, i}
		anti[i] = [2]int{i, Size - 1 - i}
	}
	return append(out, diag, anti)
}()

// CompletedLines counts fully marked rows, columns and diagonals. Lines that
// share cells are each counted.
func (m Marks) CompletedLines() int {
	n := 0
	for _, l := range lines {
		complete := true
		for _, cell := range l {
			if !m[cell[0]][cell[1]] {
				complete = false
				break
			}
		}
		if complete {
			n++
		}
	}
	return n
}

func (m Marks) withFree() Marks {
	m[2][2] = true
	return m
}

var evaluators = map[GameType]func(Marks) bool{
	SingleLine: func(m Marks) bool { return m.CompletedLines() >= 1 },
	TwoLines:   func(m Marks) bool { return m.CompletedLines() >= 2 },
	FourCorners: func(m Marks) bool {
		return m[0][0] && m[0][Size-1] && m[Size-1][0] && m[Size-1][Size-1]
	},
	Blackout: func(m Marks) bool {
		for r := 0; r < Size; r++ {
			for c := 0; c < Size; c++ {
				if !m[r][c] {
					return false
				}
			}
		}
		return true
	},
}

// Evaluate reports whether marks satisfy the win pattern for g. The free cell
// counts as marked regardless of m. Unknown game types never win.
func Evaluate(g GameType, m Marks) bool {
	eval, ok := evaluators[g]
	if !ok {
		return false
	}
	return eval(m.withFree())
}
