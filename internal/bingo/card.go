package bingo

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	// Size is the width and height of a card.
	Size = 5

	// MaxNumber is the highest callable number.
	MaxNumber = 75

	// Free marks the center cell in a Card.
	Free = 0

	// MaxCardCount is the most cards a single seed may carry.
	MaxCardCount = 16

	columnSpan = MaxNumber / Size

	fnvOffset = 2166136261
	fnvPrime  = 16777619

	mulberryIncrement = 0x6D2B79F5
)

// Card is a 5x5 grid indexed [row][col]. The center cell holds Free.
type Card [Size][Size]int

// CardSeed returns the per-card seed for card index i of a master seed.
func CardSeed(masterSeed string, i int) string {
	return masterSeed + "_" + strconv.Itoa(i)
}

// CardFor generates card index i issued under masterSeed.
func CardFor(masterSeed string, i int) Card {
	return Generate(CardSeed(masterSeed, i))
}

// Generate derives a card from seed. It must stay bit-for-bit identical to the
// browser client's generator: FNV-1a over UTF-16 code units, a mulberry32 stream,
// and a descending Fisher-Yates shuffle per column.
func Generate(seed string) Card {
	rng := newMulberry32(hashSeed(seed))

	var columns [Size][]int
	for c := 0; c < Size; c++ {
		start := c*columnSpan + 1
		columns[c] = shuffledColumn(rng, start, start+columnSpan-1)[:Size]
	}

	var card Card
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			card[row][col] = columns[col][row]
		}
	}
	card[2][2] = Free
	return card
}

func hashSeed(seed string) uint32 {
	h := uint32(fnvOffset)
	for _, unit := range utf16.Encode([]rune(seed)) {
		h ^= uint32(unit)
		h *= fnvPrime
	}
	return h
}

type mulberry32 struct {
	state uint32
}

func newMulberry32(seed uint32) *mulberry32 {
	return &mulberry32{state: seed}
}

// Float returns the next value in [0, 1).
func (m *mulberry32) Float() float64 {
	m.state += mulberryIncrement
	t := m.state
	r := (t ^ (t >> 15)) * (t | 1)
	r ^= r + (r^(r>>7))*(r|61)
	return float64(r^(r>>14)) / 4294967296
}

func shuffledColumn(rng *mulberry32, start, end int) []int {
	values := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		values = append(values, n)
	}
	for i := len(values) - 1; i > 0; i-- {
		j := int(math.Floor(rng.Float() * float64(i+1)))
		values[i], values[j] = values[j], values[i]
	}
	return values
}

// Contains reports whether n appears on the card.
func (c Card) Contains(n int) bool {
	_, _, ok := c.Find(n)
	return ok
}

// Find returns the position of n on the card.
func (c Card) Find(n int) (row, col int, ok bool) {
	if n == Free {
		return 0, 0, false
	}
	for r := 0; r < Size; r++ {
		for cl := 0; cl < Size; cl++ {
			if c[r][cl] == n {
				return r, cl, true
			}
		}
	}
	return 0, 0, false
}

// Marks builds the mark matrix for the given marked numbers. The free cell is
// always marked; numbers not on the card are ignored.
func (c Card) Marks(marked []int) Marks {
	var m Marks
	m[2][2] = true
	for _, n := range marked {
		if r, cl, ok := c.Find(n); ok {
			m[r][cl] = true
		}
	}
	return m
}

// String renders the card as five rows of right-aligned numbers.
func (c Card) String() string {
	var b strings.Builder
	for r := 0; r < Size; r++ {
		for cl := 0; cl < Size; cl++ {
			if cl > 0 {
				b.WriteByte(' ')
			}
			if c[r][cl] == Free {
				b.WriteString("FR")
				continue
			}
			v := strconv.Itoa(c[r][cl])
			if len(v) < 2 {
				b.WriteByte(' ')
			}
			b.WriteString(v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ValidNumber reports whether n can be called.
func ValidNumber(n int) bool {
	return n >= 1 && n <= MaxNumber
}
