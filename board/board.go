// Package board implements the rules of Nine Men's Morris: the board
// geometry, legal move generation, reversible make/unmake with an
// incrementally maintained Zobrist fingerprint, and static evaluation.
package board

import (
	"github.com/domino14/morris/move"
)

const NumSquares = move.NumSquares

// Mills lists every line of three points. Each line is ordered, and two
// points are neighbours exactly when they are consecutive in some line.
var Mills = [16][3]move.Square{
	// horizontal
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9, 10, 11},
	{12, 13, 14}, {15, 16, 17}, {18, 19, 20}, {21, 22, 23},
	// vertical
	{0, 9, 21}, {3, 10, 18}, {6, 11, 15}, {1, 4, 7},
	{16, 19, 22}, {8, 12, 17}, {5, 13, 20}, {2, 14, 23},
}

var (
	// millsAt holds, per point, the indices of the two mills through it.
	millsAt [NumSquares][2]int
	// Adjacent holds the neighbours of every point.
	Adjacent [NumSquares][]move.Square
)

func init() {
	var seen [NumSquares]int
	for mi, m := range Mills {
		for _, sq := range m {
			millsAt[sq][seen[sq]] = mi
			seen[sq]++
		}
		for i := 0; i < 2; i++ {
			a, b := m[i], m[i+1]
			Adjacent[a] = append(Adjacent[a], b)
			Adjacent[b] = append(Adjacent[b], a)
		}
	}
}

// Color is the occupant of a point, or a player.
type Color int8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	}
	return NoColor
}

// Index maps White to 0 and Black to 1.
func (c Color) Index() int {
	return int(c) - 1
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return "nobody"
}

func (c Color) glyph() byte {
	switch c {
	case White:
		return 'W'
	case Black:
		return 'B'
	}
	return '.'
}

// Phase is the stage of the game.
type Phase int8

const (
	PhasePlacing Phase = iota
	PhaseMoving
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhasePlacing:
		return "placing"
	case PhaseMoving:
		return "moving"
	}
	return "gameover"
}

// Rules are the variant options the rules engine supports.
type Rules struct {
	PiecesPerSide int
	// Flying lets a side reduced to three pieces move to any empty point.
	Flying bool
	// MaxMovesWithoutRemoval ends the game in a draw after that many moves
	// in the moving phase without a removal. Zero disables the rule.
	MaxMovesWithoutRemoval int
}

func DefaultRules() Rules {
	return Rules{
		PiecesPerSide:          9,
		Flying:                 true,
		MaxMovesWithoutRemoval: 100,
	}
}
