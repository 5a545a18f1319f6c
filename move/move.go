// Package move defines the compact move representation shared by the rules
// engine, the searcher and the transposition table.
package move

import (
	"errors"
	"fmt"
	"strings"
)

// NumSquares is the number of points on a mill board.
const NumSquares = 24

// Square is a point on the board, 0 through 23. Points are numbered row by
// row from the top left:
//
//	a7 ----- d7 ----- g7        00 ----- 01 ----- 02
//	|  b6 -- d6 -- f6  |        |  03 -- 04 -- 05  |
//	|  |  c5 d5 e5  |  |        |  |  06 07 08  |  |
//	a4 b4 c4    e4 f4 g4        09 10 11    12 13 14
//	|  |  c3 d3 e3  |  |        |  |  15 16 17  |  |
//	|  b2 -- d2 -- f2  |        |  18 -- 19 -- 20  |
//	a1 ----- d1 ----- g1        21 ----- 22 ----- 23
type Square int8

const NoSquare Square = -1

var squareNames = [NumSquares]string{
	"a7", "d7", "g7",
	"b6", "d6", "f6",
	"c5", "d5", "e5",
	"a4", "b4", "c4", "e4", "f4", "g4",
	"c3", "d3", "e3",
	"b2", "d2", "f2",
	"a1", "d1", "g1",
}

var ErrBadNotation = errors.New("bad move notation")

func (s Square) Valid() bool {
	return s >= 0 && s < NumSquares
}

func (s Square) String() string {
	if !s.Valid() {
		return "--"
	}
	return squareNames[s]
}

// ParseSquare converts a coordinate such as "d6" to a Square.
func ParseSquare(str string) (Square, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	for i, n := range squareNames {
		if n == str {
			return Square(i), nil
		}
	}
	return NoSquare, fmt.Errorf("%w: unknown square %q", ErrBadNotation, str)
}

// Action is the kind of a move.
type Action uint8

const (
	ActionNone Action = iota
	ActionPlace
	ActionSlide
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionPlace:
		return "place"
	case ActionSlide:
		return "slide"
	case ActionRemove:
		return "remove"
	}
	return "none"
}

// Move packs a move into 16 bits so it fits a transposition table entry:
//
//	15 14 13 12 | 11 10 9 8 7 6 | 5 4 3 2 1 0
//	  -  - act  |     from      |     to
//
// The zero Move is None; every real move has a non-zero action.
type Move uint16

const None Move = 0

const (
	toMask     = 0x3f
	fromShift  = 6
	fromMask   = 0x3f << fromShift
	actShift   = 12
	noFromBits = 0x3f
)

func newMove(a Action, from, to Square) Move {
	f := uint16(noFromBits)
	if from.Valid() {
		f = uint16(from)
	}
	return Move(uint16(a)<<actShift | f<<fromShift | uint16(to)&toMask)
}

// NewPlace returns a placement on an empty point.
func NewPlace(to Square) Move {
	return newMove(ActionPlace, NoSquare, to)
}

// NewSlide returns a move of a piece from one point to another, either to a
// neighbour or, when flying, to any empty point.
func NewSlide(from, to Square) Move {
	return newMove(ActionSlide, from, to)
}

// NewRemove returns the removal of an opponent's piece after closing a mill.
func NewRemove(sq Square) Move {
	return newMove(ActionRemove, NoSquare, sq)
}

func (m Move) Action() Action {
	return Action(m >> actShift)
}

// From is only meaningful for slides; it is NoSquare otherwise.
func (m Move) From() Square {
	f := (uint16(m) & fromMask) >> fromShift
	if f == noFromBits {
		return NoSquare
	}
	return Square(f)
}

// To is the destination of a place or slide and the target of a removal.
func (m Move) To() Square {
	return Square(uint16(m) & toMask)
}

func (m Move) IsNone() bool {
	return m == None
}

// String renders the move in coordinate notation: "d6", "a1-a4" or "xg7".
func (m Move) String() string {
	switch m.Action() {
	case ActionPlace:
		return m.To().String()
	case ActionSlide:
		return m.From().String() + "-" + m.To().String()
	case ActionRemove:
		return "x" + m.To().String()
	}
	return "(none)"
}

// Parse reads a move in the notation produced by String.
func Parse(str string) (Move, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	switch {
	case str == "":
		return None, fmt.Errorf("%w: empty move", ErrBadNotation)
	case strings.HasPrefix(str, "x"):
		sq, err := ParseSquare(str[1:])
		if err != nil {
			return None, err
		}
		return NewRemove(sq), nil
	case strings.Contains(str, "-"):
		parts := strings.SplitN(str, "-", 2)
		from, err := ParseSquare(parts[0])
		if err != nil {
			return None, err
		}
		to, err := ParseSquare(parts[1])
		if err != nil {
			return None, err
		}
		if from == to {
			return None, fmt.Errorf("%w: slide to the same point %q", ErrBadNotation, str)
		}
		return NewSlide(from, to), nil
	}
	sq, err := ParseSquare(str)
	if err != nil {
		return None, err
	}
	return NewPlace(sq), nil
}
