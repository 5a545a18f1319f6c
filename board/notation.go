package board

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/domino14/morris/move"
	"github.com/domino14/morris/zobrist"
)

// Notation returns a canonical one-line description of the position:
//
//	<24 points> <side w|b> <action p|s|x|-> <white in hand> <black in hand> <pending removals> <quiet moves>
//
// Points use W, B and '.' in square order. Two positions with the same
// notation are the same position for every rule and for evaluation.
func (p *Position) Notation() string {
	var sb strings.Builder
	for _, c := range p.st.squares {
		sb.WriteByte(c.glyph())
	}
	side := "w"
	if p.st.side == Black {
		side = "b"
	}
	fmt.Fprintf(&sb, " %s %c %d %d %d %d", side, actionGlyph(p.st.action),
		p.st.inHand[0], p.st.inHand[1], p.st.pendingRemovals, p.st.quietMoves)
	return sb.String()
}

func actionGlyph(a move.Action) byte {
	switch a {
	case move.ActionPlace:
		return 'p'
	case move.ActionSlide:
		return 's'
	case move.ActionRemove:
		return 'x'
	}
	return '-'
}

// FromNotation sets up a position from the output of Notation. The history
// is empty, so the position cannot be unmade past this point.
func FromNotation(rules Rules, z *zobrist.Zobrist, notation string) (*Position, error) {
	p, err := NewPosition(rules, z)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(notation)
	if len(fields) != 7 || len(fields[0]) != NumSquares {
		return nil, fmt.Errorf("bad position notation %q", notation)
	}
	p.st = state{}
	for i := 0; i < NumSquares; i++ {
		switch fields[0][i] {
		case 'W', 'w':
			p.st.squares[i] = White
			p.st.onBoard[0]++
		case 'B', 'b':
			p.st.squares[i] = Black
			p.st.onBoard[1]++
		case '.':
		default:
			return nil, fmt.Errorf("bad point %q in %q", fields[0][i], notation)
		}
	}
	switch fields[1] {
	case "w":
		p.st.side = White
	case "b":
		p.st.side = Black
	default:
		return nil, fmt.Errorf("bad side %q in %q", fields[1], notation)
	}
	nums := make([]int, 4)
	for i, f := range fields[3:] {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad count %q in %q", f, notation)
		}
		nums[i] = n
	}
	if nums[0] > rules.PiecesPerSide || nums[1] > rules.PiecesPerSide {
		return nil, fmt.Errorf("more pieces in hand than the rules allow in %q", notation)
	}
	if nums[2] > zobrist.MaxPendingRemovals {
		return nil, fmt.Errorf("too many pending removals in %q", notation)
	}
	p.st.inHand[0], p.st.inHand[1] = int8(nums[0]), int8(nums[1])
	p.st.pendingRemovals = int8(nums[2])
	p.st.quietMoves = nums[3]

	if p.st.inHand[0] > 0 || p.st.inHand[1] > 0 {
		p.st.phase = PhasePlacing
	} else {
		p.st.phase = PhaseMoving
	}
	switch fields[2] {
	case "x":
		if p.st.pendingRemovals == 0 {
			return nil, fmt.Errorf("removal pending but count is zero in %q", notation)
		}
		p.st.action = move.ActionRemove
	case "p", "s", "-":
		if p.st.pendingRemovals != 0 {
			return nil, fmt.Errorf("pending removals without a removal action in %q", notation)
		}
		if p.st.phase == PhasePlacing {
			p.st.action = move.ActionPlace
		} else {
			p.st.action = move.ActionSlide
		}
	default:
		return nil, fmt.Errorf("bad action %q in %q", fields[2], notation)
	}
	p.st.hash = p.computeHash()
	if p.st.action != move.ActionRemove {
		// Hash is kept in step by finish().
		p.checkGameOver()
	}
	if fields[2] == "-" && p.st.phase != PhaseGameOver {
		return nil, fmt.Errorf("game marked over but still running in %q", notation)
	}
	return p, nil
}

const diagram = `7 %c-----%c-----%c
  |     |     |
6 | %c---%c---%c |
  | |   |   | |
5 | | %c-%c-%c | |
  | | |   | | |
4 %c-%c-%c   %c-%c-%c
  | | |   | | |
3 | | %c-%c-%c | |
  | |   |   | |
2 | %c---%c---%c |
  |     |     |
1 %c-----%c-----%c
  a b c d e f g
`

// String draws the board with the side to move and the pieces in hand.
func (p *Position) String() string {
	args := make([]any, NumSquares)
	for i, c := range p.st.squares {
		args[i] = c.glyph()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, diagram, args...)
	fmt.Fprintf(&sb, "%v to %v (%v); in hand W:%d B:%d",
		p.st.side, p.st.action, p.st.phase, p.st.inHand[0], p.st.inHand[1])
	if p.st.phase == PhaseGameOver {
		fmt.Fprintf(&sb, "; winner: %v", p.st.winner)
	}
	sb.WriteString("\n")
	return sb.String()
}
