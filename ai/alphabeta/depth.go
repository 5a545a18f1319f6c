package alphabeta

import "github.com/domino14/morris/board"

// MaxSearchDepth caps any search, shaped or not.
const MaxSearchDepth = 64

// DepthPolicy adjusts the requested depth by game phase before a search.
// The placing phase has a wide, shallow tree; the moving phase a narrow one
// where searching deeper pays off, more so when the side to move has only
// a few moves.
type DepthPolicy struct {
	PlacingReduction  int
	MovingBonus       int
	FewMovesThreshold int
	FewMovesBonus     int
}

func DefaultDepthPolicy() DepthPolicy {
	return DepthPolicy{
		PlacingReduction:  1,
		MovingBonus:       1,
		FewMovesThreshold: 6,
		FewMovesBonus:     1,
	}
}

// Shape returns the depth to search. The result only depends on its
// arguments and is clamped to [1, MaxSearchDepth].
func (p DepthPolicy) Shape(depth int, phase board.Phase, piecesInHand, numMoves int) int {
	switch phase {
	case board.PhasePlacing:
		// Late in the placing phase the position is nearly settled and
		// the reduction does more harm than good.
		if piecesInHand > 4 {
			depth -= p.PlacingReduction
		}
	case board.PhaseMoving:
		depth += p.MovingBonus
		if numMoves > 0 && numMoves <= p.FewMovesThreshold {
			depth += p.FewMovesBonus
		}
	}
	return max(1, min(depth, MaxSearchDepth))
}
