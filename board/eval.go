package board

import "github.com/domino14/morris/move"

const (
	// ValueWin is the score of a won game. Evaluate never returns anything
	// outside [-ValueWin, ValueWin]; undecided positions stay strictly inside.
	ValueWin  = 1000
	ValueDraw = 0

	ValuePiece          = 20
	ValuePendingRemoval = 20
	ValueOpenMill       = 3
	ValueMobility       = 1
)

// Evaluate scores the position for the side to move.
func (p *Position) Evaluate() int {
	us := p.st.side
	if p.st.phase == PhaseGameOver {
		switch p.st.winner {
		case NoColor:
			return ValueDraw
		case us:
			return ValueWin
		}
		return -ValueWin
	}
	them := us.Opponent()

	v := (p.totalPieces(us) - p.totalPieces(them)) * ValuePiece
	if p.st.action == move.ActionRemove {
		v += int(p.st.pendingRemovals) * ValuePendingRemoval
	}
	v += (p.openMills(us) - p.openMills(them)) * ValueOpenMill
	if p.st.phase == PhaseMoving {
		v += (p.mobility(us) - p.mobility(them)) * ValueMobility
	}

	if v >= ValueWin {
		v = ValueWin - 1
	} else if v <= -ValueWin {
		v = -ValueWin + 1
	}
	return v
}

// openMills counts lines where c has two pieces and the third point is
// empty.
func (p *Position) openMills(c Color) int {
	n := 0
	for _, m := range Mills {
		own, empty := 0, 0
		for _, sq := range m {
			switch p.st.squares[sq] {
			case c:
				own++
			case NoColor:
				empty++
			}
		}
		if own == 2 && empty == 1 {
			n++
		}
	}
	return n
}
