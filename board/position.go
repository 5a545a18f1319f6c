package board

import (
	"errors"
	"fmt"

	"github.com/domino14/morris/move"
	"github.com/domino14/morris/zobrist"
)

var (
	ErrIllegalMove      = errors.New("illegal move")
	ErrNothingToUnmake  = errors.New("no move to unmake")
	ErrBadPositionRules = errors.New("unsupported rules")
)

// state is everything MakeMove changes. It is small enough that backing it
// up wholesale before every move is cheaper than computing an inverse.
type state struct {
	squares         [NumSquares]Color
	inHand          [2]int8
	onBoard         [2]int8
	side            Color
	phase           Phase
	action          move.Action
	pendingRemovals int8
	winner          Color
	quietMoves      int
	ply             int
	hash            uint64
}

// Position is a mill game position. It is not safe for concurrent use;
// give every search its own Copy.
type Position struct {
	rules   Rules
	zobrist *zobrist.Zobrist
	st      state
	history []state
}

// NewPosition returns the starting position: an empty board, white to
// place. A nil z gets a fresh set of Zobrist keys.
func NewPosition(rules Rules, z *zobrist.Zobrist) (*Position, error) {
	if rules.PiecesPerSide < 3 || rules.PiecesPerSide > zobrist.MaxPiecesInHand {
		return nil, fmt.Errorf("%w: %d pieces per side", ErrBadPositionRules, rules.PiecesPerSide)
	}
	if rules.MaxMovesWithoutRemoval < 0 || rules.MaxMovesWithoutRemoval > zobrist.MaxQuietMoves {
		return nil, fmt.Errorf("%w: draw after %d moves without removal", ErrBadPositionRules, rules.MaxMovesWithoutRemoval)
	}
	if z == nil {
		z = zobrist.New()
	}
	p := &Position{rules: rules, zobrist: z}
	p.st.side = White
	p.st.phase = PhasePlacing
	p.st.action = move.ActionPlace
	p.st.inHand[0] = int8(rules.PiecesPerSide)
	p.st.inHand[1] = int8(rules.PiecesPerSide)
	p.st.hash = p.computeHash()
	return p, nil
}

// Copy returns an independent position that shares only the (immutable)
// Zobrist keys.
func (p *Position) Copy() *Position {
	cp := &Position{
		rules:   p.rules,
		zobrist: p.zobrist,
		st:      p.st,
		history: make([]state, len(p.history), cap(p.history)),
	}
	copy(cp.history, p.history)
	return cp
}

func (p *Position) Rules() Rules {
	return p.rules
}

func (p *Position) Zobrist() *zobrist.Zobrist {
	return p.zobrist
}

func (p *Position) Hash() uint64 {
	return p.st.hash
}

func (p *Position) SideToMove() Color {
	return p.st.side
}

func (p *Position) Phase() Phase {
	return p.st.phase
}

func (p *Position) Action() move.Action {
	return p.st.action
}

func (p *Position) At(sq move.Square) Color {
	return p.st.squares[sq]
}

func (p *Position) InHand(c Color) int {
	return int(p.st.inHand[c.Index()])
}

func (p *Position) OnBoard(c Color) int {
	return int(p.st.onBoard[c.Index()])
}

// PiecesInHand is the number of unplaced pieces of both sides.
func (p *Position) PiecesInHand() int {
	return int(p.st.inHand[0] + p.st.inHand[1])
}

// PendingRemovals is how many removals the side to move still owes.
func (p *Position) PendingRemovals() int {
	return int(p.st.pendingRemovals)
}

// Winner is NoColor while the game is running and after a draw.
func (p *Position) Winner() Color {
	return p.st.winner
}

func (p *Position) Ply() int {
	return p.st.ply
}

func (p *Position) QuietMoves() int {
	return p.st.quietMoves
}

func (p *Position) IsTerminal() bool {
	return p.st.phase == PhaseGameOver
}

// computeHash builds the fingerprint from scratch. MakeMove maintains it
// incrementally; the two must always agree.
func (p *Position) computeHash() uint64 {
	z := p.zobrist
	var h uint64
	for sq, c := range p.st.squares {
		if c != NoColor {
			h ^= z.Piece(move.Square(sq), c.Index())
		}
	}
	h ^= z.InHand(0, int(p.st.inHand[0]))
	h ^= z.InHand(1, int(p.st.inHand[1]))
	h ^= z.Action(p.st.action)
	h ^= z.Removals(int(p.st.pendingRemovals))
	h ^= z.Phase(int(p.st.phase))
	h ^= z.Quiet(p.quietKey(p.st.quietMoves))
	if p.st.side == Black {
		h ^= z.BlackToMove()
	}
	if p.st.phase == PhaseGameOver {
		h ^= z.Winner(int(p.st.winner))
	}
	return h
}

func (p *Position) setSquare(sq move.Square, c Color) {
	if old := p.st.squares[sq]; old != NoColor {
		p.st.hash ^= p.zobrist.Piece(sq, old.Index())
		p.st.onBoard[old.Index()]--
	}
	p.st.squares[sq] = c
	if c != NoColor {
		p.st.hash ^= p.zobrist.Piece(sq, c.Index())
		p.st.onBoard[c.Index()]++
	}
}

func (p *Position) setInHand(c Color, n int8) {
	i := c.Index()
	p.st.hash ^= p.zobrist.InHand(i, int(p.st.inHand[i]))
	p.st.inHand[i] = n
	p.st.hash ^= p.zobrist.InHand(i, int(n))
}

func (p *Position) setAction(a move.Action) {
	p.st.hash ^= p.zobrist.Action(p.st.action)
	p.st.action = a
	p.st.hash ^= p.zobrist.Action(a)
}

func (p *Position) setPendingRemovals(n int8) {
	p.st.hash ^= p.zobrist.Removals(int(p.st.pendingRemovals))
	p.st.pendingRemovals = n
	p.st.hash ^= p.zobrist.Removals(int(n))
}

// quietKey is the part of a quiet-move count that can still decide the
// game: counts past the draw limit are all alike, and without a limit the
// count does not matter.
func (p *Position) quietKey(n int) int {
	if p.rules.MaxMovesWithoutRemoval == 0 {
		return 0
	}
	return min(n, p.rules.MaxMovesWithoutRemoval)
}

func (p *Position) setQuietMoves(n int) {
	p.st.hash ^= p.zobrist.Quiet(p.quietKey(p.st.quietMoves))
	p.st.quietMoves = n
	p.st.hash ^= p.zobrist.Quiet(p.quietKey(n))
}

func (p *Position) setPhase(ph Phase) {
	p.st.hash ^= p.zobrist.Phase(int(p.st.phase))
	p.st.phase = ph
	p.st.hash ^= p.zobrist.Phase(int(ph))
}

func (p *Position) setSide(c Color) {
	if p.st.side != c {
		p.st.hash ^= p.zobrist.BlackToMove()
	}
	p.st.side = c
}

// inMill reports whether the piece on sq is part of a closed mill.
func (p *Position) inMill(sq move.Square) bool {
	c := p.st.squares[sq]
	if c == NoColor {
		return false
	}
	for _, mi := range millsAt[sq] {
		m := Mills[mi]
		if p.st.squares[m[0]] == c && p.st.squares[m[1]] == c && p.st.squares[m[2]] == c {
			return true
		}
	}
	return false
}

// millsClosedAt counts the mills through sq that its occupant now owns.
func (p *Position) millsClosedAt(sq move.Square) int {
	c := p.st.squares[sq]
	n := 0
	for _, mi := range millsAt[sq] {
		m := Mills[mi]
		if p.st.squares[m[0]] == c && p.st.squares[m[1]] == c && p.st.squares[m[2]] == c {
			n++
		}
	}
	return n
}

func (p *Position) allInMills(c Color) bool {
	for sq := move.Square(0); sq < NumSquares; sq++ {
		if p.st.squares[sq] == c && !p.inMill(sq) {
			return false
		}
	}
	return true
}

// removable reports whether the side to move may take the piece on sq.
func (p *Position) removable(sq move.Square) bool {
	them := p.st.side.Opponent()
	if p.st.squares[sq] != them {
		return false
	}
	return !p.inMill(sq) || p.allInMills(them)
}

func (p *Position) canFly(c Color) bool {
	return p.rules.Flying && p.st.onBoard[c.Index()] == 3
}

// LegalMoves appends every legal move of the side to move to buf[:0] and
// returns it. The result never contains duplicates.
func (p *Position) LegalMoves(buf []move.Move) []move.Move {
	moves := buf[:0]
	if p.st.phase == PhaseGameOver {
		return moves
	}
	switch p.st.action {
	case move.ActionPlace:
		for sq := move.Square(0); sq < NumSquares; sq++ {
			if p.st.squares[sq] == NoColor {
				moves = append(moves, move.NewPlace(sq))
			}
		}
	case move.ActionSlide:
		moves = p.appendSlides(moves, p.st.side)
	case move.ActionRemove:
		for sq := move.Square(0); sq < NumSquares; sq++ {
			if p.removable(sq) {
				moves = append(moves, move.NewRemove(sq))
			}
		}
	}
	return moves
}

func (p *Position) appendSlides(moves []move.Move, c Color) []move.Move {
	fly := p.canFly(c)
	for from := move.Square(0); from < NumSquares; from++ {
		if p.st.squares[from] != c {
			continue
		}
		if fly {
			for to := move.Square(0); to < NumSquares; to++ {
				if p.st.squares[to] == NoColor {
					moves = append(moves, move.NewSlide(from, to))
				}
			}
			continue
		}
		for _, to := range Adjacent[from] {
			if p.st.squares[to] == NoColor {
				moves = append(moves, move.NewSlide(from, to))
			}
		}
	}
	return moves
}

// mobility counts the slides available to c, ignoring whose turn it is.
func (p *Position) mobility(c Color) int {
	if p.canFly(c) {
		empty := 0
		for _, occ := range p.st.squares {
			if occ == NoColor {
				empty++
			}
		}
		return empty * 3
	}
	n := 0
	for from := move.Square(0); from < NumSquares; from++ {
		if p.st.squares[from] != c {
			continue
		}
		for _, to := range Adjacent[from] {
			if p.st.squares[to] == NoColor {
				n++
			}
		}
	}
	return n
}

func (p *Position) illegal(m move.Move, why string) error {
	return fmt.Errorf("%w: %v (%s)", ErrIllegalMove, m, why)
}

func (p *Position) validate(m move.Move) error {
	if p.st.phase == PhaseGameOver {
		return p.illegal(m, "game is over")
	}
	if m.Action() != p.st.action {
		return p.illegal(m, "expected a "+p.st.action.String())
	}
	to := m.To()
	if !to.Valid() {
		return p.illegal(m, "bad square")
	}
	switch m.Action() {
	case move.ActionPlace:
		if p.st.squares[to] != NoColor {
			return p.illegal(m, "point is occupied")
		}
	case move.ActionSlide:
		from := m.From()
		if !from.Valid() || p.st.squares[from] != p.st.side {
			return p.illegal(m, "no own piece to move")
		}
		if p.st.squares[to] != NoColor {
			return p.illegal(m, "point is occupied")
		}
		if !p.canFly(p.st.side) && !adjacent(from, to) {
			return p.illegal(m, "points are not connected")
		}
	case move.ActionRemove:
		if !p.removable(to) {
			return p.illegal(m, "piece cannot be removed")
		}
	}
	return nil
}

func adjacent(a, b move.Square) bool {
	for _, n := range Adjacent[a] {
		if n == b {
			return true
		}
	}
	return false
}

// MakeMove plays m. The side to move keeps the turn after closing a mill
// until it has made its removals.
func (p *Position) MakeMove(m move.Move) error {
	if err := p.validate(m); err != nil {
		return err
	}
	p.history = append(p.history, p.st)
	p.st.ply++
	us := p.st.side

	switch m.Action() {
	case move.ActionPlace:
		p.setInHand(us, p.st.inHand[us.Index()]-1)
		p.setSquare(m.To(), us)
		if p.st.inHand[0] == 0 && p.st.inHand[1] == 0 {
			// The last placement may still owe a removal; that removal
			// already belongs to the moving phase.
			p.setPhase(PhaseMoving)
		}
		p.afterPieceLanded(m.To())
	case move.ActionSlide:
		p.setSquare(m.From(), NoColor)
		p.setSquare(m.To(), us)
		p.setQuietMoves(p.st.quietMoves + 1)
		p.afterPieceLanded(m.To())
	case move.ActionRemove:
		p.setSquare(m.To(), NoColor)
		p.setQuietMoves(0)
		p.setPendingRemovals(p.st.pendingRemovals - 1)
		if p.totalPieces(us.Opponent()) < 3 {
			p.setPendingRemovals(0)
			p.finish(us)
			return nil
		}
		if p.st.pendingRemovals > 0 && p.hasRemovable() {
			return nil
		}
		p.setPendingRemovals(0)
		p.endTurn()
	}
	return nil
}

func (p *Position) afterPieceLanded(sq move.Square) {
	n := p.millsClosedAt(sq)
	if n > zobrist.MaxPendingRemovals {
		n = zobrist.MaxPendingRemovals
	}
	if n > 0 && p.st.onBoard[p.st.side.Opponent().Index()] > 0 {
		p.setPendingRemovals(int8(n))
		p.setAction(move.ActionRemove)
		return
	}
	p.endTurn()
}

func (p *Position) hasRemovable() bool {
	for sq := move.Square(0); sq < NumSquares; sq++ {
		if p.removable(sq) {
			return true
		}
	}
	return false
}

func (p *Position) totalPieces(c Color) int {
	return int(p.st.inHand[c.Index()] + p.st.onBoard[c.Index()])
}

// endTurn passes the move to the opponent and settles phase changes and
// game-ending conditions.
func (p *Position) endTurn() {
	next := p.st.side.Opponent()
	p.setSide(next)
	if p.st.phase == PhasePlacing {
		p.setAction(move.ActionPlace)
	} else {
		p.setAction(move.ActionSlide)
	}
	p.checkGameOver()
}

func (p *Position) checkGameOver() {
	side := p.st.side
	switch {
	case p.totalPieces(side) < 3:
		p.finish(side.Opponent())
	case p.totalPieces(side.Opponent()) < 3:
		p.finish(side)
	case p.st.phase == PhaseMoving && p.mobility(side) == 0:
		// Blocked.
		p.finish(side.Opponent())
	case p.st.phase == PhasePlacing && p.st.onBoard[0]+p.st.onBoard[1] == NumSquares:
		p.finish(NoColor)
	case p.st.phase == PhaseMoving && p.rules.MaxMovesWithoutRemoval > 0 &&
		p.st.quietMoves >= p.rules.MaxMovesWithoutRemoval:
		p.finish(NoColor)
	}
}

func (p *Position) finish(winner Color) {
	p.st.winner = winner
	p.st.hash ^= p.zobrist.Winner(int(winner))
	p.setPhase(PhaseGameOver)
	p.setAction(move.ActionNone)
}

// UnmakeMove takes back the last move, restoring the position and its
// fingerprint exactly.
func (p *Position) UnmakeMove() error {
	if len(p.history) == 0 {
		return ErrNothingToUnmake
	}
	p.st = p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	return nil
}

// Depth is the number of moves that can be taken back.
func (p *Position) Depth() int {
	return len(p.history)
}
