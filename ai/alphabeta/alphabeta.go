// Package alphabeta chooses moves for a mill game with a depth-limited
// negamax search with alpha-beta pruning, backed by a shared
// transposition table.
package alphabeta

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/morris/board"
	"github.com/domino14/morris/move"
	"github.com/domino14/morris/ttable"
)

// thanks Wikipedia:
/*
function negamax(node, depth, α, β, color) is
    if depth = 0 or node is a terminal node then
        return color × the heuristic value of node

    childNodes := generateMoves(node)
    childNodes := orderMoves(childNodes)
    value := −∞
    foreach child in childNodes do
        value := max(value, −negamax(child, depth − 1, −β, −α, −color))
        α := max(α, value)
        if α ≥ β then
            break (* cut-off *)
    return value
**/
// In a mill game closing a mill does not pass the turn, so the negation
// and the window swap only happen when the side to move changes.

// Infinity is larger than any score a position can evaluate to.
const Infinity = 32000

var ErrInvalidBudget = errors.New("invalid search budget")

// Position is what the search needs from a game position. A search leaves
// the position exactly as it found it.
type Position interface {
	// LegalMoves appends the legal moves to buf[:0]. There are no
	// duplicates.
	LegalMoves(buf []move.Move) []move.Move
	MakeMove(m move.Move) error
	UnmakeMove() error
	Hash() uint64
	IsTerminal() bool
	// Evaluate scores the position for the side to move.
	Evaluate() int
	SideToMove() board.Color
	Phase() board.Phase
	PiecesInHand() int
}

type Budget struct {
	MaxDepth  int
	TimeLimit time.Duration
}

type Stats struct {
	NodeCount          uint64
	EvaluatedNodeCount uint64
	HashHitCount       uint64
}

type Result struct {
	Move  move.Move
	Value int
	// Depth is the deepest search the move is backed by; zero when the move
	// only comes from static ordering.
	Depth     int
	Cancelled bool
	PV        []move.Move
	Stats     Stats
}

type Options struct {
	// Seed makes the tie-break keys, and therefore the choice between
	// equally good moves, reproducible.
	Seed               uint64
	IterativeDeepening bool
	// Trace keeps the whole tree of the last iteration, with Diagnostics
	// on every node.
	Trace bool
	Depth DepthPolicy
}

func DefaultOptions() Options {
	return Options{
		IterativeDeepening: true,
		Depth:              DefaultDepthPolicy(),
	}
}

// Solver runs one search at a time. Cancel may be called from any
// goroutine.
type Solver struct {
	mu     sync.Mutex
	opts   Options
	ttable *ttable.TranspositionTable
	// Every search gets its own flag, so a timer left over from an
	// earlier search cannot stop a later one.
	current   atomic.Pointer[atomic.Bool]
	cancelled *atomic.Bool

	rng     *frand.RNG
	tree    tree
	moveBuf []move.Move
	stats   Stats
}

// NewSolver creates a solver using tt, which may be shared with other
// solvers. A nil tt disables the table.
func NewSolver(tt *ttable.TranspositionTable, opts Options) *Solver {
	return &Solver{opts: opts, ttable: tt}
}

func (s *Solver) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *Solver) SetOptions(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

func (s *Solver) TranspositionTable() *ttable.TranspositionTable {
	return s.ttable
}

// Cancel asks a running search to stop. The search returns the best move
// found so far.
func (s *Solver) Cancel() {
	if flag := s.current.Load(); flag != nil {
		flag.Store(true)
	}
}

// ResetTable forgets every stored result.
func (s *Solver) ResetTable() {
	if s.ttable != nil {
		s.ttable.Clear()
	}
}

func (s *Solver) reseed() {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], s.opts.Seed)
	s.rng = frand.NewCustom(seed[:], 1024, 12)
}

// FindBestMove searches pos within budget. The search stops early when the
// time limit passes, ctx is done or Cancel is called; the result is then
// the best move found so far and Cancelled is set. A position without
// legal moves yields move.None.
func (s *Solver) FindBestMove(ctx context.Context, pos Position, budget Budget) (Result, error) {
	if budget.MaxDepth <= 0 || budget.TimeLimit <= 0 {
		return Result{}, fmt.Errorf("%w: depth %d, time limit %v",
			ErrInvalidBudget, budget.MaxDepth, budget.TimeLimit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tstart := time.Now()
	flag := new(atomic.Bool)
	s.cancelled = flag
	s.current.Store(flag)
	s.stats = Stats{}
	s.reseed()
	s.tree.trace = s.opts.Trace
	s.tree.reset()

	cancel := func() { flag.Store(true) }
	watchdog := time.AfterFunc(budget.TimeLimit, cancel)
	defer watchdog.Stop()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	children, err := s.expand(pos, rootID)
	if err != nil {
		return Result{}, err
	}
	if len(children) == 0 {
		log.Debug().Msg("no-legal-moves")
		return Result{Move: move.None, Stats: s.stats}, nil
	}

	depth := s.opts.Depth.Shape(min(budget.MaxDepth, MaxSearchDepth),
		pos.Phase(), pos.PiecesInHand(), len(children))
	log.Debug().Int("requested-depth", budget.MaxDepth).Int("depth", depth).
		Str("phase", pos.Phase().String()).
		Int("root-moves", len(children)).
		Bool("iterative-deepening", s.opts.IterativeDeepening).
		Msg("search-config")

	res, err := s.deepen(pos, depth)
	if err != nil {
		return Result{}, err
	}
	if res.Depth > 0 {
		res.PV = s.principalVariation(pos, res.Move, res.Depth)
	} else {
		res.PV = []move.Move{res.Move}
	}
	res.Stats = s.stats

	ev := log.Info()
	if s.ttable != nil {
		st := s.ttable.Stats()
		ev = ev.Uint64("ttable-lookups", st.Lookups).
			Uint64("ttable-hits", st.Hits).
			Uint64("ttable-stores", st.Stores).
			Uint64("ttable-t2collisions", st.Collisions)
	}
	ev.Str("move", res.Move.String()).
		Int("value", res.Value).
		Int("depth", res.Depth).
		Bool("cancelled", res.Cancelled).
		Uint64("nodes", s.stats.NodeCount).
		Uint64("evaluated", s.stats.EvaluatedNodeCount).
		Uint64("hash-hits", s.stats.HashHitCount).
		Int("tree-size", s.tree.size()).
		Float64("time-elapsed-sec", time.Since(tstart).Seconds()).
		Msg("solve-returning")
	return res, nil
}

// searchRoot searches every root child to depth. It reports false when the
// search was cancelled before all of them were resolved.
func (s *Solver) searchRoot(pos Position, depth int) (int, bool, error) {
	children := s.tree.root().Children
	for _, c := range children {
		n := s.tree.node(c)
		n.Resolved = false
		n.IsHash = false
	}
	side := pos.SideToMove()
	best := -Infinity
	for _, c := range children {
		if s.cancelled.Load() {
			return best, false, nil
		}
		// Once a value is known, later children only need to show they
		// are worse; equal ones still get their true value so ties are
		// real ties.
		alpha := -Infinity
		if best > -Infinity {
			alpha = best - 1
		}
		v, ok, err := s.searchChild(pos, side, c, 0, depth, alpha, Infinity)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return best, false, nil
		}
		s.tree.node(c).Resolved = true
		best = max(best, v)
	}
	r := s.tree.root()
	r.Value = best
	if b := s.bestRootChild(); b != NoNode {
		s.save(pos.Hash(), best, depth, ttable.BoundExact, s.tree.node(b).Move)
	}
	return best, true, nil
}

// searchChild plays the move of node c and returns its value from the
// point of view of side, the side to move before the move. It reports
// false when the value is incomplete because the search was cancelled.
func (s *Solver) searchChild(pos Position, side board.Color, c NodeID, ply, depth, alpha, beta int) (int, bool, error) {
	m := s.tree.node(c).Move
	if err := pos.MakeMove(m); err != nil {
		return 0, false, fmt.Errorf("search move %v: %w", m, err)
	}
	s.stats.NodeCount++
	flip := pos.SideToMove() != side
	ca, cb := alpha, beta
	if flip {
		ca, cb = -beta, -alpha
	}

	v, ok, hit := 0, true, false
	if s.ttable != nil {
		if tv, _, _ := s.ttable.Probe(pos.Hash(), depth-1, ca, cb); tv != ttable.ValueUnknown {
			v, hit = tv, true
			s.stats.HashHitCount++
		}
	}
	if !hit {
		var err error
		v, ok, err = s.negamax(pos, c, ply+1, depth-1, ca, cb)
		if err != nil {
			pos.UnmakeMove()
			return 0, false, err
		}
	}
	if err := pos.UnmakeMove(); err != nil {
		return 0, false, fmt.Errorf("unmake move %v: %w", m, err)
	}

	n := s.tree.node(c)
	n.Value = v
	n.IsHash = hit
	n.SideChanged = flip
	if flip {
		v = -v
	}
	return v, ok, nil
}

func (s *Solver) negamax(pos Position, id NodeID, ply, depth, alpha, beta int) (int, bool, error) {
	if s.cancelled.Load() {
		if d := s.tree.node(id).Diag; d != nil {
			d.Cancelled = true
		}
		return 0, false, nil
	}
	if depth <= 0 || pos.IsTerminal() {
		return s.evaluate(pos, id, depth), true, nil
	}
	children, err := s.expand(pos, id)
	if err != nil {
		return 0, false, err
	}
	if len(children) == 0 {
		return s.evaluate(pos, id, depth), true, nil
	}

	alphaOrig := alpha
	side := pos.SideToMove()
	best := -Infinity
	bestMove := move.None
	complete, pruned := true, false
	for _, c := range children {
		v, ok, err := s.searchChild(pos, side, c, ply, depth, alpha, beta)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			complete = false
			break
		}
		if v > best {
			best = v
			bestMove = s.tree.node(c).Move
		}
		alpha = max(alpha, best)
		if alpha >= beta {
			pruned = true
			break // beta cut-off
		}
	}

	bound := ttable.BoundExact
	if best <= alphaOrig {
		bound = ttable.BoundUpper
	} else if best >= beta {
		bound = ttable.BoundLower
	}
	n := s.tree.node(id)
	if best == -Infinity {
		// Cancelled before the first child finished. The caller
		// discards this value.
		best = 0
	}
	n.Value = best
	if n.Diag != nil {
		*n.Diag = Diagnostics{
			Depth:     depth,
			Alpha:     alphaOrig,
			Beta:      beta,
			Bound:     bound,
			Pruned:    pruned,
			Cancelled: !complete,
			Side:      side,
		}
	}
	if complete {
		s.save(pos.Hash(), best, depth, bound, bestMove)
	}
	if !s.opts.Trace {
		s.tree.truncate(id)
	}
	return best, complete, nil
}

// evaluate scores a leaf. Decided games are adjusted by the remaining depth
// so that quicker wins and slower losses score better.
func (s *Solver) evaluate(pos Position, id NodeID, depth int) int {
	v := pos.Evaluate()
	if pos.IsTerminal() {
		if v > 0 {
			v += depth
		} else if v < 0 {
			v -= depth
		}
	}
	s.stats.EvaluatedNodeCount++
	n := s.tree.node(id)
	n.Evaluated = true
	n.Value = v
	if n.Diag != nil {
		n.Diag.Evaluated = true
		n.Diag.Depth = depth
		n.Diag.Side = pos.SideToMove()
	}
	return v
}

func (s *Solver) save(key uint64, value, depth int, bound ttable.Bound, best move.Move) {
	if s.ttable == nil {
		return
	}
	s.ttable.Save(key, value, depth, bound, best)
}
