package alphabeta

import (
	"fmt"
	"math"
	"sort"

	"github.com/domino14/morris/board"
	"github.com/domino14/morris/move"
)

// HashMoveBonus puts the table's best move for a position ahead of every
// statically better looking move.
const HashMoveBonus = 10000

func orderKey(n *Node) int {
	if n.Hinted {
		return n.Estimate + HashMoveBonus
	}
	return n.Estimate
}

// expand creates a child for every legal move of the position at id and
// orders them best first.
func (s *Solver) expand(pos Position, id NodeID) ([]NodeID, error) {
	s.moveBuf = pos.LegalMoves(s.moveBuf)
	if len(s.moveBuf) == 0 {
		return nil, nil
	}
	hint := move.None
	if s.ttable != nil {
		hint = s.ttable.Hint(pos.Hash())
	}
	side := pos.SideToMove()
	for _, m := range s.moveBuf {
		est, changed, err := s.estimate(pos, side, m)
		if err != nil {
			return nil, err
		}
		c := s.tree.alloc(id, m, s.rng.Uint64n(math.MaxUint64))
		n := s.tree.node(c)
		n.Estimate = est
		n.SideChanged = changed
		n.Hinted = !hint.IsNone() && m == hint
	}
	children := s.tree.node(id).Children
	sort.Slice(children, func(i, j int) bool {
		a, b := s.tree.node(children[i]), s.tree.node(children[j])
		return better(orderKey(a), a, orderKey(b), b)
	})
	return children, nil
}

// estimate is the one-ply static score of m from the mover's point of view.
func (s *Solver) estimate(pos Position, side board.Color, m move.Move) (int, bool, error) {
	if err := pos.MakeMove(m); err != nil {
		return 0, false, fmt.Errorf("order move %v: %w", m, err)
	}
	v := pos.Evaluate()
	changed := pos.SideToMove() != side
	if err := pos.UnmakeMove(); err != nil {
		return 0, false, fmt.Errorf("order move %v: %w", m, err)
	}
	if changed {
		v = -v
	}
	return v, changed, nil
}

// sortRootChildren orders the root's children for the next iteration:
// children resolved in the last one by value, the rest behind them by
// their static order.
func (s *Solver) sortRootChildren() {
	children := s.tree.root().Children
	sort.Slice(children, func(i, j int) bool {
		a, b := s.tree.node(children[i]), s.tree.node(children[j])
		if a.Resolved != b.Resolved {
			return a.Resolved
		}
		if !a.Resolved {
			return better(orderKey(a), a, orderKey(b), b)
		}
		return better(a.ValueForParent(), a, b.ValueForParent(), b)
	})
}

// bestRootChild picks the resolved root child with the highest value, or
// NoNode when none was resolved.
func (s *Solver) bestRootChild() NodeID {
	best := NoNode
	for _, c := range s.tree.root().Children {
		n := s.tree.node(c)
		if !n.Resolved {
			continue
		}
		if best == NoNode {
			best = c
			continue
		}
		b := s.tree.node(best)
		if better(n.ValueForParent(), n, b.ValueForParent(), b) {
			best = c
		}
	}
	return best
}

// staticBestRootChild is the fallback when no root child was resolved.
func (s *Solver) staticBestRootChild() NodeID {
	best := NoNode
	for _, c := range s.tree.root().Children {
		n := s.tree.node(c)
		if best == NoNode {
			best = c
			continue
		}
		b := s.tree.node(best)
		if better(n.Estimate, n, b.Estimate, b) {
			best = c
		}
	}
	return best
}
