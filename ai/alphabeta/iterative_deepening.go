package alphabeta

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/domino14/morris/move"
)

// deepen searches to depth 1, 2, ... maxDepth, ordering the root's children
// by the values of the previous iteration. The result comes from the last
// completed iteration.
func (s *Solver) deepen(pos Position, maxDepth int) (Result, error) {
	start := 1
	if !s.opts.IterativeDeepening {
		start = maxDepth
	}
	var res Result
	for d := start; d <= maxDepth; d++ {
		if d > start && s.opts.Trace {
			s.tree.keepRootChildren()
		}
		log.Debug().Int("plies", d).Msg("deepening-iteratively")
		val, complete, err := s.searchRoot(pos, d)
		if err != nil {
			return res, err
		}
		if !complete {
			if res.Depth == 0 {
				res = s.partialResult(d)
			}
			res.Cancelled = true
			break
		}
		best := s.tree.node(s.bestRootChild())
		res = Result{Move: best.Move, Value: val, Depth: d}
		log.Debug().Int("value", val).Int("ply", d).Str("move", best.Move.String()).
			Uint64("nodes", s.stats.NodeCount).Msg("best-val")
		s.sortRootChildren()
	}
	return res, nil
}

// partialResult is used when the first iteration to run was cancelled.
// Children resolved before the cancellation are trusted; without any, the
// move with the best static score is chosen.
func (s *Solver) partialResult(depth int) Result {
	if b := s.bestRootChild(); b != NoNode {
		n := s.tree.node(b)
		return Result{Move: n.Move, Value: n.ValueForParent(), Depth: depth}
	}
	n := s.tree.node(s.staticBestRootChild())
	log.Debug().Str("move", n.Move.String()).Msg("using-static-ordering")
	return Result{Move: n.Move, Value: n.Estimate}
}

// principalVariation follows the table's best moves from first. It stops
// at the first hint that is missing or not legal, or after maxLen moves.
func (s *Solver) principalVariation(pos Position, first move.Move, maxLen int) []move.Move {
	pv := []move.Move{first}
	if s.ttable == nil {
		return pv
	}
	if err := pos.MakeMove(first); err != nil {
		return pv
	}
	made := 1
	defer func() {
		for ; made > 0; made-- {
			pos.UnmakeMove()
		}
	}()
	for len(pv) < maxLen && !pos.IsTerminal() {
		h := s.ttable.Hint(pos.Hash())
		if h.IsNone() {
			break
		}
		s.moveBuf = pos.LegalMoves(s.moveBuf)
		if !lo.Contains(s.moveBuf, h) {
			break
		}
		if err := pos.MakeMove(h); err != nil {
			break
		}
		made++
		pv = append(pv, h)
	}
	return pv
}
