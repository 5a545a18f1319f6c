package alphabeta

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/domino14/morris/board"
	"github.com/domino14/morris/move"
	"github.com/domino14/morris/ttable"
	"github.com/domino14/morris/zobrist"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

var testZobrist = zobrist.New()

var longBudget = Budget{MaxDepth: 3, TimeLimit: time.Minute}

// unshaped searches exactly the requested depth.
func unshaped() Options {
	return Options{IterativeDeepening: true, Seed: 42}
}

func layout(white, black []string) string {
	pts := []byte(strings.Repeat(".", board.NumSquares))
	for _, s := range white {
		sq, _ := move.ParseSquare(s)
		pts[sq] = 'W'
	}
	for _, s := range black {
		sq, _ := move.ParseSquare(s)
		pts[sq] = 'B'
	}
	return string(pts)
}

func fromNotation(t *testing.T, rules board.Rules, notation string) *board.Position {
	t.Helper()
	p, err := board.FromNotation(rules, testZobrist, notation)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestInvalidBudget(t *testing.T) {
	is := is.New(t)
	s := NewSolver(ttable.New(ttable.MinCapacity), DefaultOptions())
	pos := newFakePosition(numberTree(&fakeNode{children: []*fakeNode{leaf(1)}}))
	for _, b := range []Budget{
		{MaxDepth: 0, TimeLimit: time.Second},
		{MaxDepth: -1, TimeLimit: time.Second},
		{MaxDepth: 3, TimeLimit: 0},
	} {
		_, err := s.FindBestMove(context.Background(), pos, b)
		is.True(errors.Is(err, ErrInvalidBudget))
	}
}

func TestNoLegalMoves(t *testing.T) {
	is := is.New(t)
	s := NewSolver(ttable.New(ttable.MinCapacity), DefaultOptions())
	res, err := s.FindBestMove(context.Background(), newFakePosition(leaf(5)), longBudget)
	is.NoErr(err)
	is.Equal(res.Move, move.None)
}

func TestBoundSoundness(t *testing.T) {
	is := is.New(t)
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 30; trial++ {
		height := 2 + trial%4
		root := randomTree(rng, height)
		tt := ttable.New(1 << 14)
		s := NewSolver(tt, unshaped())
		pos := newFakePosition(root)

		res, err := s.FindBestMove(context.Background(), pos, Budget{MaxDepth: height, TimeLimit: time.Minute})
		is.NoErr(err)
		is.Equal(res.Depth, height)
		is.Equal(res.Value, exactValue(root))
		is.Equal(len(pos.path), 1)

		// The chosen move really achieves the root value.
		best := root.children[res.Move.To()]
		v := exactValue(best)
		if !best.sameSide {
			v = -v
		}
		is.Equal(v, res.Value)

		// Every stored result of the full-depth iteration is consistent
		// with the true value.
		checked := 0
		walk(root, 0, func(n *fakeNode, ply int) {
			key := uint64(n.id+1) * 0x9E3779B97F4A7C15
			sv, bound, _ := tt.Probe(key, height-ply, Infinity, -Infinity)
			if sv == ttable.ValueUnknown {
				return
			}
			checked++
			exact := exactValue(n)
			switch bound {
			case ttable.BoundExact:
				is.Equal(sv, exact)
			case ttable.BoundLower:
				is.True(exact >= sv)
			case ttable.BoundUpper:
				is.True(exact <= sv)
			}
		})
		is.True(checked > 0)
	}
}

func TestSearchWithoutTable(t *testing.T) {
	is := is.New(t)
	rng := rand.New(rand.NewPCG(9, 9))
	root := randomTree(rng, 4)
	s := NewSolver(nil, unshaped())
	res, err := s.FindBestMove(context.Background(), newFakePosition(root), Budget{MaxDepth: 4, TimeLimit: time.Minute})
	is.NoErr(err)
	is.Equal(res.Value, exactValue(root))
	is.Equal(res.Stats.HashHitCount, uint64(0))
	is.Equal(len(res.PV), 1)
}

func TestSameSideMovesKeepTheWindow(t *testing.T) {
	is := is.New(t)
	// The first move keeps the turn (a mill), the second must then be
	// chosen by the same side.
	root := numberTree(&fakeNode{children: []*fakeNode{
		{sameSide: true, children: []*fakeNode{leaf(-30), leaf(-10)}},
		leaf(5),
	}})
	s := NewSolver(ttable.New(ttable.MinCapacity), unshaped())
	res, err := s.FindBestMove(context.Background(), newFakePosition(root), Budget{MaxDepth: 2, TimeLimit: time.Minute})
	is.NoErr(err)
	is.Equal(res.Move, move.NewPlace(0))
	is.Equal(res.Value, 30)
	is.Equal(len(res.PV), 2)
	is.Equal(res.PV[1], move.NewPlace(0))
}

func TestForcedLossSynthetic(t *testing.T) {
	is := is.New(t)
	// Every reply hands the opponent a won game...
	root := numberTree(&fakeNode{children: []*fakeNode{
		leaf(board.ValueWin), leaf(board.ValueWin), leaf(board.ValueWin),
	}})
	s := NewSolver(ttable.New(ttable.MinCapacity), unshaped())
	res, err := s.FindBestMove(context.Background(), newFakePosition(root), Budget{MaxDepth: 1, TimeLimit: time.Minute})
	is.NoErr(err)
	is.True(!res.Move.IsNone())
	is.Equal(res.Value, -board.ValueWin)

	// ...unless one of them escapes.
	root = numberTree(&fakeNode{children: []*fakeNode{
		leaf(board.ValueWin), leaf(board.ValueWin), leaf(-5), leaf(board.ValueWin),
	}})
	s.ResetTable()
	res, err = s.FindBestMove(context.Background(), newFakePosition(root), Budget{MaxDepth: 1, TimeLimit: time.Minute})
	is.NoErr(err)
	is.Equal(res.Move, move.NewPlace(2))
	is.Equal(res.Value, 5)
}

func TestQuickerWinsScoreHigher(t *testing.T) {
	is := is.New(t)
	// A win now beats a win in two.
	root := numberTree(&fakeNode{children: []*fakeNode{
		{value: 0, children: []*fakeNode{
			{value: 0, children: []*fakeNode{leaf(-board.ValueWin)}},
		}},
		leaf(-board.ValueWin),
	}})
	s := NewSolver(ttable.New(ttable.MinCapacity), unshaped())
	res, err := s.FindBestMove(context.Background(), newFakePosition(root), Budget{MaxDepth: 3, TimeLimit: time.Minute})
	is.NoErr(err)
	is.Equal(res.Move, move.NewPlace(1))
	is.Equal(res.Value, board.ValueWin+2)
}

func TestDeterminism(t *testing.T) {
	is := is.New(t)
	pos, err := board.NewPosition(board.DefaultRules(), testZobrist)
	is.NoErr(err)
	for _, s := range []string{"a7", "d6", "g1", "b4"} {
		m, _ := move.Parse(s)
		is.NoErr(pos.MakeMove(m))
	}
	opts := DefaultOptions()
	opts.Seed = 1234

	run := func(s *Solver) Result {
		res, err := s.FindBestMove(context.Background(), pos, Budget{MaxDepth: 4, TimeLimit: time.Minute})
		is.NoErr(err)
		is.True(!res.Cancelled)
		return res
	}
	first := run(NewSolver(ttable.New(1<<16), opts))
	second := run(NewSolver(ttable.New(1<<16), opts))
	is.Equal(first.Move, second.Move)
	is.Equal(first.Value, second.Value)
	is.Equal(first.Stats, second.Stats)
	is.Equal(first.PV, second.PV)

	// A logically cleared table behaves like a fresh one.
	s := NewSolver(ttable.New(1<<16), opts)
	run(s)
	s.ResetTable()
	third := run(s)
	is.Equal(first.Move, third.Move)
	is.Equal(first.Stats, third.Stats)
}

func TestEmptyBoardPlacing(t *testing.T) {
	is := is.New(t)
	pos, err := board.NewPosition(board.DefaultRules(), testZobrist)
	is.NoErr(err)
	h := pos.Hash()
	s := NewSolver(ttable.New(1<<16), DefaultOptions())
	res, err := s.FindBestMove(context.Background(), pos, Budget{MaxDepth: 2, TimeLimit: time.Minute})
	is.NoErr(err)
	is.Equal(res.Move.Action(), move.ActionPlace)
	is.True(lo.Contains(pos.LegalMoves(nil), res.Move))
	is.True(res.Stats.NodeCount > 0)
	is.True(res.Stats.EvaluatedNodeCount > 0)
	is.True(res.Value >= -board.ValueWin && res.Value <= board.ValueWin)
	is.Equal(pos.Hash(), h)
	is.Equal(pos.Depth(), 0)
}

func TestBlocksTheOnlyThreat(t *testing.T) {
	is := is.New(t)
	rules := board.Rules{PiecesPerSide: 9, Flying: true}
	// Black threatens g4-g7 closing a7 d7 g7 and taking one of white's
	// three pieces. White must fly onto g7.
	pts := layout([]string{"b2", "d3", "f4"}, []string{"a7", "d7", "g4", "a1"})
	pos := fromNotation(t, rules, pts+" w s 0 0 0 0")
	s := NewSolver(ttable.New(1<<16), unshaped())
	res, err := s.FindBestMove(context.Background(), pos, longBudget)
	is.NoErr(err)
	is.Equal(res.Move.Action(), move.ActionSlide)
	is.Equal(res.Move.To().String(), "g7")
	is.True(res.Value > -board.ValueWin)
}

func TestForcedLossOnBoard(t *testing.T) {
	is := is.New(t)
	rules := board.Rules{PiecesPerSide: 9, Flying: true}
	// g4 can close a mill on either g7 or g1; white can only cover one.
	pts := layout([]string{"b2", "d3", "f4"}, []string{"a7", "d7", "a1", "d1", "g4"})
	pos := fromNotation(t, rules, pts+" w s 0 0 0 0")
	s := NewSolver(ttable.New(1<<16), unshaped())
	res, err := s.FindBestMove(context.Background(), pos, longBudget)
	is.NoErr(err)
	is.True(lo.Contains(pos.LegalMoves(nil), res.Move))
	is.True(res.Value <= -board.ValueWin)
}

// The same board with a different quiet-move count is a different
// position; a table filled by one must not change the other's value.
func TestTableSharedAcrossQuietCounts(t *testing.T) {
	is := is.New(t)
	rules := board.Rules{PiecesPerSide: 9, MaxMovesWithoutRemoval: 100}
	pts := layout([]string{"a7", "g1", "d6", "c3"}, []string{"g7", "a1", "f4", "b4"})
	nearDraw := pts + " w s 0 0 0 98"
	budget := Budget{MaxDepth: 2, TimeLimit: time.Minute}

	s := NewSolver(ttable.New(1<<16), unshaped())
	want, err := s.FindBestMove(context.Background(), fromNotation(t, rules, nearDraw), budget)
	is.NoErr(err)
	is.Equal(want.Value, board.ValueDraw)

	shared := NewSolver(ttable.New(1<<16), unshaped())
	_, err = shared.FindBestMove(context.Background(), fromNotation(t, rules, pts+" w s 0 0 0 0"), budget)
	is.NoErr(err)
	got, err := shared.FindBestMove(context.Background(), fromNotation(t, rules, nearDraw), budget)
	is.NoErr(err)
	is.Equal(got.Value, want.Value)
}

// millPosition has white one slide (g4-g7) away from a mill whose removal
// leaves black with two pieces.
func millPosition(t *testing.T) *board.Position {
	pts := layout([]string{"a7", "d7", "g4"}, []string{"b2", "d3", "f2"})
	return fromNotation(t, board.DefaultRules(), pts+" w s 0 0 0 0")
}

func TestCancellationKeepsWinningMove(t *testing.T) {
	is := is.New(t)
	pos := millPosition(t)
	h := pos.Hash()
	s := NewSolver(ttable.New(1<<18), DefaultOptions())

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Cancel()
	}()
	res, err := s.FindBestMove(context.Background(), pos, Budget{MaxDepth: MaxSearchDepth, TimeLimit: time.Hour})
	is.NoErr(err)
	is.True(res.Cancelled)
	is.Equal(res.Move.String(), "g4-g7")
	is.Equal(pos.Hash(), h)
	is.Equal(pos.Depth(), 0)
}

// A timer or Cancel meant for an earlier search must not stop the next.
func TestStaleCancelIgnored(t *testing.T) {
	is := is.New(t)
	s := NewSolver(ttable.New(1<<16), unshaped())
	pos := millPosition(t)
	_, err := s.FindBestMove(context.Background(), pos, longBudget)
	is.NoErr(err)

	stale := s.cancelled
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				stale.Store(true)
				runtime.Gosched()
			}
		}
	}()
	res, err := s.FindBestMove(context.Background(), pos, longBudget)
	close(done)
	is.NoErr(err)
	is.True(!res.Cancelled)
	is.Equal(res.Depth, longBudget.MaxDepth)
}

func TestOptionsWhileSetting(t *testing.T) {
	is := is.New(t)
	s := NewSolver(nil, DefaultOptions())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 100 {
			opts := DefaultOptions()
			opts.Seed = uint64(i)
			s.SetOptions(opts)
		}
	}()
	for range 100 {
		is.True(s.Options().IterativeDeepening)
	}
	<-done
	is.Equal(s.Options().Seed, uint64(99))
}

func TestCancelledContext(t *testing.T) {
	is := is.New(t)
	pos := millPosition(t)
	s := NewSolver(ttable.New(1<<16), DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.FindBestMove(ctx, pos, Budget{MaxDepth: MaxSearchDepth, TimeLimit: time.Hour})
	is.NoErr(err)
	is.True(res.Cancelled)
	// Even the static ordering finds the mill.
	is.Equal(res.Move.String(), "g4-g7")
}

func TestTimeLimit(t *testing.T) {
	is := is.New(t)
	pos := millPosition(t)
	s := NewSolver(ttable.New(1<<16), DefaultOptions())
	start := time.Now()
	res, err := s.FindBestMove(context.Background(), pos, Budget{MaxDepth: MaxSearchDepth, TimeLimit: 100 * time.Millisecond})
	is.NoErr(err)
	is.True(res.Cancelled)
	is.True(time.Since(start) < 10*time.Second)
	is.Equal(res.Move.String(), "g4-g7")
}

func TestTraceTree(t *testing.T) {
	is := is.New(t)
	rng := rand.New(rand.NewPCG(1, 2))
	root := randomTree(rng, 3)
	opts := unshaped()
	opts.Trace = true
	s := NewSolver(ttable.New(ttable.MinCapacity), opts)
	_, err := s.FindBestMove(context.Background(), newFakePosition(root), Budget{MaxDepth: 3, TimeLimit: time.Minute})
	is.NoErr(err)

	nodes := s.Nodes()
	is.True(len(nodes) > 1+len(root.children))
	for i := range nodes {
		n := &nodes[i]
		is.True(n.Diag != nil)
		moves := lo.Map(n.Children, func(c NodeID, _ int) move.Move { return nodes[c].Move })
		is.Equal(len(lo.Uniq(moves)), len(moves))
		for _, c := range n.Children {
			is.Equal(nodes[c].Parent, NodeID(i))
		}
	}
	var buf bytes.Buffer
	is.NoErr(s.WriteDot(&buf))
	is.True(strings.HasPrefix(buf.String(), "digraph {"))

	// Without trace only the root and its children survive.
	s = NewSolver(ttable.New(ttable.MinCapacity), unshaped())
	_, err = s.FindBestMove(context.Background(), newFakePosition(root), Budget{MaxDepth: 3, TimeLimit: time.Minute})
	is.NoErr(err)
	is.Equal(len(s.Nodes()), 1+len(root.children))
}

func TestDepthPolicy(t *testing.T) {
	is := is.New(t)
	p := DefaultDepthPolicy()
	is.Equal(p.Shape(4, board.PhasePlacing, 18, 24), 3)
	is.Equal(p.Shape(4, board.PhasePlacing, 2, 10), 4)
	is.Equal(p.Shape(4, board.PhaseMoving, 0, 20), 5)
	is.Equal(p.Shape(4, board.PhaseMoving, 0, 3), 6)
	is.Equal(p.Shape(1, board.PhasePlacing, 18, 24), 1)
	is.Equal(p.Shape(MaxSearchDepth, board.PhaseMoving, 0, 2), MaxSearchDepth)
}
