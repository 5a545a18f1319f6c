package alphabeta

import (
	"math/rand/v2"

	"github.com/domino14/morris/board"
	"github.com/domino14/morris/move"
)

// fakeNode is a node of a hand-built game tree. value is the static score
// for the side to move at the node; sameSide marks a move into the node
// that keeps the turn, like closing a mill.
type fakeNode struct {
	id       int
	value    int
	sameSide bool
	children []*fakeNode
}

// fakePosition walks a fakeNode tree. Child i is reached with a placement
// on square i.
type fakePosition struct {
	path  []*fakeNode
	sides []board.Color
}

func newFakePosition(root *fakeNode) *fakePosition {
	return &fakePosition{path: []*fakeNode{root}, sides: []board.Color{board.White}}
}

func (f *fakePosition) cur() *fakeNode {
	return f.path[len(f.path)-1]
}

func (f *fakePosition) LegalMoves(buf []move.Move) []move.Move {
	buf = buf[:0]
	for i := range f.cur().children {
		buf = append(buf, move.NewPlace(move.Square(i)))
	}
	return buf
}

func (f *fakePosition) MakeMove(m move.Move) error {
	i := int(m.To())
	if m.Action() != move.ActionPlace || i >= len(f.cur().children) {
		return board.ErrIllegalMove
	}
	c := f.cur().children[i]
	side := f.SideToMove()
	if !c.sameSide {
		side = side.Opponent()
	}
	f.path = append(f.path, c)
	f.sides = append(f.sides, side)
	return nil
}

func (f *fakePosition) UnmakeMove() error {
	if len(f.path) == 1 {
		return board.ErrNothingToUnmake
	}
	f.path = f.path[:len(f.path)-1]
	f.sides = f.sides[:len(f.sides)-1]
	return nil
}

func (f *fakePosition) Hash() uint64 {
	return uint64(f.cur().id+1) * 0x9E3779B97F4A7C15
}

func (f *fakePosition) IsTerminal() bool {
	return len(f.cur().children) == 0
}

func (f *fakePosition) Evaluate() int {
	return f.cur().value
}

func (f *fakePosition) SideToMove() board.Color {
	return f.sides[len(f.sides)-1]
}

func (f *fakePosition) Phase() board.Phase {
	return board.PhaseMoving
}

func (f *fakePosition) PiecesInHand() int {
	return 0
}

// randomTree builds a tree with every leaf at exactly height plies.
func randomTree(rng *rand.Rand, height int) *fakeNode {
	id := 0
	var build func(h int) *fakeNode
	build = func(h int) *fakeNode {
		n := &fakeNode{id: id, value: rng.IntN(201) - 100}
		id++
		if h == 0 {
			return n
		}
		k := 1 + rng.IntN(4)
		for i := 0; i < k; i++ {
			c := build(h - 1)
			c.sameSide = rng.IntN(5) == 0
			n.children = append(n.children, c)
		}
		return n
	}
	return build(height)
}

// exactValue is the full minimax value of n for its side to move.
func exactValue(n *fakeNode) int {
	if len(n.children) == 0 {
		return n.value
	}
	best := -Infinity
	for _, c := range n.children {
		v := exactValue(c)
		if !c.sameSide {
			v = -v
		}
		best = max(best, v)
	}
	return best
}

func walk(n *fakeNode, ply int, f func(n *fakeNode, ply int)) {
	f(n, ply)
	for _, c := range n.children {
		walk(c, ply+1, f)
	}
}

func leaf(value int) *fakeNode {
	return &fakeNode{value: value}
}

// numberTree assigns ids in depth-first order.
func numberTree(root *fakeNode) *fakeNode {
	id := 0
	walk(root, 0, func(n *fakeNode, _ int) {
		n.id = id
		id++
	})
	return root
}
