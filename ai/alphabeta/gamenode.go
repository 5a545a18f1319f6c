package alphabeta

import (
	"fmt"

	"github.com/domino14/morris/board"
	"github.com/domino14/morris/move"
	"github.com/domino14/morris/ttable"
)

// NodeID addresses a node in the search arena.
type NodeID int32

const (
	NoNode NodeID = -1
	rootID NodeID = 0
)

// Diagnostics is attached to every node when the solver runs in trace mode.
type Diagnostics struct {
	Depth     int
	Alpha     int
	Beta      int
	Bound     ttable.Bound
	Evaluated bool
	Pruned    bool
	Cancelled bool
	Side      board.Color
}

// Node is one position reached from the search root. Value is relative to
// the side to move at the node; SideChanged records whether the move that
// produced the node passed the turn, so the parent reads the value negated
// only in that case.
type Node struct {
	Move        move.Move
	Value       int
	Estimate    int
	Parent      NodeID
	Children    []NodeID
	ID          uint32
	TieBreak    uint64
	SideChanged bool
	Hinted      bool
	IsHash      bool
	Evaluated   bool
	Resolved    bool
	Diag        *Diagnostics
}

// ValueForParent is the node's value from the point of view of the side
// that played Move.
func (n *Node) ValueForParent() int {
	if n.SideChanged {
		return -n.Value
	}
	return n.Value
}

func (n *Node) String() string {
	return fmt.Sprintf("<node %d move %v val %d est %d hash %v>",
		n.ID, n.Move, n.Value, n.Estimate, n.IsHash)
}

// better orders nodes for selection: higher value first, then higher
// tie-break key. Insertion order never matters.
func better(va int, a *Node, vb int, b *Node) bool {
	if va != vb {
		return va > vb
	}
	return a.TieBreak > b.TieBreak
}

// tree is an arena of nodes. Node pointers are only valid until the next
// allocation, so callers keep NodeIDs and look nodes up again.
type tree struct {
	nodes  []Node
	nextID uint32
	trace  bool
}

func (t *tree) reset() {
	clear(t.nodes)
	t.nodes = t.nodes[:0]
	t.nextID = 0
	t.alloc(NoNode, move.None, 0)
}

func (t *tree) alloc(parent NodeID, m move.Move, tieBreak uint64) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Move:     m,
		Parent:   parent,
		ID:       t.nextID,
		TieBreak: tieBreak,
	})
	t.nextID++
	if t.trace {
		t.nodes[id].Diag = &Diagnostics{}
	}
	if parent != NoNode {
		p := &t.nodes[parent]
		p.Children = append(p.Children, id)
	}
	return id
}

func (t *tree) node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *tree) root() *Node {
	return &t.nodes[rootID]
}

// truncate drops the subtree below n. Children are allocated depth first,
// so everything from n's first child onwards belongs to that subtree.
func (t *tree) truncate(id NodeID) {
	n := &t.nodes[id]
	if len(n.Children) == 0 {
		return
	}
	first := n.Children[0]
	clear(t.nodes[first:])
	t.nodes = t.nodes[:first]
	n.Children = n.Children[:0]
}

// keepRootChildren drops everything below the root's children, which were
// allocated together right after the root.
func (t *tree) keepRootChildren() {
	r := t.root()
	keep := 1 + len(r.Children)
	clear(t.nodes[keep:])
	t.nodes = t.nodes[:keep]
	for _, c := range r.Children {
		t.nodes[c].Children = t.nodes[c].Children[:0]
	}
}

func (t *tree) size() int {
	return len(t.nodes)
}

// Nodes returns the arena as of the last search. Only meaningful in trace
// mode; otherwise it holds the root and its children.
func (s *Solver) Nodes() []Node {
	return s.tree.nodes
}
