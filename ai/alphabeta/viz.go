package alphabeta

import (
	"bufio"
	"fmt"
	"io"
)

// Visualize the search tree with dot. Only the root and its children are
// kept unless the solver runs in trace mode.

func (s *Solver) genDotFile(w *bufio.Writer, id NodeID) {
	parent := s.tree.node(id)
	for _, c := range parent.Children {
		child := s.tree.node(c)
		label := fmt.Sprintf("%v\\nval: %d est: %d", child.Move, child.ValueForParent(), child.Estimate)
		if child.IsHash {
			label += "\\n(hash)"
		}
		if d := child.Diag; d != nil && !d.Evaluated {
			label += fmt.Sprintf("\\n%v [%d, %d] d%d", d.Bound, d.Alpha, d.Beta, d.Depth)
		}
		fmt.Fprintf(w, " n_%d [label=\"%s\"];\n", child.ID, label)
		fmt.Fprintf(w, " n_%d -> n_%d;\n", parent.ID, child.ID)
		s.genDotFile(w, c)
	}
}

// WriteDot writes the tree of the last search as a graphviz digraph.
func (s *Solver) WriteDot(out io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree.size() == 0 {
		return fmt.Errorf("no search tree")
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "digraph {\n")
	fmt.Fprintf(w, " n_%d [label=\"(root)\\nval: %d\"]\n", s.tree.root().ID, s.tree.root().Value)
	s.genDotFile(w, rootID)
	fmt.Fprintf(w, "}\n")
	return w.Flush()
}
