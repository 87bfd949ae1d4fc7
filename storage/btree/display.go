package btree

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/pillairaunak/bptreeindex/storage/page"
)

// DisplayMode selects the traversal rendering Display produces.
type DisplayMode int

const (
	// Depth renders an indented, colorized, human-readable tree.
	Depth DisplayMode = iota
	// DepthDot wraps the same traversal in a graphviz digraph preamble
	// and postamble, emitting one edge per parent-to-child pointer.
	DepthDot
	// SortedKeyVal emits only leaf (key, value) pairs in tree order —
	// ascending by the comparator.
	SortedKeyVal
)

var (
	rootColor  = color.New(color.FgYellow, color.Bold)
	innerColor = color.New(color.FgCyan)
	leafColor  = color.New(color.FgGreen)
)

func colorForType(t page.NodeType) *color.Color {
	switch t {
	case page.RootLeaf, page.RootInterior:
		return rootColor
	case page.Interior:
		return innerColor
	case page.Leaf:
		return leafColor
	default:
		return color.New(color.FgRed)
	}
}

// Display performs a depth-first traversal from the root in the requested
// mode. For an interior node with numkeys separators, the traversal visits
// all numkeys+1 children, including the rightmost one — not just the
// children named by a key.
func (ix *Index) Display(sink io.Writer, mode DisplayMode) error {
	switch mode {
	case DepthDot:
		fmt.Fprintln(sink, "digraph tree {")
		if err := ix.displayDot(sink, ix.rootIndex); err != nil {
			return err
		}
		fmt.Fprintln(sink, "}")
		return nil
	case SortedKeyVal:
		return ix.displaySorted(sink, ix.rootIndex)
	default:
		if err := ix.displayDepth(sink, ix.rootIndex, 0); err != nil {
			return err
		}
		return ix.displaySummary(sink)
	}
}

// Print is equivalent to Display(sink, DepthDot).
func (ix *Index) Print(sink io.Writer) error {
	return ix.Display(sink, DepthDot)
}

func (ix *Index) displayDepth(sink io.Writer, index uint64, depth int) error {
	node, err := ix.readNode(index)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	label := colorForType(node.Type).Sprint(node.Type.String())
	fmt.Fprintf(sink, "%sblock %d [%s] numkeys=%d\n", indent, index, label, node.NumKeys)

	if page.IsLeafShaped(node.Type) {
		for i := 0; i < node.NumKeys; i++ {
			k, err := node.Key(i)
			if err != nil {
				return err
			}
			v, err := node.Value(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(sink, "%s  (%s, %s)\n", indent, k, v)
		}
		return nil
	}
	if page.IsInteriorShaped(node.Type) {
		for i := 0; i <= node.NumKeys; i++ {
			child, err := node.Ptr(i)
			if err != nil {
				return err
			}
			if err := ix.displayDepth(sink, child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ix *Index) displaySummary(sink io.Writer) error {
	sb, err := ix.loadSuperblock()
	if err != nil {
		return err
	}
	freeCount := 0
	for b := sb.FreeList; b != 0; {
		freeCount++
		node, err := ix.readNode(b)
		if err != nil {
			return err
		}
		b = node.FreeList
	}
	fmt.Fprintf(sink, "%s free blocks, %s total blocks, %s per block\n",
		humanize.Comma(int64(freeCount)),
		humanize.Comma(int64(ix.store.BlockCount())),
		humanize.Bytes(uint64(ix.geometry.BlockSize)))
	return nil
}

func (ix *Index) displayDot(sink io.Writer, index uint64) error {
	node, err := ix.readNode(index)
	if err != nil {
		return err
	}
	fmt.Fprintf(sink, "  %d [label=\"%s\\nnumkeys=%d\"];\n", index, node.Type, node.NumKeys)
	if !page.IsInteriorShaped(node.Type) {
		return nil
	}
	children := make([]uint64, node.NumKeys+1)
	for i := 0; i <= node.NumKeys; i++ {
		child, err := node.Ptr(i)
		if err != nil {
			return err
		}
		children[i] = child
		fmt.Fprintf(sink, "  %d -> %d;\n", index, child)
	}
	for _, child := range children {
		if err := ix.displayDot(sink, child); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) displaySorted(sink io.Writer, index uint64) error {
	node, err := ix.readNode(index)
	if err != nil {
		return err
	}
	if page.IsLeafShaped(node.Type) {
		for i := 0; i < node.NumKeys; i++ {
			k, err := node.Key(i)
			if err != nil {
				return err
			}
			v, err := node.Value(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(sink, "(%s,%s)\n", k, v)
		}
		return nil
	}
	for i := 0; i <= node.NumKeys; i++ {
		child, err := node.Ptr(i)
		if err != nil {
			return err
		}
		if err := ix.displaySorted(sink, child); err != nil {
			return err
		}
	}
	return nil
}

// SanityCheck walks every block reachable from the root and verifies the
// structural invariants, returning the first structural violation found;
// ErrNodeOverflow is returned only when no structural violation is found
// anywhere. It visits every child of every interior node — not just the
// first — before considering a node checked.
func (ix *Index) SanityCheck() error {
	visited := make(map[uint64]bool)
	return ix.sanityCheckNode(visited, ix.rootIndex)
}

func (ix *Index) sanityCheckNode(visited map[uint64]bool, index uint64) error {
	if visited[index] {
		return ErrInnerLoop
	}
	visited[index] = true

	node, err := ix.readNode(index)
	if err != nil {
		return err
	}

	switch node.Type {
	case page.RootLeaf:
		// numkeys == 0 is the one legitimate empty state: a tree that has
		// never split. Every other state below requires numkeys > 0.
	case page.Leaf, page.Interior, page.RootInterior:
		if node.NumKeys == 0 {
			return ErrNonexistent
		}
	default:
		return fmt.Errorf("btree: block %d has type %v: %w", index, node.Type, ErrBadNodeType)
	}

	for i := 0; i < node.NumKeys-1; i++ {
		ki, err := node.Key(i)
		if err != nil {
			return err
		}
		kj, err := node.Key(i + 1)
		if err != nil {
			return err
		}
		if ix.compare(ki, kj) > 0 {
			return ErrBadOrder
		}
	}

	var overflow error
	switch {
	case page.IsLeafShaped(node.Type):
		if node.NumKeys > (2*ix.geometry.SlotsLeaf())/3 {
			overflow = ErrNodeOverflow
		}
	case page.IsInteriorShaped(node.Type):
		if node.NumKeys > (2*ix.geometry.SlotsInterior())/3 {
			overflow = ErrNodeOverflow
		}
	}

	if page.IsInteriorShaped(node.Type) {
		for i := 0; i <= node.NumKeys; i++ {
			child, err := node.Ptr(i)
			if err != nil {
				return err
			}
			if err := ix.sanityCheckNode(visited, child); err != nil {
				if errors.Is(err, ErrNodeOverflow) {
					if overflow == nil {
						overflow = err
					}
					continue
				}
				return err
			}
		}
	}

	return overflow
}
