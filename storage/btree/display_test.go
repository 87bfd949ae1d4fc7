package btree

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pillairaunak/bptreeindex/storage/page"
)

func TestSanityCheckDetectsInnerLoop(t *testing.T) {
	ix := newTestIndex(t, 128, 16)
	for i := 0; i < 10; i++ {
		require.NoError(t, ix.Insert(sequentialKey(i), value("VVVVVVVV")))
	}

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	root, err := ix.readNode(sb.RootNode)
	require.NoError(t, err)
	require.True(t, page.IsInteriorShaped(root.Type), "test assumes the root has already split into an interior shape")

	// Point the rightmost child back at the root itself.
	require.NoError(t, root.SetPtr(root.NumKeys, sb.RootNode))
	require.NoError(t, ix.writeNode(sb.RootNode, root))

	err = ix.SanityCheck()
	require.True(t, errors.Is(err, ErrInnerLoop))
}

func TestSanityCheckDetectsBadOrder(t *testing.T) {
	ix := newTestIndex(t, 128, 16)
	require.NoError(t, ix.Insert(key("bravo---"), value("AAAAAAAA")))
	require.NoError(t, ix.Insert(key("delta---"), value("BBBBBBBB")))

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	root, err := ix.readNode(sb.RootNode)
	require.NoError(t, err)

	// Swap the two keys in place, breaking sort order.
	k0, _ := root.Key(0)
	k1, _ := root.Key(1)
	require.NoError(t, root.SetKey(0, k1))
	require.NoError(t, root.SetKey(1, k0))
	require.NoError(t, ix.writeNode(sb.RootNode, root))

	err = ix.SanityCheck()
	require.True(t, errors.Is(err, ErrBadOrder))
}

func TestSanityCheckDetectsNodeOverflow(t *testing.T) {
	ix := newTestIndex(t, 128, 16)
	slotsLeaf := ix.geometry.SlotsLeaf()

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	root, err := ix.readNode(sb.RootNode)
	require.NoError(t, err)

	overflowCount := (2*slotsLeaf)/3 + 1
	require.LessOrEqual(t, overflowCount, slotsLeaf, "test geometry can't express a sanity-overflowing but structurally valid node")

	root.NumKeys = overflowCount
	for i := 0; i < overflowCount; i++ {
		require.NoError(t, root.SetKeyValue(i, sequentialKey(i), value("VVVVVVVV")))
	}
	require.NoError(t, ix.writeNode(sb.RootNode, root))

	err = ix.SanityCheck()
	require.True(t, errors.Is(err, ErrNodeOverflow))
}

func TestSanityCheckDetectsBadNodeType(t *testing.T) {
	ix := newTestIndex(t, 128, 16)

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	unalloc := page.New(ix.geometry, page.Unallocated)
	require.NoError(t, ix.writeNode(sb.RootNode, unalloc))

	err = ix.SanityCheck()
	require.True(t, errors.Is(err, ErrBadNodeType))
}

func TestSanityCheckVisitsEveryChildNotJustTheFirst(t *testing.T) {
	// Regression test for the walker bug this implementation fixes: the
	// reference walker returned after recursing into the first child of
	// an interior node. A corrupt second child must still be found.
	ix := newTestIndex(t, 128, 32)
	slotsLeaf := ix.geometry.SlotsLeaf()
	for i := 0; i <= slotsLeaf; i++ {
		require.NoError(t, ix.Insert(sequentialKey(i), value("VVVVVVVV")))
	}

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	root, err := ix.readNode(sb.RootNode)
	require.NoError(t, err)
	require.Equal(t, 1, root.NumKeys)

	rightChild, err := root.Ptr(1)
	require.NoError(t, err)
	unalloc := page.New(ix.geometry, page.Unallocated)
	require.NoError(t, ix.writeNode(rightChild, unalloc))

	err = ix.SanityCheck()
	require.True(t, errors.Is(err, ErrBadNodeType), "corruption in the SECOND child must still be detected")
}

func TestDisplayDepthDotWrapsDigraph(t *testing.T) {
	ix := newTestIndex(t, 128, 16)
	require.NoError(t, ix.Insert(key("alpha---"), value("AAAAAAAA")))

	var buf bytes.Buffer
	require.NoError(t, ix.Display(&buf, DepthDot))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "digraph tree {\n"))
	require.True(t, strings.HasSuffix(out, "}\n"))
}

func TestDisplaySortedKeyValOrder(t *testing.T) {
	ix := newTestIndex(t, 128, 32)
	for i := 9; i >= 0; i-- {
		require.NoError(t, ix.Insert(sequentialKey(i), value("VVVVVVVV")))
	}

	var buf bytes.Buffer
	require.NoError(t, ix.Display(&buf, SortedKeyVal))
	assertSortedAscending(t, buf.Bytes())

	lines := strings.Count(buf.String(), "\n")
	require.Equal(t, 10, lines)
}
