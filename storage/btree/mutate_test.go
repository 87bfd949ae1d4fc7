package btree

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pillairaunak/bptreeindex/storage/page"
)

// TestRootLeafSplit checks that filling the root-as-leaf forces a root
// split whose single separator is the largest key remaining in the old
// leaf, with the old leaf and a new leaf as its two children.
func TestRootLeafSplit(t *testing.T) {
	ix := newTestIndex(t, 128, 32)
	slotsLeaf := ix.geometry.SlotsLeaf()
	require.Greater(t, slotsLeaf, 1)

	for i := 0; i < slotsLeaf; i++ {
		require.NoError(t, ix.Insert(sequentialKey(i), value("VVVVVVVV")))
	}

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	require.Equal(t, InitialRootIndex, sb.RootNode, "root should not have split yet")

	// One more insert must overflow the root-as-leaf and trigger the split.
	require.NoError(t, ix.Insert(sequentialKey(slotsLeaf), value("VVVVVVVV")))

	sb, err = ix.loadSuperblock()
	require.NoError(t, err)
	require.NotEqual(t, InitialRootIndex, sb.RootNode, "root should now be a freshly allocated ROOT_INTERIOR block")

	root, err := ix.readNode(sb.RootNode)
	require.NoError(t, err)
	require.Equal(t, page.RootInterior, root.Type)
	require.Equal(t, 1, root.NumKeys)

	left, err := root.Ptr(0)
	require.NoError(t, err)
	right, err := root.Ptr(1)
	require.NoError(t, err)
	require.Equal(t, InitialRootIndex, left, "old root block keeps its index, demoted to LEAF")

	leftNode, err := ix.readNode(left)
	require.NoError(t, err)
	require.Equal(t, page.Leaf, leftNode.Type)
	rightNode, err := ix.readNode(right)
	require.NoError(t, err)
	require.Equal(t, page.Leaf, rightNode.Type)

	require.NoError(t, ix.SanityCheck())

	var buf bytes.Buffer
	require.NoError(t, ix.Display(&buf, SortedKeyVal))
	assertSortedAscending(t, buf.Bytes())
}

// TestInteriorSplitCascade drives enough inserts to force splitting at the
// leaf level repeatedly and eventually at the interior level too, with
// sanity-check passing after every single insert.
func TestInteriorSplitCascade(t *testing.T) {
	ix := newTestIndex(t, 128, 256)

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, ix.Insert(sequentialKey(i), value("VVVVVVVV")), "insert %d", i)
		if err := ix.SanityCheck(); !errors.Is(err, ErrNodeOverflow) {
			require.NoError(t, err, "sanity check after insert %d", i)
		}
	}

	for i := 0; i < n; i++ {
		got, err := ix.Lookup(sequentialKey(i))
		require.NoError(t, err)
		require.True(t, bytes.Equal(got, value("VVVVVVVV")))
	}

	sawInterior := false
	var walk func(index uint64) error
	walk = func(index uint64) error {
		node, err := ix.readNode(index)
		if err != nil {
			return err
		}
		if node.Type == page.Interior {
			sawInterior = true
		}
		if !page.IsInteriorShaped(node.Type) {
			return nil
		}
		for i := 0; i <= node.NumKeys; i++ {
			child, err := node.Ptr(i)
			if err != nil {
				return err
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	require.NoError(t, walk(ix.rootIndex))
	require.True(t, sawInterior, "200 sequential inserts at this geometry should force at least one interior-level split")
}

// TestExhaustion checks that once the allocator runs out of space, the
// failing insert returns ErrNoSpace and every previously inserted key
// still looks up correctly.
func TestExhaustion(t *testing.T) {
	ix := newTestIndex(t, 128, 6)

	var inserted [][]byte
	var i int
	for {
		k := sequentialKey(i)
		err := ix.Insert(k, value("VVVVVVVV"))
		if err != nil {
			require.True(t, errors.Is(err, ErrNoSpace), "unexpected error at insert %d: %v", i, err)
			break
		}
		inserted = append(inserted, k)
		i++
		if i > 10000 {
			t.Fatal("store never exhausted; geometry assumptions are wrong")
		}
	}
	require.NotEmpty(t, inserted, "exhaustion test needs at least one successful insert before NO_SPACE")

	for _, k := range inserted {
		got, err := ix.Lookup(k)
		require.NoError(t, err, "lookup of previously inserted key %q", k)
		require.True(t, bytes.Equal(got, value("VVVVVVVV")))
	}
}

func assertSortedAscending(t *testing.T, out []byte) {
	t.Helper()
	lines := bytes.Split(bytes.TrimRight(out, "\n"), []byte("\n"))
	var prev []byte
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if prev != nil {
			require.True(t, bytes.Compare(prev, line) <= 0, "display output not sorted: %q before %q", prev, line)
		}
		prev = append([]byte(nil), line...)
	}
}
