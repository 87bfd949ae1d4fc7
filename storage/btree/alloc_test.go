package btree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pillairaunak/bptreeindex/storage/page"
)

func TestAllocateNodeWalksFreeList(t *testing.T) {
	ix := newTestIndex(t, 128, 8)

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	require.Equal(t, uint64(2), sb.FreeList)

	first, err := ix.allocateNode()
	require.NoError(t, err)
	require.Equal(t, uint64(2), first)

	second, err := ix.allocateNode()
	require.NoError(t, err)
	require.Equal(t, uint64(3), second)

	sb, err = ix.loadSuperblock()
	require.NoError(t, err)
	require.Equal(t, uint64(4), sb.FreeList)
}

func TestAllocateNodeExhaustsToNoSpace(t *testing.T) {
	ix := newTestIndex(t, 128, 4) // blocks 0,1 reserved; only block 2,3 free.

	_, err := ix.allocateNode()
	require.NoError(t, err)
	_, err = ix.allocateNode()
	require.NoError(t, err)

	_, err = ix.allocateNode()
	require.True(t, errors.Is(err, ErrNoSpace))
}

func TestDeallocateThenAllocateReturnsSameBlock(t *testing.T) {
	ix := newTestIndex(t, 128, 8)

	block, err := ix.allocateNode()
	require.NoError(t, err)
	// allocateNode leaves the block typed UNALLOCATED; give it a node header
	// the way a caller does before the block can be handed back.
	require.NoError(t, ix.writeNode(block, page.New(ix.geometry, page.Leaf)))

	require.NoError(t, ix.deallocateNode(block))

	node, err := ix.readNode(block)
	require.NoError(t, err)
	require.Equal(t, page.Unallocated, node.Type)

	reallocated, err := ix.allocateNode()
	require.NoError(t, err)
	require.Equal(t, block, reallocated)
}

func TestDeallocateAlreadyUnallocatedIsInsane(t *testing.T) {
	ix := newTestIndex(t, 128, 8)

	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	freeHead := sb.FreeList

	err = ix.deallocateNode(freeHead)
	require.True(t, errors.Is(err, ErrInsane))
}

// TestPartitionInvariant is property P5: every block index is in exactly
// one of {0}, reachable-from-root, free-list.
func TestPartitionInvariant(t *testing.T) {
	ix := newTestIndex(t, 128, 64)
	for i := 0; i < 80; i++ {
		require.NoError(t, ix.Insert(sequentialKey(i), value("VVVVVVVV")))
	}

	reachable := map[uint64]bool{}
	var walk func(uint64) error
	walk = func(index uint64) error {
		if reachable[index] {
			t.Fatalf("block %d reachable twice: cycle or shared block", index)
		}
		reachable[index] = true
		node, err := ix.readNode(index)
		if err != nil {
			return err
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

	free := map[uint64]bool{}
	sb, err := ix.loadSuperblock()
	require.NoError(t, err)
	for b := sb.FreeList; b != 0; {
		if free[b] {
			t.Fatalf("free-list cycle at block %d", b)
		}
		free[b] = true
		node, err := ix.readNode(b)
		require.NoError(t, err)
		require.Equal(t, page.Unallocated, node.Type)
		b = node.FreeList
	}

	seen := map[uint64]bool{0: true}
	for b := range reachable {
		require.False(t, free[b], "block %d is both reachable and free", b)
		seen[b] = true
	}
	for b := range free {
		seen[b] = true
	}
	require.Equal(t, 64, len(seen), "every block must be the superblock, reachable, or free")
}
