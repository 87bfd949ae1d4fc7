// Package btree implements the disk-backed B+Tree index: node codec-driven
// top-down search, leaf/interior/root splitting with parent-promotion
// cascade, a free-list block allocator, and display/sanity-check
// traversal, all against a caller-supplied buffer.BlockStore.
package btree

import (
	"fmt"

	"github.com/pillairaunak/bptreeindex/storage/buffer"
	"github.com/pillairaunak/bptreeindex/storage/page"
)

// SuperblockIndex is the fixed block index of the superblock.
const SuperblockIndex = uint64(0)

// InitialRootIndex is the block index the root lives at immediately after
// Attach(create=true). Whether the tree has ever split is read from the
// root's node type (RootLeaf vs RootInterior), not from this index.
const InitialRootIndex = uint64(1)

// Comparator totally orders keys. Index never assumes an ordering of its
// own; bytes.Compare is the natural choice for callers with no special
// collation needs.
type Comparator func(a, b []byte) int

// Index is the façade: Attach/Detach, Lookup, Insert, Update, Delete,
// Display, SanityCheck, Print. It holds a non-owning handle to the
// BlockStore for its lifetime.
type Index struct {
	store    buffer.BlockStore
	geometry page.Geometry
	compare  Comparator

	rootIndex uint64
}

// Attach opens (create=false) or initializes (create=true) an index backed
// by store, using the given key/value sizes and comparator.
//
// On create, block 0 becomes the superblock, block 1 becomes an empty
// root (ROOT_LEAF), and every remaining block is threaded into the
// free-list with freelist[i] = i+1 (the last one gets 0).
func Attach(store buffer.BlockStore, create bool, keySize, valueSize int, compare Comparator) (*Index, error) {
	if compare == nil {
		return nil, fmt.Errorf("btree: comparator must not be nil")
	}
	geometry := page.Geometry{KeySize: keySize, ValueSize: valueSize, BlockSize: store.BlockSize()}
	if geometry.SlotsLeaf() < 2 {
		return nil, fmt.Errorf("btree: blocksize %d too small for keysize %d, valuesize %d (need slots_leaf >= 2)",
			geometry.BlockSize, keySize, valueSize)
	}
	if geometry.SlotsInterior() < 3 {
		return nil, fmt.Errorf("btree: blocksize %d too small for keysize %d (need slots_interior >= 3: an interior split demotes one of its promoted separators, so the smallest splittable interior must retain at least one key afterward)",
			geometry.BlockSize, keySize)
	}

	ix := &Index{store: store, geometry: geometry, compare: compare}

	if create {
		if err := ix.initializeStore(); err != nil {
			return nil, err
		}
	}

	sb, err := ix.loadSuperblock()
	if err != nil {
		return nil, fmt.Errorf("btree: attach: %w", err)
	}
	if sb.KeySize != keySize || sb.ValueSize != valueSize {
		return nil, fmt.Errorf("btree: attach: store geometry (keysize=%d valuesize=%d) does not match requested (keysize=%d valuesize=%d)",
			sb.KeySize, sb.ValueSize, keySize, valueSize)
	}
	ix.rootIndex = sb.RootNode
	return ix, nil
}

func (ix *Index) initializeStore() error {
	count := ix.store.BlockCount()
	if count < 2 {
		return fmt.Errorf("btree: need at least 2 blocks (superblock + root), store has %d", count)
	}

	sb := page.New(ix.geometry, page.Superblock)
	sb.RootNode = InitialRootIndex
	if count > 2 {
		sb.FreeList = 2
	} else {
		sb.FreeList = 0
	}
	if err := ix.writeNode(SuperblockIndex, sb); err != nil {
		return err
	}

	root := page.New(ix.geometry, page.RootLeaf)
	if err := ix.writeNode(InitialRootIndex, root); err != nil {
		return err
	}

	for i := uint64(2); i < uint64(count); i++ {
		unalloc := page.New(ix.geometry, page.Unallocated)
		if i+1 < uint64(count) {
			unalloc.FreeList = i + 1
		} else {
			unalloc.FreeList = 0
		}
		if err := ix.writeNode(i, unalloc); err != nil {
			return err
		}
	}
	return nil
}

// Detach flushes the superblock and returns the block index it was
// attached at, so a subsequent Attach(initblock, false) can resume.
func (ix *Index) Detach() (uint64, error) {
	sb, err := ix.loadSuperblock()
	if err != nil {
		return 0, err
	}
	sb.RootNode = ix.rootIndex
	if err := ix.saveSuperblock(sb); err != nil {
		return 0, err
	}
	return SuperblockIndex, nil
}

func (ix *Index) loadSuperblock() (*page.Node, error) {
	node, err := ix.readNode(SuperblockIndex)
	if err != nil {
		return nil, err
	}
	if node.Type != page.Superblock {
		return nil, fmt.Errorf("btree: block 0 has type %v, want SUPERBLOCK: %w", node.Type, ErrInsane)
	}
	return node, nil
}

func (ix *Index) saveSuperblock(sb *page.Node) error {
	return ix.writeNode(SuperblockIndex, sb)
}

func (ix *Index) setRootIndex(index uint64) error {
	sb, err := ix.loadSuperblock()
	if err != nil {
		return err
	}
	sb.RootNode = index
	if err := ix.saveSuperblock(sb); err != nil {
		return err
	}
	ix.rootIndex = index
	return nil
}

func (ix *Index) readNode(index uint64) (*page.Node, error) {
	buf, err := ix.store.ReadBlock(index)
	if err != nil {
		return nil, fmt.Errorf("btree: reading block %d: %w", index, err)
	}
	node, err := page.Decode(ix.geometry, buf)
	if err != nil {
		return nil, fmt.Errorf("btree: decoding block %d: %w", index, err)
	}
	return node, nil
}

func (ix *Index) writeNode(index uint64, n *page.Node) error {
	if err := ix.store.WriteBlock(index, n.Encode()); err != nil {
		return fmt.Errorf("btree: writing block %d: %w", index, err)
	}
	return nil
}

func (ix *Index) checkKeySize(key []byte) error {
	if len(key) != ix.geometry.KeySize {
		return fmt.Errorf("btree: key is %d bytes, want %d", len(key), ix.geometry.KeySize)
	}
	return nil
}

func (ix *Index) checkValueSize(value []byte) error {
	if len(value) != ix.geometry.ValueSize {
		return fmt.Errorf("btree: value is %d bytes, want %d", len(value), ix.geometry.ValueSize)
	}
	return nil
}

func (ix *Index) isFull(node *page.Node) bool {
	if page.IsLeafShaped(node.Type) {
		return node.NumKeys == ix.geometry.SlotsLeaf()
	}
	return node.NumKeys == ix.geometry.SlotsInterior()
}

// Lookup returns the value associated with key, or ErrNonexistent.
func (ix *Index) Lookup(key []byte) ([]byte, error) {
	if err := ix.checkKeySize(key); err != nil {
		return nil, err
	}
	_, leaf, _, err := ix.descendToLeaf(key)
	if err != nil {
		return nil, err
	}
	for i := 0; i < leaf.NumKeys; i++ {
		ki, err := leaf.Key(i)
		if err != nil {
			return nil, err
		}
		if ix.compare(key, ki) == 0 {
			return leaf.Value(i)
		}
	}
	return nil, ErrNonexistent
}

// Update overwrites the value associated with an existing key, writing the
// modified leaf block back before returning. Returns ErrNonexistent if the
// key is not present.
func (ix *Index) Update(key, value []byte) error {
	if err := ix.checkKeySize(key); err != nil {
		return err
	}
	if err := ix.checkValueSize(value); err != nil {
		return err
	}

	leafIndex, leaf, _, err := ix.descendToLeaf(key)
	if err != nil {
		return err
	}
	for i := 0; i < leaf.NumKeys; i++ {
		ki, err := leaf.Key(i)
		if err != nil {
			return err
		}
		if ix.compare(key, ki) == 0 {
			if err := leaf.SetValue(i, value); err != nil {
				return err
			}
			return ix.writeNode(leafIndex, leaf)
		}
	}
	return ErrNonexistent
}

// Delete is a permitted no-op: deletion rebalancing is out of scope.
// Callers must not rely on it.
func (ix *Index) Delete(key []byte) error {
	return ErrUnimplemented
}
