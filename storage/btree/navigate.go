package btree

import (
	"fmt"

	"github.com/pillairaunak/bptreeindex/storage/page"
)

// path is the ordered sequence of block indices visited during a top-down
// descent, root first. It carries no pointer identity beyond the block
// index itself.
type path []uint64

// descendToLeaf walks from the root to the leaf that would contain key,
// recording every block index visited along the way (the returned path
// includes the leaf itself; callers that need "just the parents" slice off
// the last element).
//
// A key equal to a separator key_i descends into ptr_i, the child to the
// left of that separator — an exact-equal key is routed left, not right.
func (ix *Index) descendToLeaf(key []byte) (leafIndex uint64, leaf *page.Node, visited path, err error) {
	index := ix.rootIndex
	for {
		visited = append(visited, index)
		node, err := ix.readNode(index)
		if err != nil {
			return 0, nil, visited, err
		}

		if page.IsLeafShaped(node.Type) {
			return index, node, visited, nil
		}
		if !page.IsInteriorShaped(node.Type) {
			return 0, nil, visited, fmt.Errorf("btree: block %d has type %v: %w", index, node.Type, ErrInsane)
		}
		if node.NumKeys == 0 {
			return 0, nil, visited, ErrNonexistent
		}

		child, err := ix.chooseChild(node, key)
		if err != nil {
			return 0, nil, visited, err
		}
		index = child
	}
}

// chooseChild scans slots 0..numkeys of an interior node and returns the
// first ptr_i with key <= key_i, falling back to the rightmost pointer if
// no separator is >= key.
func (ix *Index) chooseChild(node *page.Node, key []byte) (uint64, error) {
	for i := 0; i < node.NumKeys; i++ {
		ki, err := node.Key(i)
		if err != nil {
			return 0, err
		}
		if ix.compare(key, ki) <= 0 {
			return node.Ptr(i)
		}
	}
	return node.Ptr(node.NumKeys)
}

// insertOffset returns the first slot in node whose key is >= key, or
// node.NumKeys if none is. This is the shared "where does this key belong"
// scan used by leaf insertion and by parent-cascade's interior insertion.
func (ix *Index) insertOffset(node *page.Node, key []byte) (int, error) {
	for i := 0; i < node.NumKeys; i++ {
		ki, err := node.Key(i)
		if err != nil {
			return 0, err
		}
		if ix.compare(key, ki) <= 0 {
			return i, nil
		}
	}
	return node.NumKeys, nil
}
