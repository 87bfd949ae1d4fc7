package btree

import (
	"github.com/pillairaunak/bptreeindex/storage/page"
)

// Insert places (key, value) into the tree, splitting and cascading
// promotions up to and including the root as needed.
func (ix *Index) Insert(key, value []byte) error {
	if err := ix.checkKeySize(key); err != nil {
		return err
	}
	if err := ix.checkValueSize(value); err != nil {
		return err
	}

	targetIndex, target, visited, err := ix.descendToLeaf(key)
	if err != nil {
		return err
	}
	parents := visited[:len(visited)-1]

	if !ix.isFull(target) {
		if err := ix.insertIntoLeaf(target, key, value); err != nil {
			return err
		}
		return ix.writeNode(targetIndex, target)
	}

	if target.Type == page.RootLeaf {
		return ix.splitRootLeaf(targetIndex, target, key, value)
	}

	l2Index, err := ix.allocateNode()
	if err != nil {
		return err
	}
	l2 := page.New(ix.geometry, page.Leaf)
	promoted, err := ix.splitLeaf(target, l2, key, value)
	if err != nil {
		return err
	}
	if err := ix.writeNode(targetIndex, target); err != nil {
		return err
	}
	if err := ix.writeNode(l2Index, l2); err != nil {
		return err
	}

	return ix.parentCascade(parents, promoted, l2Index)
}

// insertIntoLeaf shifts [i, numkeys) up by one and writes the new pair at
// the opened slot i, where i is the first slot whose key is >= key.
func (ix *Index) insertIntoLeaf(node *page.Node, key, value []byte) error {
	i, err := ix.insertOffset(node, key)
	if err != nil {
		return err
	}
	node.NumKeys++
	node.ShiftKeyValueUp(i)
	return node.SetKeyValue(i, key, value)
}

// insertIntoInterior shifts separators [i, numkeys) and child pointers
// [i+1, numkeys+1) up by one, placing key at i and ptr at i+1.
func (ix *Index) insertIntoInterior(node *page.Node, key []byte, ptr uint64) error {
	i, err := ix.insertOffset(node, key)
	if err != nil {
		return err
	}
	before := node.NumKeys
	node.NumKeys++
	node.ShiftInteriorUp(i, before)
	if err := node.SetKey(i, key); err != nil {
		return err
	}
	return node.SetPtr(i+1, ptr)
}

// splitLeaf redistributes l1's n keys plus the incoming (k, v) pair across
// l1 and l2: l1 ends with floor((n+1)/2) entries, l2 with the remaining
// ceil((n+1)/2). It returns the promoted key: the largest key remaining in
// l1 after the split.
func (ix *Index) splitLeaf(l1, l2 *page.Node, k, v []byte) ([]byte, error) {
	n := l1.NumKeys
	keys := make([][]byte, 0, n+1)
	values := make([][]byte, 0, n+1)

	inserted := false
	for i := 0; i < n; i++ {
		ki, err := l1.Key(i)
		if err != nil {
			return nil, err
		}
		if !inserted && ix.compare(k, ki) <= 0 {
			keys = append(keys, k)
			values = append(values, v)
			inserted = true
		}
		vi, err := l1.Value(i)
		if err != nil {
			return nil, err
		}
		keys = append(keys, ki)
		values = append(values, vi)
	}
	if !inserted {
		keys = append(keys, k)
		values = append(values, v)
	}

	total := len(keys) // n+1
	leftCount := total / 2
	rightCount := total - leftCount

	l1.NumKeys = leftCount
	for i := 0; i < leftCount; i++ {
		if err := l1.SetKeyValue(i, keys[i], values[i]); err != nil {
			return nil, err
		}
	}
	l2.NumKeys = rightCount
	for i := 0; i < rightCount; i++ {
		if err := l2.SetKeyValue(i, keys[leftCount+i], values[leftCount+i]); err != nil {
			return nil, err
		}
	}

	promoted, err := l1.Key(l1.NumKeys - 1)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(promoted))
	copy(out, promoted)
	return out, nil
}

// splitInterior redistributes i1's n separators/pointers plus the incoming
// (k, ptr) pair across i1 and i2. i1 first receives pivot = floor((n+1)/2)
// separators (matching the leaf pivot), then its last separator is lifted
// out as the promoted key — leaving i1 with pivot-1 separators — and the
// pointer that used to sit to that separator's right moves to become i2's
// leftmost pointer. i2 receives the remaining n+1-pivot separators.
func (ix *Index) splitInterior(i1, i2 *page.Node, k []byte, ptr uint64) ([]byte, error) {
	n := i1.NumKeys
	keys := make([][]byte, 0, n+1)
	ptrs := make([]uint64, 0, n+2)

	p0, err := i1.Ptr(0)
	if err != nil {
		return nil, err
	}
	ptrs = append(ptrs, p0)

	inserted := false
	for i := 0; i < n; i++ {
		ki, err := i1.Key(i)
		if err != nil {
			return nil, err
		}
		if !inserted && ix.compare(k, ki) <= 0 {
			keys = append(keys, k)
			ptrs = append(ptrs, ptr)
			inserted = true
		}
		pi, err := i1.Ptr(i + 1)
		if err != nil {
			return nil, err
		}
		keys = append(keys, ki)
		ptrs = append(ptrs, pi)
	}
	if !inserted {
		keys = append(keys, k)
		ptrs = append(ptrs, ptr)
	}

	totalKeys := len(keys) // n+1
	pivot := totalKeys / 2

	i1.NumKeys = pivot
	for i := 0; i < pivot; i++ {
		if err := i1.SetKey(i, keys[i]); err != nil {
			return nil, err
		}
	}
	for i := 0; i <= pivot; i++ {
		if err := i1.SetPtr(i, ptrs[i]); err != nil {
			return nil, err
		}
	}

	promoted := keys[pivot-1]
	extraPtr := ptrs[pivot]
	i1.NumKeys = pivot - 1

	rightCount := totalKeys - pivot
	i2.NumKeys = rightCount
	if err := i2.SetPtr(0, extraPtr); err != nil {
		return nil, err
	}
	for i := 0; i < rightCount; i++ {
		if err := i2.SetKey(i, keys[pivot+i]); err != nil {
			return nil, err
		}
		if err := i2.SetPtr(i+1, ptrs[pivot+1+i]); err != nil {
			return nil, err
		}
	}

	out := make([]byte, len(promoted))
	copy(out, promoted)
	return out, nil
}

// splitRootLeaf handles the one-time transition out of ROOT-AS-LEAF: the
// old root keeps its block index but is demoted to a plain LEAF, a new
// sibling leaf is allocated, and a brand new ROOT_INTERIOR block takes over
// as superblock.rootnode with a single separator over the two leaves.
func (ix *Index) splitRootLeaf(oldRootIndex uint64, oldRoot *page.Node, key, value []byte) error {
	newLeafIndex, err := ix.allocateNode()
	if err != nil {
		return err
	}
	newRootIndex, err := ix.allocateNode()
	if err != nil {
		return err
	}

	newLeaf := page.New(ix.geometry, page.Leaf)
	promoted, err := ix.splitLeaf(oldRoot, newLeaf, key, value)
	if err != nil {
		return err
	}
	oldRoot.Type = page.Leaf

	newRoot := page.New(ix.geometry, page.RootInterior)
	newRoot.NumKeys = 1
	if err := newRoot.SetKey(0, promoted); err != nil {
		return err
	}
	if err := newRoot.SetPtr(0, oldRootIndex); err != nil {
		return err
	}
	if err := newRoot.SetPtr(1, newLeafIndex); err != nil {
		return err
	}

	if err := ix.writeNode(oldRootIndex, oldRoot); err != nil {
		return err
	}
	if err := ix.writeNode(newLeafIndex, newLeaf); err != nil {
		return err
	}
	if err := ix.writeNode(newRootIndex, newRoot); err != nil {
		return err
	}
	return ix.setRootIndex(newRootIndex)
}

// splitRootInterior is the classical root-split: the old root is demoted
// to a plain INTERIOR, a new interior sibling is allocated, and a new
// ROOT_INTERIOR block takes over with the promoted separator.
func (ix *Index) splitRootInterior(oldRootIndex uint64, oldRoot *page.Node, key []byte, ptr uint64) error {
	newInteriorIndex, err := ix.allocateNode()
	if err != nil {
		return err
	}
	newRootIndex, err := ix.allocateNode()
	if err != nil {
		return err
	}

	newInterior := page.New(ix.geometry, page.Interior)
	promoted, err := ix.splitInterior(oldRoot, newInterior, key, ptr)
	if err != nil {
		return err
	}
	oldRoot.Type = page.Interior

	newRoot := page.New(ix.geometry, page.RootInterior)
	newRoot.NumKeys = 1
	if err := newRoot.SetKey(0, promoted); err != nil {
		return err
	}
	if err := newRoot.SetPtr(0, oldRootIndex); err != nil {
		return err
	}
	if err := newRoot.SetPtr(1, newInteriorIndex); err != nil {
		return err
	}

	if err := ix.writeNode(oldRootIndex, oldRoot); err != nil {
		return err
	}
	if err := ix.writeNode(newInteriorIndex, newInterior); err != nil {
		return err
	}
	if err := ix.writeNode(newRootIndex, newRoot); err != nil {
		return err
	}
	return ix.setRootIndex(newRootIndex)
}

// parentCascade pops the next ancestor off path and installs (key, ptr)
// there, splitting (and recursing further up path, or into a root-split)
// if that ancestor is full.
func (ix *Index) parentCascade(parents path, key []byte, ptr uint64) error {
	parentIndex := parents[len(parents)-1]
	rest := parents[:len(parents)-1]

	parent, err := ix.readNode(parentIndex)
	if err != nil {
		return err
	}

	if !ix.isFull(parent) {
		if err := ix.insertIntoInterior(parent, key, ptr); err != nil {
			return err
		}
		return ix.writeNode(parentIndex, parent)
	}

	if parent.Type == page.RootInterior {
		return ix.splitRootInterior(parentIndex, parent, key, ptr)
	}

	p2Index, err := ix.allocateNode()
	if err != nil {
		return err
	}
	p2 := page.New(ix.geometry, page.Interior)
	promoted, err := ix.splitInterior(parent, p2, key, ptr)
	if err != nil {
		return err
	}
	if err := ix.writeNode(parentIndex, parent); err != nil {
		return err
	}
	if err := ix.writeNode(p2Index, p2); err != nil {
		return err
	}

	return ix.parentCascade(rest, promoted, p2Index)
}
