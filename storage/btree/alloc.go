package btree

import (
	"fmt"

	"github.com/pillairaunak/bptreeindex/storage/page"
)

// allocateNode pops the head of the free-list, advances
// superblock.freelist to the popped block's own freelist field, and
// notifies the store. The returned block's type is still UNALLOCATED; the
// caller overwrites its header with page.New before using it.
func (ix *Index) allocateNode() (uint64, error) {
	sb, err := ix.loadSuperblock()
	if err != nil {
		return 0, err
	}
	if sb.FreeList == 0 {
		return 0, ErrNoSpace
	}

	head := sb.FreeList
	node, err := ix.readNode(head)
	if err != nil {
		return 0, err
	}
	if node.Type != page.Unallocated {
		return 0, fmt.Errorf("btree: free-list head %d has type %v, want UNALLOCATED: %w", head, node.Type, ErrInsane)
	}

	sb.FreeList = node.FreeList
	if err := ix.saveSuperblock(sb); err != nil {
		return 0, err
	}
	ix.store.NotifyAllocate(head)
	return head, nil
}

// deallocateNode returns block index to the free-list, retyping it
// UNALLOCATED and chaining it in front of the current free-list head.
func (ix *Index) deallocateNode(index uint64) error {
	node, err := ix.readNode(index)
	if err != nil {
		return err
	}
	if node.Type == page.Unallocated {
		return fmt.Errorf("btree: block %d is already unallocated: %w", index, ErrInsane)
	}

	sb, err := ix.loadSuperblock()
	if err != nil {
		return err
	}

	unalloc := page.New(ix.geometry, page.Unallocated)
	unalloc.FreeList = sb.FreeList
	if err := ix.writeNode(index, unalloc); err != nil {
		return err
	}

	sb.FreeList = index
	if err := ix.saveSuperblock(sb); err != nil {
		return err
	}
	ix.store.NotifyDeallocate(index)
	return nil
}
