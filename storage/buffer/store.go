// Package buffer specifies the BlockStore collaborator the B+Tree index is
// driven through, and ships one reference implementation of it.
//
// The index never depends on the reference implementation directly — only
// on the BlockStore interface — but something has to back its own tests and
// the demo command, so FileBlockStore exists as a concrete, otherwise
// ordinary file-backed block device with a hot-block cache in front of it.
package buffer

import "errors"

var (
	// ErrOutOfRange is returned by ReadBlock/WriteBlock for an index at or
	// beyond BlockCount.
	ErrOutOfRange = errors.New("buffer: block index out of range")
	// ErrCorrupt is returned by ReadBlock when the stored checksum does not
	// match the bytes read back off the backing file.
	ErrCorrupt = errors.New("buffer: block failed checksum verification")
)

// BlockStore is a fixed-count array of fixed-size blocks addressable by
// integer index, with per-block read and write and allocation
// notifications. It is supplied by the caller; the index holds a
// non-owning handle to it for its lifetime.
type BlockStore interface {
	// BlockSize returns the fixed size, in bytes, of every block.
	BlockSize() int
	// BlockCount returns the fixed number of addressable blocks.
	BlockCount() int
	// ReadBlock returns a copy of the bytes at index.
	ReadBlock(index uint64) ([]byte, error)
	// WriteBlock overwrites the bytes at index. data must be exactly
	// BlockSize() bytes.
	WriteBlock(index uint64, data []byte) error
	// NotifyAllocate informs the store that index has left the free-list
	// and is now reachable from the tree.
	NotifyAllocate(index uint64)
	// NotifyDeallocate informs the store that index has returned to the
	// free-list.
	NotifyDeallocate(index uint64)
}
