package btree

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/pillairaunak/bptreeindex/storage/buffer"
)

// newTestIndex attaches a fresh, newly created Index backed by a
// FileBlockStore in a scratch directory. keysize=8, valuesize=8 throughout,
// matching the ASCII, NUL-padded keys used across these tests; blocksize is
// the caller's choice since it determines how many slots a given header and
// payload width can fit.
func newTestIndex(t *testing.T, blockSize, blockCount int) *Index {
	t.Helper()
	store, err := buffer.NewFileBlockStore("test.btree",
		buffer.WithDirectory(t.TempDir()),
		buffer.WithBlockSize(blockSize),
		buffer.WithBlockCount(blockCount))
	if err != nil {
		t.Fatalf("NewFileBlockStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ix, err := Attach(store, true, 8, 8, bytes.Compare)
	if err != nil {
		t.Fatalf("Attach(create=true): %v", err)
	}
	return ix
}

// key pads s to 8 bytes with NUL.
func key(s string) []byte {
	if len(s) > 8 {
		panic(fmt.Sprintf("key %q longer than 8 bytes", s))
	}
	b := make([]byte, 8)
	copy(b, s)
	return b
}

// value pads s to 8 bytes with NUL.
func value(s string) []byte { return key(s) }

// sequentialKey renders i as an 8-byte, lexicographically-ordered key by
// zero-padding its decimal digits — keeps sort order in comparator space
// aligned with numeric order, which the stress tests below rely on.
func sequentialKey(i int) []byte {
	return key(fmt.Sprintf("%08d", i))
}
