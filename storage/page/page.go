// Package page implements the node codec: the reversible mapping between a
// block's raw bytes and a typed Node value.
//
// Node layout is stable but implementation-defined, as permitted by the
// geometry it is given. The header precedes the payload; keys, values and
// child pointers live in fixed-width slot arrays sized from Geometry, not
// from compile-time constants, since keysize and valuesize are chosen per
// store.
package page

import (
	"encoding/binary"
	"fmt"
)

// NodeType tags the role a block currently plays. The root is modeled as
// two distinct tagged variants (RootLeaf / RootInterior) rather than a
// single ROOT type that gets mutated in place: that keeps "is this node
// leaf-shaped or interior-shaped" a property of its on-disk type instead of
// a fact some caller has to remember out of band.
type NodeType uint8

const (
	Superblock NodeType = iota
	RootLeaf
	RootInterior
	Interior
	Leaf
	Unallocated
)

func (t NodeType) String() string {
	switch t {
	case Superblock:
		return "SUPERBLOCK"
	case RootLeaf:
		return "ROOT_LEAF"
	case RootInterior:
		return "ROOT_INTERIOR"
	case Interior:
		return "INTERIOR"
	case Leaf:
		return "LEAF"
	case Unallocated:
		return "UNALLOCATED"
	default:
		return fmt.Sprintf("NODETYPE(%d)", uint8(t))
	}
}

// IsRoot reports whether t is one of the two root-shaped variants.
func IsRoot(t NodeType) bool { return t == RootLeaf || t == RootInterior }

// IsLeafShaped reports whether t stores (key, value) pairs.
func IsLeafShaped(t NodeType) bool { return t == Leaf || t == RootLeaf }

// IsInteriorShaped reports whether t stores child pointers and separators.
func IsInteriorShaped(t NodeType) bool { return t == Interior || t == RootInterior }

const ptrSize = 8 // block indices are stored as uint64

// header byte layout, little-endian throughout:
//
//	0:  NodeType   (1 byte)
//	1:  reserved   (1 byte)
//	2:  NumKeys    (4 bytes)
//	6:  KeySize    (2 bytes)
//	8:  ValueSize  (2 bytes)
//	10: BlockSize  (4 bytes)
//	14: RootNode   (8 bytes)
//	22: FreeList   (8 bytes)
const (
	offNodeType  = 0
	offNumKeys   = 2
	offKeySize   = 6
	offValueSize = 8
	offBlockSize = 10
	offRootNode  = 14
	offFreeList  = 22

	// HeaderSize is the number of bytes every block spends on the common
	// header before any payload begins.
	HeaderSize = 30
)

// Geometry fixes the per-store constants that the codec and the capacity
// formulas are derived from. It must not vary across the lifetime of a
// store.
type Geometry struct {
	KeySize   int
	ValueSize int
	BlockSize int
}

// SlotsLeaf returns floor((blocksize - headersize) / (keysize + valuesize)).
func (g Geometry) SlotsLeaf() int {
	return (g.BlockSize - HeaderSize) / (g.KeySize + g.ValueSize)
}

// SlotsInterior returns
// floor((blocksize - headersize - sizeof(ptr)) / (keysize + sizeof(ptr))).
func (g Geometry) SlotsInterior() int {
	return (g.BlockSize - HeaderSize - ptrSize) / (g.KeySize + ptrSize)
}

func (g Geometry) leafPayloadOffset(slot int) int {
	return HeaderSize + slot*(g.KeySize+g.ValueSize)
}

func (g Geometry) interiorPtrOffset(slot int) int {
	return HeaderSize + slot*ptrSize
}

func (g Geometry) interiorKeyOffset(slot int) int {
	slotsInterior := g.SlotsInterior()
	return HeaderSize + (slotsInterior+1)*ptrSize + slot*g.KeySize
}

// Node is the in-memory, typed materialization of one block.
type Node struct {
	Geometry
	Type     NodeType
	NumKeys  int
	RootNode uint64 // meaningful on Superblock only
	FreeList uint64 // free-chain head (Superblock) or next-free (Unallocated)

	raw []byte // backing bytes; accessors read/write directly into this
}

// New constructs an empty node of the given type and geometry, ready to be
// populated by the mutation engine before its first Encode.
func New(g Geometry, t NodeType) *Node {
	n := &Node{Geometry: g, Type: t, raw: make([]byte, g.BlockSize)}
	n.writeHeader()
	return n
}

// Decode parses buf (exactly BlockSize bytes, per g) into a Node.
func Decode(g Geometry, buf []byte) (*Node, error) {
	if len(buf) != g.BlockSize {
		return nil, fmt.Errorf("page: buffer is %d bytes, want %d", len(buf), g.BlockSize)
	}
	n := &Node{Geometry: g, raw: make([]byte, g.BlockSize)}
	copy(n.raw, buf)
	n.Type = NodeType(n.raw[offNodeType])
	n.NumKeys = int(binary.LittleEndian.Uint32(n.raw[offNumKeys:]))
	n.RootNode = binary.LittleEndian.Uint64(n.raw[offRootNode:])
	n.FreeList = binary.LittleEndian.Uint64(n.raw[offFreeList:])
	storedKeySize := int(binary.LittleEndian.Uint16(n.raw[offKeySize:]))
	storedValueSize := int(binary.LittleEndian.Uint16(n.raw[offValueSize:]))
	storedBlockSize := int(binary.LittleEndian.Uint32(n.raw[offBlockSize:]))
	if storedKeySize != g.KeySize || storedValueSize != g.ValueSize || storedBlockSize != g.BlockSize {
		return nil, fmt.Errorf("page: stored geometry (%d,%d,%d) does not match store geometry (%d,%d,%d)",
			storedKeySize, storedValueSize, storedBlockSize, g.KeySize, g.ValueSize, g.BlockSize)
	}
	return n, nil
}

// Encode returns the byte representation of n, ready for a BlockStore write.
func (n *Node) Encode() []byte {
	n.writeHeader()
	out := make([]byte, len(n.raw))
	copy(out, n.raw)
	return out
}

func (n *Node) writeHeader() {
	n.raw[offNodeType] = byte(n.Type)
	binary.LittleEndian.PutUint32(n.raw[offNumKeys:], uint32(n.NumKeys))
	binary.LittleEndian.PutUint16(n.raw[offKeySize:], uint16(n.KeySize))
	binary.LittleEndian.PutUint16(n.raw[offValueSize:], uint16(n.ValueSize))
	binary.LittleEndian.PutUint32(n.raw[offBlockSize:], uint32(n.BlockSize))
	binary.LittleEndian.PutUint64(n.raw[offRootNode:], n.RootNode)
	binary.LittleEndian.PutUint64(n.raw[offFreeList:], n.FreeList)
}

// keyValueBound is the logical bound used by Key / SetKey / Value /
// SetValue / SetKeyValue on any node type: callers may never read or write past the
// node's current NumKeys.
func (n *Node) keyValueBound() int { return n.NumKeys }

// ptrBound mirrors the codec's BAD_OFFSET policy for Ptr/SetPtr: the
// bound is NumKeys+1 on interior-shaped nodes and NumKeys on anything else
// (in particular leaves, which carry no child pointers at all).
func (n *Node) ptrBound() int {
	if IsInteriorShaped(n.Type) {
		return n.NumKeys + 1
	}
	return n.NumKeys
}

// ErrOffset is returned by an accessor called with an out-of-bounds index.
type ErrOffset struct {
	Index, Bound int
}

func (e *ErrOffset) Error() string {
	return fmt.Sprintf("page: offset %d out of bounds (bound %d)", e.Index, e.Bound)
}

// Key returns a copy of the key stored at logical slot i.
func (n *Node) Key(i int) ([]byte, error) {
	if i < 0 || i >= n.keyValueBound() {
		return nil, &ErrOffset{i, n.keyValueBound()}
	}
	off := n.keyOffset(i)
	out := make([]byte, n.KeySize)
	copy(out, n.raw[off:off+n.KeySize])
	return out, nil
}

// SetKey overwrites the key stored at logical slot i.
func (n *Node) SetKey(i int, k []byte) error {
	if i < 0 || i >= n.keyValueBound() {
		return &ErrOffset{i, n.keyValueBound()}
	}
	if len(k) != n.KeySize {
		return fmt.Errorf("page: key is %d bytes, want %d", len(k), n.KeySize)
	}
	off := n.keyOffset(i)
	copy(n.raw[off:off+n.KeySize], k)
	return nil
}

func (n *Node) keyOffset(i int) int {
	if IsInteriorShaped(n.Type) {
		return n.interiorKeyOffset(i)
	}
	return n.leafPayloadOffset(i)
}

// Value returns a copy of the value stored at logical slot i (leaf-shaped
// nodes only).
func (n *Node) Value(i int) ([]byte, error) {
	if i < 0 || i >= n.keyValueBound() {
		return nil, &ErrOffset{i, n.keyValueBound()}
	}
	off := n.leafPayloadOffset(i) + n.KeySize
	out := make([]byte, n.ValueSize)
	copy(out, n.raw[off:off+n.ValueSize])
	return out, nil
}

// SetValue overwrites the value stored at logical slot i.
func (n *Node) SetValue(i int, v []byte) error {
	if i < 0 || i >= n.keyValueBound() {
		return &ErrOffset{i, n.keyValueBound()}
	}
	if len(v) != n.ValueSize {
		return fmt.Errorf("page: value is %d bytes, want %d", len(v), n.ValueSize)
	}
	off := n.leafPayloadOffset(i) + n.KeySize
	copy(n.raw[off:off+n.ValueSize], v)
	return nil
}

// SetKeyValue writes both halves of a (key, value) pair at logical slot i in
// one call.
func (n *Node) SetKeyValue(i int, k, v []byte) error {
	if err := n.SetKey(i, k); err != nil {
		return err
	}
	return n.SetValue(i, v)
}

// Ptr returns the child pointer stored at logical slot i (interior-shaped
// nodes only).
func (n *Node) Ptr(i int) (uint64, error) {
	if i < 0 || i >= n.ptrBound() {
		return 0, &ErrOffset{i, n.ptrBound()}
	}
	off := n.interiorPtrOffset(i)
	return binary.LittleEndian.Uint64(n.raw[off:]), nil
}

// SetPtr overwrites the child pointer stored at logical slot i.
func (n *Node) SetPtr(i int, p uint64) error {
	if i < 0 || i >= n.ptrBound() {
		return &ErrOffset{i, n.ptrBound()}
	}
	off := n.interiorPtrOffset(i)
	binary.LittleEndian.PutUint64(n.raw[off:], p)
	return nil
}

// ShiftKeyValueUp moves logical slots [from, n.NumKeys-1) up by one slot,
// opening a hole at `from`. The caller must grow NumKeys first, so
// n.NumKeys-1 is the key count before that grow.
func (n *Node) ShiftKeyValueUp(from int) {
	for i := n.NumKeys - 1; i > from; i-- {
		so := n.leafPayloadOffset(i - 1)
		do := n.leafPayloadOffset(i)
		copy(n.raw[do:do+n.KeySize+n.ValueSize], n.raw[so:so+n.KeySize+n.ValueSize])
	}
}

// ShiftInteriorUp moves separator keys [from, numKeysBefore) and child
// pointers [from+1, numKeysBefore+1) up by one slot each, opening a hole for
// a new (key, ptr) pair to land at index `from` (key) / `from+1` (ptr). The
// caller must grow NumKeys first and pass the key count *before* that grow.
func (n *Node) ShiftInteriorUp(from, numKeysBefore int) {
	for i := numKeysBefore; i > from; i-- {
		so := n.interiorKeyOffset(i - 1)
		do := n.interiorKeyOffset(i)
		copy(n.raw[do:do+n.KeySize], n.raw[so:so+n.KeySize])
	}
	for i := numKeysBefore + 1; i > from+1; i-- {
		so := n.interiorPtrOffset(i - 1)
		do := n.interiorPtrOffset(i)
		copy(n.raw[do:do+ptrSize], n.raw[so:so+ptrSize])
	}
}
