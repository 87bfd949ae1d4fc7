package btree

import "errors"

// The fixed error taxonomy. NO_ERROR is the absence of an error (nil); the
// rest are named sentinels so callers can use errors.Is against them even
// after a call site has wrapped one with fmt.Errorf for context.
var (
	// ErrNoSpace is returned by the allocator when the free-list is empty.
	ErrNoSpace = errors.New("btree: no space: free-list is empty")
	// ErrNonexistent is returned by lookup/update for a key that is not
	// present, and by the navigator when it reaches an empty interior node.
	// It is the only error a caller should expect to handle routinely.
	ErrNonexistent = errors.New("btree: key or node does not exist")
	// ErrBadOffset names the BAD_OFFSET error kind. The node codec reports
	// an accessor index past the node's current logical size as a
	// *page.ErrOffset, which does not match ErrBadOffset under errors.Is;
	// no code in this package returns ErrBadOffset.
	ErrBadOffset = errors.New("btree: offset out of bounds")
	// ErrBadNodeType is returned by SanityCheck when a block reachable from
	// the root has a type no tree node may have. The navigator reports the
	// same condition as ErrInsane.
	ErrBadNodeType = errors.New("btree: unexpected node type")
	// ErrBadOrder is returned by SanityCheck when two adjacent keys in a
	// node violate sort order.
	ErrBadOrder = errors.New("btree: keys out of order")
	// ErrInnerLoop is returned by SanityCheck when a cycle is detected
	// during traversal.
	ErrInnerLoop = errors.New("btree: cycle detected during traversal")
	// ErrNodeOverflow is returned by SanityCheck when a node exceeds the
	// 2/3 soft fullness bound. It is a health-check signal, not evidence
	// of structural corruption: the mutation engine may legitimately
	// produce nodes this full.
	ErrNodeOverflow = errors.New("btree: node exceeds soft fullness bound")
	// ErrUnimplemented is returned by Delete.
	ErrUnimplemented = errors.New("btree: operation not implemented")
	// ErrInsane is returned when a block carries an nodetype no code path
	// expects to see there; it indicates an invariant violation.
	ErrInsane = errors.New("btree: invariant violation: insane node state")
)
