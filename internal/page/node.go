package page

import (
	"fmt"

	"pintree/internal/base"
	"pintree/internal/buffer"
)

// Node kinds stored in the page header.
type Kind uint16

const (
	KindInvalid  Kind = 0
	KindLeaf     Kind = 1
	KindInternal Kind = 2
)

// NODE PAGE LAYOUT (shared 40-byte header, packed fixed-size entries):
// ┌────────────────────────────────────────────────────────────┐
// │ Kind (2) | Reserved (2) | Size (4) | MaxSize (4)           │
// │ Parent (8) | Self (8) | Next (8, leaf only) | Pad (4)      │
// ├────────────────────────────────────────────────────────────┤
// │ Leaf entry:     Key (8) | RID.Page (8) | RID.Slot (4) | Pad│
// │ Internal entry: Key (8) | Child (8)                        │
// │ ... Size entries, sorted by key ascending ...              │
// └────────────────────────────────────────────────────────────┘
//
// Internal entry 0's key is a sentinel and never compared. One spare
// entry slot is reserved so a node can hold MaxSize+1 entries between
// an insert and the split that follows.
const (
	offKind   = 0
	offSize   = 4
	offMax    = 8
	offParent = 12
	offSelf   = 20
	offNext   = 28

	headerSize = 40

	leafEntrySize     = 24
	internalEntrySize = 16
)

// LeafCapacity is the derived max size of a leaf node.
const LeafCapacity = (base.PageSize-headerSize)/leafEntrySize - 1

// InternalCapacity is the derived max size (child count) of an internal node.
const InternalCapacity = (base.PageSize-headerSize)/internalEntrySize - 1

// Pool is the slice of the buffer pool the move primitives need to
// re-parent children and maintain parent separator keys.
type Pool interface {
	FetchPage(id base.PageID) (*buffer.Page, error)
	UnpinPage(id base.PageID, dirty bool) error
}

// Node is a view of the shared header over a page's bytes. The caller
// must hold the page's latch for the duration of any access.
type Node struct {
	data []byte
}

// AsNode wraps page bytes in a header view.
func AsNode(data []byte) Node { return Node{data: data} }

func (n Node) Kind() Kind   { return Kind(le16(n.data[offKind:])) }
func (n Node) IsLeaf() bool { return n.Kind() == KindLeaf }

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool { return n.Parent() == base.InvalidPageID }

func (n Node) Size() int      { return int(int32(le32(n.data[offSize:]))) }
func (n Node) MaxSize() int   { return int(int32(le32(n.data[offMax:]))) }
func (n Node) MinSize() int   { return (n.MaxSize() + 1) / 2 }
func (n Node) Parent() base.PageID { return base.PageID(le64(n.data[offParent:])) }
func (n Node) Self() base.PageID   { return base.PageID(le64(n.data[offSelf:])) }

func (n Node) SetParent(id base.PageID) { put64(n.data[offParent:], uint64(id)) }

func (n Node) setSize(v int)  { put32(n.data[offSize:], uint32(int32(v))) }
func (n Node) incSize(d int)  { n.setSize(n.Size() + d) }
func (n Node) setMax(v int)   { put32(n.data[offMax:], uint32(int32(v))) }
func (n Node) setKind(k Kind) { put16(n.data[offKind:], uint16(k)) }
func (n Node) setSelf(id base.PageID) { put64(n.data[offSelf:], uint64(id)) }

// Leaf returns the leaf view of the node. The kind must match.
func (n Node) Leaf() Leaf {
	if n.Kind() != KindLeaf {
		panic(fmt.Sprintf("page: node %d is not a leaf", n.Self()))
	}
	return Leaf{n}
}

// Internal returns the internal view of the node. The kind must match.
func (n Node) Internal() Internal {
	if n.Kind() != KindInternal {
		panic(fmt.Sprintf("page: node %d is not internal", n.Self()))
	}
	return Internal{n}
}

func initNode(data []byte, kind Kind, self, parent base.PageID, maxSize, entrySize, capacity int) Node {
	if maxSize == 0 {
		maxSize = capacity
	}
	if headerSize+(maxSize+1)*entrySize > base.PageSize {
		panic(fmt.Sprintf("page: max size %d does not fit in a page", maxSize))
	}
	clear(data[:headerSize])
	n := AsNode(data)
	n.setKind(kind)
	n.setSize(0)
	n.setMax(maxSize)
	n.setSelf(self)
	n.SetParent(parent)
	invalid := base.InvalidPageID
	put64(data[offNext:], uint64(invalid))
	return n
}

// reparent rewrites child's parent pointer. The child is reachable only
// through pages the caller has latched, so no child latch is taken.
func reparent(pool Pool, child, parent base.PageID) error {
	cp, err := pool.FetchPage(child)
	if err != nil {
		return err
	}
	AsNode(cp.Data()).SetParent(parent)
	return pool.UnpinPage(child, true)
}
