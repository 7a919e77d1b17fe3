package page

import (
	"fmt"

	"pintree/internal/base"
)

// Internal is the internal-node view: Size entries of (Key, Child)
// where entry 0's key is a sentinel. For every i >= 1, keys reachable
// under Child(i) are >= KeyAt(i); keys under Child(0) are < KeyAt(1).
type Internal struct {
	Node
}

// AsInternal wraps page bytes holding an internal node.
func AsInternal(data []byte) Internal { return AsNode(data).Internal() }

// InitInternal formats data as an empty internal node. maxSize 0
// selects the derived page capacity.
func InitInternal(data []byte, self, parent base.PageID, maxSize int) Internal {
	return Internal{initNode(data, KindInternal, self, parent, maxSize, internalEntrySize, InternalCapacity)}
}

func (in Internal) entryOff(i int) int { return headerSize + i*internalEntrySize }

// KeyAt returns the key of entry i. Entry 0's key is a sentinel.
func (in Internal) KeyAt(i int) base.Key {
	var k base.Key
	copy(k[:], in.data[in.entryOff(i):])
	return k
}

// SetKeyAt overwrites the key of entry i.
func (in Internal) SetKeyAt(i int, k base.Key) {
	if i < 0 || i >= in.Size() {
		panic(fmt.Sprintf("page: separator index %d out of range [0,%d)", i, in.Size()))
	}
	copy(in.data[in.entryOff(i):], k[:])
}

// ChildAt returns the child page id of entry i.
func (in Internal) ChildAt(i int) base.PageID {
	return base.PageID(le64(in.data[in.entryOff(i)+base.KeySize:]))
}

// SetChildAt overwrites the child page id of entry i.
func (in Internal) SetChildAt(i int, id base.PageID) {
	put64(in.data[in.entryOff(i)+base.KeySize:], uint64(id))
}

func (in Internal) setEntry(i int, k base.Key, child base.PageID) {
	off := in.entryOff(i)
	copy(in.data[off:], k[:])
	put64(in.data[off+base.KeySize:], uint64(child))
}

// ValueIndex returns the entry index holding child, or -1. Children are
// not sorted, so this is a linear scan.
func (in Internal) ValueIndex(child base.PageID) int {
	for i := 0; i < in.Size(); i++ {
		if in.ChildAt(i) == child {
			return i
		}
	}
	return -1
}

// Lookup returns the child to descend into for k: the greatest Child(i)
// with i == 0 or KeyAt(i) <= k.
func (in Internal) Lookup(k base.Key, cmp base.Compare) base.PageID {
	lo, hi := 1, in.Size()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(in.KeyAt(mid), k) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return in.ChildAt(lo - 1)
}

// PopulateNewRoot installs [(sentinel, left), (k, right)]. Only called
// when the tree grows a new root.
func (in Internal) PopulateNewRoot(left base.PageID, k base.Key, right base.PageID) {
	in.setSize(2)
	in.setEntry(0, base.Key{}, left)
	in.setEntry(1, k, right)
}

// InsertNodeAfter places (k, newChild) immediately after the entry
// holding oldChild and returns the new size.
func (in Internal) InsertNodeAfter(oldChild base.PageID, k base.Key, newChild base.PageID) int {
	at := in.ValueIndex(oldChild)
	if at < 0 {
		panic(fmt.Sprintf("page: node %d has no child %d", in.Self(), oldChild))
	}
	size := in.Size()
	copy(in.data[in.entryOff(at+2):in.entryOff(size+1)], in.data[in.entryOff(at+1):in.entryOff(size)])
	in.setEntry(at+1, k, newChild)
	in.incSize(1)
	return size + 1
}

// Remove deletes entry i, keeping the remainder packed.
func (in Internal) Remove(i int) {
	size := in.Size()
	copy(in.data[in.entryOff(i):in.entryOff(size-1)], in.data[in.entryOff(i+1):in.entryOff(size)])
	in.incSize(-1)
}

// MoveHalfTo moves the upper half of in's entries to the fresh right
// sibling and re-parents the moved children. The first key of the
// sibling becomes the separator the caller pushes up; it stays in the
// sibling's sentinel slot, where it is never compared again.
func (in Internal) MoveHalfTo(sibling Internal, pool Pool) error {
	size := in.Size()
	start := (size + 1) / 2
	count := size - start
	copy(sibling.data[sibling.entryOff(0):sibling.entryOff(count)],
		in.data[in.entryOff(start):in.entryOff(size)])
	sibling.setSize(count)
	in.setSize(start)

	for i := 0; i < count; i++ {
		if err := reparent(pool, sibling.ChildAt(i), sibling.Self()); err != nil {
			return err
		}
	}
	return nil
}

// MoveAllTo appends every entry of in to its left-adjacent sibling dst,
// rewriting in's sentinel slot with middle, the separator the parent
// held between the two nodes. Children are re-parented; in is left
// empty for deletion.
func (in Internal) MoveAllTo(dst Internal, middle base.Key, pool Pool) error {
	size, at := in.Size(), dst.Size()
	copy(dst.data[dst.entryOff(at):dst.entryOff(at+size)],
		in.data[in.entryOff(0):in.entryOff(size)])
	dst.incSize(size)
	dst.SetKeyAt(at, middle)

	for i := at; i < at+size; i++ {
		if err := reparent(pool, dst.ChildAt(i), dst.Self()); err != nil {
			return err
		}
	}
	in.setSize(0)
	return nil
}

// MoveFirstToEndOf rotates in's first entry to the end of its left
// neighbor dst: the moved child's key slot receives the old parent
// separator, and the parent separator becomes in's next key. Parent,
// dst, and in must all be under write latch.
func (in Internal) MoveFirstToEndOf(dst Internal, pool Pool) error {
	child := in.ChildAt(0)

	pp, err := pool.FetchPage(in.Parent())
	if err != nil {
		return err
	}
	parent := AsInternal(pp.Data())
	at := parent.ValueIndex(in.Self())

	dst.setEntry(dst.Size(), parent.KeyAt(at), child)
	dst.incSize(1)

	size := in.Size()
	copy(in.data[in.entryOff(0):in.entryOff(size-1)], in.data[in.entryOff(1):in.entryOff(size)])
	in.incSize(-1)

	parent.SetKeyAt(at, in.KeyAt(0))
	if err := pool.UnpinPage(parent.Self(), true); err != nil {
		return err
	}
	return reparent(pool, child, dst.Self())
}

// MoveLastToFrontOf rotates in's last entry to the front of its right
// neighbor dst: dst's old sentinel slot receives the old parent
// separator, and the moved key becomes the new parent separator.
func (in Internal) MoveLastToFrontOf(dst Internal, pool Pool) error {
	k, child := in.KeyAt(in.Size()-1), in.ChildAt(in.Size()-1)
	in.incSize(-1)

	pp, err := pool.FetchPage(dst.Parent())
	if err != nil {
		return err
	}
	parent := AsInternal(pp.Data())
	at := parent.ValueIndex(dst.Self())

	size := dst.Size()
	copy(dst.data[dst.entryOff(1):dst.entryOff(size+1)], dst.data[dst.entryOff(0):dst.entryOff(size)])
	dst.setEntry(0, k, child)
	dst.incSize(1)
	dst.SetKeyAt(1, parent.KeyAt(at))

	parent.SetKeyAt(at, k)
	if err := pool.UnpinPage(parent.Self(), true); err != nil {
		return err
	}
	return reparent(pool, child, dst.Self())
}
