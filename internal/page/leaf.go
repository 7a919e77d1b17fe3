package page

import (
	"pintree/internal/base"
)

// Leaf is the leaf-node view: Size entries of (Key, RID) sorted by key
// ascending with no duplicates, plus a next pointer to the right
// sibling for range scans.
type Leaf struct {
	Node
}

// AsLeaf wraps page bytes holding a leaf node.
func AsLeaf(data []byte) Leaf { return AsNode(data).Leaf() }

// InitLeaf formats data as an empty leaf. maxSize 0 selects the derived
// page capacity.
func InitLeaf(data []byte, self, parent base.PageID, maxSize int) Leaf {
	return Leaf{initNode(data, KindLeaf, self, parent, maxSize, leafEntrySize, LeafCapacity)}
}

// Next returns the right sibling's page id, or InvalidPageID for the
// rightmost leaf.
func (l Leaf) Next() base.PageID       { return base.PageID(le64(l.data[offNext:])) }
func (l Leaf) SetNext(id base.PageID)  { put64(l.data[offNext:], uint64(id)) }

func (l Leaf) entryOff(i int) int { return headerSize + i*leafEntrySize }

// KeyAt returns the key of entry i.
func (l Leaf) KeyAt(i int) base.Key {
	var k base.Key
	copy(k[:], l.data[l.entryOff(i):])
	return k
}

// RIDAt returns the value of entry i.
func (l Leaf) RIDAt(i int) base.RID {
	off := l.entryOff(i) + base.KeySize
	return base.RID{
		Page: base.PageID(le64(l.data[off:])),
		Slot: le32(l.data[off+8:]),
	}
}

// Item returns entry i.
func (l Leaf) Item(i int) (base.Key, base.RID) {
	return l.KeyAt(i), l.RIDAt(i)
}

func (l Leaf) setEntry(i int, k base.Key, rid base.RID) {
	off := l.entryOff(i)
	copy(l.data[off:], k[:])
	put64(l.data[off+base.KeySize:], uint64(rid.Page))
	put32(l.data[off+base.KeySize+8:], rid.Slot)
	put32(l.data[off+base.KeySize+12:], 0)
}

// KeyIndex returns the first index whose key is >= k: the insertion
// position for k, and its location if present.
func (l Leaf) KeyIndex(k base.Key, cmp base.Compare) int {
	lo, hi := 0, l.Size()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(l.KeyAt(mid), k) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup reports the value stored under k, if any.
func (l Leaf) Lookup(k base.Key, cmp base.Compare) (base.RID, bool) {
	i := l.KeyIndex(k, cmp)
	if i < l.Size() && cmp(l.KeyAt(i), k) == 0 {
		return l.RIDAt(i), true
	}
	return base.RID{}, false
}

// Insert places (k, rid) in key order and returns the new size. A
// duplicate key is a no-op: the caller detects it by the unchanged size.
func (l Leaf) Insert(k base.Key, rid base.RID, cmp base.Compare) int {
	size := l.Size()
	i := l.KeyIndex(k, cmp)
	if i < size && cmp(l.KeyAt(i), k) == 0 {
		return size
	}
	copy(l.data[l.entryOff(i+1):l.entryOff(size+1)], l.data[l.entryOff(i):l.entryOff(size)])
	l.setEntry(i, k, rid)
	l.incSize(1)
	return size + 1
}

// RemoveAndDelete removes k if present and returns the new size.
func (l Leaf) RemoveAndDelete(k base.Key, cmp base.Compare) int {
	size := l.Size()
	i := l.KeyIndex(k, cmp)
	if i >= size || cmp(l.KeyAt(i), k) != 0 {
		return size
	}
	copy(l.data[l.entryOff(i):l.entryOff(size-1)], l.data[l.entryOff(i+1):l.entryOff(size)])
	l.incSize(-1)
	return size - 1
}

// MoveHalfTo moves the upper half of l's entries to the fresh right
// sibling and links it into the leaf chain.
func (l Leaf) MoveHalfTo(sibling Leaf) {
	size := l.Size()
	start := (size + 1) / 2
	count := size - start
	copy(sibling.data[sibling.entryOff(0):sibling.entryOff(count)],
		l.data[l.entryOff(start):l.entryOff(size)])
	sibling.setSize(count)
	l.setSize(start)

	sibling.SetNext(l.Next())
	l.SetNext(sibling.Self())
}

// MoveAllTo appends every entry of l to its left-adjacent sibling dst
// and splices l out of the leaf chain. l is left empty for deletion.
func (l Leaf) MoveAllTo(dst Leaf) {
	size, at := l.Size(), dst.Size()
	copy(dst.data[dst.entryOff(at):dst.entryOff(at+size)],
		l.data[l.entryOff(0):l.entryOff(size)])
	dst.incSize(size)
	dst.SetNext(l.Next())
	l.setSize(0)
}

// MoveFirstToEndOf moves l's first entry to the end of its left
// neighbor dst and refreshes the parent separator for l. Parent, dst,
// and l must all be under write latch.
func (l Leaf) MoveFirstToEndOf(dst Leaf, pool Pool) error {
	k, rid := l.Item(0)
	dst.setEntry(dst.Size(), k, rid)
	dst.incSize(1)

	size := l.Size()
	copy(l.data[l.entryOff(0):l.entryOff(size-1)], l.data[l.entryOff(1):l.entryOff(size)])
	l.incSize(-1)

	return l.updateParentKey(pool, l.Self(), l.KeyAt(0))
}

// MoveLastToFrontOf moves l's last entry to the front of its right
// neighbor dst and refreshes the parent separator for dst.
func (l Leaf) MoveLastToFrontOf(dst Leaf, pool Pool) error {
	k, rid := l.Item(l.Size() - 1)
	l.incSize(-1)

	size := dst.Size()
	copy(dst.data[dst.entryOff(1):dst.entryOff(size+1)], dst.data[dst.entryOff(0):dst.entryOff(size)])
	dst.setEntry(0, k, rid)
	dst.incSize(1)

	return l.updateParentKey(pool, dst.Self(), dst.KeyAt(0))
}

// updateParentKey sets the parent separator for child to k.
func (l Leaf) updateParentKey(pool Pool, child base.PageID, k base.Key) error {
	pp, err := pool.FetchPage(l.Parent())
	if err != nil {
		return err
	}
	parent := AsInternal(pp.Data())
	parent.SetKeyAt(parent.ValueIndex(child), k)
	return pool.UnpinPage(parent.Self(), true)
}
