package pintree

import (
	"pintree/internal/base"
	"pintree/internal/buffer"
	"pintree/internal/page"
)

// Iterator walks the leaf chain in ascending key order. It pins at most
// one leaf at a time and takes that leaf's read latch only for the
// duration of a single access. Keys inserted or removed behind the
// iterator's position are not revisited; an iterator is a scan, not a
// snapshot.
type Iterator struct {
	pool *buffer.Pool
	page *buffer.Page // current leaf, pinned; nil at end
	idx  int
	err  error
}

// Begin returns an iterator positioned at the smallest key.
func (t *Tree) Begin() (*Iterator, error) {
	it := &Iterator{pool: t.pool}

	var cur *buffer.Page
	for {
		id := t.rootID()
		if id == base.InvalidPageID {
			return it, nil
		}
		p, err := t.pool.FetchPage(id)
		if err != nil {
			return nil, err
		}
		p.RLatch()
		if t.rootID() == id {
			cur = p
			break
		}
		p.RUnlatch()
		_ = t.pool.UnpinPage(id, false)
	}

	for {
		n := page.AsNode(cur.Data())
		if n.IsLeaf() {
			cur.RUnlatch()
			it.page = cur
			it.normalize()
			return it, it.err
		}
		childID := n.Internal().ChildAt(0)
		cp, err := t.pool.FetchPage(childID)
		if err != nil {
			cur.RUnlatch()
			_ = t.pool.UnpinPage(cur.ID(), false)
			return nil, err
		}
		cp.RLatch()
		cur.RUnlatch()
		_ = t.pool.UnpinPage(cur.ID(), false)
		cur = cp
	}
}

// BeginAt returns an iterator positioned at the first key >= key.
func (t *Tree) BeginAt(key Key) (*Iterator, error) {
	lp, err := t.getLeafPage(key, nil, opGet)
	if err != nil {
		return nil, err
	}
	it := &Iterator{pool: t.pool, page: lp}
	if lp == nil {
		return it, nil
	}
	it.idx = page.AsLeaf(lp.Data()).KeyIndex(key, t.cmp)
	lp.RUnlatch()
	it.normalize()
	return it, it.err
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool { return it.page != nil }

// Err returns the fault that invalidated the iterator, if any.
func (it *Iterator) Err() error { return it.err }

// Key returns the current entry's key. The iterator must be valid.
func (it *Iterator) Key() Key {
	if it.page == nil {
		panic("pintree: dereferencing invalid iterator")
	}
	it.page.RLatch()
	k := page.AsLeaf(it.page.Data()).KeyAt(it.idx)
	it.page.RUnlatch()
	return k
}

// RID returns the current entry's value. The iterator must be valid.
func (it *Iterator) RID() RID {
	if it.page == nil {
		panic("pintree: dereferencing invalid iterator")
	}
	it.page.RLatch()
	rid := page.AsLeaf(it.page.Data()).RIDAt(it.idx)
	it.page.RUnlatch()
	return rid
}

// Next advances to the next entry, crossing to the right sibling when
// the current leaf is exhausted.
func (it *Iterator) Next() {
	if it.page == nil {
		return
	}
	it.idx++
	it.normalize()
}

// Close releases the iterator's pin. Safe to call on an exhausted
// iterator.
func (it *Iterator) Close() {
	if it.page != nil {
		_ = it.pool.UnpinPage(it.page.ID(), false)
		it.page = nil
	}
}

// normalize hops leaves until idx points at an entry, unpinning each
// exhausted leaf. The iterator ends at the chain's last page or on a
// fetch fault.
func (it *Iterator) normalize() {
	for it.page != nil {
		it.page.RLatch()
		leaf := page.AsLeaf(it.page.Data())
		if it.idx < leaf.Size() {
			it.page.RUnlatch()
			return
		}
		next := leaf.Next()
		it.page.RUnlatch()

		_ = it.pool.UnpinPage(it.page.ID(), false)
		it.page = nil
		if next == base.InvalidPageID {
			return
		}
		np, err := it.pool.FetchPage(next)
		if err != nil {
			it.err = err
			return
		}
		it.page = np
		it.idx = 0
	}
}
