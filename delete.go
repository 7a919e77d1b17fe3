package pintree

import (
	"fmt"

	"pintree/internal/base"
	"pintree/internal/buffer"
	"pintree/internal/page"
)

// Remove deletes key from the tree. A missing key is a no-op. txn may
// be nil for single-threaded use.
func (t *Tree) Remove(key Key, txn *Transaction) error {
	if t.IsEmpty() {
		return nil
	}
	lp, err := t.getLeafPage(key, txn, opRemove)
	if err != nil {
		return err
	}
	if lp == nil {
		return nil
	}

	leaf := page.AsLeaf(lp.Data())
	newSize := leaf.RemoveAndDelete(key, t.cmp)

	var dead bool
	if newSize < leaf.MinSize() {
		dead, err = t.coalesceOrRedistribute(page.AsNode(lp.Data()), txn)
		if err != nil {
			t.release(lp, txn, opRemove, true)
			return err
		}
	}

	if dead {
		if txn != nil {
			txn.markDeleted(lp.ID())
		} else {
			id := lp.ID()
			lp.WUnlatch()
			if uerr := t.pool.UnpinPage(id, true); uerr != nil {
				panic(fmt.Sprintf("pintree: unbalanced unpin of page %d: %v", id, uerr))
			}
			if !t.pool.DeletePage(id) {
				panic(fmt.Sprintf("pintree: delete of page %d failed", id))
			}
			return nil
		}
	}
	t.release(lp, txn, opRemove, true)
	return nil
}

// coalesceOrRedistribute restores node's minimum occupancy after a
// remove, preferring to rotate a single entry from a sibling and
// falling back to a merge that may propagate upward. It reports whether
// node itself must be deleted by the caller.
func (t *Tree) coalesceOrRedistribute(node page.Node, txn *Transaction) (bool, error) {
	if node.Size() >= node.MinSize() {
		return false, nil
	}
	if node.IsRoot() {
		return t.adjustRoot(node)
	}

	pp, err := t.pool.FetchPage(node.Parent())
	if err != nil {
		return false, err
	}
	parentID := pp.ID()
	parent := page.AsInternal(pp.Data())
	at := parent.ValueIndex(node.Self())
	if at < 0 {
		panic(fmt.Sprintf("pintree: page %d missing from parent %d", node.Self(), parentID))
	}

	if at >= 1 {
		// A left sibling exists: rotate its last entry over, or merge
		// node into it.
		ls, err := t.fetchSibling(parent.ChildAt(at-1), txn)
		if err != nil {
			_ = t.pool.UnpinPage(parentID, false)
			return false, err
		}
		left := page.AsNode(ls.Data())

		if left.Size() > left.MinSize() {
			err = t.redistribute(left, node, sideLeft)
			t.releaseSibling(ls, txn, true)
			_ = t.pool.UnpinPage(parentID, true)
			return false, err
		}

		if node.IsLeaf() {
			node.Leaf().MoveAllTo(left.Leaf())
		} else {
			err = node.Internal().MoveAllTo(left.Internal(), parent.KeyAt(at), t.pool)
		}
		parent.Remove(at)
		t.releaseSibling(ls, txn, true)
		if err != nil {
			_ = t.pool.UnpinPage(parentID, true)
			return false, err
		}
		err = t.repairParent(pp, txn)
		return true, err
	}

	// Node is its parent's first child: the right sibling must exist,
	// and with nothing to borrow it is absorbed into node so the leaf
	// chain stays intact.
	if parent.Size() < 2 {
		panic(fmt.Sprintf("pintree: non-root internal page %d has %d children", parentID, parent.Size()))
	}
	rs, err := t.fetchSibling(parent.ChildAt(1), txn)
	if err != nil {
		_ = t.pool.UnpinPage(parentID, false)
		return false, err
	}
	right := page.AsNode(rs.Data())

	if right.Size() > right.MinSize() {
		err = t.redistribute(right, node, sideRight)
		t.releaseSibling(rs, txn, true)
		_ = t.pool.UnpinPage(parentID, true)
		return false, err
	}

	if node.IsLeaf() {
		right.Leaf().MoveAllTo(node.Leaf())
	} else {
		err = right.Internal().MoveAllTo(node.Internal(), parent.KeyAt(1), t.pool)
	}
	parent.Remove(1)
	rsID := rs.ID()
	if txn != nil {
		txn.markDeleted(rsID)
	} else {
		_ = t.pool.UnpinPage(rsID, true)
		if !t.pool.DeletePage(rsID) {
			panic(fmt.Sprintf("pintree: delete of page %d failed", rsID))
		}
	}
	if err != nil {
		_ = t.pool.UnpinPage(parentID, true)
		return false, err
	}
	err = t.repairParent(pp, txn)
	return false, err
}

// repairParent recurses after a merge removed an entry from the parent,
// scheduling the parent's own deletion when the recursion asks for it.
// The extra pin taken by coalesceOrRedistribute is dropped here.
func (t *Tree) repairParent(pp *buffer.Page, txn *Transaction) error {
	parentID := pp.ID()
	dead, err := t.coalesceOrRedistribute(page.AsNode(pp.Data()), txn)
	if uerr := t.pool.UnpinPage(parentID, true); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil || !dead {
		return err
	}
	if txn != nil {
		txn.markDeleted(parentID)
		return nil
	}
	if !t.pool.DeletePage(parentID) {
		panic(fmt.Sprintf("pintree: delete of page %d failed", parentID))
	}
	return nil
}

type side int

const (
	sideLeft  side = iota // neighbor is node's left sibling
	sideRight             // neighbor is node's right sibling
)

// redistribute rotates one entry from neighbor into node. The parent
// separator maintenance and child re-parenting happen inside the move
// primitives, where neighbor, node, and parent are all held.
func (t *Tree) redistribute(neighbor, node page.Node, s side) error {
	if s == sideLeft {
		if node.IsLeaf() {
			return neighbor.Leaf().MoveLastToFrontOf(node.Leaf(), t.pool)
		}
		return neighbor.Internal().MoveLastToFrontOf(node.Internal(), t.pool)
	}
	if node.IsLeaf() {
		return neighbor.Leaf().MoveFirstToEndOf(node.Leaf(), t.pool)
	}
	return neighbor.Internal().MoveFirstToEndOf(node.Internal(), t.pool)
}

// adjustRoot handles underflow at the root: an empty leaf root empties
// the tree, and an internal root left with a single child promotes it.
// It reports whether the old root page must be deleted.
func (t *Tree) adjustRoot(oldRoot page.Node) (bool, error) {
	if oldRoot.IsLeaf() {
		if oldRoot.Size() > 0 {
			return false, nil
		}
		t.root.Store(int64(base.InvalidPageID))
		return true, t.updateRootRecord(false)
	}

	if oldRoot.Size() == 1 {
		childID := oldRoot.Internal().ChildAt(0)
		cp, err := t.pool.FetchPage(childID)
		if err != nil {
			return false, err
		}
		page.AsNode(cp.Data()).SetParent(base.InvalidPageID)
		t.root.Store(int64(childID))
		err = t.updateRootRecord(false)
		if uerr := t.pool.UnpinPage(childID, true); uerr != nil && err == nil {
			err = uerr
		}
		return true, err
	}
	return false, nil
}
