package pintree

import (
	"fmt"

	"pintree/internal/base"
	"pintree/internal/buffer"
	"pintree/internal/page"
)

// Insert adds (key, rid) to the tree. It returns false when the key is
// already present; the tree is unchanged in that case. txn may be nil
// for single-threaded use.
func (t *Tree) Insert(key Key, rid RID, txn *Transaction) (bool, error) {
	for {
		if t.IsEmpty() {
			if err := t.startNewTree(); err != nil {
				return false, err
			}
		}
		inserted, retry, err := t.insertIntoLeaf(key, rid, txn)
		if err != nil || !retry {
			return inserted, err
		}
		// Lost a race against concurrent removes emptying the tree;
		// start over.
	}
}

// startNewTree installs an empty leaf as the root. Concurrent callers
// race on the CompareAndSwap; the loser deletes its page and proceeds
// against the winner's root.
func (t *Tree) startNewTree() error {
	np, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	id := np.ID()
	page.InitLeaf(np.Data(), id, base.InvalidPageID, t.leafMax)
	if err := t.pool.UnpinPage(id, true); err != nil {
		return err
	}

	if t.root.CompareAndSwap(int64(base.InvalidPageID), int64(id)) {
		return t.updateRootRecord(true)
	}
	t.log.Info("lost root installation race, discarding page", "page", id)
	if !t.pool.DeletePage(id) {
		panic(fmt.Sprintf("pintree: delete of unused root page %d failed", id))
	}
	return nil
}

// insertIntoLeaf crabs to the target leaf and inserts there, splitting
// on overflow. retry is set when the tree emptied out underneath us.
func (t *Tree) insertIntoLeaf(key Key, rid RID, txn *Transaction) (inserted, retry bool, err error) {
	lp, err := t.getLeafPage(key, txn, opInsert)
	if err != nil {
		return false, false, err
	}
	if lp == nil {
		return false, true, nil
	}

	leaf := page.AsLeaf(lp.Data())
	oldSize := leaf.Size()
	newSize := leaf.Insert(key, rid, t.cmp)
	inserted = newSize != oldSize

	if newSize > leaf.MaxSize() {
		if err := t.splitLeaf(lp, txn); err != nil {
			t.release(lp, txn, opInsert, true)
			return false, false, err
		}
	}
	t.release(lp, txn, opInsert, true)
	return inserted, false, nil
}

// splitLeaf moves the upper half of lp into a fresh right sibling and
// links the pair into the parent. The separator pushed up is the right
// sibling's smallest key.
func (t *Tree) splitLeaf(lp *buffer.Page, txn *Transaction) error {
	leaf := page.AsLeaf(lp.Data())

	np, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	newLeaf := page.InitLeaf(np.Data(), np.ID(), leaf.Parent(), t.leafMax)
	leaf.MoveHalfTo(newLeaf)

	err = t.insertIntoParent(leaf.Node, newLeaf.KeyAt(0), newLeaf.Node, txn)
	if uerr := t.pool.UnpinPage(np.ID(), true); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// insertIntoParent links a freshly split (left, right) pair under their
// parent, growing a new root when left was the root and recursing when
// the parent itself overflows.
func (t *Tree) insertIntoParent(left page.Node, key Key, right page.Node, txn *Transaction) error {
	parentID := left.Parent()
	if parentID == base.InvalidPageID {
		rp, err := t.pool.NewPage()
		if err != nil {
			return err
		}
		newRoot := page.InitInternal(rp.Data(), rp.ID(), base.InvalidPageID, t.internalMax)
		newRoot.PopulateNewRoot(left.Self(), key, right.Self())
		left.SetParent(rp.ID())
		right.SetParent(rp.ID())

		t.root.Store(int64(rp.ID()))
		err = t.updateRootRecord(false)
		if uerr := t.pool.UnpinPage(rp.ID(), true); uerr != nil && err == nil {
			err = uerr
		}
		return err
	}

	// The parent is write-latched through the work set: the child was
	// unsafe during descent, so crabbing kept its ancestors. This fetch
	// only adds a pin scoped to this frame.
	pp, err := t.pool.FetchPage(parentID)
	if err != nil {
		return err
	}
	parent := page.AsInternal(pp.Data())
	parent.InsertNodeAfter(left.Self(), key, right.Self())

	if parent.Size() > parent.MaxSize() {
		err = t.splitInternal(pp, txn)
	}
	if uerr := t.pool.UnpinPage(parentID, true); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// splitInternal moves the upper half of pp's children into a fresh
// sibling and recurses upward. The separator pushed up is the sibling's
// sentinel-slot key.
func (t *Tree) splitInternal(pp *buffer.Page, txn *Transaction) error {
	node := page.AsInternal(pp.Data())

	np, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	newNode := page.InitInternal(np.Data(), np.ID(), node.Parent(), t.internalMax)

	err = node.MoveHalfTo(newNode, t.pool)
	if err == nil {
		err = t.insertIntoParent(node.Node, newNode.KeyAt(0), newNode.Node, txn)
	}
	if uerr := t.pool.UnpinPage(np.ID(), true); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
