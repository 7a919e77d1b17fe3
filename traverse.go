package pintree

import (
	"fmt"

	"pintree/internal/base"
	"pintree/internal/buffer"
	"pintree/internal/page"
)

// op selects the latch mode and safety rule for a traversal.
type op int

const (
	opGet op = iota
	opInsert
	opRemove
)

func latchFor(mode op, p *buffer.Page) {
	if mode == opGet {
		p.RLatch()
	} else {
		p.WLatch()
	}
}

func unlatchFor(mode op, p *buffer.Page) {
	if mode == opGet {
		p.RUnlatch()
	} else {
		p.WUnlatch()
	}
}

// safe reports whether n cannot propagate a structural change upward
// under the given operation: an insert cannot split it, a remove cannot
// underflow it.
func safe(mode op, n page.Node) bool {
	switch mode {
	case opInsert:
		return n.Size() < n.MaxSize()
	case opRemove:
		return n.Size() > n.MinSize()
	default:
		return true
	}
}

// getLeafPage crabs from the root to the leaf owning key and returns it
// latched and pinned, or nil if the tree is empty. With a Transaction,
// every latched page is recorded in the work set and ancestors are
// released as soon as the current node proves safe; without one, plain
// latch coupling is used and only the leaf remains held.
func (t *Tree) getLeafPage(key Key, txn *Transaction, mode op) (*buffer.Page, error) {
	if txn != nil && len(txn.pages) != 0 {
		panic("pintree: transaction work set not empty at operation start")
	}

	// Latch the root page, then re-read the root id: a concurrent
	// writer may have replaced the root between the load and the latch.
	var cur *buffer.Page
	for {
		id := t.rootID()
		if id == base.InvalidPageID {
			return nil, nil
		}
		p, err := t.pool.FetchPage(id)
		if err != nil {
			return nil, err
		}
		latchFor(mode, p)
		if t.rootID() == id {
			cur = p
			break
		}
		unlatchFor(mode, p)
		_ = t.pool.UnpinPage(id, false)
	}
	if txn != nil {
		txn.addPage(cur)
	}

	for {
		node := page.AsNode(cur.Data())
		if node.IsLeaf() {
			return cur, nil
		}

		next := node.Internal().Lookup(key, t.cmp)
		np, err := t.pool.FetchPage(next)
		if err != nil {
			if txn != nil {
				t.drainWorkSet(txn, mode, false)
			} else {
				unlatchFor(mode, cur)
				_ = t.pool.UnpinPage(cur.ID(), false)
			}
			return nil, err
		}
		latchFor(mode, np)

		if txn == nil {
			unlatchFor(mode, cur)
			_ = t.pool.UnpinPage(cur.ID(), false)
		} else {
			if safe(mode, page.AsNode(np.Data())) {
				t.drainWorkSet(txn, mode, false)
			}
			txn.addPage(np)
		}
		cur = np
	}
}

// drainWorkSet releases every page in the work set in descent order:
// unlatch, unpin with the given dirty flag, then apply any scheduled
// deletion. It is the only place transactional latches are released.
func (t *Tree) drainWorkSet(txn *Transaction, mode op, dirty bool) {
	for _, p := range txn.pages {
		id := p.ID()
		unlatchFor(mode, p)
		if err := t.pool.UnpinPage(id, dirty); err != nil {
			panic(fmt.Sprintf("pintree: unbalanced unpin of page %d: %v", id, err))
		}
		if txn.isDeleted(id) {
			if !t.pool.DeletePage(id) {
				panic(fmt.Sprintf("pintree: delete of page %d failed", id))
			}
			delete(txn.deleted, id)
		}
	}
	txn.pages = txn.pages[:0]
}

// release ends an operation holding only the given leaf: drains the
// work set when a Transaction is present, otherwise unlatches and
// unpins inline.
func (t *Tree) release(p *buffer.Page, txn *Transaction, mode op, dirty bool) {
	if txn != nil {
		t.drainWorkSet(txn, mode, dirty)
		return
	}
	id := p.ID()
	unlatchFor(mode, p)
	if err := t.pool.UnpinPage(id, dirty); err != nil {
		panic(fmt.Sprintf("pintree: unbalanced unpin of page %d: %v", id, err))
	}
}

// fetchSibling pins a sibling page for structural repair. With a
// Transaction it is write-latched and pushed onto the work set; without
// one the caller unpins it after use.
func (t *Tree) fetchSibling(id base.PageID, txn *Transaction) (*buffer.Page, error) {
	p, err := t.pool.FetchPage(id)
	if err != nil {
		return nil, err
	}
	if txn != nil {
		p.WLatch()
		txn.addPage(p)
	}
	return p, nil
}

// releaseSibling undoes fetchSibling's pin for the nil-Transaction
// case; transactional siblings drain with the work set.
func (t *Tree) releaseSibling(p *buffer.Page, txn *Transaction, dirty bool) {
	if txn != nil {
		return
	}
	_ = t.pool.UnpinPage(p.ID(), dirty)
}
