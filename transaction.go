package pintree

import (
	"pintree/internal/base"
	"pintree/internal/buffer"
)

// Transaction is the work set of one in-flight tree operation: the
// pages it has latched, in descent order, and the pages scheduled for
// deletion. The caller owns it; the tree pushes pages during descent
// and drains everything at well-defined exit points. A Transaction is
// not safe for concurrent use and is empty between operations.
type Transaction struct {
	pages   []*buffer.Page
	deleted map[base.PageID]struct{}
}

// NewTransaction returns an empty work set.
func NewTransaction() *Transaction {
	return &Transaction{deleted: make(map[base.PageID]struct{})}
}

// PageSet returns the latched pages in descent order.
func (tx *Transaction) PageSet() []*buffer.Page { return tx.pages }

// DeletedPageSet returns the pages scheduled for deletion.
func (tx *Transaction) DeletedPageSet() map[base.PageID]struct{} { return tx.deleted }

func (tx *Transaction) addPage(p *buffer.Page) { tx.pages = append(tx.pages, p) }

func (tx *Transaction) markDeleted(id base.PageID) { tx.deleted[id] = struct{}{} }

func (tx *Transaction) isDeleted(id base.PageID) bool {
	_, ok := tx.deleted[id]
	return ok
}
