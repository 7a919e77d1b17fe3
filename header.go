package pintree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"pintree/internal/base"
)

// The header page (well-known id 1) maps index names to root page ids,
// one fixed-size record per index:
//
//	[0]  count    uint32
//	[4]  record 0: name[32] | root int64
//	[44] record 1: ...
const (
	headerNameSize   = 32
	headerRecordSize = headerNameSize + 8
	headerRecordsOff = 4
	maxHeaderRecords = (base.PageSize - headerRecordsOff) / headerRecordSize
)

// ErrHeaderFull means the header page has no room for another index
// record.
var ErrHeaderFull = errors.New("header page full")

// headerPage is a view over the header page's bytes. Callers hold the
// page's latch.
type headerPage struct {
	data []byte
}

func (h headerPage) count() int     { return int(binary.LittleEndian.Uint32(h.data[0:4])) }
func (h headerPage) setCount(n int) { binary.LittleEndian.PutUint32(h.data[0:4], uint32(n)) }

func (h headerPage) recordOff(i int) int { return headerRecordsOff + i*headerRecordSize }

func (h headerPage) rootAt(i int) base.PageID {
	off := h.recordOff(i) + headerNameSize
	return base.PageID(binary.LittleEndian.Uint64(h.data[off:]))
}

func (h headerPage) setRootAt(i int, id base.PageID) {
	off := h.recordOff(i) + headerNameSize
	binary.LittleEndian.PutUint64(h.data[off:], uint64(id))
}

// find returns the record index for name, or -1.
func (h headerPage) find(name string) int {
	var want [headerNameSize]byte
	copy(want[:], name)
	for i := 0; i < h.count(); i++ {
		off := h.recordOff(i)
		if bytes.Equal(h.data[off:off+headerNameSize], want[:]) {
			return i
		}
	}
	return -1
}

// append adds a record for name. Returns false when the page is full.
func (h headerPage) append(name string, id base.PageID) bool {
	n := h.count()
	if n >= maxHeaderRecords {
		return false
	}
	off := h.recordOff(n)
	clear(h.data[off : off+headerNameSize])
	copy(h.data[off:], name)
	binary.LittleEndian.PutUint64(h.data[off+headerNameSize:], uint64(id))
	h.setCount(n + 1)
	return true
}

// readRootRecord recovers the persisted root page id for this index.
func (t *Tree) readRootRecord() (base.PageID, bool, error) {
	hp, err := t.pool.FetchPage(base.HeaderPageID)
	if err != nil {
		return base.InvalidPageID, false, err
	}
	hp.RLatch()
	h := headerPage{hp.Data()}
	i := h.find(t.name)
	id := base.InvalidPageID
	if i >= 0 {
		id = h.rootAt(i)
	}
	hp.RUnlatch()
	if err := t.pool.UnpinPage(base.HeaderPageID, false); err != nil {
		return base.InvalidPageID, false, err
	}
	return id, i >= 0, nil
}

// updateRootRecord persists the current root page id under the index
// name: a fresh record when insertRecord is set and none exists, an
// in-place rewrite otherwise. Called on every root change.
func (t *Tree) updateRootRecord(insertRecord bool) error {
	hp, err := t.pool.FetchPage(base.HeaderPageID)
	if err != nil {
		return err
	}
	hp.WLatch()
	h := headerPage{hp.Data()}
	rootID := t.rootID()

	i := h.find(t.name)
	switch {
	case i >= 0:
		h.setRootAt(i, rootID)
	case insertRecord:
		if !h.append(t.name, rootID) {
			err = ErrHeaderFull
		}
	default:
		hp.WUnlatch()
		_ = t.pool.UnpinPage(base.HeaderPageID, false)
		panic(fmt.Sprintf("pintree: header record for %q missing on update", t.name))
	}

	hp.WUnlatch()
	if uerr := t.pool.UnpinPage(base.HeaderPageID, true); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
