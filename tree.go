package pintree

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"pintree/internal/base"
	"pintree/internal/buffer"
	"pintree/internal/page"
	"pintree/internal/storage"
)

// Tree is a disk-backed B+tree index mapping unique fixed-width keys to
// record identifiers. All methods are safe for concurrent use when each
// goroutine passes its own Transaction; passing a nil Transaction skips
// latching on the structural repair paths and is only safe for
// single-threaded access.
type Tree struct {
	name string
	disk *storage.Manager
	pool *buffer.Pool
	cmp  Compare
	log  Logger

	leafMax     int
	internalMax int

	// root is the current root page id. Readers load it atomically and
	// re-check after latching the root page; the first installation
	// goes through CompareAndSwap.
	root   atomic.Int64
	closed atomic.Bool
}

// Open opens or creates the index stored in the page file at path. The
// root page id is recovered from the header page record under the
// index name.
func Open(path string, options ...Option) (*Tree, error) {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	if len(opts.name) > headerNameSize {
		return nil, ErrNameTooLong
	}

	disk, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	pool, err := buffer.New(opts.poolSize, disk)
	if err != nil {
		disk.Close()
		return nil, err
	}

	t := &Tree{
		name:        opts.name,
		disk:        disk,
		pool:        pool,
		cmp:         opts.cmp,
		log:         opts.logger,
		leafMax:     opts.leafMaxSize,
		internalMax: opts.internalMaxSize,
	}
	t.root.Store(int64(base.InvalidPageID))

	rootID, found, err := t.readRootRecord()
	if err != nil {
		disk.Close()
		return nil, err
	}
	if found {
		t.root.Store(int64(rootID))
	}

	t.log.Info("index opened", "name", t.name, "root", rootID)
	return t, nil
}

// Close flushes every dirty page and closes the page file.
func (t *Tree) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := t.pool.FlushAll(); err != nil {
		t.log.Warn("flush on close failed", "error", err)
		t.disk.Close()
		return err
	}
	return t.disk.Close()
}

// Name returns the index name used in the header page record.
func (t *Tree) Name() string { return t.name }

// IsEmpty reports whether the tree holds no keys.
func (t *Tree) IsEmpty() bool { return t.rootID() == base.InvalidPageID }

func (t *Tree) rootID() base.PageID { return base.PageID(t.root.Load()) }

// Get returns the value stored under key. txn may be nil for
// single-threaded use.
func (t *Tree) Get(key Key, txn *Transaction) (RID, bool, error) {
	lp, err := t.getLeafPage(key, txn, opGet)
	if err != nil {
		return RID{}, false, err
	}
	if lp == nil {
		return RID{}, false, nil
	}
	rid, ok := page.AsLeaf(lp.Data()).Lookup(key, t.cmp)
	t.release(lp, txn, opGet, false)
	return rid, ok, nil
}

// Stats returns the buffer pool's cumulative counters.
func (t *Tree) Stats() buffer.Stats { return t.pool.Stats() }

// String renders the tree rank by rank for debugging, with keys decoded
// via KeyInt64. Each page is fetched and unpinned exactly once.
func (t *Tree) String() string {
	rootID := t.rootID()
	if rootID == base.InvalidPageID {
		return "empty tree"
	}

	var b strings.Builder
	level := []base.PageID{rootID}
	for len(level) > 0 {
		var next []base.PageID
		for i, id := range level {
			if i > 0 {
				b.WriteString("  ")
			}
			p, err := t.pool.FetchPage(id)
			if err != nil {
				fmt.Fprintf(&b, "<page %d: %v>", id, err)
				continue
			}
			p.RLatch()
			n := page.AsNode(p.Data())
			if n.IsLeaf() {
				leaf := n.Leaf()
				b.WriteByte('[')
				for j := 0; j < leaf.Size(); j++ {
					if j > 0 {
						b.WriteByte(' ')
					}
					fmt.Fprintf(&b, "%d", KeyInt64(leaf.KeyAt(j)))
				}
				b.WriteByte(']')
			} else {
				in := n.Internal()
				b.WriteByte('(')
				for j := 0; j < in.Size(); j++ {
					if j > 0 {
						fmt.Fprintf(&b, " %d ", KeyInt64(in.KeyAt(j)))
					}
					next = append(next, in.ChildAt(j))
					fmt.Fprintf(&b, "*%d", in.ChildAt(j))
				}
				b.WriteByte(')')
			}
			p.RUnlatch()
			_ = t.pool.UnpinPage(id, false)
		}
		b.WriteByte('\n')
		level = next
	}
	return b.String()
}

// InsertFromFile inserts one key per whitespace-separated integer in
// the named file, using the integer as both key and record id.
func (t *Tree) InsertFromFile(path string, txn *Transaction) error {
	return t.eachInt(path, func(v int64) error {
		_, err := t.Insert(Int64Key(v), RID{Page: base.PageID(v), Slot: uint32(v)}, txn)
		return err
	})
}

// RemoveFromFile removes one key per whitespace-separated integer in
// the named file.
func (t *Tree) RemoveFromFile(path string, txn *Transaction) error {
	return t.eachInt(path, func(v int64) error {
		return t.Remove(Int64Key(v), txn)
	})
}

func (t *Tree) eachInt(path string, fn func(int64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseInt(sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("pintree: parse %q: %w", sc.Text(), err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}
