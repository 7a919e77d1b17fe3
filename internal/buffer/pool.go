package buffer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/elastic/go-freelru"

	"pintree/internal/base"
)

var (
	// ErrPoolFull means every frame is pinned. Callers must release all
	// held latches and pins before propagating it.
	ErrPoolFull = errors.New("buffer pool full: all frames pinned")

	ErrPageNotResident = errors.New("page not resident in buffer pool")
	ErrPageNotPinned   = errors.New("page is not pinned")
)

// MinPoolSize bounds the pool from below: a traversal pins one page per
// tree level plus siblings during repair.
const MinPoolSize = 4

// Page is a buffer pool frame. The handle returned by NewPage/FetchPage
// is valid only while the caller holds a pin; after the matching
// UnpinPage the frame may be recycled for another page.
type Page struct {
	id    base.PageID
	pin   atomic.Int32
	dirty bool // guarded by the pool mutex
	latch sync.RWMutex
	data  [base.PageSize]byte
}

// ID returns the page id currently held by this frame.
func (p *Page) ID() base.PageID { return p.id }

// Data returns the page's byte buffer. Callers must hold the page latch
// while reading or writing it.
func (p *Page) Data() []byte { return p.data[:] }

// PinCount reports the current pin count.
func (p *Page) PinCount() int { return int(p.pin.Load()) }

// RLatch takes the page's shared latch.
func (p *Page) RLatch() { p.latch.RLock() }

// RUnlatch releases the shared latch.
func (p *Page) RUnlatch() { p.latch.RUnlock() }

// WLatch takes the page's exclusive latch.
func (p *Page) WLatch() { p.latch.Lock() }

// WUnlatch releases the exclusive latch.
func (p *Page) WUnlatch() { p.latch.Unlock() }

// Stats are cumulative pool counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Pool caches pages in a fixed set of frames. Pages with a nonzero pin
// count are wired; frames whose pin count drops to zero become eviction
// candidates, tracked least-recently-unpinned first.
type Pool struct {
	mu        sync.Mutex
	disk      DiskManager
	frames    []*Page
	table     map[base.PageID]base.FrameID
	freeList  []base.FrameID
	replacer  *freelru.LRU[base.FrameID, struct{}]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// DiskManager is the slice of the storage layer the pool needs.
type DiskManager interface {
	Allocate() base.PageID
	Deallocate(id base.PageID)
	ReadPage(id base.PageID, buf []byte) error
	WritePage(id base.PageID, buf []byte) error
}

// New creates a pool with poolSize frames backed by disk.
func New(poolSize int, disk DiskManager) (*Pool, error) {
	if poolSize < MinPoolSize {
		poolSize = MinPoolSize
	}

	replacer, err := freelru.New[base.FrameID, struct{}](
		uint32(poolSize),
		func(id base.FrameID) uint32 { return uint32(id) },
	)
	if err != nil {
		return nil, fmt.Errorf("buffer: replacer: %w", err)
	}

	p := &Pool{
		disk:     disk,
		frames:   make([]*Page, poolSize),
		table:    make(map[base.PageID]base.FrameID, poolSize),
		freeList: make([]base.FrameID, 0, poolSize),
		replacer: replacer,
	}
	for i := range p.frames {
		p.frames[i] = &Page{id: base.InvalidPageID}
		p.freeList = append(p.freeList, base.FrameID(i))
	}
	return p, nil
}

// NewPage allocates a fresh page, pinned once and zeroed.
func (p *Pool) NewPage() (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, err := p.claimFrame()
	if err != nil {
		return nil, err
	}

	id := p.disk.Allocate()
	f := p.frames[fid]
	clear(f.data[:])
	f.id = id
	f.pin.Store(1)
	f.dirty = true
	p.table[id] = fid
	return f, nil
}

// FetchPage returns the frame holding page id, pinning it. Misses read
// the page from disk into a claimed frame.
func (p *Pool) FetchPage(id base.PageID) (*Page, error) {
	if id == base.InvalidPageID {
		return nil, base.ErrInvalidPageID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if fid, ok := p.table[id]; ok {
		f := p.frames[fid]
		if f.pin.Load() == 0 {
			p.replacer.Remove(fid)
		}
		f.pin.Add(1)
		p.hits.Add(1)
		return f, nil
	}
	p.misses.Add(1)

	fid, err := p.claimFrame()
	if err != nil {
		return nil, err
	}
	f := p.frames[fid]
	if err := p.disk.ReadPage(id, f.data[:]); err != nil {
		p.freeList = append(p.freeList, fid)
		return nil, err
	}
	f.id = id
	f.pin.Store(1)
	f.dirty = false
	p.table[id] = fid
	return f, nil
}

// UnpinPage drops one pin from page id and ORs in the dirty flag. The
// frame becomes evictable when the count reaches zero.
func (p *Pool) UnpinPage(id base.PageID, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.table[id]
	if !ok {
		return fmt.Errorf("buffer: unpin page %d: %w", id, ErrPageNotResident)
	}
	f := p.frames[fid]
	if f.pin.Load() <= 0 {
		return fmt.Errorf("buffer: unpin page %d: %w", id, ErrPageNotPinned)
	}
	if dirty {
		f.dirty = true
	}
	if f.pin.Add(-1) == 0 {
		p.replacer.Add(fid, struct{}{})
	}
	return nil
}

// DeletePage drops page id from the pool and returns its id to the disk
// free list. Returns false if the page is still pinned.
func (p *Pool) DeletePage(id base.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fid, ok := p.table[id]; ok {
		f := p.frames[fid]
		if f.pin.Load() > 0 {
			return false
		}
		p.replacer.Remove(fid)
		delete(p.table, id)
		f.id = base.InvalidPageID
		f.dirty = false
		p.freeList = append(p.freeList, fid)
	}
	p.disk.Deallocate(id)
	return true
}

// FlushPage writes page id back to disk if resident and dirty.
func (p *Pool) FlushPage(id base.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.table[id]
	if !ok {
		return fmt.Errorf("buffer: flush page %d: %w", id, ErrPageNotResident)
	}
	return p.flushFrameLocked(p.frames[fid])
}

// FlushAll writes every dirty resident page back to disk. Callers must
// have quiesced writers first.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, fid := range p.table {
		if err := p.flushFrameLocked(p.frames[fid]); err != nil {
			return err
		}
	}
	return nil
}

// PinnedPages reports how many resident pages currently hold pins.
// Zero between operations is the pin-balance invariant.
func (p *Pool) PinnedPages() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, fid := range p.table {
		if p.frames[fid].pin.Load() > 0 {
			n++
		}
	}
	return n
}

// Stats returns cumulative counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
	}
}

func (p *Pool) flushFrameLocked(f *Page) error {
	if !f.dirty {
		return nil
	}
	if err := p.disk.WritePage(f.id, f.data[:]); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// claimFrame returns a frame free for reuse, evicting the
// least-recently-unpinned page if necessary.
func (p *Pool) claimFrame() (base.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, nil
	}

	fid, _, ok := p.replacer.RemoveOldest()
	if !ok {
		return 0, ErrPoolFull
	}
	victim := p.frames[fid]
	if victim.dirty {
		if err := p.disk.WritePage(victim.id, victim.data[:]); err != nil {
			p.replacer.Add(fid, struct{}{})
			return 0, err
		}
	}
	delete(p.table, victim.id)
	victim.id = base.InvalidPageID
	victim.dirty = false
	p.evictions.Add(1)
	return fid, nil
}
