package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"pintree/internal/base"
)

const (
	// MagicNumber for file format identification ("pint" in hex)
	MagicNumber uint32 = 0x70696e74

	FormatVersion uint16 = 1

	// Meta layout: [Magic: 4][Version: 2][Reserved: 2][PageSize: 4][NextPageID: 8][Checksum: 8]
	metaSize         = 28
	metaChecksumOff  = 20
	metaChecksumSpan = 20 // checksummed prefix: everything before the checksum itself
)

// Manager owns the page file. Page n lives at byte offset n*PageSize;
// page 0 is the meta page. Deallocated ids are reused within a process
// lifetime via an in-memory free list; the file never shrinks.
type Manager struct {
	mu   sync.Mutex
	file *os.File
	path string

	nextPageID base.PageID
	free       []base.PageID
}

// Open opens or creates the page file at path and validates its meta page.
func Open(path string) (*Manager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	m := &Manager{file: file, path: path}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		// Fresh file: page 0 is meta, page 1 is reserved for the index
		// header page. It is never written until first use; reads of
		// unwritten pages return zeroes.
		m.nextPageID = base.HeaderPageID + 1
		if err := m.writeMeta(); err != nil {
			file.Close()
			return nil, err
		}
		return m, nil
	}

	if err := m.readMeta(); err != nil {
		file.Close()
		return nil, err
	}
	return m, nil
}

// Allocate hands out a page id, reusing a deallocated one when available.
func (m *Manager) Allocate() base.PageID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.free); n > 0 {
		id := m.free[n-1]
		m.free = m.free[:n-1]
		return id
	}
	id := m.nextPageID
	m.nextPageID++
	return id
}

// Deallocate returns id to the free list for reuse. The page's bytes are
// left in place until the id is handed out again.
func (m *Manager) Deallocate(id base.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.free = append(m.free, id)
}

// ReadPage fills buf with page id's contents. Reads past the current end
// of file return a zeroed page: allocation extends the file lazily.
func (m *Manager) ReadPage(id base.PageID, buf []byte) error {
	if id <= base.MetaPageID {
		return fmt.Errorf("storage: read page %d: %w", id, base.ErrInvalidPageID)
	}
	if len(buf) != base.PageSize {
		return base.ErrInvalidPageSize
	}

	n, err := m.file.ReadAt(buf, int64(id)*base.PageSize)
	if err == io.EOF || (err == nil && n == base.PageSize) {
		for i := n; i < base.PageSize; i++ {
			buf[i] = 0
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read page %d: %w", id, err)
	}
	return nil
}

// WritePage writes buf as page id's contents.
func (m *Manager) WritePage(id base.PageID, buf []byte) error {
	if id <= base.MetaPageID {
		return fmt.Errorf("storage: write page %d: %w", id, base.ErrInvalidPageID)
	}
	if len(buf) != base.PageSize {
		return base.ErrInvalidPageSize
	}
	if _, err := m.file.WriteAt(buf, int64(id)*base.PageSize); err != nil {
		return fmt.Errorf("storage: write page %d: %w", id, err)
	}
	return nil
}

// Sync flushes written pages and the meta page to stable storage.
func (m *Manager) Sync() error {
	m.mu.Lock()
	if err := m.writeMetaLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	return fdatasync(m.file)
}

// Close syncs and closes the page file.
func (m *Manager) Close() error {
	if err := m.Sync(); err != nil {
		m.file.Close()
		return err
	}
	return m.file.Close()
}

// PageCount reports how many page ids have been handed out, meta included.
func (m *Manager) PageCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(m.nextPageID)
}

func (m *Manager) writeMeta() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeMetaLocked()
}

func (m *Manager) writeMetaLocked() error {
	var meta [base.PageSize]byte
	binary.LittleEndian.PutUint32(meta[0:4], MagicNumber)
	binary.LittleEndian.PutUint16(meta[4:6], FormatVersion)
	binary.LittleEndian.PutUint32(meta[8:12], base.PageSize)
	binary.LittleEndian.PutUint64(meta[12:20], uint64(m.nextPageID))
	sum := xxhash.Sum64(meta[:metaChecksumSpan])
	binary.LittleEndian.PutUint64(meta[metaChecksumOff:metaChecksumOff+8], sum)

	if _, err := m.file.WriteAt(meta[:], 0); err != nil {
		return fmt.Errorf("storage: write meta: %w", err)
	}
	return nil
}

func (m *Manager) readMeta() error {
	var meta [metaSize]byte
	if _, err := m.file.ReadAt(meta[:], 0); err != nil {
		return fmt.Errorf("storage: read meta: %w", err)
	}

	if binary.LittleEndian.Uint32(meta[0:4]) != MagicNumber {
		return base.ErrInvalidMagicNumber
	}
	if binary.LittleEndian.Uint16(meta[4:6]) != FormatVersion {
		return base.ErrInvalidVersion
	}
	if binary.LittleEndian.Uint32(meta[8:12]) != base.PageSize {
		return base.ErrInvalidPageSize
	}
	sum := xxhash.Sum64(meta[:metaChecksumSpan])
	if binary.LittleEndian.Uint64(meta[metaChecksumOff:metaChecksumOff+8]) != sum {
		return base.ErrInvalidChecksum
	}

	m.nextPageID = base.PageID(binary.LittleEndian.Uint64(meta[12:20]))
	return nil
}
