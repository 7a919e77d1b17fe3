package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pintree/internal/base"
	"pintree/internal/storage"
)

func setup(t *testing.T, frames int) *Pool {
	t.Helper()
	disk, err := storage.Open(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { disk.Close() })

	pool, err := New(frames, disk)
	require.NoError(t, err)
	return pool
}

func TestNewPagePinnedAndZeroed(t *testing.T) {
	t.Parallel()

	pool := setup(t, 8)

	p, err := pool.NewPage()
	require.NoError(t, err)
	assert.Equal(t, 1, p.PinCount())
	assert.Equal(t, make([]byte, base.PageSize), p.Data())
	require.NoError(t, pool.UnpinPage(p.ID(), false))
	assert.Equal(t, 0, pool.PinnedPages())
}

func TestFetchPinsResident(t *testing.T) {
	t.Parallel()

	pool := setup(t, 8)

	p, err := pool.NewPage()
	require.NoError(t, err)
	id := p.ID()

	again, err := pool.FetchPage(id)
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 2, p.PinCount())

	require.NoError(t, pool.UnpinPage(id, false))
	require.NoError(t, pool.UnpinPage(id, true))
	assert.Equal(t, 0, pool.PinnedPages())
}

func TestPoolFullWhenAllPinned(t *testing.T) {
	t.Parallel()

	pool := setup(t, MinPoolSize)

	for i := 0; i < MinPoolSize; i++ {
		_, err := pool.NewPage()
		require.NoError(t, err)
	}
	_, err := pool.NewPage()
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestEvictionWritesBackDirtyPages(t *testing.T) {
	t.Parallel()

	pool := setup(t, MinPoolSize)

	ids := make([]base.PageID, 0, MinPoolSize)
	for i := 0; i < MinPoolSize; i++ {
		p, err := pool.NewPage()
		require.NoError(t, err)
		p.Data()[100] = byte(0x40 + i)
		ids = append(ids, p.ID())
		require.NoError(t, pool.UnpinPage(p.ID(), true))
	}

	// Force every original page out of the pool.
	for i := 0; i < MinPoolSize; i++ {
		p, err := pool.NewPage()
		require.NoError(t, err)
		require.NoError(t, pool.UnpinPage(p.ID(), false))
	}
	assert.GreaterOrEqual(t, pool.Stats().Evictions, uint64(MinPoolSize))

	for i, id := range ids {
		p, err := pool.FetchPage(id)
		require.NoError(t, err)
		assert.Equal(t, byte(0x40+i), p.Data()[100])
		require.NoError(t, pool.UnpinPage(id, false))
	}
}

func TestEvictsLeastRecentlyUnpinned(t *testing.T) {
	t.Parallel()

	pool := setup(t, MinPoolSize)

	ids := make([]base.PageID, 0, MinPoolSize)
	for i := 0; i < MinPoolSize; i++ {
		p, err := pool.NewPage()
		require.NoError(t, err)
		ids = append(ids, p.ID())
		require.NoError(t, pool.UnpinPage(p.ID(), true))
	}

	// Touch everything but ids[0] so it stays the coldest.
	for _, id := range ids[1:] {
		p, err := pool.FetchPage(id)
		require.NoError(t, err)
		require.NoError(t, pool.UnpinPage(p.ID(), false))
	}

	p, err := pool.NewPage()
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(p.ID(), false))

	misses := pool.Stats().Misses
	got, err := pool.FetchPage(ids[0])
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(got.ID(), false))
	assert.Equal(t, misses+1, pool.Stats().Misses, "coldest page should have been the victim")
}

func TestUnpinErrors(t *testing.T) {
	t.Parallel()

	pool := setup(t, 8)

	assert.ErrorIs(t, pool.UnpinPage(base.PageID(99), false), ErrPageNotResident)

	p, err := pool.NewPage()
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(p.ID(), false))
	assert.ErrorIs(t, pool.UnpinPage(p.ID(), false), ErrPageNotPinned)
}

func TestDeletePage(t *testing.T) {
	t.Parallel()

	pool := setup(t, 8)

	p, err := pool.NewPage()
	require.NoError(t, err)
	id := p.ID()

	assert.False(t, pool.DeletePage(id), "pinned page must not be deletable")

	require.NoError(t, pool.UnpinPage(id, true))
	assert.True(t, pool.DeletePage(id))

	// The freed id comes back on the next allocation.
	p, err = pool.NewPage()
	require.NoError(t, err)
	assert.Equal(t, id, p.ID())
	require.NoError(t, pool.UnpinPage(p.ID(), false))
}

func TestFlushAllPersists(t *testing.T) {
	t.Parallel()

	disk, err := storage.Open(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	defer disk.Close()

	pool, err := New(8, disk)
	require.NoError(t, err)

	p, err := pool.NewPage()
	require.NoError(t, err)
	id := p.ID()
	p.Data()[9] = 0x77
	require.NoError(t, pool.UnpinPage(id, true))
	require.NoError(t, pool.FlushAll())

	buf := make([]byte, base.PageSize)
	require.NoError(t, disk.ReadPage(id, buf))
	assert.Equal(t, byte(0x77), buf[9])
}
