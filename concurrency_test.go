package pintree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentDisjointInserts(t *testing.T) {
	t.Parallel()

	tr := setup(t, WithPoolSize(256))

	const (
		writers = 8
		total   = 1000
		span    = total / writers
	)

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			txn := NewTransaction()
			for v := int64(w*span + 1); v <= int64((w+1)*span); v++ {
				ok, err := tr.Insert(Int64Key(v), RID{Page: PageID(v), Slot: uint32(v)}, txn)
				if err != nil {
					errs <- err
					return
				}
				if !ok {
					t.Errorf("key %d reported duplicate", v)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	keys := collect(t, tr)
	require.Len(t, keys, total)
	for i, k := range keys {
		assert.Equal(t, int64(i+1), k)
	}
	checkInvariants(t, tr)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	t.Parallel()

	tr := setup(t, WithPoolSize(256))
	insert(t, tr, 1, 2, 3, 4, 5)

	const (
		writers = 4
		readers = 4
		span    = 100
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			txn := NewTransaction()
			for v := int64(10 + w*span); v < int64(10+(w+1)*span); v++ {
				if _, err := tr.Insert(Int64Key(v), RID{Page: PageID(v), Slot: uint32(v)}, txn); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn := NewTransaction()
			for i := 0; i < 500; i++ {
				v := int64(i%5 + 1)
				rid, ok, err := tr.Get(Int64Key(v), txn)
				if err != nil {
					t.Error(err)
					return
				}
				if !ok {
					t.Errorf("stable key %d disappeared", v)
					return
				}
				if rid.Page != PageID(v) {
					t.Errorf("stable key %d has value %d", v, rid.Page)
					return
				}
			}
		}()
	}
	wg.Wait()

	keys := collect(t, tr)
	assert.Len(t, keys, 5+writers*span)
	checkInvariants(t, tr)
}

func TestConcurrentMixedOps(t *testing.T) {
	t.Parallel()

	tr := setup(t, WithPoolSize(256))

	const total = 600
	insertRange := func(lo, hi int64) {
		txn := NewTransaction()
		for v := lo; v < hi; v++ {
			if _, err := tr.Insert(Int64Key(v), RID{Page: PageID(v), Slot: uint32(v)}, txn); err != nil {
				t.Error(err)
				return
			}
		}
	}

	// Phase 1: populate concurrently.
	var wg sync.WaitGroup
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			insertRange(int64(w*100), int64((w+1)*100))
		}(w)
	}
	wg.Wait()

	// Phase 2: concurrent removers of even keys and readers of odd keys.
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			txn := NewTransaction()
			for v := int64(w * 2); v < total; v += 8 {
				if err := tr.Remove(Int64Key(v), txn); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn := NewTransaction()
			for v := int64(1); v < total; v += 2 {
				_, ok, err := tr.Get(Int64Key(v), txn)
				if err != nil {
					t.Error(err)
					return
				}
				if !ok {
					t.Errorf("odd key %d disappeared", v)
					return
				}
			}
		}()
	}
	wg.Wait()

	keys := collect(t, tr)
	require.Len(t, keys, total/2)
	for i, k := range keys {
		assert.Equal(t, int64(2*i+1), k, "only odd keys survive")
	}
	checkInvariants(t, tr)
}
