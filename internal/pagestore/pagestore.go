package pagestore

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/memdisk/internal/resource"
)

// FreeBatch is the number of pages released per teardown batch. DropAll
// yields the processor between batches; the batch size bounds how long the
// store works between yields.
const FreeBatch = 16

// Page is a fixed-size zero-initialized byte buffer owned by exactly one
// Store. Its recorded index always equals its key in the store.
type Page struct {
	index uint64
	data  []byte
}

// Index returns the page's position in page-size units.
func (p *Page) Index() uint64 { return p.index }

// Data returns the page's backing bytes. The slice is a scoped borrow for
// the duration of a copy; callers must not retain it across the owning
// device's teardown.
func (p *Page) Data() []byte { return p.data }

// Store is a sparse mapping from page index to page.
//
// Lookup is lock-free. Insertion registers atomically and serializes only
// the occupancy bookkeeping. DropAll requires exclusive access: no transfer
// may be in flight against the owning device once teardown begins.
type Store struct {
	pageSize int
	ctrl     *resource.Controller

	pages sync.Map // uint64 -> *Page; entries are never removed outside DropAll

	mu       sync.Mutex // guards occupied
	occupied *roaring64.Bitmap

	count atomic.Int64
}

// New creates an empty store producing pages of pageSize bytes. Allocations
// are charged against ctrl; a nil controller means no budget.
func New(pageSize int, ctrl *resource.Controller) *Store {
	return &Store{
		pageSize: pageSize,
		ctrl:     ctrl,
		occupied: roaring64.New(),
	}
}

// PageSize returns the size in bytes of the pages this store produces.
func (s *Store) PageSize() int { return s.pageSize }

// Lookup returns the page at idx, or false if no byte within it has been
// written. It never allocates and never blocks on a concurrent insert.
func (s *Store) Lookup(idx uint64) (*Page, bool) {
	v, ok := s.pages.Load(idx)
	if !ok {
		return nil, false
	}
	p := v.(*Page)
	if p.index != idx {
		bug("page index %d does not match lookup key %d", p.index, idx)
	}
	return p, true
}

// InsertOrGet returns the page at idx, allocating a zero-filled page if none
// exists. The allocation happens outside any lock; if a concurrent insert
// wins the race the speculative page is discarded and the winner's page is
// returned. Returns resource.ErrMemoryLimitExceeded (wrapped) if the memory
// budget is exhausted.
func (s *Store) InsertOrGet(idx uint64) (*Page, error) {
	if p, ok := s.Lookup(idx); ok {
		return p, nil
	}

	if err := s.ctrl.AcquireMemory(int64(s.pageSize)); err != nil {
		return nil, fmt.Errorf("allocate page %d: %w", idx, err)
	}
	p := &Page{index: idx, data: make([]byte, s.pageSize)}

	if v, loaded := s.pages.LoadOrStore(idx, p); loaded {
		// Lost the race: another insert registered this index first.
		s.ctrl.ReleaseMemory(int64(s.pageSize))
		w := v.(*Page)
		if w.index != idx {
			bug("page index %d does not match insert key %d", w.index, idx)
		}
		return w, nil
	}

	s.mu.Lock()
	s.occupied.Add(idx)
	s.mu.Unlock()
	s.count.Add(1)

	return p, nil
}

// Len returns the number of pages currently allocated.
func (s *Store) Len() uint64 {
	n := s.count.Load()
	if n < 0 {
		bug("negative page count %d", n)
	}
	return uint64(n)
}

// Bytes returns the number of bytes currently held by allocated pages.
func (s *Store) Bytes() uint64 {
	return s.Len() * uint64(s.pageSize)
}

// Extent is a run of contiguously allocated pages.
type Extent struct {
	Start uint64 // first page index of the run
	Count uint64 // number of pages in the run
}

// Extents returns the allocated page runs in ascending index order. The
// result is exact when no insert is concurrently in flight.
func (s *Store) Extents() []Extent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var extents []Extent
	it := s.occupied.Iterator()
	for it.HasNext() {
		idx := it.Next()
		if n := len(extents); n > 0 && extents[n-1].Start+extents[n-1].Count == idx {
			extents[n-1].Count++
			continue
		}
		extents = append(extents, Extent{Start: idx, Count: 1})
	}
	return extents
}

// DropAll removes and releases every page, in batches of FreeBatch with a
// voluntary yield between batches. It must only be called when the owning
// device has no other referents: no lookup or insert may race with it.
// Returns the number of pages freed. ctx is observed only between batches
// (for release pacing); a page batch always runs to completion.
func (s *Store) DropAll(ctx context.Context) uint64 {
	var freed uint64
	batch := make([]uint64, 0, FreeBatch)

	for {
		batch = batch[:0]

		s.mu.Lock()
		it := s.occupied.Iterator()
		for it.HasNext() && len(batch) < FreeBatch {
			batch = append(batch, it.Next())
		}
		for _, idx := range batch {
			s.occupied.Remove(idx)
		}
		s.mu.Unlock()

		if len(batch) == 0 {
			return freed
		}

		for _, idx := range batch {
			v, ok := s.pages.LoadAndDelete(idx)
			if !ok {
				bug("page %d tracked as occupied but missing from store", idx)
			}
			p := v.(*Page)
			if p.index != idx {
				bug("page index %d does not match teardown key %d", p.index, idx)
			}
			s.ctrl.ReleaseMemory(int64(s.pageSize))
			s.count.Add(-1)
			freed++
		}

		// Releasing a very large store takes long enough to matter (tens of
		// seconds at extreme sizes); stay cooperative between batches.
		_ = s.ctrl.PaceRelease(ctx, len(batch)*s.pageSize)
		runtime.Gosched()

		if len(batch) < FreeBatch {
			return freed
		}
	}
}

// bug reports a broken store invariant. This is a programming defect, not a
// runtime condition: continuing would silently corrupt device contents, so
// the process aborts instead of returning an error.
func bug(format string, args ...any) {
	panic("pagestore: invariant violation: " + fmt.Sprintf(format, args...))
}
