package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/coherence/pkg/domain"
)

// Allocator returns size bytes of zeroed page backing.
type Allocator func(size int) ([]byte, error)

// HeapAllocator allocates backing from the Go heap.
func HeapAllocator(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// Store implements ports.PageStore in memory.
// Safe for concurrent use.
type Store struct {
	pageSize int
	alloc    Allocator

	mu      sync.RWMutex
	pages   map[uint64]*domain.Page
	ordered []*domain.Page
}

// Option configures the Store.
type Option func(*Store)

// WithPageSize sets the page size. Defaults to domain.DefaultPageSize.
func WithPageSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithAllocator sets where region backing comes from. Defaults to the heap.
func WithAllocator(alloc Allocator) Option {
	return func(s *Store) {
		if alloc != nil {
			s.alloc = alloc
		}
	}
}

// NewStore creates an empty page store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		pageSize: domain.DefaultPageSize,
		alloc:    HeapAllocator,
		pages:    make(map[uint64]*domain.Page),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize returns the size of every page in bytes.
func (s *Store) PageSize() int {
	return s.pageSize
}

// Lookup returns the page containing addr.
func (s *Store) Lookup(addr uint64) (*domain.Page, error) {
	base := addr - addr%uint64(s.pageSize)

	s.mu.RLock()
	defer s.mu.RUnlock()

	page, ok := s.pages[base]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", domain.ErrNotFound, addr)
	}
	return page, nil
}

// Register allocates one contiguous block for count pages starting at base.
func (s *Store) Register(base uint64, count int) error {
	size := uint64(s.pageSize)
	if count <= 0 {
		return fmt.Errorf("page count must be positive, got %d", count)
	}
	if base%size != 0 {
		return fmt.Errorf("%w: %#x (page size %d)", domain.ErrMisaligned, base, size)
	}
	if base+uint64(count)*size < base {
		return fmt.Errorf("region at %#x with %d pages overflows the address space", base, count)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < count; i++ {
		addr := base + uint64(i)*size
		if _, exists := s.pages[addr]; exists {
			return fmt.Errorf("%w: %#x", domain.ErrRegionOverlap, addr)
		}
	}

	block, err := s.alloc(count * s.pageSize)
	if err != nil {
		return fmt.Errorf("failed to allocate %d pages: %w", count, err)
	}
	if len(block) < count*s.pageSize {
		return fmt.Errorf("allocator returned %d bytes, need %d", len(block), count*s.pageSize)
	}

	for i := 0; i < count; i++ {
		lo, hi := i*s.pageSize, (i+1)*s.pageSize
		page := domain.NewPage(base+uint64(lo), block[lo:hi:hi])
		s.pages[page.Addr] = page
		s.ordered = append(s.ordered, page)
	}

	sort.Slice(s.ordered, func(i, j int) bool {
		return s.ordered[i].Addr < s.ordered[j].Addr
	})
	return nil
}

// Pages returns all registered pages ordered by address.
func (s *Store) Pages() []*domain.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]*domain.Page, len(s.ordered))
	copy(pages, s.ordered)
	return pages
}

// Releaser zeroes page backing. It is the heap counterpart of madvise(MADV_DONTNEED).
type Releaser struct{}

// Release zeroes backing.
func (Releaser) Release(_ uint64, backing []byte) error {
	clear(backing)
	return nil
}
