package ports

import "github.com/aretw0/coherence/pkg/domain"

// PageStore maps addresses to page records.
// Pages are created by Register and live as long as the store.
type PageStore interface {
	// Lookup returns the page containing addr.
	// Returns domain.ErrNotFound if no registered page contains it.
	Lookup(addr uint64) (*domain.Page, error)

	// Register creates count Invalid pages starting at the page aligned base.
	Register(base uint64, count int) error

	// PageSize returns the size of every page in bytes.
	PageSize() int

	// Pages returns all registered pages ordered by address.
	Pages() []*domain.Page
}

// Releaser is the OS memory interface used on invalidation.
type Releaser interface {
	// Release drops the physical backing of the page at addr while keeping it mapped.
	Release(addr uint64, backing []byte) error
}

// ReleaseFunc adapts a function to Releaser.
type ReleaseFunc func(addr uint64, backing []byte) error

// Release calls f.
func (f ReleaseFunc) Release(addr uint64, backing []byte) error {
	return f(addr, backing)
}
