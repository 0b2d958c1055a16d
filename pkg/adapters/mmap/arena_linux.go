//go:build linux

package mmap

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrUnaligned is returned when a buffer does not cover whole OS pages.
var ErrUnaligned = errors.New("buffer not aligned to OS pages")

// Arena hands out anonymous private mappings and unmaps them on Close.
type Arena struct {
	mu       sync.Mutex
	mappings [][]byte
	closed   bool
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Allocate maps size bytes of zeroed read/write memory. size must be a multiple of
// the OS page size. It satisfies memory.Allocator.
func (a *Arena) Allocate(size int) ([]byte, error) {
	if size <= 0 || size%os.Getpagesize() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnaligned, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, errors.New("arena closed")
	}

	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	a.mappings = append(a.mappings, b)
	return b, nil
}

// Close unmaps every mapping. Pages built on them must no longer be used.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for _, b := range a.mappings {
		if err := unix.Munmap(b); err != nil {
			errs = append(errs, err)
		}
	}
	a.mappings = nil
	return errors.Join(errs...)
}

// Releaser drops physical backing with madvise(MADV_DONTNEED). On private anonymous
// mappings the next access sees zero-filled memory.
type Releaser struct{}

// Release advises the kernel that backing is no longer needed.
func (Releaser) Release(addr uint64, backing []byte) error {
	if len(backing) == 0 || len(backing)%os.Getpagesize() != 0 {
		return fmt.Errorf("%w: page %#x is %d bytes", ErrUnaligned, addr, len(backing))
	}
	if err := unix.Madvise(backing, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("madvise page %#x: %w", addr, err)
	}
	return nil
}
