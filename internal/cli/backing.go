package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/coherence/internal/config"
	"github.com/aretw0/coherence/pkg/adapters/memory"
	"github.com/aretw0/coherence/pkg/adapters/mmap"
	"github.com/aretw0/coherence/pkg/ports"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewBacking builds the page store and releaser selected by region.backing.
// The closer frees the backing memory; pages must not be used after it runs.
func NewBacking(region config.Region) (ports.PageStore, ports.Releaser, io.Closer, error) {
	switch region.Backing {
	case config.BackingHeap, "":
		store := memory.NewStore(memory.WithPageSize(region.PageSize))
		return store, memory.Releaser{}, nopCloser{}, nil
	case config.BackingMmap:
		arena := mmap.NewArena()
		store := memory.NewStore(
			memory.WithPageSize(region.PageSize),
			memory.WithAllocator(arena.Allocate),
		)
		return store, mmap.Releaser{}, arena, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown backing %q", region.Backing)
	}
}
