//go:build linux

package mmap_test

import (
	"os"
	"testing"

	"github.com/aretw0/coherence/pkg/adapters/memory"
	"github.com/aretw0/coherence/pkg/adapters/mmap"
	"github.com/aretw0/coherence/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_StoreContract(t *testing.T) {
	ports.RunPageStoreContract(t, func(t *testing.T) ports.PageStore {
		arena := mmap.NewArena()
		t.Cleanup(func() { _ = arena.Close() })
		return memory.NewStore(
			memory.WithPageSize(os.Getpagesize()),
			memory.WithAllocator(arena.Allocate),
		)
	})
}

func TestReleaser_DropsContents(t *testing.T) {
	arena := mmap.NewArena()
	defer arena.Close()

	size := os.Getpagesize()
	b, err := arena.Allocate(2 * size)
	require.NoError(t, err)

	page := b[:size:size]
	for i := range page {
		page[i] = 0xAB
	}
	b[size] = 0xCD

	require.NoError(t, mmap.Releaser{}.Release(0x1000, page))

	assert.Equal(t, make([]byte, size), page, "released page reads back as zeros")
	assert.Equal(t, byte(0xCD), b[size], "neighbouring page is untouched")
}

func TestReleaser_RejectsPartialPage(t *testing.T) {
	err := mmap.Releaser{}.Release(0, make([]byte, 100))
	assert.ErrorIs(t, err, mmap.ErrUnaligned)
}

func TestArena_RejectsOddSize(t *testing.T) {
	arena := mmap.NewArena()
	defer arena.Close()

	_, err := arena.Allocate(os.Getpagesize() + 1)
	assert.ErrorIs(t, err, mmap.ErrUnaligned)
}
