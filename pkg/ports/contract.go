package ports

import (
	"testing"

	"github.com/aretw0/coherence/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPageStoreContract runs a suite of tests to verify that a PageStore implementation
// adheres to the defined interface contract. newStore must return an empty store.
func RunPageStoreContract(t *testing.T, newStore func(t *testing.T) PageStore) {
	t.Run("Register and Lookup", func(t *testing.T) {
		store := newStore(t)
		size := uint64(store.PageSize())
		base := 16 * size

		require.NoError(t, store.Register(base, 4), "Register should not return error")

		for i := uint64(0); i < 4; i++ {
			page, err := store.Lookup(base + i*size)
			require.NoError(t, err)
			assert.Equal(t, base+i*size, page.Addr)
			assert.Equal(t, int(size), page.Size())

			info := page.Snapshot()
			assert.Equal(t, domain.TagInvalid, info.Tag, "new pages must start Invalid")
		}
	})

	t.Run("Lookup Inside Page", func(t *testing.T) {
		store := newStore(t)
		size := uint64(store.PageSize())
		base := 4 * size
		require.NoError(t, store.Register(base, 2))

		page, err := store.Lookup(base + size + 17)
		require.NoError(t, err)
		assert.Equal(t, base+size, page.Addr, "lookup aligns down to the containing page")
	})

	t.Run("Lookup Unregistered", func(t *testing.T) {
		store := newStore(t)
		size := uint64(store.PageSize())
		require.NoError(t, store.Register(8*size, 2))

		_, err := store.Lookup(7 * size)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.Lookup(10 * size)
		assert.ErrorIs(t, err, domain.ErrNotFound, "first address past the region is not registered")
	})

	t.Run("Reject Overlap", func(t *testing.T) {
		store := newStore(t)
		size := uint64(store.PageSize())
		require.NoError(t, store.Register(8*size, 4))

		err := store.Register(10*size, 4)
		assert.ErrorIs(t, err, domain.ErrRegionOverlap)

		require.NoError(t, store.Register(12*size, 1), "adjacent regions are allowed")
	})

	t.Run("Reject Invalid Region", func(t *testing.T) {
		store := newStore(t)
		size := uint64(store.PageSize())

		assert.ErrorIs(t, store.Register(size+1, 1), domain.ErrMisaligned)
		assert.Error(t, store.Register(size, 0))
		assert.Empty(t, store.Pages())
	})

	t.Run("Pages Ordered", func(t *testing.T) {
		store := newStore(t)
		size := uint64(store.PageSize())
		require.NoError(t, store.Register(20*size, 2))
		require.NoError(t, store.Register(2*size, 2))

		pages := store.Pages()
		require.Len(t, pages, 4)
		for i := 1; i < len(pages); i++ {
			assert.Less(t, pages[i-1].Addr, pages[i].Addr)
		}
	})

	t.Run("Pages Are Independent", func(t *testing.T) {
		store := newStore(t)
		size := uint64(store.PageSize())
		require.NoError(t, store.Register(size, 2))

		first, err := store.Lookup(size)
		require.NoError(t, err)
		second, err := store.Lookup(2 * size)
		require.NoError(t, err)

		first.Lock()
		first.Bytes()[0] = 0x5A
		first.Unlock()

		second.Lock()
		defer second.Unlock()
		assert.Equal(t, byte(0), second.Bytes()[0], "pages must not share backing bytes")
	})
}
