package tests

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/coherence/pkg/ports"
	"github.com/aretw0/coherence/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ConnContractTest is a reusable test suite that verifies if a transport complies with ports.Conn.
// pair must return two connected ends; the suite closes them.
func ConnContractTest(t *testing.T, pair func(t *testing.T) (ports.Conn, ports.Conn)) {
	t.Helper()

	t.Run("Send_Receive", func(t *testing.T) {
		a, b := pair(t)
		defer a.Close()
		defer b.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		page := bytes.Repeat([]byte{0xAB}, 4096)
		go func() {
			_ = a.Send(ctx, protocol.RequestPage(1, 0x1000, 4096))
			_ = a.Send(ctx, protocol.PageReply(1, 0x1000, page))
		}()

		first, err := b.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, protocol.KindRequestPage, first.Kind)
		assert.Equal(t, uint64(0x1000), first.Addr)

		second, err := b.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, page, second.Data)
	})

	t.Run("Concurrent_Senders", func(t *testing.T) {
		a, b := pair(t)
		defer a.Close()
		defer b.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		const senders, each = 4, 25
		var wg sync.WaitGroup
		for s := 0; s < senders; s++ {
			wg.Add(1)
			go func(s int) {
				defer wg.Done()
				for i := 0; i < each; i++ {
					id := uint64(s*each + i)
					_ = a.Send(ctx, protocol.PageReply(id, id, bytes.Repeat([]byte{byte(id)}, 512)))
				}
			}(s)
		}

		seen := make(map[uint64]bool)
		for i := 0; i < senders*each; i++ {
			msg, err := b.Receive(ctx)
			require.NoError(t, err)
			require.Len(t, msg.Data, 512)
			assert.Equal(t, bytes.Repeat([]byte{byte(msg.ID)}, 512), msg.Data, "frames must not interleave")
			seen[msg.ID] = true
		}
		wg.Wait()
		assert.Len(t, seen, senders*each)
	})

	t.Run("Receive_Canceled", func(t *testing.T) {
		a, b := pair(t)
		defer a.Close()
		defer b.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := b.Receive(ctx)
		assert.Error(t, err)
	})

	t.Run("Close_Unblocks_Receive", func(t *testing.T) {
		a, b := pair(t)
		defer a.Close()

		errs := make(chan error, 1)
		go func() {
			_, err := b.Receive(context.Background())
			errs <- err
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, b.Close())

		select {
		case err := <-errs:
			assert.Error(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Receive did not return after Close")
		}
	})
}
