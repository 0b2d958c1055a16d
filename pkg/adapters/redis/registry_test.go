package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/coherence/pkg/adapters/redis"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRegistry_AnnounceResolve(t *testing.T) {
	_, client := setup(t)
	reg := redis.NewFromClient(client)
	ctx := context.Background()

	_, err := reg.Resolve(ctx, "secure-heap")
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)

	peer := ports.Peer{ID: "node-a", Region: "secure-heap", Address: "10.0.0.1:7070"}
	require.NoError(t, reg.Announce(ctx, peer, 0))

	got, err := reg.Resolve(ctx, "secure-heap")
	require.NoError(t, err)
	assert.Equal(t, peer, got)
}

func TestRegistry_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)
	reg := redis.NewFromClient(client)
	ctx := context.Background()

	peer := ports.Peer{ID: "node-a", Region: "r1", Address: "127.0.0.1:1"}
	require.NoError(t, reg.Announce(ctx, peer, time.Second))

	mr.FastForward(2 * time.Second)

	_, err := reg.Resolve(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)
}

func TestRegistry_Withdraw_OnlyOwner(t *testing.T) {
	_, client := setup(t)
	reg := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, reg.Announce(ctx, ports.Peer{ID: "node-b", Region: "r1", Address: "b:1"}, 0))

	require.NoError(t, reg.Withdraw(ctx, "r1", "node-a"))
	_, err := reg.Resolve(ctx, "r1")
	assert.NoError(t, err, "a stale owner must not remove the current announcement")

	require.NoError(t, reg.Withdraw(ctx, "r1", "node-b"))
	_, err = reg.Resolve(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrPeerNotFound)
}

func TestRegistry_Prefix(t *testing.T) {
	mr, client := setup(t)
	reg := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, reg.Announce(ctx, ports.Peer{ID: "x", Region: "r", Address: "a"}, 0))

	// Verify keys in Redis directly
	assert.True(t, mr.Exists("custom:app:peer:r"), "Expected key with custom prefix to exist")
}

func TestLocker_TryLock(t *testing.T) {
	_, client := setup(t)
	locker := redis.NewLocker(client, "coherence:")
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "region", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "region", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail while the first is held")

	require.NoError(t, unlock(ctx))

	_, ok, err = locker.TryLock(ctx, "region", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock is free after unlock")
}

func TestLocker_LockWaitsForExpiry(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "coherence:")
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "region", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(150 * time.Millisecond)
		mr.FastForward(2 * time.Second)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	unlock, err := locker.Lock(lockCtx, "region", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, unlock(ctx))
}

func TestLocker_LockCanceled(t *testing.T) {
	_, client := setup(t)
	locker := redis.NewLocker(client, "coherence:")
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "region", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	lockCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(lockCtx, "region", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
