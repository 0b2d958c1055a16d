package coherence_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/coherence"
	"github.com/aretw0/coherence/pkg/adapters/memory"
	"github.com/aretw0/coherence/pkg/adapters/stream"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base uint64 = 0x10000000

func newPair(t *testing.T, opts ...coherence.Option) (*coherence.Node, *coherence.Node) {
	t.Helper()

	a, b := stream.Pipe()
	left, err := coherence.New(a, opts...)
	require.NoError(t, err)
	right, err := coherence.New(b, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	for _, n := range []*coherence.Node{left, right} {
		go func() {
			_ = n.Serve(ctx)
			done <- struct{}{}
		}()
	}
	t.Cleanup(func() {
		cancel()
		_ = left.Close()
		_ = right.Close()
		<-done
		<-done
	})
	return left, right
}

func TestNew_NilConn(t *testing.T) {
	_, err := coherence.New(nil)
	assert.Error(t, err)
}

func TestNode_ReadAfterPeerWrite(t *testing.T) {
	left, right := newPair(t)
	ctx := context.Background()

	require.NoError(t, left.Register(base, 4))
	require.NoError(t, right.Register(base, 4))

	addr := base + 0x1000
	require.NoError(t, right.WriteSync(ctx, addr, 0, []byte("hello")))

	buf := make([]byte, left.PageSize())
	res, err := left.Read(ctx, buf, addr)
	require.NoError(t, err)
	assert.False(t, res.NoData)
	assert.Equal(t, "hello", string(buf[:5]))

	l, err := left.Page(addr)
	require.NoError(t, err)
	r, err := right.Page(addr)
	require.NoError(t, err)
	assert.Equal(t, domain.TagShared, l.Tag)
	assert.Equal(t, domain.TagShared, r.Tag)
}

func TestNode_Options(t *testing.T) {
	var transitions int
	hooks := domain.LifecycleHooks{
		OnTransition: func(context.Context, *domain.TransitionEvent) { transitions++ },
	}

	a, b := stream.Pipe()
	defer b.Close()

	node, err := coherence.New(a,
		coherence.WithPageSize(512),
		coherence.WithLifecycleHooks(hooks),
		coherence.WithReleaser(memory.Releaser{}),
		coherence.WithTimeout(10*time.Millisecond),
		coherence.WithMaxHandlers(2),
		coherence.WithLogger(nil),
	)
	require.NoError(t, err)
	defer node.Close()

	assert.False(t, node.Initialized())
	require.NoError(t, node.Register(base, 2))
	assert.True(t, node.Initialized())
	assert.Equal(t, 512, node.PageSize())
	assert.Len(t, node.Pages(), 2)

	require.NoError(t, node.Write(context.Background(), base, 0, []byte{1}))
	assert.Equal(t, 1, transitions)
}

func TestNode_WithPageStore(t *testing.T) {
	store := memory.NewStore(memory.WithPageSize(1024))
	a, b := stream.Pipe()
	defer b.Close()

	node, err := coherence.New(a, coherence.WithPageStore(store), coherence.WithPageSize(8192))
	require.NoError(t, err)
	defer node.Close()

	require.NoError(t, node.Register(base, 1))
	assert.Equal(t, 1024, node.PageSize(), "a custom store keeps its own page size")
	assert.Len(t, store.Pages(), 1)
}

func TestNode_CloseReleasesFault(t *testing.T) {
	a, b := stream.Pipe()
	defer b.Close()

	node, err := coherence.New(a, coherence.WithTimeout(0))
	require.NoError(t, err)
	require.NoError(t, node.Register(base, 1))

	served := make(chan error, 1)
	go func() { served <- node.Serve(context.Background()) }()

	faulted := make(chan error, 1)
	go func() {
		_, err := node.Read(context.Background(), nil, base)
		faulted <- err
	}()

	// Nobody answers on b.
	msg, err := b.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, base, msg.Addr)
	require.NoError(t, node.Close())

	select {
	case err := <-faulted:
		assert.ErrorIs(t, err, domain.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("fault was not released by Close")
	}
	assert.NoError(t, <-served)
}
