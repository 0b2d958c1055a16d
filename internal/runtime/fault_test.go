package runtime_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/coherence/internal/runtime"
	"github.com/aretw0/coherence/internal/testutils"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type faultOutcome struct {
	res domain.FaultResult
	err error
}

// startRead runs Read in the background and waits until its request is on the wire.
func startRead(t *testing.T, engine *runtime.Engine, sender *testutils.RecordingSender, dst []byte, addr uint64) (<-chan faultOutcome, *protocol.Message) {
	t.Helper()

	before := sender.Count(protocol.KindRequestPage)
	out := make(chan faultOutcome, 1)
	go func() {
		res, err := engine.Read(context.Background(), dst, addr)
		out <- faultOutcome{res, err}
	}()

	require.Eventually(t, func() bool {
		return sender.Count(protocol.KindRequestPage) > before
	}, time.Second, time.Millisecond)

	msgs := sender.Messages()
	return out, msgs[len(msgs)-1]
}

func await(t *testing.T, out <-chan faultOutcome) faultOutcome {
	t.Helper()
	select {
	case o := <-out:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("fault did not return")
		return faultOutcome{}
	}
}

func TestFault_ReceivesPeerData(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 4)
	addr := base + pageSize

	dst := make([]byte, pageSize)
	out, req := startRead(t, engine, sender, dst, addr)

	assert.Equal(t, protocol.KindRequestPage, req.Kind)
	assert.Equal(t, addr, req.Addr)
	assert.Equal(t, uint32(pageSize), req.Size)
	assert.Equal(t, 1, engine.Outstanding())

	payload := bytes.Repeat([]byte{0xAB}, pageSize)
	require.NoError(t, engine.HandleReply(context.Background(), protocol.PageReply(req.ID, addr, payload)))

	o := await(t, out)
	require.NoError(t, o.err)
	assert.Equal(t, payload, dst)
	assert.Equal(t, addr, o.res.Addr)
	assert.False(t, o.res.NoData)
	assert.False(t, o.res.Local)
	assert.Equal(t, domain.AccessRead, o.res.Kind)

	info, err := engine.Page(addr)
	require.NoError(t, err)
	assert.Equal(t, domain.TagShared, info.Tag)
	assert.Zero(t, engine.Outstanding())
}

func TestFault_NoDataReply(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1)

	dst := bytes.Repeat([]byte{0xFF}, pageSize)
	out, req := startRead(t, engine, sender, dst, base)
	require.NoError(t, engine.HandleReply(context.Background(), protocol.EmptyReply(req.ID, base, pageSize)))

	o := await(t, out)
	require.NoError(t, o.err)
	assert.True(t, o.res.NoData)
	assert.Equal(t, make([]byte, pageSize), dst)

	info, _ := engine.Page(base)
	assert.Equal(t, domain.TagShared, info.Tag)
}

func TestFault_ShortReplyZeroFillsTail(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1)

	dst := bytes.Repeat([]byte{0xFF}, pageSize)
	out, req := startRead(t, engine, sender, dst, base)
	require.NoError(t, engine.HandleReply(context.Background(), protocol.PageReply(req.ID, base, []byte{1, 2, 3})))

	o := await(t, out)
	require.NoError(t, o.err)
	assert.Equal(t, []byte{1, 2, 3}, dst[:3])
	assert.Equal(t, make([]byte, pageSize-3), dst[3:])
}

func TestFault_ValidPageIsServedLocally(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1)
	ctx := context.Background()

	require.NoError(t, engine.Write(ctx, base, 0, []byte("local")))
	before := len(sender.Messages())

	dst := make([]byte, pageSize)
	res, err := engine.Read(ctx, dst, base)
	require.NoError(t, err)
	assert.True(t, res.Local)
	assert.Equal(t, []byte("local"), dst[:5])
	assert.Len(t, sender.Messages(), before, "a valid page must not be fetched")

	info, _ := engine.Page(base)
	assert.Equal(t, domain.TagModified, info.Tag, "serving locally must not downgrade")
}

func TestFault_ShortBuffer(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1)

	_, err := engine.Read(context.Background(), make([]byte, 10), base)
	assert.ErrorIs(t, err, domain.ErrShortBuffer)
	assert.Empty(t, sender.Messages())
}

func TestFault_NilDestination(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1)

	out, req := startRead(t, engine, sender, nil, base)
	require.NoError(t, engine.HandleReply(context.Background(), protocol.PageReply(req.ID, base, []byte{7})))
	require.NoError(t, await(t, out).err)

	dst := make([]byte, pageSize)
	res, err := engine.Read(context.Background(), dst, base)
	require.NoError(t, err)
	assert.True(t, res.Local)
	assert.Equal(t, byte(7), dst[0])
}

func TestFault_SendFailure(t *testing.T) {
	sender := &testutils.RecordingSender{Err: errors.New("connection reset")}
	engine := testutils.NewEngine(t, sender, base, 1)

	_, err := engine.Read(context.Background(), nil, base)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Zero(t, engine.Outstanding(), "the wait slot must be released")

	info, _ := engine.Page(base)
	assert.Equal(t, domain.TagInvalid, info.Tag)
}

func TestFault_EngineTimeout(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1, runtime.WithTimeout(20*time.Millisecond))

	_, err := engine.Read(context.Background(), nil, base)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, 1, sender.Count(protocol.KindRequestPage))
	assert.Zero(t, engine.Outstanding())

	info, _ := engine.Page(base)
	assert.Equal(t, domain.TagInvalid, info.Tag)
}

func TestFault_ContextDeadline(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1, runtime.WithTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := engine.Read(ctx, nil, base)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFault_ContextCanceled(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1, runtime.WithTimeout(0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for sender.Count(protocol.KindRequestPage) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := engine.Read(ctx, nil, base)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrTimeout)
}

func TestFault_CloseReleasesWaiter(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1, runtime.WithTimeout(0))

	out, _ := startRead(t, engine, sender, nil, base)
	require.NoError(t, engine.Close())

	o := await(t, out)
	assert.ErrorIs(t, o.err, domain.ErrClosed)
}

func TestFault_LateReplyIsDropped(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1, runtime.WithTimeout(20*time.Millisecond))

	_, err := engine.Read(context.Background(), nil, base)
	require.ErrorIs(t, err, domain.ErrTimeout)

	req := sender.Messages()[0]
	err = engine.HandleReply(context.Background(), protocol.PageReply(req.ID, base, []byte{1}))
	assert.ErrorIs(t, err, domain.ErrUnexpectedReply)

	info, _ := engine.Page(base)
	assert.Equal(t, domain.TagInvalid, info.Tag, "a late reply must not touch the page")
}

func TestFault_MismatchedReplyKeepsWaiting(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 2)
	ctx := context.Background()

	out, req := startRead(t, engine, sender, nil, base)

	// Same id, different page.
	err := engine.HandleReply(ctx, protocol.PageReply(req.ID, base+pageSize, []byte{1}))
	assert.ErrorIs(t, err, domain.ErrUnexpectedReply)
	// Unknown id.
	err = engine.HandleReply(ctx, protocol.PageReply(req.ID+100, base, []byte{1}))
	assert.ErrorIs(t, err, domain.ErrUnexpectedReply)
	assert.Equal(t, 1, engine.Outstanding())

	require.NoError(t, engine.HandleReply(ctx, protocol.PageReply(req.ID, base, []byte{2})))
	require.NoError(t, await(t, out).err)
}

func TestFault_DistinctPagesProceedIndependently(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 2, runtime.WithTimeout(0))

	outA, reqA := startRead(t, engine, sender, nil, base)
	outB, reqB := startRead(t, engine, sender, nil, base+pageSize)
	assert.Equal(t, 2, engine.Outstanding())
	assert.NotEqual(t, reqA.ID, reqB.ID)

	// Answer in reverse order.
	ctx := context.Background()
	require.NoError(t, engine.HandleReply(ctx, protocol.PageReply(reqB.ID, reqB.Addr, []byte{0xB})))
	require.NoError(t, await(t, outB).err)

	select {
	case <-outA:
		t.Fatal("the first fault must still be waiting")
	default:
	}

	require.NoError(t, engine.HandleReply(ctx, protocol.PageReply(reqA.ID, reqA.Addr, []byte{0xA})))
	require.NoError(t, await(t, outA).err)
}

func TestFault_SamePageSerializes(t *testing.T) {
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1, runtime.WithTimeout(0))

	first, req := startRead(t, engine, sender, nil, base)

	var wg sync.WaitGroup
	second := make(chan faultOutcome, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := engine.Read(context.Background(), nil, base)
		second <- faultOutcome{res, err}
	}()

	// The second fault holds a slot but is blocked on the page mutex, so only one
	// request is ever sent.
	require.Eventually(t, func() bool { return engine.Outstanding() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, sender.Count(protocol.KindRequestPage))

	require.NoError(t, engine.HandleReply(context.Background(), protocol.PageReply(req.ID, base, []byte{1})))
	require.NoError(t, await(t, first).err)

	wg.Wait()
	o := <-second
	require.NoError(t, o.err)
	assert.True(t, o.res.Local, "the page was filled while the second fault waited")
	assert.Equal(t, 1, sender.Count(protocol.KindRequestPage))
}

func TestFault_WriteAccessIsRecorded(t *testing.T) {
	var got []domain.AccessKind
	hooks := domain.LifecycleHooks{
		OnFault: func(_ context.Context, e *domain.FaultEvent) { got = append(got, e.Kind) },
	}
	sender := &testutils.RecordingSender{}
	engine := testutils.NewEngine(t, sender, base, 1, runtime.WithLifecycleHooks(hooks))

	require.NoError(t, engine.Write(context.Background(), base, 0, []byte{1}))
	res, err := engine.Fault(context.Background(), nil, base, domain.AccessWrite)
	require.NoError(t, err)
	assert.Equal(t, domain.AccessWrite, res.Kind)
	assert.Equal(t, []domain.AccessKind{domain.AccessWrite}, got)
}
