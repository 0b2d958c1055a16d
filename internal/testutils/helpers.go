package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/coherence/internal/runtime"
	"github.com/aretw0/coherence/pkg/adapters/memory"
	"github.com/aretw0/coherence/pkg/adapters/stream"
	"github.com/aretw0/coherence/pkg/protocol"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// RecordingSender keeps every message it is asked to send.
// Err, if set, is returned by every Send after recording.
type RecordingSender struct {
	mu   sync.Mutex
	msgs []*protocol.Message
	Err  error
}

func (s *RecordingSender) Send(_ context.Context, msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.Err
}

// Messages returns a copy of the recorded messages in send order.
func (s *RecordingSender) Messages() []*protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.Message(nil), s.msgs...)
}

// Count returns how many messages of kind were sent.
func (s *RecordingSender) Count(kind protocol.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// MockSender is a testify mock of ports.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg *protocol.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockReleaser is a testify mock of ports.Releaser.
type MockReleaser struct {
	mock.Mock
}

func (m *MockReleaser) Release(addr uint64, backing []byte) error {
	args := m.Called(addr, backing)
	return args.Error(0)
}

// NewEngine returns an initialized engine over a fresh memory store.
func NewEngine(t *testing.T, sender *RecordingSender, base uint64, pages int, opts ...runtime.EngineOption) *runtime.Engine {
	t.Helper()

	e := runtime.NewEngine(memory.NewStore(), sender, opts...)
	require.NoError(t, e.Register(base, pages), "Failed to register region")
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// Pair is two engines wired back to back over an in-memory stream.
type Pair struct {
	A, B *runtime.Engine

	ConnA, ConnB *stream.Conn

	cancel context.CancelFunc
	done   chan error
}

// NewPair builds two nodes that share the same region and starts their dispatchers.
// Both are stopped when the test ends.
func NewPair(t *testing.T, base uint64, pages int, opts ...runtime.EngineOption) *Pair {
	t.Helper()

	connA, connB := stream.Pipe()
	p := &Pair{
		ConnA: connA,
		ConnB: connB,
		done:  make(chan error, 2),
	}

	opts = append([]runtime.EngineOption{runtime.WithTimeout(2 * time.Second)}, opts...)
	p.A = runtime.NewEngine(memory.NewStore(), connA, opts...)
	p.B = runtime.NewEngine(memory.NewStore(), connB, opts...)
	require.NoError(t, p.A.Register(base, pages))
	require.NoError(t, p.B.Register(base, pages))

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() { p.done <- runtime.NewDispatcher(p.A, connA).Serve(ctx) }()
	go func() { p.done <- runtime.NewDispatcher(p.B, connB).Serve(ctx) }()

	t.Cleanup(p.Stop)
	return p
}

// Stop cancels both dispatchers, closes the connections and waits for the loops.
// It is safe to call more than once.
func (p *Pair) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	_ = p.ConnA.Close()
	_ = p.ConnB.Close()
	for range 2 {
		<-p.done
	}
}
