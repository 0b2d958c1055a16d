package coherence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/internal/runtime"
	"github.com/aretw0/coherence/pkg/adapters/memory"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/ports"
)

// Node is one side of a coherent shared region.
// It wraps the internal engine and its dispatch loop behind a single value.
type Node struct {
	engine     *runtime.Engine
	dispatcher *runtime.Dispatcher
	conn       ports.Conn

	store       ports.PageStore
	releaser    ports.Releaser
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	pageSize    int
	timeout     *time.Duration
	maxHandlers int
}

// Option defines a functional option for configuring the Node.
type Option func(*Node)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(n *Node) {
		n.hooks = hooks
	}
}

// WithPageStore injects a custom PageStore, bypassing the default heap store.
// WithPageSize is ignored when a store is given.
func WithPageStore(s ports.PageStore) Option {
	return func(n *Node) {
		n.store = s
	}
}

// WithReleaser sets how page backing is given back to the OS on invalidation.
func WithReleaser(r ports.Releaser) Option {
	return func(n *Node) {
		n.releaser = r
	}
}

// WithPageSize sets the page size of the default store (default: 4096).
func WithPageSize(size int) Option {
	return func(n *Node) {
		n.pageSize = size
	}
}

// WithTimeout bounds every wait for the peer. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(n *Node) {
		n.timeout = &d
	}
}

// WithMaxHandlers bounds concurrently running inbound request handlers.
func WithMaxHandlers(max int) Option {
	return func(n *Node) {
		n.maxHandlers = max
	}
}

// New creates a node that talks to its peer over conn.
// Register a region and start Serve before faulting or writing.
func New(conn ports.Conn, opts ...Option) (*Node, error) {
	if conn == nil {
		return nil, errors.New("coherence: nil connection")
	}

	n := &Node{
		conn:     conn,
		logger:   logging.NewNop(),
		pageSize: domain.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logging.NewNop()
	}
	if n.store == nil {
		n.store = memory.NewStore(memory.WithPageSize(n.pageSize))
	}

	engineOpts := []runtime.EngineOption{
		runtime.WithLogger(n.logger),
		runtime.WithLifecycleHooks(n.hooks),
		runtime.WithReleaser(n.releaser),
	}
	if n.timeout != nil {
		engineOpts = append(engineOpts, runtime.WithTimeout(*n.timeout))
	}

	n.engine = runtime.NewEngine(n.store, conn, engineOpts...)
	n.dispatcher = runtime.NewDispatcher(n.engine, conn,
		runtime.WithDispatchLogger(n.logger),
		runtime.WithMaxHandlers(n.maxHandlers),
	)
	return n, nil
}

// Register creates count Invalid pages starting at base. It may be called again
// for further disjoint regions.
func (n *Node) Register(base uint64, count int) error {
	return n.engine.Register(base, count)
}

// Fault fetches the page containing addr from the peer into dst.
func (n *Node) Fault(ctx context.Context, dst []byte, addr uint64, kind domain.AccessKind) (domain.FaultResult, error) {
	return n.engine.Fault(ctx, dst, addr, kind)
}

// Read copies the page containing addr into dst, fetching it from the peer only if
// the local copy is Invalid.
func (n *Node) Read(ctx context.Context, dst []byte, addr uint64) (domain.FaultResult, error) {
	return n.engine.Read(ctx, dst, addr)
}

// Write stores data at addr+off and invalidates the peer's copy without waiting.
func (n *Node) Write(ctx context.Context, addr uint64, off int, data []byte) error {
	return n.engine.Write(ctx, addr, off, data)
}

// WriteSync is Write, but returns only once the peer has dropped its copy.
func (n *Node) WriteSync(ctx context.Context, addr uint64, off int, data []byte) error {
	return n.engine.WriteSync(ctx, addr, off, data)
}

// Serve runs the dispatch loop until ctx ends or the connection is closed.
// Pending faults fail with domain.ErrClosed once it returns.
func (n *Node) Serve(ctx context.Context) error {
	return n.dispatcher.Serve(ctx)
}

// Close tears down the connection and releases every waiting caller.
func (n *Node) Close() error {
	return errors.Join(n.engine.Close(), n.conn.Close())
}

// Pages returns a snapshot of every registered page.
func (n *Node) Pages() []domain.PageInfo {
	return n.engine.Pages()
}

// Page returns a snapshot of the page containing addr.
func (n *Node) Page(addr uint64) (domain.PageInfo, error) {
	return n.engine.Page(addr)
}

// PageSize returns the size of every page in bytes.
func (n *Node) PageSize() int {
	return n.engine.PageSize()
}

// Initialized reports whether a region has been registered.
func (n *Node) Initialized() bool {
	return n.engine.Initialized()
}

// Outstanding returns the number of open wait slots, including faults still queued
// on a page mutex.
func (n *Node) Outstanding() int {
	return n.engine.Outstanding()
}
