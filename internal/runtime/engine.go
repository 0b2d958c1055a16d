package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/ports"
	"github.com/aretw0/coherence/pkg/protocol"
)

// DefaultTimeout bounds how long a fault waits for the peer.
const DefaultTimeout = 5 * time.Second

// Engine is the MSI coherence engine bound to one peer connection.
//
// Lock order is engine mutex before page mutex. The engine mutex only guards the
// table of wait slots and is never held while waiting or while taking a page mutex.
type Engine struct {
	store    ports.PageStore
	sender   ports.Sender
	releaser ports.Releaser
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	timeout  time.Duration

	nextID atomic.Uint64

	mu          sync.Mutex
	pending     map[uint64]*waitSlot
	initialized bool

	closed    chan struct{}
	closeOnce sync.Once
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithTimeout bounds every wait for the peer. Zero disables the bound; the
// caller's context is then the only limit.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithReleaser sets the OS memory interface used on invalidation.
func WithReleaser(r ports.Releaser) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.releaser = r
		}
	}
}

// NewEngine creates an engine over store that talks to the peer through sender.
// The engine must be initialized with Register before faults or writes.
func NewEngine(store ports.PageStore, sender ports.Sender, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		sender:  sender,
		logger:  logging.NewNop(),
		timeout: DefaultTimeout,
		pending: make(map[uint64]*waitSlot),
		closed:  make(chan struct{}),
		releaser: ports.ReleaseFunc(func(_ uint64, backing []byte) error {
			clear(backing)
			return nil
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register creates count Invalid pages at base and marks the engine initialized.
func (e *Engine) Register(base uint64, count int) error {
	if e == nil {
		return fmt.Errorf("%w: nil engine", domain.ErrInit)
	}

	if err := e.store.Register(base, count); err != nil {
		e.logger.Error("Could not register pages", logging.Addr(base), "count", count, "err", err)
		return fmt.Errorf("%w: register %d pages at %#x: %w", domain.ErrInit, count, base, err)
	}

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()

	e.logger.Info("Registered region", logging.Addr(base), "count", count, "page_size", e.store.PageSize())
	return nil
}

// Initialized reports whether a region has been registered.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// PageSize returns the size of every page in bytes.
func (e *Engine) PageSize() int {
	return e.store.PageSize()
}

// Pages returns a snapshot of every registered page.
func (e *Engine) Pages() []domain.PageInfo {
	pages := e.store.Pages()
	infos := make([]domain.PageInfo, 0, len(pages))
	for _, p := range pages {
		infos = append(infos, p.Snapshot())
	}
	return infos
}

// Page returns a snapshot of the page containing addr.
func (e *Engine) Page(addr uint64) (domain.PageInfo, error) {
	page, err := e.lookup(addr)
	if err != nil {
		return domain.PageInfo{}, err
	}
	return page.Snapshot(), nil
}

// Close releases every blocked waiter with domain.ErrClosed.
// Later faults fail immediately. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)

		e.mu.Lock()
		n := len(e.pending)
		clear(e.pending)
		e.mu.Unlock()

		e.logger.Debug("Engine closed", "released_waiters", n)
	})
	return nil
}

// Done is closed once the engine is closed.
func (e *Engine) Done() <-chan struct{} {
	return e.closed
}

func (e *Engine) checkUsable() error {
	select {
	case <-e.closed:
		return domain.ErrClosed
	default:
	}
	if !e.Initialized() {
		return domain.ErrNotInitialized
	}
	return nil
}

func (e *Engine) lookup(addr uint64) (*domain.Page, error) {
	page, err := e.store.Lookup(addr)
	if err != nil {
		e.logger.Warn("Could not find the relevant page", logging.Addr(addr), "err", err)
		return nil, err
	}
	return page, nil
}

// send delivers msg and reports it through hooks. The caller may hold a page mutex.
func (e *Engine) send(ctx context.Context, msg *protocol.Message) error {
	err := e.sender.Send(ctx, msg)

	if e.hooks.OnMessageSent != nil {
		e.hooks.OnMessageSent(ctx, &domain.MessageEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventMessageSent},
			Kind:      msg.Kind.String(),
			ID:        msg.ID,
			Addr:      msg.Addr,
			Err:       err,
		})
	}

	if err != nil {
		e.logger.Error("Could not send message", "kind", msg.Kind, "id", msg.ID, logging.Addr(msg.Addr), "err", err)
		return fmt.Errorf("%w: send %s: %w", domain.ErrTransport, msg.Kind, err)
	}
	return nil
}

// transition sets the tag of a page whose mutex the caller holds.
func (e *Engine) transition(ctx context.Context, page *domain.Page, to domain.Tag, cause domain.Cause) {
	from := page.SetTag(to)
	if from == to {
		return
	}

	e.logger.Debug("Page transition", logging.Addr(page.Addr), "from", from, "to", to, "cause", cause)
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTransition},
			Addr:      page.Addr,
			From:      from,
			To:        to,
			Cause:     cause,
		})
	}
}
