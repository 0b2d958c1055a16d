package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/ports"
	"github.com/aretw0/coherence/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

// Dispatcher reads messages from a connection and feeds them to an engine.
//
// Replies and acks are handled on the read loop itself. Requests and invalidates may
// wait on a page mutex held by an in-flight local fault, so each runs in its own
// goroutine to keep replies flowing.
type Dispatcher struct {
	engine      *Engine
	conn        ports.Conn
	logger      *slog.Logger
	maxHandlers int
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the structured logger.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMaxHandlers bounds the number of concurrently running request handlers.
// Non-positive means unbounded. When the bound is reached the read loop stalls,
// which also delays replies.
func WithMaxHandlers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxHandlers = n
	}
}

// NewDispatcher binds engine to conn.
func NewDispatcher(engine *Engine, conn ports.Conn, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine: engine,
		conn:   conn,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Serve runs the read loop until ctx ends or the connection fails.
//
// On exit the engine is closed, which releases every blocked fault with
// domain.ErrClosed, and Serve waits for running handlers. A canceled ctx or a
// connection closed by either side is a clean exit and returns nil.
func (d *Dispatcher) Serve(ctx context.Context) error {
	var g errgroup.Group
	if d.maxHandlers > 0 {
		g.SetLimit(d.maxHandlers)
	}

	defer func() {
		d.engine.Close()
		_ = g.Wait()
	}()

	for {
		msg, err := d.conn.Receive(ctx)
		if err != nil {
			return d.exitErr(ctx, err)
		}

		switch msg.Kind {
		case protocol.KindPageReply, protocol.KindInvalidateAck:
			d.handle(ctx, msg)
		default:
			// Not ordered with respect to other requests for the same page.
			g.Go(func() error {
				d.handle(ctx, msg)
				return nil
			})
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg *protocol.Message) {
	if err := d.engine.HandleMessage(ctx, msg); err != nil {
		d.logger.Warn("Handler failed", "kind", msg.Kind, "id", msg.ID, logging.Addr(msg.Addr), "err", err)
	}
}

func (d *Dispatcher) exitErr(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		d.logger.Info("Dispatch loop stopped", "reason", ctx.Err())
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, domain.ErrClosed):
		d.logger.Info("Connection closed", "err", err)
		return nil
	default:
		d.logger.Error("Dispatch loop failed", "err", err)
		return fmt.Errorf("%w: receive: %w", domain.ErrTransport, err)
	}
}
