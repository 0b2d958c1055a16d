// Package stream implements ports.Conn over any reliable byte stream, typically a
// TCP connection, using the protocol frame codec.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/pkg/protocol"
)

// Conn frames protocol messages over a byte stream.
// Send is safe for concurrent use; frames are never interleaved.
type Conn struct {
	rw     io.ReadWriteCloser
	logger *slog.Logger

	wmu sync.Mutex
	w   *bufio.Writer

	inbox  chan *protocol.Message
	failed chan struct{}
	err    error

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures the Conn.
type Option func(*Conn)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New wraps rw and starts reading frames from it.
func New(rw io.ReadWriteCloser, opts ...Option) *Conn {
	c := &Conn{
		rw:     rw,
		logger: logging.NewNop(),
		w:      bufio.NewWriterSize(rw, protocol.HeaderSize+64*1024),
		inbox:  make(chan *protocol.Message),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Dial connects to a peer listening at address.
func Dial(ctx context.Context, address string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return New(nc, opts...), nil
}

// Accept waits for one peer on ln. If ctx ends first, ln is closed.
func Accept(ctx context.Context, ln net.Listener, opts ...Option) (*Conn, error) {
	type accepted struct {
		nc  net.Conn
		err error
	}
	ch := make(chan accepted, 1)
	go func() {
		nc, err := ln.Accept()
		ch <- accepted{nc, err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return nil, fmt.Errorf("accept: %w", a.err)
		}
		return New(a.nc, opts...), nil
	case <-ctx.Done():
		_ = ln.Close()
		return nil, ctx.Err()
	}
}

// Pipe returns two connected in-process ends.
func Pipe(opts ...Option) (*Conn, *Conn) {
	a, b := net.Pipe()
	return New(a, opts...), New(b, opts...)
}

// Send writes msg as one frame.
func (c *Conn) Send(ctx context.Context, msg *protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if nc, ok := c.rw.(net.Conn); ok {
		deadline, _ := ctx.Deadline()
		_ = nc.SetWriteDeadline(deadline)
	}

	if err := protocol.Encode(c.w, msg); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

// Receive returns the next inbound message.
func (c *Conn) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case msg := <-c.inbox:
		return msg, nil
	case <-c.failed:
		return nil, c.err
	case <-c.done:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the connection down. It is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.rw.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	r := bufio.NewReaderSize(c.rw, protocol.HeaderSize+64*1024)
	for {
		msg, err := protocol.Decode(r)
		if err != nil {
			c.logger.Debug("Read loop stopped", "err", err)
			c.err = err
			close(c.failed)
			return
		}

		select {
		case c.inbox <- msg:
		case <-c.done:
			return
		}
	}
}

// SetKeepAlive enables TCP keep-alives when the underlying stream is TCP.
// It reports whether keep-alives were enabled.
func (c *Conn) SetKeepAlive(period time.Duration) bool {
	tc, ok := c.rw.(*net.TCPConn)
	if !ok {
		return false
	}
	return tc.SetKeepAlive(true) == nil && tc.SetKeepAlivePeriod(period) == nil
}
