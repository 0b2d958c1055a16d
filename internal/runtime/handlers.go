package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/protocol"
)

// HandleMessage routes an inbound message to its handler.
func (e *Engine) HandleMessage(ctx context.Context, msg *protocol.Message) error {
	if e.hooks.OnMessageReceived != nil {
		e.hooks.OnMessageReceived(ctx, &domain.MessageEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventMessageReceived},
			Kind:      msg.Kind.String(),
			ID:        msg.ID,
			Addr:      msg.Addr,
		})
	}

	var err error
	switch msg.Kind {
	case protocol.KindRequestPage:
		err = e.HandleRequest(ctx, msg)
	case protocol.KindPageReply:
		err = e.HandleReply(ctx, msg)
	case protocol.KindInvalidate:
		err = e.HandleInvalidate(ctx, msg)
	case protocol.KindInvalidateAck:
		err = e.HandleInvalidateAck(ctx, msg)
	default:
		err = fmt.Errorf("%w: %d", protocol.ErrUnknownKind, msg.Kind)
	}

	if err != nil && e.hooks.OnHandlerError != nil {
		e.hooks.OnHandlerError(ctx, &domain.MessageEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventHandlerError},
			Kind:      msg.Kind.String(),
			ID:        msg.ID,
			Addr:      msg.Addr,
			Err:       err,
		})
	}
	return err
}

// HandleRequest serves a RequestPage from the peer.
//
// An Invalid page is answered with zero bytes and FlagNoData. Whatever the send
// outcome, the page ends up Shared since the peer may now hold a copy.
func (e *Engine) HandleRequest(ctx context.Context, msg *protocol.Message) error {
	page, err := e.lookup(msg.Addr)
	if err != nil {
		return err
	}

	page.Lock()
	defer page.Unlock()

	if int(msg.Size) != page.Size() {
		e.logger.Warn("Request size differs from page size", logging.Addr(page.Addr), "requested", msg.Size, "page_size", page.Size())
	}

	var out *protocol.Message
	if page.Tag() == domain.TagInvalid {
		out = protocol.EmptyReply(msg.ID, page.Addr, page.Size())
	} else {
		out = protocol.PageReply(msg.ID, page.Addr, bytes.Clone(page.Bytes()))
	}

	sendErr := e.send(ctx, out)
	e.transition(ctx, page, domain.TagShared, domain.CauseServeRequest)
	return sendErr
}

// HandleReply hands a PageReply to the fault waiting for it. It never touches page tags.
func (e *Engine) HandleReply(ctx context.Context, msg *protocol.Message) error {
	if err := e.deliver(msg); err != nil {
		e.logger.Warn("Dropping reply", "id", msg.ID, logging.Addr(msg.Addr), "err", err)
		return err
	}
	return nil
}

// HandleInvalidate drops the local copy of a page the peer is about to write.
//
// The physical backing is released before acknowledging. If the release fails no
// acknowledgment is sent, so the peer never believes a copy is gone when it is not.
func (e *Engine) HandleInvalidate(ctx context.Context, msg *protocol.Message) error {
	page, err := e.lookup(msg.Addr)
	if err != nil {
		return err
	}

	page.Lock()
	defer page.Unlock()

	e.transition(ctx, page, domain.TagInvalid, domain.CauseInvalidate)

	if err := e.releaser.Release(page.Addr, page.Bytes()); err != nil {
		e.logger.Error("Could not release page backing", logging.Addr(page.Addr), "err", err)
		return fmt.Errorf("%w: page %#x: %w", domain.ErrRelease, page.Addr, err)
	}

	return e.send(ctx, protocol.InvalidateAck(msg.ID, page.Addr))
}

// HandleInvalidateAck completes a WriteSync waiting for msg. Acks for best effort
// writes have no waiter and are ignored.
func (e *Engine) HandleInvalidateAck(ctx context.Context, msg *protocol.Message) error {
	err := e.deliver(msg)
	if errors.Is(err, domain.ErrUnexpectedReply) {
		e.logger.Debug("Invalidate acknowledged", "id", msg.ID, logging.Addr(msg.Addr))
		return nil
	}
	return err
}
