package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/protocol"
)

// reply is what a dispatcher hands to a waiting caller.
type reply struct {
	data   []byte
	noData bool
}

// waitSlot is the private rendezvous of one outstanding request.
// ch has room for exactly one reply so delivery never blocks.
type waitSlot struct {
	id     uint64
	addr   uint64
	expect protocol.Kind
	ch     chan reply
}

// openSlot registers a new slot under a fresh correlation id.
func (e *Engine) openSlot(addr uint64, expect protocol.Kind) (*waitSlot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.closed:
		return nil, domain.ErrClosed
	default:
	}

	slot := &waitSlot{
		id:     e.nextID.Add(1),
		addr:   addr,
		expect: expect,
		ch:     make(chan reply, 1),
	}
	e.pending[slot.id] = slot
	return slot, nil
}

// closeSlot forgets the slot. Late replies for it are dropped.
func (e *Engine) closeSlot(slot *waitSlot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, slot.id)
}

// deliver hands msg to the slot waiting for its correlation id.
func (e *Engine) deliver(msg *protocol.Message) error {
	e.mu.Lock()
	slot, ok := e.pending[msg.ID]
	if ok && slot.expect == msg.Kind && slot.addr == msg.Addr {
		delete(e.pending, msg.ID)
	} else {
		ok = false
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s id=%d addr=%#x", domain.ErrUnexpectedReply, msg.Kind, msg.ID, msg.Addr)
	}

	r := reply{noData: msg.NoData()}
	if len(msg.Data) > 0 {
		r.data = append([]byte(nil), msg.Data...)
	}
	slot.ch <- r
	return nil
}

// wait blocks until the slot is answered, the engine timeout elapses,
// ctx ends or the engine is closed.
func (e *Engine) wait(ctx context.Context, slot *waitSlot) (reply, error) {
	var timeout <-chan time.Time
	if e.timeout > 0 {
		timer := time.NewTimer(e.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-slot.ch:
		return r, nil
	case <-timeout:
		return reply{}, fmt.Errorf("%w: %s for %#x after %s", domain.ErrTimeout, slot.expect, slot.addr, e.timeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return reply{}, fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err())
		}
		return reply{}, ctx.Err()
	case <-e.closed:
		return reply{}, domain.ErrClosed
	}
}

// Outstanding returns the number of open wait slots. A fault opens its slot before
// taking the page mutex, so a fault queued behind another on the same page counts
// even though it has not sent its request yet.
func (e *Engine) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
