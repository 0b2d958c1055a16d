package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/protocol"
)

// Write copies data into the page containing addr, makes the page Modified and tells
// the peer to drop its copy.
//
// data lands at addr-pageStart+off. The invalidate is best effort: Write does not wait
// for the acknowledgment, and a send failure leaves the local write in place.
func (e *Engine) Write(ctx context.Context, addr uint64, off int, data []byte) error {
	return e.write(ctx, addr, off, data, false)
}

// WriteSync is Write followed by a bounded wait for the peer's InvalidateAck.
// It returns domain.ErrTimeout if the peer never confirms.
func (e *Engine) WriteSync(ctx context.Context, addr uint64, off int, data []byte) error {
	return e.write(ctx, addr, off, data, true)
}

func (e *Engine) write(ctx context.Context, addr uint64, off int, data []byte, acked bool) error {
	if err := e.checkUsable(); err != nil {
		return err
	}

	page, err := e.lookup(addr)
	if err != nil {
		return err
	}

	inner := int(addr - page.Addr)
	if off < 0 || off > page.Size()-inner || inner+off > page.Size()-len(data) {
		return fmt.Errorf("%w: %d bytes at offset %d+%d of %d", domain.ErrOutOfRange, len(data), inner, off, page.Size())
	}
	start := inner + off

	var slot *waitSlot
	var id uint64
	if acked {
		slot, err = e.openSlot(page.Addr, protocol.KindInvalidateAck)
		if err != nil {
			return err
		}
		defer e.closeSlot(slot)
		id = slot.id
	} else {
		id = e.nextID.Add(1)
	}

	if err := e.writeLocked(ctx, page, start, data, id); err != nil {
		return err
	}
	if slot == nil {
		return nil
	}

	_, err = e.wait(ctx, slot)
	return err
}

func (e *Engine) writeLocked(ctx context.Context, page *domain.Page, start int, data []byte, id uint64) error {
	page.Lock()
	defer page.Unlock()

	copy(page.Bytes()[start:], data)
	e.transition(ctx, page, domain.TagModified, domain.CauseLocalWrite)

	return e.send(ctx, protocol.Invalidate(id, page.Addr))
}
