package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/coherence/internal/logging"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/protocol"
)

// Fault fetches the page containing addr from the peer.
//
// It is the local fault path: the caller is suspended until the peer replies, the
// engine timeout elapses, ctx ends or the connection is torn down. On success the page
// backing and dst (if not nil) hold the peer's bytes and the page is Shared. If the
// page became valid while Fault waited for the page mutex, it is served locally.
// kind is recorded but does not change the protocol.
func (e *Engine) Fault(ctx context.Context, dst []byte, addr uint64, kind domain.AccessKind) (res domain.FaultResult, err error) {
	start := time.Now()
	defer func() {
		e.reportFault(ctx, addr, kind, start, res, err)
	}()

	if err := e.checkUsable(); err != nil {
		return res, err
	}

	page, err := e.lookup(addr)
	if err != nil {
		return res, err
	}
	if dst != nil && len(dst) < page.Size() {
		return res, fmt.Errorf("%w: have %d, need %d", domain.ErrShortBuffer, len(dst), page.Size())
	}

	slot, err := e.openSlot(page.Addr, protocol.KindPageReply)
	if err != nil {
		return res, err
	}
	defer e.closeSlot(slot)

	page.Lock()
	defer page.Unlock()

	res = domain.FaultResult{Addr: page.Addr, Kind: kind}

	if page.Tag().IsValid() {
		res.Local = true
		if dst != nil {
			copy(dst, page.Bytes())
		}
		return res, nil
	}

	if err := e.send(ctx, protocol.RequestPage(slot.id, page.Addr, page.Size())); err != nil {
		return res, err
	}

	r, err := e.wait(ctx, slot)
	if err != nil {
		e.logger.Warn("Fault abandoned", logging.Addr(page.Addr), "id", slot.id, "err", err)
		return res, err
	}

	backing := page.Bytes()
	n := copy(backing, r.data)
	clear(backing[n:])
	if dst != nil {
		copy(dst, backing)
	}
	res.NoData = r.noData

	e.transition(ctx, page, domain.TagShared, domain.CauseLocalFault)
	return res, nil
}

// Read copies the page containing addr into dst, faulting it in first if it is Invalid.
func (e *Engine) Read(ctx context.Context, dst []byte, addr uint64) (domain.FaultResult, error) {
	return e.Fault(ctx, dst, addr, domain.AccessRead)
}

func (e *Engine) reportFault(ctx context.Context, addr uint64, kind domain.AccessKind, start time.Time, res domain.FaultResult, err error) {
	if e.hooks.OnFault == nil {
		return
	}
	e.hooks.OnFault(ctx, &domain.FaultEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventFault},
		Addr:      addr,
		Kind:      kind,
		Duration:  time.Since(start),
		NoData:    res.NoData,
		Local:     res.Local,
		Err:       err,
	})
}
