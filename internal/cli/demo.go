package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/coherence"
	"github.com/aretw0/coherence/internal/presentation/tui"
	"github.com/aretw0/coherence/pkg/adapters/stream"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/observability"
	"golang.org/x/sync/errgroup"
)

const demoBase uint64 = 0x10000000

// RunDemo runs two nodes in one process and walks a page through the protocol,
// printing each step to w.
func RunDemo(ctx context.Context, w io.Writer, pages int, logger *slog.Logger) error {
	a, b := stream.Pipe()

	opts := []coherence.Option{
		coherence.WithLogger(logger),
		coherence.WithLifecycleHooks(observability.LogHooks(logger)),
	}
	left, err := coherence.New(a, opts...)
	if err != nil {
		return err
	}
	right, err := coherence.New(b, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range []*coherence.Node{left, right} {
		if err := n.Register(demoBase, pages); err != nil {
			cancel()
			return err
		}
		g.Go(func() error { return n.Serve(gctx) })
	}
	defer func() {
		cancel()
		_ = left.Close()
		_ = right.Close()
		_ = g.Wait()
	}()

	step := func(format string, args ...any) {
		fmt.Fprintf(w, "==> "+format+"\n", args...)
	}
	show := func() {
		for _, side := range []struct {
			name string
			node *coherence.Node
		}{{"A", left}, {"B", right}} {
			fmt.Fprintf(w, "node %s: %s\n", side.name, tui.Summary(side.node.Pages()))
		}
	}

	page := demoBase + uint64(left.PageSize())
	buf := make([]byte, left.PageSize())

	step("A reads %#x while B holds nothing", page)
	res, err := left.Read(ctx, buf, page)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "no data: %t, zero page: %t\n", res.NoData, bytes.Equal(buf, make([]byte, len(buf))))
	show()

	step("B writes 0xAB over %#x", page)
	if err := right.WriteSync(ctx, page, 0, bytes.Repeat([]byte{0xAB}, len(buf))); err != nil {
		return err
	}
	show()

	step("A reads %#x again", page)
	if _, err := left.Read(ctx, buf, page); err != nil {
		return err
	}
	fmt.Fprintf(w, "first byte: %#x\n", buf[0])
	show()

	step("A writes 10 bytes at offset 0")
	if err := left.WriteSync(ctx, page, 0, []byte("0123456789")); err != nil {
		return err
	}
	info, err := left.Page(page)
	if err != nil {
		return err
	}
	peer, err := right.Page(page)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "A: %s, B: %s\n", info.Tag, peer.Tag)
	if info.Tag == domain.TagModified && peer.Tag == domain.TagModified {
		return fmt.Errorf("page %#x Modified on both nodes", page)
	}
	show()
	return nil
}
