/*
Package coherence keeps a region of memory coherent between two nodes using the MSI
protocol at page granularity.

Each node holds its own copy of every page together with a tag: Modified (the only
valid copy, writable), Shared (a valid read-only copy) or Invalid (no usable copy).
Reading an Invalid page faults: the node asks its peer for the page and blocks until
the peer answers. Writing a page makes it Modified locally and tells the peer to drop
its copy. At most one node ever holds a page Modified.

# Architecture

The engine (internal/runtime) owns the state machine. It talks to the outside world
through ports:

  - ports.PageStore holds the pages (pkg/adapters/memory, optionally backed by
    anonymous mmap from pkg/adapters/mmap).
  - ports.Conn carries protocol messages (pkg/adapters/stream frames them over TCP).
  - ports.Releaser gives page memory back to the OS on invalidation.
  - ports.PeerRegistry finds the peer (pkg/adapters/redis).

The wire format lives in pkg/protocol.

# Usage

	a, b := stream.Pipe()

	left, _ := coherence.New(a)
	right, _ := coherence.New(b)
	_ = left.Register(0x10000000, 4)
	_ = right.Register(0x10000000, 4)

	go left.Serve(ctx)
	go right.Serve(ctx)

	_ = right.WriteSync(ctx, 0x10001000, 0, []byte("hello"))

	buf := make([]byte, left.PageSize())
	res, err := left.Read(ctx, buf, 0x10001000)

After the read both nodes hold the page Shared and buf starts with "hello".

# Observability

Every tag transition, message and fault is reported through domain.LifecycleHooks.
pkg/observability turns them into Prometheus metrics or debug logs.
*/
package coherence
