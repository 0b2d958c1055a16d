package ports

import (
	"context"

	"github.com/aretw0/coherence/pkg/protocol"
)

// Sender delivers protocol messages to the peer.
type Sender interface {
	// Send writes msg to the peer. It must be safe for concurrent use.
	Send(ctx context.Context, msg *protocol.Message) error
}

// Conn is a point-to-point connection to the peer.
type Conn interface {
	Sender

	// Receive blocks until the next message arrives, the connection fails or ctx ends.
	Receive(ctx context.Context) (*protocol.Message, error)

	// Close tears the connection down. Pending Receive calls return an error.
	Close() error
}
