package ports

import (
	"context"
	"time"
)

// Peer describes a node serving a region.
type Peer struct {
	ID      string `json:"id"`
	Region  string `json:"region"`
	Address string `json:"address"`
}

// PeerRegistry lets nodes sharing a region discover each other.
type PeerRegistry interface {
	// Announce publishes peer for its region, replacing any previous entry, for ttl.
	Announce(ctx context.Context, peer Peer, ttl time.Duration) error

	// Resolve returns the peer currently announced for region.
	// Returns domain.ErrPeerNotFound if none.
	Resolve(ctx context.Context, region string) (Peer, error)

	// Withdraw removes the announcement if it still belongs to peerID.
	Withdraw(ctx context.Context, region, peerID string) error
}
