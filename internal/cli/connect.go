package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/aretw0/coherence/internal/config"
	"github.com/aretw0/coherence/pkg/adapters/stream"
	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/ports"
	"github.com/google/uuid"
)

// keepAlivePeriod is the TCP keep-alive period of peer connections.
const keepAlivePeriod = 15 * time.Second

// resolvePoll is how often a node that lost the region claim looks for the winner.
var resolvePoll = 200 * time.Millisecond

// Connect establishes the peer connection described by cfg.Node: dial node.peer, or
// listen on node.listen and accept exactly one peer.
func Connect(ctx context.Context, node config.Node, logger *slog.Logger) (*stream.Conn, error) {
	if node.Peer != "" {
		logger.Info("Dialing peer", "peer", node.Peer)
		return keepAlive(stream.Dial(ctx, node.Peer, stream.WithLogger(logger)))
	}

	ln, err := net.Listen("tcp", node.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", node.Listen, err)
	}
	defer ln.Close()

	logger.Info("Waiting for peer", "listen", ln.Addr().String())
	return keepAlive(stream.Accept(ctx, ln, stream.WithLogger(logger)))
}

func keepAlive(c *stream.Conn, err error) (*stream.Conn, error) {
	if err != nil {
		return nil, err
	}
	c.SetKeepAlive(keepAlivePeriod)
	return c, nil
}

// Discovery pairs two nodes through a registry. The first node to claim the region
// listens and announces itself; the other resolves the announcement and dials.
type Discovery struct {
	Registry ports.PeerRegistry
	Locker   ports.DistributedLocker
	Region   string
	NodeID   string
	Listen   string
	TTL      time.Duration
	Logger   *slog.Logger
}

// Connect returns the connection to the other node of the region.
func (d *Discovery) Connect(ctx context.Context) (*stream.Conn, error) {
	if d.NodeID == "" {
		d.NodeID = uuid.NewString()
	}
	logger := d.Logger.With("region", d.Region, "node_id", d.NodeID)

	if peer, err := d.Registry.Resolve(ctx, d.Region); err == nil {
		return d.dial(ctx, peer, logger)
	} else if !errors.Is(err, domain.ErrPeerNotFound) {
		return nil, err
	}

	unlock, won, err := d.Locker.TryLock(ctx, "claim:"+d.Region, d.TTL)
	if err != nil {
		return nil, err
	}
	if !won {
		logger.Info("Region already claimed, waiting for announcement")
		peer, err := d.awaitPeer(ctx)
		if err != nil {
			return nil, err
		}
		return d.dial(ctx, peer, logger)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Could not release region claim", "err", err)
		}
	}()

	return d.listen(ctx, logger)
}

func (d *Discovery) dial(ctx context.Context, peer ports.Peer, logger *slog.Logger) (*stream.Conn, error) {
	logger.Info("Dialing announced peer", "peer_id", peer.ID, "address", peer.Address)
	return keepAlive(stream.Dial(ctx, peer.Address, stream.WithLogger(logger)))
}

func (d *Discovery) listen(ctx context.Context, logger *slog.Logger) (*stream.Conn, error) {
	ln, err := net.Listen("tcp", d.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", d.Listen, err)
	}
	defer ln.Close()

	self := ports.Peer{ID: d.NodeID, Region: d.Region, Address: ln.Addr().String()}
	if err := d.Registry.Announce(ctx, self, d.TTL); err != nil {
		return nil, err
	}
	defer func() {
		if err := d.Registry.Withdraw(context.WithoutCancel(ctx), d.Region, d.NodeID); err != nil {
			logger.Warn("Could not withdraw announcement", "err", err)
		}
	}()
	logger.Info("Claimed region, waiting for peer", "address", self.Address)

	// Keep the announcement alive until a peer connects.
	acceptCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		ticker := time.NewTicker(d.TTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-acceptCtx.Done():
				return
			case <-ticker.C:
				if err := d.Registry.Announce(acceptCtx, self, d.TTL); err != nil && acceptCtx.Err() == nil {
					logger.Warn("Could not refresh announcement", "err", err)
				}
			}
		}
	}()

	return keepAlive(stream.Accept(acceptCtx, ln, stream.WithLogger(logger)))
}

func (d *Discovery) awaitPeer(ctx context.Context) (ports.Peer, error) {
	ticker := time.NewTicker(resolvePoll)
	defer ticker.Stop()

	for {
		peer, err := d.Registry.Resolve(ctx, d.Region)
		switch {
		case err == nil:
			return peer, nil
		case !errors.Is(err, domain.ErrPeerNotFound):
			return ports.Peer{}, err
		}

		select {
		case <-ctx.Done():
			return ports.Peer{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
