package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/coherence/pkg/domain"
	"github.com/aretw0/coherence/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// withdrawScript deletes the announcement only if it still names ARGV[1].
const withdrawScript = `
	if redis.call("hget", KEYS[1], "id") == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// Registry implements ports.PeerRegistry using Redis hashes.
type Registry struct {
	client *backend.Client
	prefix string
}

// Option configures the Registry.
type Option func(*Registry)

// WithPrefix sets the key prefix for announcements.
func WithPrefix(prefix string) Option {
	return func(r *Registry) {
		r.prefix = prefix
	}
}

// New creates a new Redis registry with options.
func New(address, password string, db int, opts ...Option) *Registry {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis registry from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Registry {
	r := &Registry{
		client: client,
		prefix: "coherence:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) key(region string) string {
	return r.prefix + "peer:" + region
}

// Client returns the underlying client, e.g. to build a Locker sharing it.
func (r *Registry) Client() *backend.Client {
	return r.client
}

// Prefix returns the key prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Announce publishes peer for its region. A zero ttl never expires.
func (r *Registry) Announce(ctx context.Context, peer ports.Peer, ttl time.Duration) error {
	key := r.key(peer.Region)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "id", peer.ID, "region", peer.Region, "address", peer.Address)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to announce peer: %w", err)
	}
	return nil
}

// Resolve returns the peer announced for region.
func (r *Registry) Resolve(ctx context.Context, region string) (ports.Peer, error) {
	fields, err := r.client.HGetAll(ctx, r.key(region)).Result()
	if err != nil {
		return ports.Peer{}, fmt.Errorf("failed to resolve peer: %w", err)
	}
	if len(fields) == 0 {
		return ports.Peer{}, fmt.Errorf("%w: region %q", domain.ErrPeerNotFound, region)
	}

	return ports.Peer{
		ID:      fields["id"],
		Region:  fields["region"],
		Address: fields["address"],
	}, nil
}

// Withdraw removes the announcement for region if peerID still owns it.
func (r *Registry) Withdraw(ctx context.Context, region, peerID string) error {
	return r.client.Eval(ctx, withdrawScript, []string{r.key(region)}, peerID).Err()
}

// Close closes the redis client.
func (r *Registry) Close() error {
	return r.client.Close()
}
