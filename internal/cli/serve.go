package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/coherence"
	"github.com/aretw0/coherence/internal/config"
	httpAdapter "github.com/aretw0/coherence/pkg/adapters/http"
	redisAdapter "github.com/aretw0/coherence/pkg/adapters/redis"
	"github.com/aretw0/coherence/pkg/adapters/stream"
	"github.com/aretw0/coherence/pkg/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds how long the admin server drains on exit.
const shutdownGrace = 5 * time.Second

// RunServe runs one node until ctx ends or the peer goes away.
func RunServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Node.ID == "" {
		cfg.Node.ID = uuid.NewString()
	}
	logger = logger.With("node_id", cfg.Node.ID)

	store, releaser, backing, err := NewBacking(cfg.Region)
	if err != nil {
		return err
	}
	defer backing.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	conn, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}

	node, err := coherence.New(conn,
		coherence.WithLogger(logger),
		coherence.WithPageStore(store),
		coherence.WithReleaser(releaser),
		coherence.WithLifecycleHooks(observability.Chain(metrics.Hooks(), observability.LogHooks(logger))),
		coherence.WithTimeout(cfg.Engine.Timeout),
		coherence.WithMaxHandlers(cfg.Engine.MaxHandlers),
	)
	if err != nil {
		conn.Close()
		return err
	}
	defer node.Close()

	if err := node.Register(cfg.Region.Base, cfg.Region.Pages); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := node.Serve(ctx)
		logger.Info("Peer session ended", "err", err)
		if err == nil && ctx.Err() == nil {
			return errPeerGone
		}
		return err
	})

	if cfg.Admin.Addr != "" {
		srv := &http.Server{
			Addr: cfg.Admin.Addr,
			Handler: httpAdapter.NewHandler(node,
				httpAdapter.WithNodeID(cfg.Node.ID),
				httpAdapter.WithGatherer(reg),
				httpAdapter.WithLogger(logger),
			),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Admin API listening", "addr", cfg.Admin.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, errPeerGone) {
		return nil
	}
	return err
}

// errPeerGone stops the errgroup when the peer closes the connection.
var errPeerGone = errors.New("peer disconnected")

func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stream.Conn, error) {
	if cfg.Discovery.RedisAddr == "" {
		return Connect(ctx, cfg.Node, logger)
	}

	registry := redisAdapter.New(cfg.Discovery.RedisAddr, "", 0, redisAdapter.WithPrefix(cfg.Discovery.Prefix))
	defer registry.Close()

	d := &Discovery{
		Registry: registry,
		Locker:   redisAdapter.NewLocker(registry.Client(), registry.Prefix()),
		Region:   cfg.Region.Name,
		NodeID:   cfg.Node.ID,
		Listen:   cfg.Node.Listen,
		TTL:      cfg.Discovery.TTL,
		Logger:   logger,
	}
	return d.Connect(ctx)
}
