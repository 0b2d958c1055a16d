package cli

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/coherence/internal/config"
	"github.com/aretw0/coherence/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().String()
}

func TestRunServe_DiscoveryAndAdmin(t *testing.T) {
	mr := miniredis.RunT(t)
	resolvePoll = 10 * time.Millisecond

	nodeConfig := func(id, admin string) config.Config {
		cfg := config.Default()
		cfg.Node.ID = id
		cfg.Node.Listen = "127.0.0.1:0"
		cfg.Region.Name = "serve-test"
		cfg.Region.Pages = 4
		cfg.Discovery.RedisAddr = mr.Addr()
		cfg.Admin.Addr = admin
		return cfg
	}

	adminA := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 2)
	go func() { done <- RunServe(ctx, nodeConfig("node-a", adminA), logging.NewNop()) }()
	go func() { done <- RunServe(ctx, nodeConfig("node-b", ""), logging.NewNop()) }()

	client := &http.Client{Timeout: time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + adminA + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	pages, err := FetchPages(ctx, client, adminA, "")
	require.NoError(t, err)
	assert.Len(t, pages, 4)

	resp, err := client.Get("http://" + adminA + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	for range 2 {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("RunServe did not stop")
		}
	}
}

func TestRunServe_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	err := RunServe(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "invalid configuration")
}
