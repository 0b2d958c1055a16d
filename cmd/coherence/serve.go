package main

import (
	"fmt"
	"os"

	"github.com/aretw0/coherence"
	"github.com/aretw0/coherence/internal/cli"
	"github.com/aretw0/coherence/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run one node of a coherent region",
	Long: `Starts a node, connects it to its peer and serves the coherence protocol until
interrupted or until the peer disconnects. The peer is reached with --peer, awaited
with --listen, or found through Redis with --redis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(os.Stdout, coherence.Version)
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		err = cli.RunServe(sigCtx, cfg, logger)
		if sig := sigCtx.Signal(); sig != nil {
			fmt.Fprintf(os.Stderr, "\nStopped by signal: %v\n", sig)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("id", "", "Node id (random when empty)")
	serveCmd.Flags().StringP("listen", "l", "", "Address to accept the peer on")
	serveCmd.Flags().StringP("peer", "p", "", "Address of the peer to dial")
	serveCmd.Flags().String("region", "", "Region name used for discovery")
	serveCmd.Flags().Uint64("base", 0, "Region base address")
	serveCmd.Flags().Int("pages", 0, "Number of pages in the region")
	serveCmd.Flags().String("backing", "", "Page backing: heap or mmap")
	serveCmd.Flags().Duration("timeout", 0, "Bound on every wait for the peer")
	serveCmd.Flags().String("admin", "", "Address of the admin HTTP API (disabled when empty)")
	serveCmd.Flags().String("redis", "", "Redis address for peer discovery")
}
