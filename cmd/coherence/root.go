package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/coherence/internal/config"
	"github.com/aretw0/coherence/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coherence",
	Short: "Coherence keeps a memory region consistent between two nodes",
	Long: `Coherence runs one side of a page-level MSI protocol. Two nodes register the same
region; reading a page the local node does not hold fetches it from the peer, and writing
a page invalidates the peer's copy.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "coherence.yaml", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides log.level)")
}

// loadConfig reads the configuration file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("log-level", &cfg.Log.Level)
	str("id", &cfg.Node.ID)
	str("listen", &cfg.Node.Listen)
	str("peer", &cfg.Node.Peer)
	str("region", &cfg.Region.Name)
	str("backing", &cfg.Region.Backing)
	str("admin", &cfg.Admin.Addr)
	str("redis", &cfg.Discovery.RedisAddr)

	if flags.Lookup("pages") != nil && flags.Changed("pages") {
		cfg.Region.Pages, _ = flags.GetInt("pages")
	}
	if flags.Lookup("base") != nil && flags.Changed("base") {
		cfg.Region.Base, _ = flags.GetUint64("base")
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		cfg.Engine.Timeout, _ = flags.GetDuration("timeout")
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}
