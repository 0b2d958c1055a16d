package main

import (
	"net/http"
	"os"
	"time"

	"github.com/aretw0/coherence/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var pagesCmd = &cobra.Command{
	Use:   "pages [admin-address]",
	Short: "Show the page table of a running node",
	Long: `Fetches the page table from a node's admin API and prints it as a table, markdown,
JSON or a Mermaid diagram of the protocol states. Defaults to admin.addr from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr := cfg.Admin.Addr
		if len(args) > 0 {
			addr = args[0]
		}
		format, _ := cmd.Flags().GetString("format")
		tag, _ := cmd.Flags().GetString("tag")

		client := &http.Client{Timeout: 5 * time.Second}
		pages, err := cli.FetchPages(cmd.Context(), client, addr, tag)
		if err != nil {
			return err
		}

		rich := term.IsTerminal(int(os.Stdout.Fd()))
		return cli.PrintPages(os.Stdout, pages, format, addr, rich)
	},
}

func init() {
	rootCmd.AddCommand(pagesCmd)

	pagesCmd.Flags().StringP("format", "f", cli.FormatTable, "Output format: table, markdown, json or mermaid")
	pagesCmd.Flags().StringP("tag", "t", "", "Only show pages with this tag (Modified, Shared, Invalid)")
}
