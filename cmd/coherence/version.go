package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/coherence"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of coherence",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coherence version %s\n", strings.TrimSpace(coherence.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
