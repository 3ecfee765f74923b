// Package cli implements the logtx command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// jsonOutput is a persistent flag available to all subcommands.
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "logtx",
	Short: "logtx reconstructs request transactions from a caching proxy's shared event log",
	Long: `logtx reads the interleaved fragment stream a caching reverse-proxy
writes to its shared event log, reassembles the fragments into complete
client and backend request transactions, and correlates each backend
transaction with the client request that triggered it.

Fragment dumps are JSONL files, one fragment per line, as persisted
from the live log.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
