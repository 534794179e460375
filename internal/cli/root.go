// Package cli defines the coinflow command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coinflow",
	Short: "CoinFlow device-local rewards daemon",
	Long: `CoinFlow runs the rewards ledger for this device: coin credits,
daily check-ins, spin rewards, withdrawal requests, and the offline
action queue, backed by an embedded store and exposed over a localhost
HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, "coinflow 0.1.0")
	},
}
