package commands

import (
	"github.com/spf13/cobra"
)

// configPath is shared by every subcommand that reads the configuration
var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lot-auction",
	Short: "Live single-lot timed auction server",
	Long: `lot-auction runs one timed auction at a time for a lot, accepting bids
from organizations with fixed budgets and settling the lot to the highest
bidder when the countdown expires.

Observers follow the auction over server-sent events. State lives in memory
or in Redis, which also relays every auction event on a pub/sub channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (defaults when omitted)")
}
