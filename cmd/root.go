package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "skinarb",
	Short: "Skin marketplace arbitrage bot",
	Long: `Skin marketplace arbitrage bot that scans game-item listings for
underpriced items, ranks them by return on investment per price tier,
and competes for them with automatically managed buy-orders.

The bot fetches listings over the marketplace REST API, watches competing
bids on the order-book WebSocket feed, and re-prices or withdraws its
buy-orders as the competition and the economics change.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
