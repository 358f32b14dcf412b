package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/skinarb/skinarb/internal/app"
	"github.com/skinarb/skinarb/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage bot",
	Long: `Starts the skin marketplace arbitrage bot, which will:
1. Scan configured games for underpriced listings every cycle
2. Rank opportunities by ROI within each price tier
3. Place buy-orders on the best opportunities (TRADING_MODE=auto)
4. Watch the order book and re-price targets when outbid

With TRADING_MODE=observe the bot scans and reports without trading.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	// Optional .env for local development; the environment wins.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
