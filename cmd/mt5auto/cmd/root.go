package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mt5auto",
	Short: "An automated trading engine with layered risk controls",
	Long: `mt5auto scans configured symbols on a fixed interval, asks a signal
oracle for trade proposals, and executes the ones that pass validation,
admission checks, and confidence-scaled position sizing.

It provides:
  - Multi-timeframe market analysis with cached series and indicators
  - A risk manager enforcing daily/weekly loss limits and correlation caps
  - Partial take-profits, breakeven moves, and ATR trailing stops
  - A SQLite trade journal and Prometheus metrics
  - Telegram notifications for trades and risk alerts`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
