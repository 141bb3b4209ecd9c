package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prathan03/mt5-auto-trade/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade journal",
	Long: `Query and display records from the SQLite trade journal.

Examples:
  mt5auto journal trades --since 24h
  mt5auto journal decisions --since 24h`,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List recently opened trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List recently rejected proposals",
	Args:  cobra.NoArgs,
	RunE:  runJournalDecisions,
}

var (
	journalDBPath string
	journalSince  time.Duration
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalDecisionsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./mt5auto.sqlite", "path to SQLite journal DB")
	journalCmd.PersistentFlags().DurationVar(&journalSince, "since", 24*time.Hour, "how far back to query")
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	trades, err := j.TradesSince(time.Now().Add(-journalSince))
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("No trades found.")
		return nil
	}

	for _, t := range trades {
		fmt.Printf("%s  #%d %-8s %-4s %.2f @ %.5f  sl=%.5f tp=%.5f  conf=%d\n",
			t.OpenTime.Format("2006-01-02 15:04"), t.Ticket, t.Symbol, t.Side,
			t.Volume, t.EntryPrice, t.StopLoss, t.TakeProfit, t.Confidence)
	}
	fmt.Printf("\n%d trade(s)\n", len(trades))
	return nil
}

func runJournalDecisions(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	decisions, err := j.DecisionsSince(time.Now().Add(-journalSince))
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No rejected proposals found.")
		return nil
	}

	for _, d := range decisions {
		fmt.Printf("%s  %-8s %-4s conf=%d  [%s] %s\n",
			d.Time.Format("2006-01-02 15:04"), d.Symbol, d.Decision, d.Confidence, d.Code, d.Reason)
	}
	fmt.Printf("\n%d decision(s)\n", len(decisions))
	return nil
}
