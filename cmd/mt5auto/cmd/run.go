package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/broker/sim"
	"github.com/prathan03/mt5-auto-trade/config"
	"github.com/prathan03/mt5-auto-trade/engine"
	"github.com/prathan03/mt5-auto-trade/journal"
	"github.com/prathan03/mt5-auto-trade/logger"
	"github.com/prathan03/mt5-auto-trade/news"
	"github.com/prathan03/mt5-auto-trade/notify"
	"github.com/prathan03/mt5-auto-trade/obs"
	"github.com/prathan03/mt5-auto-trade/position"
	"github.com/prathan03/mt5-auto-trade/risk"
	signalpkg "github.com/prathan03/mt5-auto-trade/signal"
	"github.com/prathan03/mt5-auto-trade/snapshot"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan loop against a paper broker",
	Long: `Run the engine's scan loop. The current build trades against the
in-memory paper gateway; point a real gateway at the engine by
implementing broker.Gateway.

Example:
  mt5auto run --config configs/live.yaml`,
	RunE: runRun,
}

var (
	runConfigPath string
	runBalance    float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to YAML config file (defaults apply when omitted)")
	runCmd.Flags().Float64Var(&runBalance, "balance", 10000, "paper account starting balance")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		cfg, err = config.Load(runConfigPath)
		if err != nil {
			return err
		}
	}

	logger.Setup(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
	env := config.LoadEnv()

	gw := sim.New(runBalance)
	for _, symbol := range cfg.EnabledSymbols() {
		gw.SetSpec(defaultSpec(symbol))
	}

	var jrnl journal.Journal = journal.Nop{}
	if cfg.Journal.DBPath != "" {
		sq, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer sq.Close()
		jrnl = sq
	}

	sinks := notify.Multi{notify.LogSink{}}
	if env.TelegramToken != "" && env.TelegramChatID != "" {
		sinks = append(sinks, notify.NewTelegram(env.TelegramToken, env.TelegramChatID))
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := obs.Serve(cfg.Metrics.Addr); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	cache := snapshot.NewCache(gw)
	rm := risk.NewManager(cfg.Risk, gw, runBalance)
	pm := position.NewManager(gw, cache, sinks, cfg.Engine.Magic)

	var calendar *news.Calendar
	if cfg.Engine.UseNewsFilter {
		calendar = news.NewCalendar()
	}

	eng := engine.New(cfg, gw, cache, &signalpkg.RuleOracle{}, rm, pm, calendar, sinks, jrnl)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := eng.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Printf("engine: shutdown")
		return nil
	}
	return err
}

// defaultSpec gives the paper gateway a plausible contract for a symbol.
func defaultSpec(symbol string) broker.SymbolSpec {
	s := broker.SymbolSpec{
		Symbol:       symbol,
		Point:        0.00001,
		Digits:       5,
		TickValue:    0.1,
		ContractSize: 100000,
		VolumeMin:    0.01,
		VolumeMax:    100,
		VolumeStep:   0.01,
		SpreadPoints: 15,
		TradeAllowed: true,
	}
	switch symbol {
	case "XAUUSD":
		s.Point, s.Digits, s.TickValue, s.ContractSize, s.SpreadPoints = 0.01, 2, 1, 100, 30
	case "USDJPY":
		s.Point, s.Digits = 0.001, 3
	}
	return s
}
