// Package engine runs the scan loop: a fixed-interval cycle that snapshots
// the account, scans enabled symbols concurrently for proposals, executes
// admitted proposals sequentially, and then sweeps open positions.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/config"
	"github.com/prathan03/mt5-auto-trade/journal"
	"github.com/prathan03/mt5-auto-trade/news"
	"github.com/prathan03/mt5-auto-trade/notify"
	"github.com/prathan03/mt5-auto-trade/obs"
	"github.com/prathan03/mt5-auto-trade/position"
	"github.com/prathan03/mt5-auto-trade/risk"
	"github.com/prathan03/mt5-auto-trade/signal"
	"github.com/prathan03/mt5-auto-trade/snapshot"
)

// Engine owns the cycle loop. All mutable state lives on the coordinator
// goroutine; the scan workers only read shared structures.
type Engine struct {
	cfg       *config.Config
	gw        broker.Gateway
	cache     *snapshot.Cache
	oracle    signal.Oracle
	risk      *risk.Manager
	positions *position.Manager
	calendar  *news.Calendar
	sink      notify.Sink
	journal   journal.Journal

	peakEquity  float64
	lossAlerted bool
	ddAlerted   float64
	summaryDay  int
}

// New wires the engine. calendar may be nil when the news filter is off;
// sink and jrnl must be non-nil (use notify.Nop / journal.Nop).
func New(cfg *config.Config, gw broker.Gateway, cache *snapshot.Cache, oracle signal.Oracle,
	rm *risk.Manager, pm *position.Manager, calendar *news.Calendar,
	sink notify.Sink, jrnl journal.Journal) *Engine {
	return &Engine{
		cfg:       cfg,
		gw:        gw,
		cache:     cache,
		oracle:    oracle,
		risk:      rm,
		positions: pm,
		calendar:  calendar,
		sink:      sink,
		journal:   jrnl,
	}
}

// Run executes cycles until ctx is cancelled. Startup fails hard when the
// account is unreachable; after that, a failed cycle only delays the next
// one by the backoff interval.
func (e *Engine) Run(ctx context.Context) error {
	acct, err := e.gw.AccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("engine: account unavailable at startup: %w", err)
	}
	e.peakEquity = acct.Equity
	log.Printf("engine: starting, balance=%.2f equity=%.2f symbols=%d interval=%s",
		acct.Balance, acct.Equity, len(e.cfg.EnabledSymbols()), e.cfg.Engine.Interval())

	for {
		delay := e.cfg.Engine.Interval()
		if err := e.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("engine: cycle failed: %v", err)
			obs.CycleFailed()
			delay = e.cfg.Engine.Backoff()
		} else {
			obs.CycleCompleted()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// cycle is one full pass: account, alerts, scan, execute, sweep, journal.
func (e *Engine) cycle(ctx context.Context) error {
	acct, err := e.gw.AccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("account snapshot: %w", err)
	}

	open, err := e.gw.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("open positions: %w", err)
	}

	if acct.Equity > e.peakEquity {
		e.peakEquity = acct.Equity
	}
	obs.SetEquity(acct.Equity)
	obs.SetOpenPositions(len(open))
	if e.peakEquity > 0 {
		obs.SetDrawdown((e.peakEquity - acct.Equity) / e.peakEquity * 100)
	}

	e.evaluateAlerts(acct)
	e.maybeSummary(acct, len(open))

	proposals := e.scan(ctx)
	e.execute(ctx, proposals, acct)

	e.positions.Sweep(ctx)

	if err := e.journal.RecordEquity(journal.EquitySnapshot{
		Time:        time.Now(),
		Balance:     acct.Balance,
		Equity:      acct.Equity,
		FreeMargin:  acct.FreeMargin,
		MarginLevel: acct.MarginLevel,
		OpenTrades:  len(open),
	}); err != nil {
		log.Printf("engine: journal equity: %v", err)
	}

	return nil
}
