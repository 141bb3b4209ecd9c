package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/prathan03/mt5-auto-trade/journal"
	"github.com/prathan03/mt5-auto-trade/market"
	"github.com/prathan03/mt5-auto-trade/notify"
	"github.com/prathan03/mt5-auto-trade/obs"
	"github.com/prathan03/mt5-auto-trade/pkg/id"
	"github.com/prathan03/mt5-auto-trade/signal"
)

// preferredSessions maps symbols to the sessions they trade well in. Symbols
// not listed here are scanned around the clock.
var preferredSessions = map[string][]string{
	"EURUSD": {"EUROPEAN", "US"},
	"GBPUSD": {"EUROPEAN", "US"},
	"USDJPY": {"ASIAN", "US"},
	"AUDUSD": {"ASIAN", "EUROPEAN"},
	"NZDUSD": {"ASIAN", "EUROPEAN"},
	"USDCAD": {"US"},
	"XAUUSD": {"EUROPEAN", "US"},
	"USOIL":  {"US"},
}

// scan runs the per-symbol pipeline across a bounded worker pool and returns
// directional proposals in completion order. A symbol that times out simply
// contributes nothing.
func (e *Engine) scan(ctx context.Context) []signal.Proposal {
	symbols := e.cfg.EnabledSymbols()
	sort.Strings(symbols)

	results := make(chan signal.Proposal, len(symbols))
	sem := make(chan struct{}, e.cfg.Engine.Workers)
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			tctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.TaskTimeout())
			defer cancel()
			if p, ok := e.scanSymbol(tctx, symbol); ok {
				results <- p
			}
		}(symbol)
	}

	wg.Wait()
	close(results)

	var out []signal.Proposal
	for p := range results {
		out = append(out, p)
	}
	return out
}

// scanSymbol runs one symbol through the filters, the analysis cache, and
// the oracle. ok is true only for a validated directional proposal.
func (e *Engine) scanSymbol(ctx context.Context, symbol string) (signal.Proposal, bool) {
	spec, err := e.gw.SymbolSpec(ctx, symbol)
	if err != nil {
		log.Printf("scan %s: symbol spec: %v", symbol, err)
		return signal.Proposal{}, false
	}
	if !spec.TradeAllowed {
		return signal.Proposal{}, false
	}

	if e.cfg.Engine.UseNewsFilter && e.calendar != nil {
		if avoid, reason := e.calendar.ShouldAvoid(symbol); avoid {
			log.Printf("scan %s: skipped, %s", symbol, reason)
			return signal.Proposal{}, false
		}
	}

	fs, ok := e.cache.Analysis(ctx, symbol)
	if !ok {
		log.Printf("scan %s: no market data", symbol)
		return signal.Proposal{}, false
	}

	if spec.Point > 0 {
		spreadPoints := fs.Spread / spec.Point
		if limit := e.spreadLimit(symbol, spec.SpreadPoints); limit > 0 && spreadPoints > limit {
			log.Printf("scan %s: spread too wide: %.0f > %.0f points", symbol, spreadPoints, limit)
			return signal.Proposal{}, false
		}
	}

	if !e.sessionAllowed(symbol, time.Now().UTC()) {
		return signal.Proposal{}, false
	}

	p, err := e.oracle.Propose(ctx, fs)
	if err != nil {
		log.Printf("scan %s: oracle: %v", symbol, err)
		return signal.Proposal{}, false
	}
	if p.Symbol == "" {
		p.Symbol = symbol
	}
	obs.Proposal(string(p.Decision))

	if !p.Directional() {
		return signal.Proposal{}, false
	}

	if err := signal.Validate(p); err != nil {
		log.Printf("scan %s: proposal rejected: %v", symbol, err)
		if jerr := e.journal.RecordDecision(journal.DecisionRecord{
			ID:         id.New(),
			Symbol:     symbol,
			Decision:   string(p.Decision),
			Confidence: p.Confidence,
			Code:       "VALIDATION",
			Reason:     err.Error(),
			Time:       time.Now(),
		}); jerr != nil {
			log.Printf("scan %s: journal decision: %v", symbol, jerr)
		}
		return signal.Proposal{}, false
	}

	ev := notify.New(notify.SignalDetected)
	ev.Symbol = symbol
	ev.Side = string(p.Decision)
	ev.Price = p.EntryPrice
	ev.StopLoss = p.StopLoss
	ev.TakeProfit = p.TakeProfit1
	ev.Confidence = p.Confidence
	ev.Reason = p.Reasoning
	e.sink.Emit(ev)

	return p, true
}

// spreadLimit resolves the max spread for a symbol: the explicit per-symbol
// cap when configured, otherwise a multiple of the broker's quoted spread.
func (e *Engine) spreadLimit(symbol string, quoted int) float64 {
	if sc, ok := e.cfg.Symbols[symbol]; ok && sc.MaxSpreadPoints > 0 {
		return float64(sc.MaxSpreadPoints)
	}
	if quoted > 0 && e.cfg.Engine.MaxSpreadMultiplier > 0 {
		return float64(quoted) * e.cfg.Engine.MaxSpreadMultiplier
	}
	return 0
}

// sessionAllowed reports whether now falls in one of the symbol's preferred
// sessions. Windows wrap midnight when start > end.
func (e *Engine) sessionAllowed(symbol string, now time.Time) bool {
	if !e.cfg.Sessions.Enabled {
		return true
	}
	preferred, ok := preferredSessions[market.Normalize(symbol)]
	if !ok {
		return true
	}
	hour := now.Hour()
	for _, name := range preferred {
		w, ok := e.cfg.Sessions.Windows[name]
		if !ok {
			continue
		}
		if inWindow(hour, w.Start, w.End) {
			return true
		}
	}
	return false
}

func inWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
