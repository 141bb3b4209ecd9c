// Package sim is an in-memory broker gateway. It backs paper-trading runs
// and the engine's tests; fills are instantaneous at the posted tick.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/market"
)

type Gateway struct {
	mu        sync.Mutex
	acct      broker.AccountSnapshot
	specs     map[string]broker.SymbolSpec
	ticks     map[string]market.Tick
	rates     map[string]market.Series // keyed symbol/timeframe
	positions map[int64]*broker.Position
	nextTkt   int64

	// FailNext makes the next gateway call fail; used to exercise the
	// engine's transient-failure paths.
	FailNext bool
}

func New(balance float64) *Gateway {
	return &Gateway{
		acct: broker.AccountSnapshot{
			Balance:  balance,
			Equity:   balance,
			Currency: "USD",
		},
		specs:     make(map[string]broker.SymbolSpec),
		ticks:     make(map[string]market.Tick),
		rates:     make(map[string]market.Series),
		positions: make(map[int64]*broker.Position),
		nextTkt:   1000,
	}
}

func ratesKey(symbol string, tf market.Timeframe) string {
	return symbol + "/" + tf.String()
}

// SetSpec registers a symbol specification.
func (g *Gateway) SetSpec(s broker.SymbolSpec) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.specs[s.Symbol] = s
}

// SetTick posts a quote and revalues open positions at it.
func (g *Gateway) SetTick(t market.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.Time.IsZero() {
		t.Time = time.Now()
	}
	g.ticks[t.Symbol] = t
	g.revalue()
}

// SetRates posts a candle series for Rates queries.
func (g *Gateway) SetRates(symbol string, tf market.Timeframe, s market.Series) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rates[ratesKey(symbol, tf)] = s
}

// SetBalance overrides the account balance (loss-limit test scenarios).
func (g *Gateway) SetBalance(balance float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acct.Balance = balance
	g.revalue()
}

func (g *Gateway) revalue() {
	floating := 0.0
	for _, p := range g.positions {
		if t, ok := g.ticks[p.Symbol]; ok {
			p.Profit = unrealized(p, t, g.specs[p.Symbol])
		}
		floating += p.Profit
	}
	g.acct.Profit = floating
	g.acct.Equity = g.acct.Balance + floating
	g.acct.FreeMargin = g.acct.Equity
}

func unrealized(p *broker.Position, t market.Tick, spec broker.SymbolSpec) float64 {
	tickValue := spec.TickValue
	if tickValue == 0 {
		tickValue = 1
	}
	point := spec.Point
	if point == 0 {
		point = 0.00001
	}
	var move float64
	if p.Side == broker.Buy {
		move = t.Bid - p.EntryPrice
	} else {
		move = p.EntryPrice - t.Ask
	}
	return move / point * tickValue * p.Volume
}

func (g *Gateway) fail(op string) error {
	if g.FailNext {
		g.FailNext = false
		return &broker.Error{Op: op, Code: -1, Comment: "simulated failure"}
	}
	return nil
}

func (g *Gateway) AccountSnapshot(ctx context.Context) (broker.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("account"); err != nil {
		return broker.AccountSnapshot{}, err
	}
	return g.acct, nil
}

func (g *Gateway) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("positions"); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(g.positions))
	for _, p := range g.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (g *Gateway) SymbolSpec(ctx context.Context, symbol string) (broker.SymbolSpec, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("spec"); err != nil {
		return broker.SymbolSpec{}, err
	}
	s, ok := g.specs[symbol]
	if !ok {
		return broker.SymbolSpec{}, fmt.Errorf("unknown symbol %q", symbol)
	}
	return s, nil
}

func (g *Gateway) CurrentTick(ctx context.Context, symbol string) (market.Tick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("tick"); err != nil {
		return market.Tick{}, err
	}
	t, ok := g.ticks[symbol]
	if !ok {
		return market.Tick{}, fmt.Errorf("no tick for %q", symbol)
	}
	return t, nil
}

func (g *Gateway) Rates(ctx context.Context, symbol string, tf market.Timeframe, count int) (market.Series, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("rates"); err != nil {
		return nil, err
	}
	s := g.rates[ratesKey(symbol, tf)]
	return s.Tail(count), nil
}

func (g *Gateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("order"); err != nil {
		return broker.OrderResult{}, err
	}

	t, ok := g.ticks[req.Symbol]
	if !ok {
		return broker.OrderResult{}, &broker.Error{Op: "order", Code: 10018, Comment: "market closed"}
	}
	fill := t.Ask
	if req.Side == broker.Sell {
		fill = t.Bid
	}

	g.nextTkt++
	ticket := g.nextTkt
	g.positions[ticket] = &broker.Position{
		Ticket:     ticket,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Volume:     req.Volume,
		EntryPrice: fill,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenTime:   t.Time,
		Magic:      req.Magic,
	}
	g.revalue()

	return broker.OrderResult{Ticket: ticket, Price: fill, Volume: req.Volume}, nil
}

func (g *Gateway) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("modify"); err != nil {
		return err
	}
	p, ok := g.positions[ticket]
	if !ok {
		return &broker.Error{Op: "modify", Code: 10036, Comment: "position not found"}
	}
	p.StopLoss = stopLoss
	p.TakeProfit = takeProfit
	return nil
}

func (g *Gateway) CloseVolume(ctx context.Context, ticket int64, volume float64) (broker.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("close"); err != nil {
		return broker.OrderResult{}, err
	}
	p, ok := g.positions[ticket]
	if !ok {
		return broker.OrderResult{}, &broker.Error{Op: "close", Code: 10036, Comment: "position not found"}
	}
	if volume > p.Volume {
		volume = p.Volume
	}

	t := g.ticks[p.Symbol]
	price := t.Bid
	if p.Side == broker.Sell {
		price = t.Ask
	}

	realized := unrealized(p, t, g.specs[p.Symbol]) * volume / p.Volume
	g.acct.Balance += realized

	p.Volume -= volume
	if p.Volume <= 1e-9 {
		delete(g.positions, ticket)
	}
	g.revalue()

	return broker.OrderResult{Ticket: ticket, Price: price, Volume: volume}, nil
}

var _ broker.Gateway = (*Gateway)(nil)
