package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/broker/sim"
	"github.com/prathan03/mt5-auto-trade/config"
	"github.com/prathan03/mt5-auto-trade/journal"
	"github.com/prathan03/mt5-auto-trade/market"
	"github.com/prathan03/mt5-auto-trade/notify"
	"github.com/prathan03/mt5-auto-trade/position"
	"github.com/prathan03/mt5-auto-trade/risk"
	"github.com/prathan03/mt5-auto-trade/signal"
	"github.com/prathan03/mt5-auto-trade/snapshot"
)

// recorder captures emitted events.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(t notify.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// stubOracle returns a fixed directional proposal for every snapshot.
type stubOracle struct {
	proposal signal.Proposal
	err      error
}

func (o *stubOracle) Propose(_ context.Context, fs snapshot.FeatureSnapshot) (signal.Proposal, error) {
	if o.err != nil {
		return signal.Proposal{}, o.err
	}
	p := o.proposal
	p.Symbol = fs.Symbol
	return p, nil
}

// blockingOracle parks until its context dies.
type blockingOracle struct{}

func (blockingOracle) Propose(ctx context.Context, _ snapshot.FeatureSnapshot) (signal.Proposal, error) {
	<-ctx.Done()
	return signal.Proposal{}, ctx.Err()
}

func flatSeries(n int, base float64) market.Series {
	s := make(market.Series, n)
	t0 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := range s {
		s[i] = market.Candle{
			Time: t0.Add(time.Duration(i) * time.Hour),
			Open: base, High: base + 0.0010, Low: base, Close: base + 0.0005,
		}
	}
	return s
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.TaskTimeoutSeconds = 1
	cfg.Sessions.Enabled = false
	cfg.Symbols = map[string]config.SymbolConfig{
		"EURUSD": {Enabled: true, MaxSpreadPoints: 20},
	}
	return cfg
}

func testGateway() *sim.Gateway {
	gw := sim.New(10000)
	gw.SetSpec(broker.SymbolSpec{
		Symbol: "EURUSD", Point: 0.00001, Digits: 5, TickValue: 0.1,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01,
		SpreadPoints: 10, TradeAllowed: true,
	})
	gw.SetTick(market.Tick{Symbol: "EURUSD", Bid: 1.10000, Ask: 1.10010, Time: time.Now()})
	for _, tf := range []market.Timeframe{market.M5, market.M15, market.H1, market.H4, market.D1} {
		gw.SetRates("EURUSD", tf, flatSeries(120, 1.0995))
	}
	return gw
}

func testEngine(cfg *config.Config, gw *sim.Gateway, oracle signal.Oracle, rec *recorder) *Engine {
	cache := snapshot.NewCache(gw)
	rm := risk.NewManager(cfg.Risk, gw, 10000)
	pm := position.NewManager(gw, cache, rec, cfg.Engine.Magic)
	return New(cfg, gw, cache, oracle, rm, pm, nil, rec, journal.Nop{})
}

func TestCycle_OpensAdmittedProposal(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	gw := testGateway()
	rec := &recorder{}
	oracle := &stubOracle{proposal: signal.Proposal{
		Decision:    signal.Buy,
		Confidence:  85,
		EntryPrice:  1.10010,
		StopLoss:    1.09510,
		TakeProfit1: 1.11010,
		TakeProfit3: 1.13010,
	}}

	e := testEngine(cfg, gw, oracle, rec)
	require.NoError(t, e.cycle(context.Background()))

	open, err := gw.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)

	// 0.75% effective risk over a 50-pip stop at $1/pip
	assert.InDelta(t, 1.50, open[0].Volume, 1e-9)
	assert.Equal(t, cfg.Engine.Magic, open[0].Magic)
	assert.InDelta(t, 1.13010, open[0].TakeProfit, 1e-9)

	assert.Equal(t, 1, rec.count(notify.SignalDetected))
	assert.Equal(t, 1, rec.count(notify.TradeOpened))
}

func TestCycle_HoldOpensNothing(t *testing.T) {
	t.Parallel()

	gw := testGateway()
	e := testEngine(testConfig(), gw, &stubOracle{proposal: signal.Proposal{Decision: signal.Hold}}, &recorder{})

	require.NoError(t, e.cycle(context.Background()))

	open, err := gw.OpenPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCycle_LowConfidenceRejectedBeforeExecution(t *testing.T) {
	t.Parallel()

	gw := testGateway()
	rec := &recorder{}
	oracle := &stubOracle{proposal: signal.Proposal{
		Decision:    signal.Buy,
		Confidence:  55,
		EntryPrice:  1.10010,
		StopLoss:    1.09510,
		TakeProfit1: 1.11010,
	}}

	e := testEngine(testConfig(), gw, oracle, rec)
	require.NoError(t, e.cycle(context.Background()))

	open, err := gw.OpenPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Zero(t, rec.count(notify.TradeOpened))
}

func TestCycle_CorrelationCapsSecondCycle(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Risk.MaxCorrelationTrades = 1
	gw := testGateway()
	rec := &recorder{}
	oracle := &stubOracle{proposal: signal.Proposal{
		Decision:    signal.Buy,
		Confidence:  85,
		EntryPrice:  1.10010,
		StopLoss:    1.09510,
		TakeProfit1: 1.11010,
	}}

	e := testEngine(cfg, gw, oracle, rec)
	require.NoError(t, e.cycle(context.Background()))
	require.NoError(t, e.cycle(context.Background()))

	open, err := gw.OpenPositions(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, 1, rec.count(notify.TradeRejected))
}

func TestScan_OracleTimeoutYieldsNoProposal(t *testing.T) {
	t.Parallel()

	e := testEngine(testConfig(), testGateway(), blockingOracle{}, &recorder{})

	start := time.Now()
	proposals := e.scan(context.Background())

	assert.Empty(t, proposals)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScan_SkipsWideSpread(t *testing.T) {
	t.Parallel()

	gw := testGateway()
	// 50-point spread against a 20-point cap
	gw.SetTick(market.Tick{Symbol: "EURUSD", Bid: 1.10000, Ask: 1.10050, Time: time.Now()})

	oracle := &stubOracle{proposal: signal.Proposal{
		Decision: signal.Buy, Confidence: 85,
		EntryPrice: 1.10050, StopLoss: 1.09550, TakeProfit1: 1.11050,
	}}

	e := testEngine(testConfig(), gw, oracle, &recorder{})
	assert.Empty(t, e.scan(context.Background()))
}

func TestSpreadLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	e := &Engine{cfg: cfg}

	assert.InDelta(t, 20, e.spreadLimit("EURUSD", 10), 1e-9)  // explicit cap wins
	assert.InDelta(t, 24, e.spreadLimit("GBPUSD", 12), 1e-9)  // 2x quoted fallback
	assert.Zero(t, e.spreadLimit("GBPUSD", 0))                // nothing to bound by
}

func TestInWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		hour, start, end int
		want             bool
	}{
		{"inside", 15, 14, 23, true},
		{"at start", 14, 14, 23, true},
		{"at end", 23, 14, 23, false},
		{"wrapped evening", 22, 20, 5, true},
		{"wrapped morning", 3, 20, 5, true},
		{"wrapped outside", 12, 20, 5, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, inWindow(tt.hour, tt.start, tt.end))
		})
	}
}

func TestSessionAllowed(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	e := &Engine{cfg: cfg}

	london := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	asianOnly := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	assert.True(t, e.sessionAllowed("EURUSD", london))
	assert.False(t, e.sessionAllowed("EURUSD", asianOnly))
	assert.True(t, e.sessionAllowed("USDJPY", asianOnly))
	assert.True(t, e.sessionAllowed("EURCHF", asianOnly)) // unlisted symbols always pass

	cfg.Sessions.Enabled = false
	assert.True(t, e.sessionAllowed("EURUSD", asianOnly))
}

func TestEvaluateAlerts_DrawdownHysteresis(t *testing.T) {
	t.Parallel()

	gw := testGateway()
	rec := &recorder{}
	e := testEngine(testConfig(), gw, &stubOracle{}, rec)
	e.peakEquity = 10000

	e.evaluateAlerts(broker.AccountSnapshot{Balance: 10000, Equity: 8900}) // 11% down
	assert.Equal(t, 1, rec.count(notify.RiskAlert))

	e.evaluateAlerts(broker.AccountSnapshot{Balance: 10000, Equity: 8900}) // unchanged, latched
	assert.Equal(t, 1, rec.count(notify.RiskAlert))

	e.evaluateAlerts(broker.AccountSnapshot{Balance: 10000, Equity: 8300}) // 17%, past the re-alert step
	assert.Equal(t, 2, rec.count(notify.RiskAlert))

	e.evaluateAlerts(broker.AccountSnapshot{Balance: 10000, Equity: 9500}) // recovered, resets
	e.evaluateAlerts(broker.AccountSnapshot{Balance: 10000, Equity: 8900}) // crosses again
	assert.Equal(t, 3, rec.count(notify.RiskAlert))
}

func TestEvaluateAlerts_DailyLossWarning(t *testing.T) {
	t.Parallel()

	gw := testGateway()
	rec := &recorder{}
	e := testEngine(testConfig(), gw, &stubOracle{}, rec)
	e.peakEquity = 10000

	// 2.5% down: past 80% of the 3% daily limit
	e.evaluateAlerts(broker.AccountSnapshot{Balance: 9750, Equity: 9750})
	assert.Equal(t, 1, rec.count(notify.RiskAlert))

	e.evaluateAlerts(broker.AccountSnapshot{Balance: 9750, Equity: 9750})
	assert.Equal(t, 1, rec.count(notify.RiskAlert)) // latched

	e.evaluateAlerts(broker.AccountSnapshot{Balance: 9950, Equity: 9950})
	e.evaluateAlerts(broker.AccountSnapshot{Balance: 9750, Equity: 9750})
	assert.Equal(t, 2, rec.count(notify.RiskAlert)) // reset and re-armed
}

func TestMaybeSummary_OncePerDay(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	e := testEngine(testConfig(), testGateway(), &stubOracle{}, rec)

	e.maybeSummary(broker.AccountSnapshot{Balance: 10000, Equity: 10000}, 0)
	e.maybeSummary(broker.AccountSnapshot{Balance: 10000, Equity: 10000}, 0)

	assert.Equal(t, 1, rec.count(notify.AccountSummary))
}

func TestRun_FailsWhenAccountUnavailableAtStartup(t *testing.T) {
	t.Parallel()

	gw := testGateway()
	gw.FailNext = true
	e := testEngine(testConfig(), gw, &stubOracle{}, &recorder{})

	err := e.Run(context.Background())
	assert.Error(t, err)
}
