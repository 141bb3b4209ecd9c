package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/broker/sim"
	"github.com/prathan03/mt5-auto-trade/market"
	"github.com/prathan03/mt5-auto-trade/notify"
	"github.com/prathan03/mt5-auto-trade/snapshot"
)

const testMagic = 234000

// recorder captures emitted events for assertions.
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

type fixture struct {
	gw   *sim.Gateway
	mgr  *Manager
	rec  *recorder
	tkt  int64
	fill float64 // entry fill price
}

// newFixture opens a 1.00-lot EURUSD buy with the given stop distance in
// price terms.
func newFixture(t *testing.T, stopDistance float64) *fixture {
	t.Helper()

	gw := sim.New(10000)
	gw.SetSpec(broker.SymbolSpec{
		Symbol: "EURUSD", Point: 0.00001, Digits: 5, TickValue: 0.1,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01, TradeAllowed: true,
	})
	gw.SetTick(market.Tick{Symbol: "EURUSD", Bid: 1.10000, Ask: 1.10010, Time: time.Now()})

	res, err := gw.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol:   "EURUSD",
		Side:     broker.Buy,
		Volume:   1.00,
		StopLoss: 1.10010 - stopDistance,
		Magic:    testMagic,
	})
	require.NoError(t, err)

	rec := &recorder{}
	mgr := NewManager(gw, snapshot.NewCache(gw), rec, testMagic)
	return &fixture{gw: gw, mgr: mgr, rec: rec, tkt: res.Ticket, fill: res.Price}
}

// moveTo posts a bid at entry + pips in profit for the buy fixture.
func (f *fixture) moveTo(pips float64) {
	bid := f.fill + pips*0.0001
	f.gw.SetTick(market.Tick{Symbol: "EURUSD", Bid: bid, Ask: bid + 0.0001, Time: time.Now()})
}

func (f *fixture) position(t *testing.T) broker.Position {
	t.Helper()
	open, err := f.gw.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	return open[0]
}

func TestSweep_TP1ClosesHalf(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050) // 50-pip risk
	f.moveTo(52)               // past rr 1.0

	f.mgr.Sweep(context.Background())

	p := f.position(t)
	assert.InDelta(t, 0.50, p.Volume, 1e-9)
	assert.True(t, f.mgr.Snapshot()[f.tkt].TP1Closed)
	assert.Equal(t, 1, f.rec.count(notify.PartialClose))
}

func TestSweep_TP1ThenBreakevenNextSweep(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	f.moveTo(52)

	f.mgr.Sweep(context.Background())
	f.mgr.Sweep(context.Background())

	p := f.position(t)
	assert.InDelta(t, 0.50, p.Volume, 1e-9) // TP1 does not fire twice
	assert.InDelta(t, f.fill+2*0.00001, p.StopLoss, 1e-9)
	assert.True(t, f.mgr.Snapshot()[f.tkt].BreakevenSet)

	// a third sweep at the same price changes nothing
	f.mgr.Sweep(context.Background())
	again := f.position(t)
	assert.InDelta(t, p.Volume, again.Volume, 1e-9)
	assert.InDelta(t, p.StopLoss, again.StopLoss, 1e-9)
}

func TestSweep_TP2ClosesThirtyPercentOfOriginal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	f.moveTo(52)
	f.mgr.Sweep(context.Background()) // TP1: 0.50 left

	f.moveTo(102) // past rr 2.0
	f.mgr.Sweep(context.Background())

	p := f.position(t)
	// 30% of the original 1.00 lots, not of the 0.50 remainder
	assert.InDelta(t, 0.20, p.Volume, 1e-9)
	assert.True(t, f.mgr.Snapshot()[f.tkt].TP2Closed)
}

func TestSweep_GapToRR2StillBanksTP1First(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	f.moveTo(102) // straight past rr 2.0 before any sweep

	f.mgr.Sweep(context.Background())

	p := f.position(t)
	assert.InDelta(t, 0.50, p.Volume, 1e-9)
	md := f.mgr.Snapshot()[f.tkt]
	assert.True(t, md.TP1Closed)
	assert.False(t, md.TP2Closed)
}

func TestSweep_RunnerTrailTightensStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	f.moveTo(52)
	f.mgr.Sweep(context.Background()) // TP1
	f.moveTo(102)
	f.mgr.Sweep(context.Background()) // TP2

	f.moveTo(152) // past rr 3.0
	f.mgr.Sweep(context.Background())

	p := f.position(t)
	price := f.fill + 152*0.0001
	want := price - (price-f.fill)*0.6
	assert.InDelta(t, want, p.StopLoss, 1e-9)
}

func TestSweep_StopNeverLoosens(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	f.moveTo(52)
	f.mgr.Sweep(context.Background())
	f.moveTo(102)
	f.mgr.Sweep(context.Background())
	f.moveTo(152)
	f.mgr.Sweep(context.Background())

	tightened := f.position(t).StopLoss

	// price retreats; no rule may move the stop backwards
	f.moveTo(60)
	f.mgr.Sweep(context.Background())
	f.moveTo(10)
	f.mgr.Sweep(context.Background())

	assert.InDelta(t, tightened, f.position(t).StopLoss, 1e-9)
}

func constantRange(n int, base float64) market.Series {
	s := make(market.Series, n)
	t0 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := range s {
		s[i] = market.Candle{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  base,
			High:  base + 0.0010,
			Low:   base,
			Close: base + 0.0005,
		}
	}
	return s
}

func TestSweep_ATRTrailBelowLadderThresholds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0100) // 100-pip risk keeps rr small
	f.gw.SetRates("EURUSD", market.H1, constantRange(60, 1.1000))

	f.moveTo(30) // rr 0.30: no ladder rung applies
	f.mgr.Sweep(context.Background())

	p := f.position(t)
	price := f.fill + 30*0.0001
	assert.InDelta(t, price-2*0.0010, p.StopLoss, 1e-9)
	assert.Equal(t, 1, f.rec.count(notify.PositionModified))
}

func TestSweep_LadderMoveSuppressesATRTrail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0100)
	f.gw.SetRates("EURUSD", market.H1, constantRange(60, 1.1000))

	f.moveTo(55) // past rr 0.5: breakeven fires and owns the stop this sweep
	f.mgr.Sweep(context.Background())

	p := f.position(t)
	assert.InDelta(t, f.fill+2*0.00001, p.StopLoss, 1e-9)
}

func TestSweep_ATRTrailNeverCrossesEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0100)
	f.gw.SetRates("EURUSD", market.H1, constantRange(60, 1.1000))

	f.moveTo(10) // trail would land below entry; nothing happens
	f.mgr.Sweep(context.Background())

	p := f.position(t)
	assert.InDelta(t, f.fill-0.0100, p.StopLoss, 1e-9)
}

func TestSweep_IgnoresForeignMagic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	_, err := f.gw.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol:   "EURUSD",
		Side:     broker.Buy,
		Volume:   2.00,
		StopLoss: 1.09510,
		Magic:    999, // manual trade
	})
	require.NoError(t, err)

	f.moveTo(52)
	f.mgr.Sweep(context.Background())

	open, err := f.gw.OpenPositions(context.Background())
	require.NoError(t, err)
	for _, p := range open {
		if p.Magic == 999 {
			assert.InDelta(t, 2.00, p.Volume, 1e-9) // untouched
		}
	}
	assert.Len(t, f.mgr.Snapshot(), 1)
}

func TestSweep_PrunesClosedTickets(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	f.moveTo(52)
	f.mgr.Sweep(context.Background())
	require.Len(t, f.mgr.Snapshot(), 1)

	p := f.position(t)
	_, err := f.gw.CloseVolume(context.Background(), f.tkt, p.Volume)
	require.NoError(t, err)

	f.mgr.Sweep(context.Background())
	assert.Empty(t, f.mgr.Snapshot())
}

func TestSweep_SkipsWhenPositionsUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0.0050)
	f.moveTo(52)

	f.gw.FailNext = true
	f.mgr.Sweep(context.Background())

	// nothing happened; the next sweep picks the position up normally
	p := f.position(t)
	assert.InDelta(t, 1.00, p.Volume, 1e-9)

	f.mgr.Sweep(context.Background())
	assert.InDelta(t, 0.50, f.position(t).Volume, 1e-9)
}

func TestSweep_PartialCloseBelowMinimumSkipped(t *testing.T) {
	t.Parallel()

	gw := sim.New(10000)
	gw.SetSpec(broker.SymbolSpec{
		Symbol: "EURUSD", Point: 0.00001, Digits: 5, TickValue: 0.1,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01, TradeAllowed: true,
	})
	gw.SetTick(market.Tick{Symbol: "EURUSD", Bid: 1.10000, Ask: 1.10010, Time: time.Now()})

	res, err := gw.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "EURUSD", Side: broker.Buy, Volume: 0.01, StopLoss: 1.09510, Magic: testMagic,
	})
	require.NoError(t, err)

	rec := &recorder{}
	mgr := NewManager(gw, snapshot.NewCache(gw), rec, testMagic)

	gw.SetTick(market.Tick{Symbol: "EURUSD", Bid: res.Price + 0.0060, Ask: res.Price + 0.0061, Time: time.Now()})
	mgr.Sweep(context.Background())

	// half of 0.01 rounds below VolumeMin; the position must stay whole
	open, err := gw.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.InDelta(t, 0.01, open[0].Volume, 1e-9)
	assert.Zero(t, rec.count(notify.PartialClose))
}
