package position

import (
	"context"
	"log"
	"math"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/notify"
)

// rr thresholds for the milestone ladder.
const (
	rrTP1       = 1.0
	rrTP2       = 2.0
	rrRunner    = 3.0
	rrBreakeven = 0.5
)

// ladderRule is one rung of the milestone ladder. applies is judged against
// the consistent sweep state; apply reports whether the stop was moved.
type ladderRule struct {
	name    string
	applies func(sweepState) bool
	apply   func(context.Context, sweepState) (stopMoved bool)
}

// runLadder evaluates the milestone rules in priority order and fires at
// most one per sweep, matching the partial-close strategy: TP1 before TP2 so
// a position that gaps straight to rr 2 still banks the 50% tranche first.
func (m *Manager) runLadder(ctx context.Context, s sweepState) bool {
	rules := []ladderRule{
		{
			name:    "TP1",
			applies: func(s sweepState) bool { return s.rr >= rrTP1 && !s.meta.TP1Closed },
			apply:   m.takeProfit1,
		},
		{
			name:    "TP2",
			applies: func(s sweepState) bool { return s.rr >= rrTP2 && !s.meta.TP2Closed },
			apply:   m.takeProfit2,
		},
		{
			name:    "runner-trail",
			applies: func(s sweepState) bool { return s.rr >= rrRunner },
			apply:   m.runnerTrail,
		},
		{
			name:    "breakeven",
			applies: func(s sweepState) bool { return s.rr >= rrBreakeven && !s.meta.BreakevenSet },
			apply:   m.breakeven,
		},
	}

	for _, r := range rules {
		if r.applies(s) {
			return r.apply(ctx, s)
		}
	}
	return false
}

// takeProfit1 closes half the current volume at rr 1.
func (m *Manager) takeProfit1(ctx context.Context, s sweepState) bool {
	if m.partialClose(ctx, s, s.pos.Volume*0.5, "TP1 - 1:1 RR") {
		m.setFlag(s.meta.Ticket, func(md *Metadata) { md.TP1Closed = true })
	}
	return false
}

// takeProfit2 closes 30% of the original volume at rr 2, leaving the runner.
func (m *Manager) takeProfit2(ctx context.Context, s sweepState) bool {
	if m.partialClose(ctx, s, s.meta.OriginalVolume*0.3, "TP2 - 2:1 RR") {
		m.setFlag(s.meta.Ticket, func(md *Metadata) { md.TP2Closed = true })
	}
	return false
}

// runnerTrail pulls the stop behind the runner by a fraction of the open
// profit; the fraction widens as rr grows.
func (m *Manager) runnerTrail(ctx context.Context, s sweepState) bool {
	fraction := 0.5
	switch {
	case s.rr >= 5:
		fraction = 0.7
	case s.rr >= 3:
		fraction = 0.6
	}

	profitDistance := math.Abs(s.price - s.pos.EntryPrice)
	var newStop float64
	if s.pos.Side == broker.Buy {
		newStop = s.price - profitDistance*fraction
	} else {
		newStop = s.price + profitDistance*fraction
	}

	return m.tightenStop(ctx, s, newStop, "runner trail")
}

// breakeven moves the stop to entry plus a two-point buffer in the profit
// direction. The flag is set once the milestone is handled, including when
// the current stop is already better; only a broker failure leaves it unset
// for retry.
func (m *Manager) breakeven(ctx context.Context, s sweepState) bool {
	buffer := s.spec.Point * 2
	var newStop float64
	if s.pos.Side == broker.Buy {
		newStop = s.pos.EntryPrice + buffer
	} else {
		newStop = s.pos.EntryPrice - buffer
	}

	if !improves(s.pos, newStop) {
		m.setFlag(s.meta.Ticket, func(md *Metadata) { md.BreakevenSet = true })
		return false
	}

	moved := m.tightenStop(ctx, s, newStop, "breakeven")
	if moved {
		m.setFlag(s.meta.Ticket, func(md *Metadata) { md.BreakevenSet = true })
	}
	return moved
}

// atrTrail trails at twice the recent H1 volatility, never loosening and
// never crossing to the losing side of entry.
func (m *Manager) atrTrail(ctx context.Context, s sweepState) {
	series := m.cache.Rates(ctx, s.pos.Symbol, m.atrTF, m.atrLen)
	set, err := m.cache.Indicators(series)
	if err != nil || set.ATR14 <= 0 {
		return
	}

	trail := set.ATR14 * 2
	var newStop float64
	if s.pos.Side == broker.Buy {
		newStop = s.price - trail
		if newStop <= s.pos.EntryPrice {
			return
		}
	} else {
		newStop = s.price + trail
		if newStop >= s.pos.EntryPrice {
			return
		}
	}

	m.tightenStop(ctx, s, newStop, "ATR trail")
}

// improves reports whether newStop strictly tightens risk for the side. A
// position with no stop set accepts any stop on the protective side.
func improves(p broker.Position, newStop float64) bool {
	if p.Side == broker.Buy {
		return newStop > p.StopLoss
	}
	return p.StopLoss == 0 || newStop < p.StopLoss
}

// tightenStop applies a monotonic stop modification through the broker.
func (m *Manager) tightenStop(ctx context.Context, s sweepState, newStop float64, reason string) bool {
	if !improves(s.pos, newStop) {
		return false
	}

	if err := m.gw.ModifyPosition(ctx, s.pos.Ticket, newStop, s.pos.TakeProfit); err != nil {
		log.Printf("lifecycle: modify %d (%s) failed: %v", s.pos.Ticket, reason, err)
		return false
	}

	e := notify.New(notify.PositionModified)
	e.Symbol = s.pos.Symbol
	e.Ticket = s.pos.Ticket
	e.Side = s.pos.Side.String()
	e.StopLoss = newStop
	e.TakeProfit = s.pos.TakeProfit
	e.Reason = reason
	m.sink.Emit(e)

	log.Printf("lifecycle: %s moved stop on %d to %.5f (%s)", s.pos.Symbol, s.pos.Ticket, newStop, reason)
	return true
}

// partialClose closes part of a position at market, clamped to the live
// volume and rounded to the broker step.
func (m *Manager) partialClose(ctx context.Context, s sweepState, volume float64, reason string) bool {
	if volume > s.pos.Volume {
		volume = s.pos.Volume
	}
	if s.spec.VolumeStep > 0 {
		// tolerance keeps 0.50/0.01 from flooring to 49 steps
		volume = math.Floor(volume/s.spec.VolumeStep+1e-9) * s.spec.VolumeStep
	}
	volume = math.Round(volume*100) / 100
	if volume < s.spec.VolumeMin {
		return false
	}

	res, err := m.gw.CloseVolume(ctx, s.pos.Ticket, volume)
	if err != nil {
		log.Printf("lifecycle: partial close %d (%s) failed: %v", s.pos.Ticket, reason, err)
		return false
	}

	e := notify.New(notify.PartialClose)
	e.Symbol = s.pos.Symbol
	e.Ticket = s.pos.Ticket
	e.Side = s.pos.Side.String()
	e.Volume = res.Volume
	e.Price = res.Price
	e.Profit = s.pos.Profit * res.Volume / s.pos.Volume
	e.Reason = reason
	m.sink.Emit(e)

	log.Printf("lifecycle: closed %.2f lots of %d (%s)", res.Volume, s.pos.Ticket, reason)
	return true
}

func (m *Manager) setFlag(ticket int64, set func(*Metadata)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if md, ok := m.meta[ticket]; ok {
		set(md)
	}
}
