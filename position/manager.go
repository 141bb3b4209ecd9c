// Package position manages the lifecycle of open positions: partial
// profit-taking at rr milestones, breakeven protection, and trailing stops.
// It owns the only long-lived mutable state in the engine, the per-ticket
// metadata map, as a single writer; everything else is read fresh from the
// broker each sweep.
package position

import (
	"context"
	"log"
	"math"
	"sync"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/market"
	"github.com/prathan03/mt5-auto-trade/notify"
	"github.com/prathan03/mt5-auto-trade/snapshot"
)

// Metadata is the lifecycle shadow of one broker position, keyed by ticket.
// Created on first observation, destroyed when the ticket disappears.
type Metadata struct {
	Ticket           int64
	TP1Closed        bool
	TP2Closed        bool
	BreakevenSet     bool
	OriginalVolume   float64
	OriginalRiskPips float64
}

// Manager drives one lifecycle sweep per cycle. The metadata map has a
// single writer (the sweep); Snapshot exposes read-only copies.
type Manager struct {
	gw     broker.Gateway
	cache  *snapshot.Cache
	sink   notify.Sink
	magic  int64
	atrTF  market.Timeframe
	atrLen int

	mu   sync.RWMutex
	meta map[int64]*Metadata
}

func NewManager(gw broker.Gateway, cache *snapshot.Cache, sink notify.Sink, magic int64) *Manager {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Manager{
		gw:     gw,
		cache:  cache,
		sink:   sink,
		magic:  magic,
		atrTF:  market.H1,
		atrLen: 50,
		meta:   make(map[int64]*Metadata),
	}
}

// Snapshot returns a copy of the metadata map for inspection/telemetry.
func (m *Manager) Snapshot() map[int64]Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]Metadata, len(m.meta))
	for t, md := range m.meta {
		out[t] = *md
	}
	return out
}

// Sweep inspects every live position once and issues modify/partial-close
// commands. A failed command for one position is logged and retried next
// sweep; it never blocks the remaining positions.
func (m *Manager) Sweep(ctx context.Context) {
	positions, err := m.gw.OpenPositions(ctx)
	if err != nil {
		log.Printf("lifecycle sweep skipped, positions unavailable: %v", err)
		return
	}

	m.prune(positions)

	for _, p := range positions {
		if p.Magic != m.magic {
			continue
		}
		m.managePosition(ctx, p)
	}
}

// prune drops metadata for tickets the broker no longer reports, so closed
// tickets cannot stale-trigger if a broker ever reuses ids.
func (m *Manager) prune(open []broker.Position) {
	live := make(map[int64]bool, len(open))
	for _, p := range open {
		live[p.Ticket] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for ticket := range m.meta {
		if !live[ticket] {
			delete(m.meta, ticket)
		}
	}
}

// ensure returns the metadata for a ticket, creating it on first sight with
// the position's original volume and stop distance captured.
func (m *Manager) ensure(p broker.Position, pipUnit float64) *Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	if md, ok := m.meta[p.Ticket]; ok {
		return md
	}

	riskPips := 0.0
	if p.StopLoss > 0 {
		riskPips = math.Abs(p.EntryPrice-p.StopLoss) / pipUnit
	}
	md := &Metadata{
		Ticket:           p.Ticket,
		OriginalVolume:   p.Volume,
		OriginalRiskPips: riskPips,
	}
	m.meta[p.Ticket] = md
	return md
}

func (m *Manager) managePosition(ctx context.Context, p broker.Position) {
	spec, err := m.gw.SymbolSpec(ctx, p.Symbol)
	if err != nil {
		log.Printf("lifecycle: spec unavailable for %s: %v", p.Symbol, err)
		return
	}
	tick, err := m.gw.CurrentTick(ctx, p.Symbol)
	if err != nil {
		log.Printf("lifecycle: tick unavailable for %s: %v", p.Symbol, err)
		return
	}

	price := tick.Bid
	if p.Side == broker.Sell {
		price = tick.Ask
	}

	pipUnit := market.PipUnit(p.Symbol, spec.Point)
	md := m.ensure(p, pipUnit)

	profitPips := (price - p.EntryPrice) / pipUnit
	if p.Side == broker.Sell {
		profitPips = -profitPips
	}

	rr := 0.0
	if md.OriginalRiskPips > 0 {
		rr = profitPips / md.OriginalRiskPips
	}

	state := sweepState{
		pos:     p,
		spec:    spec,
		price:   price,
		pipUnit: pipUnit,
		rr:      rr,
		meta:    md,
	}

	stopMovedByLadder := m.runLadder(ctx, state)

	// The profit-fraction trail and the ATR trail measure the same thing
	// from different angles; only one gets to move the stop per sweep.
	if profitPips > 0 && !stopMovedByLadder {
		m.atrTrail(ctx, state)
	}
}

// sweepState is the consistent computed view one position's rules run on.
type sweepState struct {
	pos     broker.Position
	spec    broker.SymbolSpec
	price   float64
	pipUnit float64
	rr      float64
	meta    *Metadata
}
