// Package journal persists the engine's trading activity: executed orders,
// rejected proposals, and per-cycle equity snapshots.
package journal

import "time"

// TradeRecord is one executed order.
type TradeRecord struct {
	ID         string
	Ticket     int64
	Symbol     string
	Side       string
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Confidence int
	Reasoning  string
	OpenTime   time.Time
}

// DecisionRecord is a proposal that was rejected or downgraded, with the
// policy reason. Keeping these makes limit behavior auditable after the fact.
type DecisionRecord struct {
	ID         string
	Symbol     string
	Decision   string
	Confidence int
	Code       string
	Reason     string
	Time       time.Time
}

// EquitySnapshot is the account state at the end of a cycle.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	FreeMargin  float64
	MarginLevel float64
	OpenTrades  int
}

// Journal is the persistence interface. A nil-safe Nop exists for runs that
// do not want a database.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordDecision(DecisionRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards all records.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error       { return nil }
func (Nop) RecordDecision(DecisionRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error   { return nil }
func (Nop) Close() error                        { return nil }
