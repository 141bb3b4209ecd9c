// Package notify carries the structured events the engine emits. The core
// never formats human-facing text; sinks render events however they like.
package notify

import (
	"time"

	"github.com/prathan03/mt5-auto-trade/pkg/id"
)

// EventType enumerates the engine's observable state changes.
type EventType string

const (
	SignalDetected   EventType = "SIGNAL_DETECTED"
	TradeOpened      EventType = "TRADE_OPENED"
	TradeRejected    EventType = "TRADE_REJECTED"
	TradeClosed      EventType = "TRADE_CLOSED"
	PartialClose     EventType = "PARTIAL_CLOSE"
	PositionModified EventType = "POSITION_MODIFIED"
	RiskAlert        EventType = "RISK_ALERT"
	AccountSummary   EventType = "ACCOUNT_SUMMARY"
)

// Event is one structured notification. Unused fields stay zero.
type Event struct {
	ID     string
	Type   EventType
	Time   time.Time
	Symbol string
	Ticket int64

	Side       string
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Confidence int
	Profit     float64

	// Reason explains rejections, partial closes, and risk alerts.
	Reason string

	// Metrics carries alert-specific numbers (loss_percent, drawdown, peak).
	Metrics map[string]float64
}

// New stamps an event with an ID and the current time.
func New(t EventType) Event {
	return Event{ID: id.New(), Type: t, Time: time.Now()}
}

// Sink consumes events. Implementations must not block the engine for long;
// slow transports should buffer internally.
type Sink interface {
	Emit(Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(Event) {}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
