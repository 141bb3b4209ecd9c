// Package broker defines the command/query surface the engine uses to talk
// to an MT5 execution gateway. The engine never holds authoritative position
// state; everything here is read fresh from the gateway.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/prathan03/mt5-auto-trade/market"
)

// Side is the direction of a position or order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// AccountSnapshot is the account state at a single instant. It is read at
// decision time and never cached across cycles.
type AccountSnapshot struct {
	Balance     float64
	Equity      float64
	FreeMargin  float64
	MarginLevel float64
	Profit      float64
	Currency    string
}

// SymbolSpec is the broker's static trading specification for a symbol.
type SymbolSpec struct {
	Symbol       string
	Point        float64 // smallest price increment
	Digits       int
	TickValue    float64 // account-currency value of one point per lot
	ContractSize float64
	VolumeMin    float64
	VolumeMax    float64
	VolumeStep   float64
	SpreadPoints int
	TradeAllowed bool
}

// Position is a broker-owned open position. Ticket is globally unique and
// stable for the position's lifetime.
type Position struct {
	Ticket     int64
	Symbol     string
	Side       Side
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	Profit     float64
	Magic      int64 // owner tag distinguishing this engine's trades
}

// OrderRequest is a market order instruction.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Deviation  int // max slippage in points
	Magic      int64
	Comment    string
}

// OrderResult reports a filled order.
type OrderResult struct {
	Ticket int64
	Price  float64
	Volume float64
}

// Error is a typed gateway failure; Code carries the broker return code so
// callers can distinguish rejects from transport faults.
type Error struct {
	Op      string
	Code    int
	Comment string
}

func (e *Error) Error() string {
	return fmt.Sprintf("broker %s: code %d: %s", e.Op, e.Code, e.Comment)
}

// Gateway is the full command/query interface. Every call is synchronous and
// may fail; callers treat failures as "no result this cycle."
type Gateway interface {
	AccountSnapshot(ctx context.Context) (AccountSnapshot, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	SymbolSpec(ctx context.Context, symbol string) (SymbolSpec, error)
	CurrentTick(ctx context.Context, symbol string) (market.Tick, error)
	Rates(ctx context.Context, symbol string, tf market.Timeframe, count int) (market.Series, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error
	CloseVolume(ctx context.Context, ticket int64, volume float64) (OrderResult, error)
}
