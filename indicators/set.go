package indicators

import (
	"errors"

	"github.com/prathan03/mt5-auto-trade/market"
)

// Set is the derived-indicator bundle computed once per distinct series and
// cached by the market snapshot cache.
type Set struct {
	SMA20, SMA50   float64
	EMA12, EMA26   float64
	RSI14          float64
	MACD           MACDResult
	ATR14          float64
	Support20      float64
	Resistance20   float64
	LastClose      float64
	ChangePct1     float64 // close vs previous bar
	ChangePct24    float64 // close vs 24 bars back
}

// ErrEmptySeries is returned when there is no data to compute from.
var ErrEmptySeries = errors.New("indicators: empty series")

// Compute derives a Set from a candle series. Individual indicators that
// lack warmup data are left at zero; only a fully empty series is an error.
func Compute(candles market.Series) (Set, error) {
	if len(candles) == 0 {
		return Set{}, ErrEmptySeries
	}

	var s Set
	s.LastClose = candles[len(candles)-1].Close

	s.SMA20, _ = SMA(candles, 20)
	s.SMA50, _ = SMA(candles, 50)
	s.EMA12, _ = EMA(candles, 12)
	s.EMA26, _ = EMA(candles, 26)
	s.RSI14, _ = RSI(candles, 14)
	s.MACD, _ = MACD(candles, 12, 26, 9)
	s.ATR14, _ = ATR(candles, 14)
	s.Support20, _ = RollingLow(candles, 20)
	s.Resistance20, _ = RollingHigh(candles, 20)

	if n := len(candles); n >= 2 {
		prev := candles[n-2].Close
		if prev != 0 {
			s.ChangePct1 = (s.LastClose - prev) / prev * 100
		}
	}
	if n := len(candles); n >= 25 {
		back := candles[n-25].Close
		if back != 0 {
			s.ChangePct24 = (s.LastClose - back) / back * 100
		}
	}

	return s, nil
}

// Trend classifies a series from its moving averages the way the live
// analysis does: price above a rising pair of SMAs is an uptrend, below a
// falling pair a downtrend, anything else sideways.
func (s Set) Trend() string {
	switch {
	case s.SMA20 == 0 || s.SMA50 == 0:
		return "UNKNOWN"
	case s.SMA20 > s.SMA50 && s.LastClose > s.SMA20:
		return "UPTREND"
	case s.SMA20 < s.SMA50 && s.LastClose < s.SMA20:
		return "DOWNTREND"
	default:
		return "SIDEWAYS"
	}
}

// MACDDirection reduces the MACD to a directional reading.
func (s Set) MACDDirection() string {
	if s.MACD.MACD > s.MACD.Signal {
		return "BUY"
	}
	return "SELL"
}
