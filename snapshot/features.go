package snapshot

import (
	"context"
	"time"

	"github.com/prathan03/mt5-auto-trade/indicators"
	"github.com/prathan03/mt5-auto-trade/market"
)

// FeatureSnapshot is the computed multi-timeframe view handed to the signal
// oracle. It is assembled fresh each scan from cached series.
type FeatureSnapshot struct {
	Symbol string
	Time   time.Time

	Bid    float64
	Ask    float64
	Spread float64 // price terms

	TrendD1, TrendH4, TrendH1, TrendM15 string

	RSID1, RSIH4, RSIH1, RSIM15, RSIM5 float64

	MACDH4, MACDH1, MACDM15 string

	Change1H, Change24H float64

	ATRH1, ATRH4 float64

	SupportH1    float64
	ResistanceH1 float64

	MomentumScore float64
	Session       string
}

const analysisBars = 100

// Analysis builds the feature snapshot for a symbol. ok is false when the
// working timeframes (H1, M15) have no data this cycle; higher timeframes
// degrade to neutral values instead of failing the scan.
func (c *Cache) Analysis(ctx context.Context, symbol string) (FeatureSnapshot, bool) {
	d1 := c.Rates(ctx, symbol, market.D1, analysisBars)
	h4 := c.Rates(ctx, symbol, market.H4, analysisBars)
	h1 := c.Rates(ctx, symbol, market.H1, analysisBars)
	m15 := c.Rates(ctx, symbol, market.M15, analysisBars)
	m5 := c.Rates(ctx, symbol, market.M5, analysisBars)

	if len(h1) == 0 || len(m15) == 0 {
		return FeatureSnapshot{}, false
	}

	setH1, err := c.Indicators(h1)
	if err != nil {
		return FeatureSnapshot{}, false
	}
	setM15, err := c.Indicators(m15)
	if err != nil {
		return FeatureSnapshot{}, false
	}

	fs := FeatureSnapshot{
		Symbol:        symbol,
		Time:          time.Now(),
		TrendH1:       setH1.Trend(),
		TrendM15:      setM15.Trend(),
		TrendD1:       "UNKNOWN",
		TrendH4:       "UNKNOWN",
		RSIH1:         setH1.RSI14,
		RSIM15:        setM15.RSI14,
		RSID1:         50,
		RSIH4:         50,
		RSIM5:         50,
		MACDH1:        setH1.MACDDirection(),
		MACDM15:       setM15.MACDDirection(),
		MACDH4:        "NEUTRAL",
		Change1H:      setH1.ChangePct1,
		Change24H:     setH1.ChangePct24,
		ATRH1:         setH1.ATR14,
		ATRH4:         setH1.ATR14,
		SupportH1:     setH1.Support20,
		ResistanceH1:  setH1.Resistance20,
		MomentumScore: momentumScore(setH1, h1),
		Session:       session(time.Now()),
	}

	if set, err := c.Indicators(d1); err == nil && len(d1) > 0 {
		fs.TrendD1 = set.Trend()
		fs.RSID1 = set.RSI14
	}
	if set, err := c.Indicators(h4); err == nil && len(h4) > 0 {
		fs.TrendH4 = set.Trend()
		fs.RSIH4 = set.RSI14
		fs.MACDH4 = set.MACDDirection()
		fs.ATRH4 = set.ATR14
	}
	if set, err := c.Indicators(m5); err == nil && len(m5) > 0 {
		fs.RSIM5 = set.RSI14
	}

	if tick, err := c.source.CurrentTick(ctx, symbol); err == nil {
		fs.Bid = tick.Bid
		fs.Ask = tick.Ask
		fs.Spread = tick.Spread()
	}

	return fs, true
}

// momentumScore condenses H1 momentum into a 0-100 reading: RSI distance
// from neutral, MACD direction, price vs SMA20, and volume vs its 20-bar
// average.
func momentumScore(set indicators.Set, h1 market.Series) float64 {
	score := 50.0

	switch {
	case set.RSI14 > 70:
		score += 15
	case set.RSI14 < 30:
		score -= 15
	default:
		score += (set.RSI14 - 50) * 0.3
	}

	if set.MACD.MACD > set.MACD.Signal {
		score += 10
	} else {
		score -= 10
	}

	if set.LastClose > set.SMA20 && set.SMA20 != 0 {
		score += 10
	} else {
		score -= 10
	}

	if len(h1) >= 20 {
		var volSum float64
		for _, c := range h1.Tail(20) {
			volSum += c.Volume
		}
		volMA := volSum / 20
		last, _ := h1.Last()
		switch {
		case volMA > 0 && last.Volume > volMA*1.5:
			score += 10
		case volMA > 0 && last.Volume < volMA*0.5:
			score -= 10
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// session labels the active trading session by local hour.
func session(now time.Time) string {
	hour := now.Hour()
	switch {
	case hour >= 7 && hour < 16:
		return "ASIAN"
	case hour >= 16 && hour < 20:
		return "EUROPEAN"
	case hour >= 20 || hour < 5:
		return "US"
	default:
		return "INTER_SESSION"
	}
}
