package market

import (
	"strconv"
	"time"
)

// Timeframe is a bar resolution in minutes.
type Timeframe int

const (
	M5  Timeframe = 5
	M15 Timeframe = 15
	H1  Timeframe = 60
	H4  Timeframe = 240
	D1  Timeframe = 1440
)

func (tf Timeframe) String() string {
	switch tf {
	case M5:
		return "M5"
	case M15:
		return "M15"
	case H1:
		return "H1"
	case H4:
		return "H4"
	case D1:
		return "D1"
	default:
		return "M" + strconv.Itoa(int(tf))
	}
}

// Candle is one closed OHLC bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an ordered run of closed candles, oldest first.
type Series []Candle

// Last returns the most recent candle. ok is false for an empty series.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Tail returns the trailing n candles (or the whole series if shorter).
func (s Series) Tail(n int) Series {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Tick is a top-of-book quote.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Spread returns the bid/ask distance in price terms.
func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}
