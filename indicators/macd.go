package indicators

import (
	"fmt"

	"github.com/prathan03/mt5-auto-trade/market"
)

// MACDResult holds the MACD line, its signal line, and the histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the 12/26/9 moving average convergence divergence.
func MACD(candles market.Series, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return MACDResult{}, fmt.Errorf("invalid MACD periods %d/%d/%d", fast, slow, signal)
	}
	if len(candles) < slow+signal {
		return MACDResult{}, fmt.Errorf("not enough candles: need %d, got %d", slow+signal, len(candles))
	}

	fastMult := 2.0 / float64(fast+1)
	slowMult := 2.0 / float64(slow+1)
	sigMult := 2.0 / float64(signal+1)

	seed := func(period int) float64 {
		sum := 0.0
		for i := 0; i < period; i++ {
			sum += candles[i].Close
		}
		return sum / float64(period)
	}

	fastEMA := seed(fast)
	slowEMA := seed(slow)
	for i := fast; i < slow; i++ {
		fastEMA = (candles[i].Close-fastEMA)*fastMult + fastEMA
	}

	var macdLine, sigLine float64
	sigSeeded := false
	var sigSeedSum float64
	sigSeedCount := 0

	for i := slow; i < len(candles); i++ {
		fastEMA = (candles[i].Close-fastEMA)*fastMult + fastEMA
		slowEMA = (candles[i].Close-slowEMA)*slowMult + slowEMA
		macdLine = fastEMA - slowEMA

		if !sigSeeded {
			sigSeedSum += macdLine
			sigSeedCount++
			if sigSeedCount == signal {
				sigLine = sigSeedSum / float64(signal)
				sigSeeded = true
			}
			continue
		}
		sigLine = (macdLine-sigLine)*sigMult + sigLine
	}

	return MACDResult{
		MACD:      macdLine,
		Signal:    sigLine,
		Histogram: macdLine - sigLine,
	}, nil
}
