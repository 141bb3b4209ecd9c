package indicators

import (
	"fmt"

	"github.com/prathan03/mt5-auto-trade/market"
)

// RollingHigh returns the highest high over the trailing period.
func RollingHigh(candles market.Series, period int) (float64, error) {
	if err := checkWindow(candles, period); err != nil {
		return 0, err
	}
	high := candles[len(candles)-period].High
	for _, c := range candles[len(candles)-period:] {
		if c.High > high {
			high = c.High
		}
	}
	return high, nil
}

// RollingLow returns the lowest low over the trailing period.
func RollingLow(candles market.Series, period int) (float64, error) {
	if err := checkWindow(candles, period); err != nil {
		return 0, err
	}
	low := candles[len(candles)-period].Low
	for _, c := range candles[len(candles)-period:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low, nil
}

func checkWindow(candles market.Series, period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period {
		return fmt.Errorf("not enough candles: need %d, got %d", period, len(candles))
	}
	return nil
}
