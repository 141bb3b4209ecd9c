package signal

import (
	"context"
	"fmt"

	"github.com/prathan03/mt5-auto-trade/snapshot"
)

// RuleOracle is the built-in trend-following oracle: it proposes in the H1
// trend direction when H4 does not contradict it and MACD confirms, with
// ATR-scaled stops and targets. It exists so paper runs work without an
// external signal source.
type RuleOracle struct {
	// StopATR scales the H1 ATR into the stop distance. Zero means 1.5.
	StopATR float64
}

var _ Oracle = (*RuleOracle)(nil)

func (o *RuleOracle) Propose(_ context.Context, fs snapshot.FeatureSnapshot) (Proposal, error) {
	hold := Proposal{Symbol: fs.Symbol, Decision: Hold, Reasoning: "no aligned setup"}

	var dir Decision
	switch {
	case fs.TrendH1 == "UPTREND" && fs.TrendH4 != "DOWNTREND" && fs.MACDH1 == "BUY" && fs.RSIH1 < 70:
		dir = Buy
	case fs.TrendH1 == "DOWNTREND" && fs.TrendH4 != "UPTREND" && fs.MACDH1 == "SELL" && fs.RSIH1 > 30:
		dir = Sell
	default:
		return hold, nil
	}

	if fs.ATRH1 <= 0 {
		return hold, nil
	}

	stopATR := o.StopATR
	if stopATR <= 0 {
		stopATR = 1.5
	}

	entry := fs.Ask
	if dir == Sell {
		entry = fs.Bid
	}
	if entry <= 0 {
		return hold, nil
	}

	risk := stopATR * fs.ATRH1
	var stop, tp1, tp2, tp3 float64
	if dir == Buy {
		stop = entry - risk
		tp1, tp2, tp3 = entry+1.6*risk, entry+2.5*risk, entry+4*risk
	} else {
		stop = entry + risk
		tp1, tp2, tp3 = entry-1.6*risk, entry-2.5*risk, entry-4*risk
	}

	confidence := 60
	if fs.TrendH4 == fs.TrendH1 {
		confidence += 10
	}
	if fs.TrendD1 == fs.TrendH1 {
		confidence += 10
	}
	if fs.MACDM15 == string(dir) {
		confidence += 5
	}
	if (dir == Buy && fs.MomentumScore >= 70) || (dir == Sell && fs.MomentumScore <= 30) {
		confidence += 10
	}
	if confidence > 95 {
		confidence = 95
	}

	return Proposal{
		Symbol:      fs.Symbol,
		Decision:    dir,
		Confidence:  confidence,
		EntryPrice:  entry,
		StopLoss:    stop,
		TakeProfit1: tp1,
		TakeProfit2: tp2,
		TakeProfit3: tp3,
		Reasoning: fmt.Sprintf("H1 %s, H4 %s, MACD %s, RSI %.1f, momentum %.0f",
			fs.TrendH1, fs.TrendH4, fs.MACDH1, fs.RSIH1, fs.MomentumScore),
	}, nil
}
