// Package signal defines the trade proposal produced by the external signal
// oracle and the validation applied at that trust boundary. The oracle is a
// black box; nothing it returns is executed unvalidated.
package signal

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/prathan03/mt5-auto-trade/snapshot"
)

// Decision is the oracle's directional call.
type Decision string

const (
	Buy  Decision = "BUY"
	Sell Decision = "SELL"
	Hold Decision = "HOLD"
)

// Proposal is an immutable trade suggestion. It is consumed exactly once by
// the risk manager for one admission decision.
type Proposal struct {
	Symbol      string
	Decision    Decision
	Confidence  int // 0-100
	EntryPrice  float64
	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64
	TakeProfit3 float64
	Reasoning   string
}

// Oracle turns a feature snapshot into a proposal. Implementations are
// external (LLM bridge, rule engine); errors mean no proposal this cycle.
type Oracle interface {
	Propose(ctx context.Context, fs snapshot.FeatureSnapshot) (Proposal, error)
}

// Directional reports whether the proposal asks for a position.
func (p Proposal) Directional() bool {
	return p.Decision == Buy || p.Decision == Sell
}

// RewardRisk returns the TP1 reward as a multiple of the stop risk.
func (p Proposal) RewardRisk() float64 {
	risk := math.Abs(p.EntryPrice - p.StopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(p.TakeProfit1-p.EntryPrice) / risk
}

const (
	// MinConfidence is the floor below which directional proposals are
	// downgraded to HOLD.
	MinConfidence = 60

	// MinRewardRisk is the minimum TP1 reward:risk accepted for execution.
	MinRewardRisk = 1.5
)

var (
	ErrMissingFields  = errors.New("signal: proposal missing required fields")
	ErrLowConfidence  = fmt.Errorf("signal: confidence below %d", MinConfidence)
	ErrPoorRewardRisk = fmt.Errorf("signal: reward:risk below %.1f", MinRewardRisk)
)

// Validate checks a directional proposal against the boundary rules. HOLD
// proposals always pass. Callers downgrade failing proposals to HOLD rather
// than executing them.
func Validate(p Proposal) error {
	if !p.Directional() {
		return nil
	}
	if p.Symbol == "" || p.EntryPrice == 0 || p.StopLoss == 0 || p.TakeProfit1 == 0 {
		return ErrMissingFields
	}
	if p.Confidence < MinConfidence {
		return ErrLowConfidence
	}
	if p.RewardRisk() < MinRewardRisk {
		return ErrPoorRewardRisk
	}
	return nil
}

// Downgrade returns the HOLD form of a proposal that failed validation.
func Downgrade(p Proposal) Proposal {
	return Proposal{Symbol: p.Symbol, Decision: Hold}
}
