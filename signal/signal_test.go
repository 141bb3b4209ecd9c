package signal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prathan03/mt5-auto-trade/snapshot"
)

func buyProposal() Proposal {
	return Proposal{
		Symbol:      "EURUSD",
		Decision:    Buy,
		Confidence:  75,
		EntryPrice:  1.1000,
		StopLoss:    1.0950,
		TakeProfit1: 1.1080,
		TakeProfit2: 1.1125,
		TakeProfit3: 1.1200,
	}
}

func TestRewardRisk(t *testing.T) {
	t.Parallel()

	p := buyProposal()
	assert.InDelta(t, 1.6, p.RewardRisk(), 1e-9)

	p.StopLoss = p.EntryPrice
	assert.Zero(t, p.RewardRisk())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Proposal)
		wantErr error
	}{
		{"valid", func(p *Proposal) {}, nil},
		{"hold always passes", func(p *Proposal) { *p = Proposal{Symbol: "EURUSD", Decision: Hold} }, nil},
		{"missing stop", func(p *Proposal) { p.StopLoss = 0 }, ErrMissingFields},
		{"missing entry", func(p *Proposal) { p.EntryPrice = 0 }, ErrMissingFields},
		{"missing tp1", func(p *Proposal) { p.TakeProfit1 = 0 }, ErrMissingFields},
		{"confidence 59", func(p *Proposal) { p.Confidence = 59 }, ErrLowConfidence},
		{"confidence 60 passes", func(p *Proposal) { p.Confidence = 60 }, nil},
		{"reward risk 1.4", func(p *Proposal) { p.TakeProfit1 = 1.1070 }, ErrPoorRewardRisk},
		{"reward risk exactly 1.5", func(p *Proposal) {
			p.EntryPrice, p.StopLoss, p.TakeProfit1 = 1.0, 0.5, 1.75
		}, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := buyProposal()
			tt.mutate(&p)
			err := Validate(p)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDowngrade(t *testing.T) {
	t.Parallel()

	p := buyProposal()
	d := Downgrade(p)

	assert.Equal(t, Hold, d.Decision)
	assert.Equal(t, p.Symbol, d.Symbol)
	assert.False(t, d.Directional())
	assert.NoError(t, Validate(d))
}

func uptrendSnapshot() snapshot.FeatureSnapshot {
	return snapshot.FeatureSnapshot{
		Symbol:        "EURUSD",
		Bid:           1.1000,
		Ask:           1.1001,
		TrendD1:       "UPTREND",
		TrendH4:       "UPTREND",
		TrendH1:       "UPTREND",
		MACDH1:        "BUY",
		MACDM15:       "BUY",
		RSIH1:         58,
		ATRH1:         0.0020,
		MomentumScore: 75,
	}
}

func TestRuleOracle_ProposesAlignedBuy(t *testing.T) {
	t.Parallel()

	o := &RuleOracle{}
	p, err := o.Propose(context.Background(), uptrendSnapshot())
	require.NoError(t, err)

	assert.Equal(t, Buy, p.Decision)
	assert.Equal(t, 95, p.Confidence)
	assert.InDelta(t, 1.1001, p.EntryPrice, 1e-9)
	assert.InDelta(t, 1.1001-0.0030, p.StopLoss, 1e-9)
	assert.InDelta(t, 1.6, p.RewardRisk(), 1e-6)
	assert.NoError(t, Validate(p))
}

func TestRuleOracle_HoldCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*snapshot.FeatureSnapshot)
	}{
		{"conflicting h4", func(fs *snapshot.FeatureSnapshot) { fs.TrendH4 = "DOWNTREND" }},
		{"no macd confirm", func(fs *snapshot.FeatureSnapshot) { fs.MACDH1 = "SELL" }},
		{"overbought", func(fs *snapshot.FeatureSnapshot) { fs.RSIH1 = 75 }},
		{"sideways", func(fs *snapshot.FeatureSnapshot) { fs.TrendH1 = "SIDEWAYS" }},
		{"no atr", func(fs *snapshot.FeatureSnapshot) { fs.ATRH1 = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := uptrendSnapshot()
			tt.mutate(&fs)

			o := &RuleOracle{}
			p, err := o.Propose(context.Background(), fs)
			require.NoError(t, err)
			assert.Equal(t, Hold, p.Decision)
		})
	}
}

func TestRuleOracle_ProposesAlignedSell(t *testing.T) {
	t.Parallel()

	fs := snapshot.FeatureSnapshot{
		Symbol:        "GBPUSD",
		Bid:           1.2500,
		Ask:           1.2502,
		TrendD1:       "DOWNTREND",
		TrendH4:       "DOWNTREND",
		TrendH1:       "DOWNTREND",
		MACDH1:        "SELL",
		MACDM15:       "SELL",
		RSIH1:         40,
		ATRH1:         0.0020,
		MomentumScore: 20,
	}

	o := &RuleOracle{}
	p, err := o.Propose(context.Background(), fs)
	require.NoError(t, err)

	assert.Equal(t, Sell, p.Decision)
	assert.InDelta(t, 1.2500, p.EntryPrice, 1e-9)
	assert.Greater(t, p.StopLoss, p.EntryPrice)
	assert.Less(t, p.TakeProfit1, p.EntryPrice)
}
