// Package risk implements trade admission (loss limits, position caps,
// correlation exposure) and confidence-tiered position sizing.
package risk

import (
	"fmt"
	"sort"
)

// Tier maps a confidence threshold to a risk multiplier. Tiers are selected
// by the largest threshold at or below the proposal's confidence.
type Tier struct {
	Threshold  int     `yaml:"threshold"`
	Multiplier float64 `yaml:"multiplier"`
}

// Config are the immutable per-run risk parameters.
type Config struct {
	MaxRiskPerTrade      float64 `yaml:"max_risk_per_trade"`
	MaxDailyLoss         float64 `yaml:"max_daily_loss"`
	MaxWeeklyLoss        float64 `yaml:"max_weekly_loss"`
	MaxOpenTrades        int     `yaml:"max_open_trades"`
	MaxCorrelationTrades int     `yaml:"max_correlation_trades"`

	ConfidenceTiers []Tier `yaml:"confidence_tiers"`

	// MaxLotBySymbol is an optional hard ceiling per normalized symbol,
	// applied before the broker's own volume limits.
	MaxLotBySymbol map[string]float64 `yaml:"max_lot_by_symbol"`

	// CorrelationGroups aggregate exposure across linked instruments.
	CorrelationGroups map[string][]string `yaml:"correlation_groups"`
}

// DefaultConfig mirrors the conservative production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTrade:      0.01,
		MaxDailyLoss:         0.03,
		MaxWeeklyLoss:        0.05,
		MaxOpenTrades:        5,
		MaxCorrelationTrades: 2,
		ConfidenceTiers: []Tier{
			{Threshold: 60, Multiplier: 0.25},
			{Threshold: 70, Multiplier: 0.5},
			{Threshold: 80, Multiplier: 0.75},
			{Threshold: 90, Multiplier: 1.0},
		},
		MaxLotBySymbol: map[string]float64{
			"XAUUSD": 0.5, "XAUEUR": 0.5,
			"US30": 0.3, "US500": 0.3, "NAS100": 0.3,
			"BTCUSD": 0.1, "ETHUSD": 0.1,
			"USOIL": 0.3, "UKOIL": 0.3,
		},
		CorrelationGroups: map[string][]string{
			"USD_pairs": {"EURUSD", "GBPUSD", "USDCHF", "USDJPY", "USDCAD", "AUDUSD", "NZDUSD"},
			"EUR_pairs": {"EURUSD", "EURGBP", "EURJPY", "EURCHF", "EURAUD", "EURNZD", "EURCAD"},
			"GOLD":      {"XAUUSD", "XAUEUR"},
			"OIL":       {"USOIL", "UKOIL", "WTI", "BRENT"},
			"INDICES":   {"US30", "US500", "NAS100", "DE30", "UK100", "JP225"},
		},
	}
}

// Validate rejects configurations that would disable the safety rails.
func (c Config) Validate() error {
	if c.MaxRiskPerTrade <= 0 || c.MaxRiskPerTrade > 0.1 {
		return fmt.Errorf("max_risk_per_trade must be in (0, 0.1], got %v", c.MaxRiskPerTrade)
	}
	if c.MaxDailyLoss <= 0 || c.MaxDailyLoss >= 1 {
		return fmt.Errorf("max_daily_loss must be in (0, 1), got %v", c.MaxDailyLoss)
	}
	if c.MaxWeeklyLoss < c.MaxDailyLoss {
		return fmt.Errorf("max_weekly_loss %v below max_daily_loss %v", c.MaxWeeklyLoss, c.MaxDailyLoss)
	}
	if c.MaxOpenTrades <= 0 {
		return fmt.Errorf("max_open_trades must be positive, got %d", c.MaxOpenTrades)
	}
	if c.MaxCorrelationTrades <= 0 {
		return fmt.Errorf("max_correlation_trades must be positive, got %d", c.MaxCorrelationTrades)
	}
	if len(c.ConfidenceTiers) == 0 {
		return fmt.Errorf("at least one confidence tier is required")
	}
	for _, t := range c.ConfidenceTiers {
		if t.Threshold < 0 || t.Threshold > 100 {
			return fmt.Errorf("tier threshold %d out of range", t.Threshold)
		}
		if t.Multiplier <= 0 || t.Multiplier > 1 {
			return fmt.Errorf("tier multiplier %v out of (0, 1]", t.Multiplier)
		}
	}
	return nil
}

// tierMultiplier selects the multiplier for the largest configured threshold
// at or below confidence. Below the lowest tier the lowest multiplier acts
// as a floor, so a nonzero risk budget never sizes to zero.
func (c Config) tierMultiplier(confidence int) float64 {
	tiers := append([]Tier(nil), c.ConfidenceTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold > tiers[j].Threshold })

	for _, t := range tiers {
		if confidence >= t.Threshold {
			return t.Multiplier
		}
	}
	return tiers[len(tiers)-1].Multiplier
}

// groupsFor returns the names of every correlation group containing symbol.
func (c Config) groupsFor(symbol string) []string {
	var groups []string
	for name, symbols := range c.CorrelationGroups {
		for _, s := range symbols {
			if s == symbol {
				groups = append(groups, name)
				break
			}
		}
	}
	return groups
}
