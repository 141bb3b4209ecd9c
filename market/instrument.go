package market

import "strings"

// AssetClass groups instruments by volatility profile. Higher-volatility
// classes are sized down by the risk manager.
type AssetClass int

const (
	ClassForex AssetClass = iota
	ClassMetal
	ClassIndex
	ClassEnergy
	ClassCrypto
)

var indexSymbols = map[string]bool{
	"US30": true, "US500": true, "NAS100": true,
	"DE30": true, "UK100": true, "JP225": true,
}

var energySymbols = map[string]bool{
	"USOIL": true, "UKOIL": true, "WTI": true, "BRENT": true,
}

var cryptoSymbols = map[string]bool{
	"BTCUSD": true, "ETHUSD": true,
}

// Classify maps a broker symbol to its asset class. Broker suffixes
// ("EURUSDc") are tolerated because matching is substring-based for metals
// and normalized for the lookup tables.
func Classify(symbol string) AssetClass {
	base := Normalize(symbol)
	switch {
	case strings.Contains(base, "XAU") || strings.Contains(base, "XAG") || strings.Contains(base, "GOLD"):
		return ClassMetal
	case indexSymbols[base]:
		return ClassIndex
	case energySymbols[base]:
		return ClassEnergy
	case cryptoSymbols[base]:
		return ClassCrypto
	default:
		return ClassForex
	}
}

// Normalize strips a lowercase broker suffix ("EURUSDc" -> "EURUSD") so
// correlation groups and class tables match across brokers.
func Normalize(symbol string) string {
	return strings.TrimRight(symbol, "abcdefghijklmnopqrstuvwxyz.")
}

// PipUnit returns the price distance of one pip given the broker point size.
// JPY-quoted pairs trade with 2/3 decimal quoting, everything else 4/5; in
// both cases a pip is ten points for FX and metals, one point otherwise.
func PipUnit(symbol string, point float64) float64 {
	base := Normalize(symbol)
	switch Classify(symbol) {
	case ClassForex:
		if len(base) == 6 {
			return point * 10
		}
		return point
	case ClassMetal:
		return point * 10
	default:
		return point
	}
}

// IsJPYQuoted reports whether the instrument quotes in yen, which changes
// the pip multiplier used when the broker point size is unknown.
func IsJPYQuoted(symbol string) bool {
	return strings.HasSuffix(Normalize(symbol), "JPY")
}
