// Package news filters trading around high-impact economic events. The
// calendar itself is supplied as data (file or remote feed); this package
// only implements the avoidance policy.
package news

import (
	"fmt"
	"sync"
	"time"

	"github.com/prathan03/mt5-auto-trade/market"
)

// Impact is the event's expected market impact.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Event is one calendar entry.
type Event struct {
	Time     time.Time
	Currency string
	Impact   Impact
	Title    string
}

// currencyExposure maps a news currency to the symbols it moves.
var currencyExposure = map[string][]string{
	"USD": {"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "USDCAD", "AUDUSD", "NZDUSD", "XAUUSD", "US30", "US500", "NAS100", "USOIL"},
	"EUR": {"EURUSD", "EURGBP", "EURJPY", "EURCHF", "EURAUD", "EURNZD", "EURCAD", "XAUEUR", "DE30"},
	"GBP": {"GBPUSD", "EURGBP", "GBPJPY", "GBPCHF", "GBPAUD", "GBPNZD", "GBPCAD", "UK100"},
	"JPY": {"USDJPY", "EURJPY", "GBPJPY", "AUDJPY", "NZDJPY", "CADJPY", "CHFJPY", "JP225"},
	"CHF": {"USDCHF", "EURCHF", "GBPCHF", "CHFJPY"},
	"CAD": {"USDCAD", "EURCAD", "GBPCAD", "CADJPY", "AUDCAD", "NZDCAD", "USOIL", "UKOIL"},
	"AUD": {"AUDUSD", "EURAUD", "GBPAUD", "AUDJPY", "AUDNZD", "AUDCAD", "AUDCHF", "XAUUSD"},
	"NZD": {"NZDUSD", "EURNZD", "GBPNZD", "NZDJPY", "AUDNZD", "NZDCAD", "NZDCHF"},
}

// Calendar holds upcoming events and answers avoidance queries. Safe for
// concurrent use; the scan workers query it in parallel.
type Calendar struct {
	mu     sync.RWMutex
	events []Event
	now    func() time.Time

	// Before/After bound the avoidance window around each event.
	Before time.Duration
	After  time.Duration
}

func NewCalendar() *Calendar {
	return &Calendar{
		now:    time.Now,
		Before: 30 * time.Minute,
		After:  30 * time.Minute,
	}
}

// Load replaces the event list (called when the feed refreshes).
func (c *Calendar) Load(events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append([]Event(nil), events...)
}

// ShouldAvoid reports whether the symbol sits inside the avoidance window of
// any high-impact event, with a reason naming the event.
func (c *Calendar) ShouldAvoid(symbol string) (bool, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	base := market.Normalize(symbol)
	now := c.now()

	for _, e := range c.events {
		if e.Impact != ImpactHigh {
			continue
		}
		if !affects(e.Currency, base) {
			continue
		}
		until := e.Time.Sub(now)
		if until <= c.Before && until >= -c.After {
			return true, fmt.Sprintf("high impact news: %s (%s) in %d min",
				e.Title, e.Currency, int(until.Minutes()))
		}
	}
	return false, ""
}

// Upcoming returns high-impact events within the horizon, for alerting.
func (c *Calendar) Upcoming(horizon time.Duration) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	var out []Event
	for _, e := range c.events {
		if e.Impact != ImpactHigh {
			continue
		}
		if e.Time.After(now) && e.Time.Sub(now) <= horizon {
			out = append(out, e)
		}
	}
	return out
}

func affects(currency, symbol string) bool {
	for _, s := range currencyExposure[currency] {
		if s == symbol {
			return true
		}
	}
	return false
}
