// Package snapshot caches raw price series and derived indicator bundles for
// one polling cycle, and assembles the multi-timeframe feature snapshot the
// signal oracle consumes.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prathan03/mt5-auto-trade/indicators"
	"github.com/prathan03/mt5-auto-trade/market"
)

// MarketSource is the slice of the broker gateway the cache reads from.
// broker.Gateway satisfies it.
type MarketSource interface {
	Rates(ctx context.Context, symbol string, tf market.Timeframe, count int) (market.Series, error)
	CurrentTick(ctx context.Context, symbol string) (market.Tick, error)
}

const (
	seriesTTL     = 60 * time.Second
	indicatorSize = 100 // bounded FIFO backstop, evicts oldest half
)

type seriesEntry struct {
	series  market.Series
	fetched time.Time
}

type indicatorEntry struct {
	set indicators.Set
}

// Cache is safe for concurrent use by the scan workers. Entries are never
// mutated in place, only replaced.
type Cache struct {
	source MarketSource
	now    func() time.Time

	mu       sync.Mutex
	series   map[string]seriesEntry
	inflight map[string]*fetchCall

	ind      map[string]indicators.Set
	indOrder []string
}

type fetchCall struct {
	wg     sync.WaitGroup
	result market.Series
}

func NewCache(source MarketSource) *Cache {
	return &Cache{
		source:   source,
		now:      time.Now,
		series:   make(map[string]seriesEntry),
		inflight: make(map[string]*fetchCall),
		ind:      make(map[string]indicators.Set),
	}
}

func seriesKey(symbol string, tf market.Timeframe, count int) string {
	return fmt.Sprintf("%s_%s_%d", symbol, tf, count)
}

// Rates returns the cached series for the key if fetched within the TTL,
// otherwise fetches and stores it. Concurrent requests for the same key share
// one fetch. Fetch failures yield an empty series; callers treat empty as
// "no data this cycle."
func (c *Cache) Rates(ctx context.Context, symbol string, tf market.Timeframe, count int) market.Series {
	key := seriesKey(symbol, tf, count)

	c.mu.Lock()
	if e, ok := c.series[key]; ok && c.now().Sub(e.fetched) < seriesTTL {
		c.mu.Unlock()
		return e.series
	}
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		call.wg.Wait()
		return call.result
	}
	call := &fetchCall{}
	call.wg.Add(1)
	c.inflight[key] = call
	c.mu.Unlock()

	series, err := c.source.Rates(ctx, symbol, tf, count)
	if err != nil {
		log.Printf("rates fetch failed for %s %s: %v", symbol, tf, err)
		series = nil
	}
	call.result = series
	call.wg.Done()

	c.mu.Lock()
	delete(c.inflight, key)
	if len(series) > 0 {
		c.series[key] = seriesEntry{series: series, fetched: c.now()}
	}
	c.mu.Unlock()

	return series
}

// fingerprint keys the indicator cache on the most recent bar, so identical
// trailing data reuses cached indicators regardless of when it was fetched.
func fingerprint(s market.Series) string {
	last := s[len(s)-1]
	return fmt.Sprintf("%d_%.8f_%.8f_%.8f_%.8f_%d",
		last.Time.Unix(), last.Open, last.High, last.Low, last.Close, len(s))
}

// Indicators returns the derived bundle for a series, computing and caching
// it on first sight of the trailing bar.
func (c *Cache) Indicators(series market.Series) (indicators.Set, error) {
	if len(series) == 0 {
		return indicators.Set{}, indicators.ErrEmptySeries
	}
	key := fingerprint(series)

	c.mu.Lock()
	if set, ok := c.ind[key]; ok {
		c.mu.Unlock()
		return set, nil
	}
	c.mu.Unlock()

	set, err := indicators.Compute(series)
	if err != nil {
		return indicators.Set{}, err
	}

	c.mu.Lock()
	if _, ok := c.ind[key]; !ok {
		c.ind[key] = set
		c.indOrder = append(c.indOrder, key)
		if len(c.indOrder) > indicatorSize {
			drop := c.indOrder[:indicatorSize/2]
			for _, k := range drop {
				delete(c.ind, k)
			}
			c.indOrder = append([]string(nil), c.indOrder[indicatorSize/2:]...)
		}
	}
	c.mu.Unlock()

	return set, nil
}

// IndicatorEntries reports the bounded cache's current size, for telemetry.
func (c *Cache) IndicatorEntries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ind)
}
