package market

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"wheel_tracker/internal/models"
)

// DefaultTTL is how long a fetched price is served without re-fetching.
const DefaultTTL = 5 * time.Minute

type priceEntry struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// CachedOracle wraps a MarketProvider with a per-ticker freshness window.
// Concurrent misses for one ticker share a single upstream call.
type CachedOracle struct {
	provider    MarketProvider
	ttl         time.Duration
	concurrency int
	now         func() time.Time

	mu    sync.RWMutex
	items map[string]priceEntry
	group singleflight.Group
}

// NewCachedOracle returns an oracle over provider. concurrency bounds parallel
// fetches in GetPrices.
func NewCachedOracle(provider MarketProvider, ttl time.Duration, concurrency int) *CachedOracle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &CachedOracle{
		provider:    provider,
		ttl:         ttl,
		concurrency: concurrency,
		now:         time.Now,
		items:       make(map[string]priceEntry),
	}
}

// GetPrice returns the cached price when fresh, otherwise fetches it.
func (c *CachedOracle) GetPrice(ctx context.Context, ticker string) (decimal.Decimal, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return decimal.Zero, false
	}
	if p, ok := c.cached(ticker); ok {
		return p, true
	}
	if ctx.Err() != nil {
		return decimal.Zero, false
	}

	v, err, _ := c.group.Do(ticker, func() (interface{}, error) {
		// Another caller may have filled the entry while we queued.
		if p, ok := c.cached(ticker); ok {
			return p, nil
		}
		p, err := c.provider.GetPrice(ticker)
		if err != nil {
			return nil, err
		}
		if p.Sign() <= 0 {
			return nil, ErrNoPrice
		}
		c.mu.Lock()
		c.items[ticker] = priceEntry{price: p, fetchedAt: c.now()}
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		log.Printf("WARN: price for %s unavailable: %v", ticker, err)
		return decimal.Zero, false
	}
	return v.(decimal.Decimal), true
}

// GetPrices fetches every ticker, bounded by the configured concurrency. A failed
// ticker is simply absent from the result.
func (c *CachedOracle) GetPrices(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(tickers))
	var mu sync.Mutex

	seen := make(map[string]bool, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		g.Go(func() error {
			if p, ok := c.GetPrice(gctx, t); ok {
				mu.Lock()
				out[t] = p
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// GetClock passes through to the provider; the clock is never cached.
func (c *CachedOracle) GetClock() (*models.Clock, error) {
	return c.provider.GetClock()
}

// Invalidate drops a ticker so the next lookup fetches.
func (c *CachedOracle) Invalidate(ticker string) {
	c.mu.Lock()
	delete(c.items, strings.ToUpper(ticker))
	c.mu.Unlock()
}

func (c *CachedOracle) cached(ticker string) (decimal.Decimal, bool) {
	c.mu.RLock()
	e, ok := c.items[ticker]
	c.mu.RUnlock()
	if !ok {
		return decimal.Zero, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		// Expired: remove lazily.
		c.mu.Lock()
		if e2, ok2 := c.items[ticker]; ok2 && c.now().Sub(e2.fetchedAt) >= c.ttl {
			delete(c.items, ticker)
		}
		c.mu.Unlock()
		return decimal.Zero, false
	}
	return e.price, true
}
