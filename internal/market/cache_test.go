package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
)

// MockProvider for testing
type MockProvider struct {
	Prices map[string]decimal.Decimal
	Calls  int32
	Delay  time.Duration
}

func (m *MockProvider) GetPrice(ticker string) (decimal.Decimal, error) {
	atomic.AddInt32(&m.Calls, 1)
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	p, ok := m.Prices[ticker]
	if !ok {
		return decimal.Zero, errors.New("unknown symbol")
	}
	return p, nil
}

func (m *MockProvider) GetClock() (*models.Clock, error) {
	return &models.Clock{IsOpen: true}, nil
}

func TestGetPrice_CachesWithinWindow(t *testing.T) {
	mock := &MockProvider{Prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(190)}}
	c := NewCachedOracle(mock, 5*time.Minute, 4)
	now := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	p, ok := c.GetPrice(ctx, "aapl")
	if !ok || !p.Equal(decimal.NewFromInt(190)) {
		t.Fatalf("Expected 190, got %s (ok=%v)", p, ok)
	}

	now = now.Add(4 * time.Minute)
	c.GetPrice(ctx, "AAPL")
	if mock.Calls != 1 {
		t.Errorf("Expected cached lookup, provider called %d times", mock.Calls)
	}

	now = now.Add(2 * time.Minute)
	c.GetPrice(ctx, "AAPL")
	if mock.Calls != 2 {
		t.Errorf("Expected re-fetch after expiry, provider called %d times", mock.Calls)
	}
}

func TestGetPrice_ConcurrentSameTicker(t *testing.T) {
	mock := &MockProvider{
		Prices: map[string]decimal.Decimal{"SPY": decimal.NewFromInt(500)},
		Delay:  20 * time.Millisecond,
	}
	c := NewCachedOracle(mock, time.Minute, 4)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.GetPrice(context.Background(), "SPY"); !ok {
				t.Errorf("Expected a price")
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&mock.Calls); got != 1 {
		t.Errorf("Expected a single upstream fetch, got %d", got)
	}
}

func TestGetPrice_FailureIsUnavailable(t *testing.T) {
	mock := &MockProvider{Prices: map[string]decimal.Decimal{"ZERO": decimal.Zero}}
	c := NewCachedOracle(mock, time.Minute, 1)

	if _, ok := c.GetPrice(context.Background(), "NOPE"); ok {
		t.Errorf("Expected unavailable for failing ticker")
	}
	if _, ok := c.GetPrice(context.Background(), "ZERO"); ok {
		t.Errorf("Expected unavailable for a zero trade price")
	}
	// Failures are not cached.
	c.GetPrice(context.Background(), "NOPE")
	if mock.Calls != 3 {
		t.Errorf("Expected failures to be retried on next lookup, calls=%d", mock.Calls)
	}
}

func TestGetPrices_BestEffort(t *testing.T) {
	mock := &MockProvider{Prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(190),
		"MSFT": decimal.NewFromInt(420),
	}}
	c := NewCachedOracle(mock, time.Minute, 2)

	got := c.GetPrices(context.Background(), []string{"aapl", "MSFT", "BROKEN", "AAPL", " "})

	if len(got) != 2 {
		t.Fatalf("Expected 2 prices, got %v", got)
	}
	if !got["AAPL"].Equal(decimal.NewFromInt(190)) || !got["MSFT"].Equal(decimal.NewFromInt(420)) {
		t.Errorf("Unexpected prices %v", got)
	}
	if mock.Calls != 3 {
		t.Errorf("Expected duplicates collapsed to 3 fetches, got %d", mock.Calls)
	}
}

func TestDisabledOracle(t *testing.T) {
	var o PriceOracle = Disabled{}
	if _, ok := o.GetPrice(context.Background(), "AAPL"); ok {
		t.Errorf("Disabled oracle returned a price")
	}
	if got := o.GetPrices(context.Background(), []string{"AAPL"}); len(got) != 0 {
		t.Errorf("Disabled oracle returned prices: %v", got)
	}
}
