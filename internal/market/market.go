package market

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
)

// ErrNoPrice is returned by a provider that answered but had no trade to report.
var ErrNoPrice = errors.New("no price available")

// MarketProvider is the broker side of the oracle. Any struct with these methods
// satisfies it, so Alpaca can be swapped for a mock in tests.
type MarketProvider interface {
	GetPrice(ticker string) (decimal.Decimal, error)
	GetClock() (*models.Clock, error)
}

// PriceOracle is what the rest of the system consumes. Tickers are uppercased at
// this boundary and failures degrade to "unavailable" instead of an error.
type PriceOracle interface {
	GetPrice(ctx context.Context, ticker string) (decimal.Decimal, bool)
	GetPrices(ctx context.Context, tickers []string) map[string]decimal.Decimal
}

// Disabled is the oracle used when no broker credentials are configured.
type Disabled struct{}

func (Disabled) GetPrice(context.Context, string) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

func (Disabled) GetPrices(context.Context, []string) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{}
}

func (Disabled) GetClock() (*models.Clock, error) {
	return nil, errors.New("market data disabled: no Alpaca credentials")
}
