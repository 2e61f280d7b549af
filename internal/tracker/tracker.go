// Package tracker composes the record store, price oracle, strategy store and alert
// engine into the read operations both the bot and the HTTP API expose.
package tracker

import (
	"context"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/alerts"
	"wheel_tracker/internal/market"
	"wheel_tracker/internal/models"
	"wheel_tracker/internal/portfolio"
	"wheel_tracker/internal/positions"
	"wheel_tracker/internal/strategy"
)

type Tracker struct {
	Positions *positions.Service
	Strategy  *strategy.Store
	Oracle    market.PriceOracle
	Engine    *alerts.Engine
}

func New(svc *positions.Service, strat *strategy.Store, oracle market.PriceOracle, engine *alerts.Engine) *Tracker {
	return &Tracker{Positions: svc, Strategy: strat, Oracle: oracle, Engine: engine}
}

// Metrics computes the portfolio snapshot. Live prices are only needed for
// assigned stock, so only those tickers are fetched.
func (t *Tracker) Metrics(ctx context.Context) (models.PortfolioMetrics, error) {
	all, err := t.Positions.List(ctx, models.PositionFilter{})
	if err != nil {
		return models.PortfolioMetrics{}, err
	}
	tickers, err := t.Positions.Tickers(ctx, models.StatusAssigned)
	if err != nil {
		return models.PortfolioMetrics{}, err
	}
	prices := t.Oracle.GetPrices(ctx, tickers)
	return portfolio.ComputeMetrics(all, prices), nil
}

// Cycles groups every position into wheel cycles.
func (t *Tracker) Cycles(ctx context.Context) ([]models.WheelCycle, error) {
	all, err := t.Positions.List(ctx, models.PositionFilter{})
	if err != nil {
		return nil, err
	}
	return portfolio.BuildWheelCycles(all), nil
}

// Alerts evaluates every open position against live prices and the active
// thresholds. Unless includeDismissed is set, dismissed positions are dropped.
// Reading the dismissal set also sweeps expired entries.
func (t *Tracker) Alerts(ctx context.Context, includeDismissed bool) ([]models.StrategyAlert, error) {
	open, err := t.Positions.List(ctx, models.PositionFilter{Status: models.StatusOpen})
	if err != nil {
		return nil, err
	}
	tickers, err := t.Positions.Tickers(ctx, models.StatusOpen)
	if err != nil {
		return nil, err
	}
	cfg := t.Strategy.Config(ctx)
	prices := t.Oracle.GetPrices(ctx, tickers)

	list := t.Engine.Evaluate(open, prices, nil, cfg.Thresholds())
	if includeDismissed {
		return list, nil
	}
	dismissed := make(map[string]bool, len(cfg.DismissedAlerts))
	for _, id := range cfg.DismissedAlerts {
		dismissed[id] = true
	}
	return alerts.Active(list, dismissed), nil
}

// PositionAlerts is the detail view: one position, dismissals ignored.
func (t *Tracker) PositionAlerts(ctx context.Context, id string) ([]models.StrategyAlert, error) {
	p, err := t.Positions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in := alerts.Input{Position: *p}
	if price, ok := t.Oracle.GetPrice(ctx, p.Ticker); ok {
		in.StockPrice = decimal.NullDecimal{Decimal: price, Valid: true}
	}
	list := t.Engine.EvaluatePosition(in, t.Strategy.Thresholds(ctx))
	alerts.Rank(list)
	return list, nil
}
