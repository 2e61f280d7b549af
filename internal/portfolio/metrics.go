// Package portfolio folds position records into portfolio and wheel-cycle summaries.
// Everything here is a pure function of its arguments.
package portfolio

import (
	"strings"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/positions"
)

var (
	hundred  = decimal.NewFromInt(models.SharesPerContract)
	halfCent = decimal.New(5, -3)
)

// RoundCents rounds half up to two decimal places.
func RoundCents(v decimal.Decimal) decimal.Decimal {
	return v.Add(halfCent).Shift(2).Floor().Shift(-2)
}

// ComputeMetrics builds one snapshot over all positions. prices maps uppercase
// tickers to the current stock price; a missing ticker contributes nothing.
func ComputeMetrics(all []models.Position, prices map[string]decimal.Decimal) models.PortfolioMetrics {
	var m models.PortfolioMetrics
	m.TotalPositions = len(all)

	for _, raw := range all {
		p := positions.Recalculate(raw)
		gross := positions.GrossPremium(p)
		openFees := positions.Value(p.OpenFees)

		m.TotalFees = m.TotalFees.Add(positions.Fees(p))

		switch p.Status {
		case models.StatusClosed:
			m.ClosedPositions++
			paid := positions.Value(p.PremiumPaidToClose).Mul(contractCount(p)).Mul(hundred)
			m.ClosedPremiumCollected = m.ClosedPremiumCollected.Add(gross.Sub(paid))
			m.RealizedPL = m.RealizedPL.Add(p.RealizedPL.Decimal)
			m.PremiumRealizedPL = m.PremiumRealizedPL.Add(p.PremiumRealizedPL.Decimal)
			m.StockRealizedPL = m.StockRealizedPL.Add(p.StockRealizedPL.Decimal)

		case models.StatusOpen:
			m.OpenPositions++
			m.OpenPremiumCollected = m.OpenPremiumCollected.Add(gross)
			m.PremiumUnrealizedPL = m.PremiumUnrealizedPL.Add(gross.Sub(openFees))

		case models.StatusAssigned:
			m.AssignedPositions++
			m.ClosedPremiumCollected = m.ClosedPremiumCollected.Add(gross)
			m.PremiumRealizedPL = m.PremiumRealizedPL.Add(p.PremiumRealizedPL.Decimal)
			m.RealizedPL = m.RealizedPL.Add(p.PremiumRealizedPL.Decimal)
			if p.StockOwned && p.StockCostBasis.Valid && p.StockQuantity.Valid {
				if price, ok := prices[strings.ToUpper(p.Ticker)]; ok {
					gain := price.Sub(p.StockCostBasis.Decimal).Mul(p.StockQuantity.Decimal)
					m.StockUnrealizedPL = m.StockUnrealizedPL.Add(gain)
				}
			}
		}

		m.CapitalAllocated = m.CapitalAllocated.Add(CapitalRequired(p))
	}

	m.UnrealizedPL = m.PremiumUnrealizedPL.Add(m.StockUnrealizedPL)
	m.TotalPremiumCollected = m.OpenPremiumCollected.Add(m.ClosedPremiumCollected)
	m.TotalPL = m.RealizedPL.Add(m.UnrealizedPL)

	for _, v := range []*decimal.Decimal{
		&m.RealizedPL, &m.PremiumRealizedPL, &m.StockRealizedPL,
		&m.UnrealizedPL, &m.PremiumUnrealizedPL, &m.StockUnrealizedPL,
		&m.OpenPremiumCollected, &m.ClosedPremiumCollected, &m.TotalPremiumCollected,
		&m.CapitalAllocated, &m.TotalFees, &m.TotalPL,
	} {
		*v = RoundCents(*v)
	}
	return m
}

// CapitalRequired is the capital a live position ties up. Puts reserve the cash to
// buy at the strike; covered calls carry the stock at cost basis (strike when the
// basis is unknown). Naked calls and finished positions reserve nothing.
func CapitalRequired(p models.Position) decimal.Decimal {
	if p.Status != models.StatusOpen && p.Status != models.StatusAssigned {
		return decimal.Zero
	}
	switch p.OptionType {
	case models.OptionPut:
		return p.Strike.Mul(contractCount(p)).Mul(hundred)
	case models.OptionCall:
		if !p.StockOwned {
			return decimal.Zero
		}
		basis := p.Strike
		if p.StockCostBasis.Valid {
			basis = p.StockCostBasis.Decimal
		}
		return basis.Mul(contractCount(p)).Mul(hundred)
	}
	return decimal.Zero
}

func contractCount(p models.Position) decimal.Decimal {
	return decimal.NewFromInt(int64(p.Contracts))
}
