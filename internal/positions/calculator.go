// Package positions derives status and P/L for wheel positions and owns the
// recompute-on-write path between callers and the record store.
package positions

import (
	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
)

var hundred = decimal.NewFromInt(models.SharesPerContract)

// Metrics is the derived part of a position.
type Metrics struct {
	Status            models.PositionStatus
	RealizedPL        decimal.NullDecimal
	PremiumRealizedPL decimal.NullDecimal
	StockRealizedPL   decimal.NullDecimal
	UnrealizedPL      decimal.NullDecimal
}

// DeriveStatus applies the status rule: a close date wins, then assignment with
// stock in hand, otherwise open.
func DeriveStatus(p models.Position) models.PositionStatus {
	if p.CloseDate != nil {
		return models.StatusClosed
	}
	if p.Assigned && p.StockOwned {
		return models.StatusAssigned
	}
	return models.StatusOpen
}

// Calculate computes status and P/L from the raw fields of p. It never fails:
// missing optional amounts count as zero.
func Calculate(p models.Position) Metrics {
	m := Metrics{Status: DeriveStatus(p)}

	switch m.Status {
	case models.StatusClosed:
		premium := GrossPremium(p).
			Sub(Value(p.PremiumPaidToClose).Mul(contracts(p)).Mul(hundred)).
			Sub(Fees(p))
		stock := decimal.Zero
		if p.StockSalePrice.Valid && p.StockCostBasis.Valid && p.StockQuantity.Valid {
			stock = p.StockSalePrice.Decimal.Sub(p.StockCostBasis.Decimal).Mul(p.StockQuantity.Decimal)
		}
		m.PremiumRealizedPL = Some(premium)
		m.StockRealizedPL = Some(stock)
		m.RealizedPL = Some(premium.Add(stock))

	case models.StatusAssigned:
		premium := GrossPremium(p).Sub(Value(p.OpenFees))
		m.PremiumRealizedPL = Some(premium)
		m.StockRealizedPL = Some(decimal.Zero)
		m.RealizedPL = Some(premium)

	default:
		m.UnrealizedPL = Some(GrossPremium(p).Sub(Value(p.OpenFees)))
	}
	return m
}

// Recalculate returns a copy of p with its derived fields replaced.
func Recalculate(p models.Position) models.Position {
	m := Calculate(p)
	p.Status = m.Status
	p.RealizedPL = m.RealizedPL
	p.PremiumRealizedPL = m.PremiumRealizedPL
	p.StockRealizedPL = m.StockRealizedPL
	p.UnrealizedPL = m.UnrealizedPL
	return p
}

// ApplyCreateDefaults fills fields a new position gets when the caller left them out.
func ApplyCreateDefaults(p models.Position) models.Position {
	if p.StockOwned && !p.StockQuantity.Valid {
		p.StockQuantity = Some(contracts(p).Mul(hundred))
	}
	if p.WheelCycleName == "" {
		p.WheelCycleName = p.Ticker
	}
	return p
}

// GrossPremium is premium x contracts x 100.
func GrossPremium(p models.Position) decimal.Decimal {
	return p.Premium.Mul(contracts(p)).Mul(hundred)
}

// Fees is open fees plus close fees.
func Fees(p models.Position) decimal.Decimal {
	return Value(p.OpenFees).Add(Value(p.CloseFees))
}

// Value returns the decimal or zero when absent.
func Value(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// Some wraps d as a present optional value.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func contracts(p models.Position) decimal.Decimal {
	return decimal.NewFromInt(int64(p.Contracts))
}
