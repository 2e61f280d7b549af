package positions

import (
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
)

// NullTime is an optional date in a patch. Valid=false clears the field.
type NullTime struct {
	Time  time.Time
	Valid bool
}

func (n NullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// Patch is a partial update. A nil field leaves the stored value untouched.
type Patch struct {
	Ticker         *string
	WheelCycleName *string
	OptionType     *models.OptionType
	Contracts      *int
	Strike         *decimal.Decimal
	Premium        *decimal.Decimal
	OpenDate       *time.Time
	ExpirationDate *time.Time
	CloseDate      *NullTime

	PremiumPaidToClose *decimal.NullDecimal
	OpenFees           *decimal.NullDecimal
	CloseFees          *decimal.NullDecimal

	Assigned          *bool
	StockOwned        *bool
	StockCostBasis    *decimal.NullDecimal
	StockQuantity     *decimal.NullDecimal
	StockAcquiredDate *NullTime
	StockSaleDate     *NullTime
	StockSalePrice    *decimal.NullDecimal

	Notes *string
}

// IsEmpty reports whether the patch changes nothing.
func (pt Patch) IsEmpty() bool {
	return pt == Patch{}
}

// Merge applies pt on top of a copy of existing. Derived fields are not touched;
// callers recompute after merging.
func Merge(existing models.Position, pt Patch) models.Position {
	out := existing

	if pt.Ticker != nil {
		out.Ticker = *pt.Ticker
	}
	if pt.WheelCycleName != nil {
		out.WheelCycleName = *pt.WheelCycleName
	}
	if pt.OptionType != nil {
		out.OptionType = *pt.OptionType
	}
	if pt.Contracts != nil {
		out.Contracts = *pt.Contracts
	}
	if pt.Strike != nil {
		out.Strike = *pt.Strike
	}
	if pt.Premium != nil {
		out.Premium = *pt.Premium
	}
	if pt.OpenDate != nil {
		out.OpenDate = *pt.OpenDate
	}
	if pt.ExpirationDate != nil {
		out.ExpirationDate = *pt.ExpirationDate
	}
	if pt.CloseDate != nil {
		out.CloseDate = pt.CloseDate.ptr()
	}

	mergeNull(&out.PremiumPaidToClose, pt.PremiumPaidToClose)
	mergeNull(&out.OpenFees, pt.OpenFees)
	mergeNull(&out.CloseFees, pt.CloseFees)

	if pt.Assigned != nil {
		out.Assigned = *pt.Assigned
	}
	if pt.StockOwned != nil {
		out.StockOwned = *pt.StockOwned
	}
	mergeNull(&out.StockCostBasis, pt.StockCostBasis)
	mergeNull(&out.StockQuantity, pt.StockQuantity)
	mergeNull(&out.StockSalePrice, pt.StockSalePrice)
	if pt.StockAcquiredDate != nil {
		out.StockAcquiredDate = pt.StockAcquiredDate.ptr()
	}
	if pt.StockSaleDate != nil {
		out.StockSaleDate = pt.StockSaleDate.ptr()
	}

	if pt.Notes != nil {
		out.Notes = *pt.Notes
	}
	return out
}

func mergeNull(dst *decimal.NullDecimal, src *decimal.NullDecimal) {
	if src != nil {
		*dst = *src
	}
}
