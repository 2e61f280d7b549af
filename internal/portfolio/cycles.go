package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/positions"
)

// UncategorizedCycle collects positions without a cycle name.
const UncategorizedCycle = "Uncategorized"

// CycleName is the grouping key of p.
func CycleName(p models.Position) string {
	if p.WheelCycleName != "" {
		return p.WheelCycleName
	}
	return UncategorizedCycle
}

// BuildWheelCycles groups positions by cycle name. Unrealized P/L is the fee-adjusted
// premium of open legs only; no live prices are consulted. Active cycles sort before
// completed ones, then by total P/L descending. Ties keep first-seen order.
func BuildWheelCycles(all []models.Position) []models.WheelCycle {
	index := make(map[string]int)
	var cycles []models.WheelCycle

	for _, raw := range all {
		p := positions.Recalculate(raw)
		name := CycleName(p)

		i, ok := index[name]
		if !ok {
			i = len(cycles)
			index[name] = i
			cycles = append(cycles, models.WheelCycle{Name: name, FirstOpenDate: p.OpenDate})
		}
		c := &cycles[i]

		c.TotalPositions++
		gross := positions.GrossPremium(p)
		c.TotalPremiumCollected = c.TotalPremiumCollected.Add(gross)

		switch p.Status {
		case models.StatusOpen:
			c.OpenPositions++
			c.UnrealizedPL = c.UnrealizedPL.Add(gross.Sub(positions.Value(p.OpenFees)))
		case models.StatusClosed:
			c.ClosedPositions++
			c.RealizedPL = c.RealizedPL.Add(p.RealizedPL.Decimal)
		case models.StatusAssigned:
			c.AssignedPositions++
			c.RealizedPL = c.RealizedPL.Add(p.PremiumRealizedPL.Decimal)
		}

		if p.OpenDate.Before(c.FirstOpenDate) {
			c.FirstOpenDate = p.OpenDate
		}
		last := p.OpenDate
		if p.CloseDate != nil {
			last = *p.CloseDate
		}
		if last.After(c.LastActivityDate) {
			c.LastActivityDate = last
		}
	}

	for i := range cycles {
		c := &cycles[i]
		c.RealizedPL = RoundCents(c.RealizedPL)
		c.UnrealizedPL = RoundCents(c.UnrealizedPL)
		c.TotalPL = RoundCents(c.RealizedPL.Add(c.UnrealizedPL))
		c.TotalPremiumCollected = RoundCents(c.TotalPremiumCollected)
		c.Status = cycleStatus(*c)
	}

	sort.SliceStable(cycles, func(i, j int) bool {
		ai, aj := cycles[i].Status == models.CycleActive, cycles[j].Status == models.CycleActive
		if ai != aj {
			return ai
		}
		return cycles[i].TotalPL.GreaterThan(cycles[j].TotalPL)
	})
	return cycles
}

func cycleStatus(c models.WheelCycle) models.CycleStatus {
	if c.OpenPositions == 0 && c.ClosedPositions > 0 {
		return models.CycleCompleted
	}
	return models.CycleActive
}

// SumPL totals cycle P/L, handy for report footers.
func SumPL(cycles []models.WheelCycle) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cycles {
		total = total.Add(c.TotalPL)
	}
	return total
}
