// Package alerts evaluates roll, close and warning conditions for open positions.
package alerts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/positions"
)

// Percentages. The warning band starts half a point below the roll threshold.
var (
	hundred       = decimal.NewFromInt(100)
	warningBand   = decimal.New(5, -1)
	highOvershoot = decimal.NewFromInt(1)
	medOvershoot  = decimal.New(25, -2)
	closeHighGap  = decimal.NewFromInt(5)
)

// Input is everything one position needs for an evaluation pass.
type Input struct {
	Position    models.Position
	StockPrice  decimal.NullDecimal
	OptionPrice decimal.NullDecimal // no collaborator supplies this yet
}

// Engine evaluates alerts. The clock is injectable for tests.
type Engine struct {
	Now func() time.Time
}

// NewEngine returns an engine on the wall clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// EvaluatePosition runs the roll-family and close checks for one position.
// Positions that are not open never alert.
func (e *Engine) EvaluatePosition(in Input, th models.StrategyThresholds) []models.StrategyAlert {
	p := in.Position
	if positions.DeriveStatus(p) != models.StatusOpen || p.Strike.Sign() <= 0 {
		return nil
	}

	var out []models.StrategyAlert
	if in.StockPrice.Valid {
		if a, ok := e.rollCheck(p, in.StockPrice.Decimal, th.RollThreshold); ok {
			out = append(out, a)
		}
	}
	if in.OptionPrice.Valid {
		if a, ok := e.closeCheck(p, in.OptionPrice.Decimal, th.CloseThreshold); ok {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) rollCheck(p models.Position, price, threshold decimal.Decimal) (models.StrategyAlert, bool) {
	target := p.Strike.Mul(hundred.Add(threshold)).Div(hundred)
	warnFloor := p.Strike.Mul(hundred.Add(threshold).Sub(warningBand)).Div(hundred)
	distance := price.Sub(p.Strike).Div(p.Strike).Mul(hundred)

	base := models.StrategyAlert{
		PositionID:  p.ID,
		Ticker:      p.Ticker,
		TargetPrice: decimal.NullDecimal{Decimal: target, Valid: true},
		Threshold:   threshold,
		DistancePct: distance,
		CreatedAt:   e.now(),
	}

	switch {
	case price.GreaterThanOrEqual(target):
		overshoot := price.Sub(target).Div(p.Strike).Mul(hundred)
		urgency := models.UrgencyLow
		if overshoot.GreaterThanOrEqual(highOvershoot) {
			urgency = models.UrgencyHigh
		} else if overshoot.GreaterThanOrEqual(medOvershoot) {
			urgency = models.UrgencyMedium
		}
		base.ID = alertID(p.ID, models.AlertRoll)
		base.Type = models.AlertRoll
		base.Urgency = urgency
		base.Title = fmt.Sprintf("Roll %s $%s %s", p.Ticker, p.Strike.StringFixed(2), p.OptionType)
		base.Message = fmt.Sprintf("%s at $%s is %s%% above the $%s strike (roll threshold %s%%, target $%s).",
			p.Ticker, price.StringFixed(2), distance.StringFixed(2), p.Strike.StringFixed(2),
			threshold.String(), target.StringFixed(2))
		return base, true

	case price.GreaterThanOrEqual(warnFloor):
		base.ID = alertID(p.ID, models.AlertWarning)
		base.Type = models.AlertWarning
		base.Urgency = models.UrgencyLow
		base.Title = fmt.Sprintf("%s approaching roll level", p.Ticker)
		base.Message = fmt.Sprintf("%s at $%s is within 0.5%% of the $%s roll target for the $%s %s.",
			p.Ticker, price.StringFixed(2), target.StringFixed(2), p.Strike.StringFixed(2), p.OptionType)
		return base, true
	}
	return models.StrategyAlert{}, false
}

func (e *Engine) closeCheck(p models.Position, optionPrice, threshold decimal.Decimal) (models.StrategyAlert, bool) {
	if p.Premium.Sign() <= 0 {
		return models.StrategyAlert{}, false
	}
	target := p.Premium.Mul(hundred.Sub(threshold)).Div(hundred)
	if optionPrice.GreaterThan(target) {
		return models.StrategyAlert{}, false
	}

	profitPct := p.Premium.Sub(optionPrice).Div(p.Premium).Mul(hundred)
	urgency := models.UrgencyMedium
	if profitPct.GreaterThanOrEqual(threshold.Add(closeHighGap)) {
		urgency = models.UrgencyHigh
	}
	msg := fmt.Sprintf("Option at $%s captures %s%% of the $%s premium (close threshold %s%%).",
		optionPrice.StringFixed(2), profitPct.StringFixed(1), p.Premium.StringFixed(2), threshold.String())
	return models.StrategyAlert{
		ID:          alertID(p.ID, models.AlertClose),
		PositionID:  p.ID,
		Ticker:      p.Ticker,
		Type:        models.AlertClose,
		Title:       fmt.Sprintf("Close %s $%s %s", p.Ticker, p.Strike.StringFixed(2), p.OptionType),
		Message:     msg,
		TargetPrice: decimal.NullDecimal{Decimal: target, Valid: true},
		Threshold:   threshold,
		DistancePct: profitPct,
		Urgency:     urgency,
		CreatedAt:   e.now(),
	}, true
}

// Evaluate runs every position against prices and returns the ranked alert set.
// stockPrices is keyed by uppercase ticker; optionPrices by position id and may be nil.
func (e *Engine) Evaluate(all []models.Position, stockPrices map[string]decimal.Decimal,
	optionPrices map[string]decimal.Decimal, th models.StrategyThresholds) []models.StrategyAlert {

	var out []models.StrategyAlert
	for _, p := range all {
		in := Input{Position: p}
		if v, ok := stockPrices[strings.ToUpper(p.Ticker)]; ok {
			in.StockPrice = decimal.NullDecimal{Decimal: v, Valid: true}
		}
		if v, ok := optionPrices[p.ID]; ok {
			in.OptionPrice = decimal.NullDecimal{Decimal: v, Valid: true}
		}
		out = append(out, e.EvaluatePosition(in, th)...)
	}
	Rank(out)
	return out
}

// Rank sorts high before medium before low, then by larger absolute distance.
func Rank(list []models.StrategyAlert) {
	sort.SliceStable(list, func(i, j int) bool {
		ri, rj := list[i].Urgency.Rank(), list[j].Urgency.Rank()
		if ri != rj {
			return ri < rj
		}
		return list[i].DistancePct.Abs().GreaterThan(list[j].DistancePct.Abs())
	})
}

// Active drops alerts whose position id is dismissed.
func Active(list []models.StrategyAlert, dismissed map[string]bool) []models.StrategyAlert {
	out := make([]models.StrategyAlert, 0, len(list))
	for _, a := range list {
		if dismissed[a.PositionID] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ForPosition returns the alerts of one position, ignoring dismissals.
func ForPosition(list []models.StrategyAlert, positionID string) []models.StrategyAlert {
	var out []models.StrategyAlert
	for _, a := range list {
		if a.PositionID == positionID {
			out = append(out, a)
		}
	}
	return out
}

func alertID(positionID string, t models.AlertType) string {
	return positionID + ":" + string(t)
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
