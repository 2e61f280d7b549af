package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AlertType string

const (
	AlertRoll    AlertType = "roll"
	AlertClose   AlertType = "close"
	AlertWarning AlertType = "warning"
)

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Rank orders urgencies high < medium < low for sorting.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyHigh:
		return 0
	case UrgencyMedium:
		return 1
	default:
		return 2
	}
}

// StrategyAlert is regenerated on every evaluation pass and never stored.
type StrategyAlert struct {
	ID          string              `json:"id"`
	PositionID  string              `json:"position_id"`
	Ticker      string              `json:"ticker"`
	Type        AlertType           `json:"type"`
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	Threshold   decimal.Decimal     `json:"threshold"`
	DistancePct decimal.Decimal     `json:"distance_pct"`
	Urgency     Urgency             `json:"urgency"`
	CreatedAt   time.Time           `json:"created_at"`
}

type StrategyName string

const (
	StrategyStandard StrategyName = "standard"
	StrategyCustom   StrategyName = "custom"
)

// Default thresholds, in percent.
var (
	DefaultRollThreshold  = decimal.NewFromInt(3)
	DefaultCloseThreshold = decimal.NewFromInt(75)
)

// DismissalRetention is how long a dismissed alert stays hidden.
const DismissalRetention = 24 * time.Hour

// StrategyThresholds are the percentages the alert engine evaluates against.
type StrategyThresholds struct {
	RollThreshold  decimal.Decimal `json:"roll_threshold"`
	CloseThreshold decimal.Decimal `json:"close_threshold"`
}

// UserStrategyConfig is persisted as a single blob. DismissedAlerts and DismissedAt
// always describe the same set of position ids.
type UserStrategyConfig struct {
	ActiveStrategy       StrategyName         `json:"active_strategy"`
	CustomRollThreshold  decimal.Decimal      `json:"custom_roll_threshold"`
	CustomCloseThreshold decimal.Decimal      `json:"custom_close_threshold"`
	DismissedAlerts      []string             `json:"dismissed_alerts"`
	DismissedAt          map[string]time.Time `json:"dismissed_at"`
}

// DefaultStrategyConfig returns the first-run configuration.
func DefaultStrategyConfig() UserStrategyConfig {
	return UserStrategyConfig{
		ActiveStrategy:       StrategyStandard,
		CustomRollThreshold:  DefaultRollThreshold,
		CustomCloseThreshold: DefaultCloseThreshold,
		DismissedAlerts:      []string{},
		DismissedAt:          map[string]time.Time{},
	}
}

// Thresholds resolves the thresholds of the active strategy.
func (c UserStrategyConfig) Thresholds() StrategyThresholds {
	if c.ActiveStrategy == StrategyCustom {
		return StrategyThresholds{
			RollThreshold:  c.CustomRollThreshold,
			CloseThreshold: c.CustomCloseThreshold,
		}
	}
	return StrategyThresholds{
		RollThreshold:  DefaultRollThreshold,
		CloseThreshold: DefaultCloseThreshold,
	}
}

// Clone returns a deep copy so callers can never alias the store's slices and maps.
func (c UserStrategyConfig) Clone() UserStrategyConfig {
	out := c
	out.DismissedAlerts = append([]string{}, c.DismissedAlerts...)
	out.DismissedAt = make(map[string]time.Time, len(c.DismissedAt))
	for k, v := range c.DismissedAt {
		out.DismissedAt[k] = v
	}
	return out
}
