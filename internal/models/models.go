package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SharesPerContract is the number of underlying shares one option contract controls.
const SharesPerContract = 100

// OptionType is the kind of option sold.
type OptionType string

const (
	OptionPut  OptionType = "put"
	OptionCall OptionType = "call"
)

// Valid reports whether t is one of the supported option kinds.
func (t OptionType) Valid() bool {
	return t == OptionPut || t == OptionCall
}

// PositionStatus is derived from the raw trade fields, never set directly.
type PositionStatus string

const (
	StatusOpen     PositionStatus = "open"
	StatusClosed   PositionStatus = "closed"
	StatusAssigned PositionStatus = "assigned"
)

// Valid reports whether s is a known status.
func (s PositionStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusAssigned:
		return true
	default:
		return false
	}
}

// Position is a single short option leg of a wheel, plus any stock it led to.
//
// Optional numeric fields use decimal.NullDecimal so "absent" and "zero" stay distinct
// on disk and on the wire (absent marshals to null).
type Position struct {
	ID             string          `json:"id"`
	Ticker         string          `json:"ticker"`
	WheelCycleName string          `json:"wheel_cycle_name,omitempty"`
	OptionType     OptionType      `json:"option_type"`
	Contracts      int             `json:"contracts"`
	Strike         decimal.Decimal `json:"strike"`
	Premium        decimal.Decimal `json:"premium"` // received per share, per contract
	OpenDate       time.Time       `json:"open_date"`
	ExpirationDate time.Time       `json:"expiration_date"`
	CloseDate      *time.Time      `json:"close_date,omitempty"`

	PremiumPaidToClose decimal.NullDecimal `json:"premium_paid_to_close"`
	OpenFees           decimal.NullDecimal `json:"open_fees"`
	CloseFees          decimal.NullDecimal `json:"close_fees"`

	Assigned          bool                `json:"assigned"`
	StockOwned        bool                `json:"stock_owned"`
	StockCostBasis    decimal.NullDecimal `json:"stock_cost_basis"`
	StockQuantity     decimal.NullDecimal `json:"stock_quantity"`
	StockAcquiredDate *time.Time          `json:"stock_acquired_date,omitempty"`
	StockSaleDate     *time.Time          `json:"stock_sale_date,omitempty"`
	StockSalePrice    decimal.NullDecimal `json:"stock_sale_price"`

	Notes string `json:"notes,omitempty"`

	// Derived on every write.
	Status            PositionStatus      `json:"status"`
	RealizedPL        decimal.NullDecimal `json:"realized_pl"`
	PremiumRealizedPL decimal.NullDecimal `json:"premium_realized_pl"`
	StockRealizedPL   decimal.NullDecimal `json:"stock_realized_pl"`
	UnrealizedPL      decimal.NullDecimal `json:"unrealized_pl"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WheelCycle summarises every position sharing a cycle name.
type WheelCycle struct {
	Name                  string          `json:"name"`
	TotalPositions        int             `json:"total_positions"`
	OpenPositions         int             `json:"open_positions"`
	ClosedPositions       int             `json:"closed_positions"`
	AssignedPositions     int             `json:"assigned_positions"`
	RealizedPL            decimal.Decimal `json:"realized_pl"`
	UnrealizedPL          decimal.Decimal `json:"unrealized_pl"`
	TotalPL               decimal.Decimal `json:"total_pl"`
	TotalPremiumCollected decimal.Decimal `json:"total_premium_collected"`
	Status                CycleStatus     `json:"status"`
	FirstOpenDate         time.Time       `json:"first_open_date"`
	LastActivityDate      time.Time       `json:"last_activity_date"`
}

type CycleStatus string

const (
	CycleActive    CycleStatus = "active"
	CycleCompleted CycleStatus = "completed"
)

// PortfolioMetrics is a point-in-time snapshot over all positions. Never persisted.
type PortfolioMetrics struct {
	TotalPositions    int `json:"total_positions"`
	OpenPositions     int `json:"open_positions"`
	ClosedPositions   int `json:"closed_positions"`
	AssignedPositions int `json:"assigned_positions"`

	RealizedPL        decimal.Decimal `json:"realized_pl"`
	PremiumRealizedPL decimal.Decimal `json:"premium_realized_pl"`
	StockRealizedPL   decimal.Decimal `json:"stock_realized_pl"`

	UnrealizedPL        decimal.Decimal `json:"unrealized_pl"`
	PremiumUnrealizedPL decimal.Decimal `json:"premium_unrealized_pl"`
	StockUnrealizedPL   decimal.Decimal `json:"stock_unrealized_pl"`

	OpenPremiumCollected   decimal.Decimal `json:"open_premium_collected"`
	ClosedPremiumCollected decimal.Decimal `json:"closed_premium_collected"`
	TotalPremiumCollected  decimal.Decimal `json:"total_premium_collected"`

	CapitalAllocated decimal.Decimal `json:"capital_allocated"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	TotalPL          decimal.Decimal `json:"total_pl"`
}

// PositionFilter narrows a position listing. Zero values match everything.
type PositionFilter struct {
	Ticker     string // substring, compared uppercase
	OptionType OptionType
	Status     PositionStatus
}
