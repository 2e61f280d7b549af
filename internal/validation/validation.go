// Package validation turns raw user input (form fields, command arguments, JSON
// bodies) into typed positions and patches, collecting every field problem.
package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/positions"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

const (
	maxTickerLen = 10
	maxNotesLen  = 1000
)

// FieldError is one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error carries every field problem found in one input.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the message for field, or "".
func (e *Error) Field(name string) string {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message
		}
	}
	return ""
}

var requiredOnCreate = []string{
	"ticker", "option_type", "strike", "premium", "contracts", "open_date", "expiration_date",
}

var knownFields = map[string]bool{
	"ticker": true, "wheel_cycle_name": true, "option_type": true, "contracts": true,
	"strike": true, "premium": true, "open_date": true, "expiration_date": true,
	"close_date": true, "premium_paid_to_close": true, "open_fees": true, "close_fees": true,
	"assigned": true, "stock_owned": true, "stock_cost_basis": true, "stock_quantity": true,
	"stock_acquired_date": true, "stock_sale_date": true, "stock_sale_price": true, "notes": true,
}

// ParseCreate validates a complete new position. Optional fields may be absent or empty.
func ParseCreate(raw map[string]string) (models.Position, error) {
	c := newCollector(raw)
	for _, f := range requiredOnCreate {
		if strings.TrimSpace(raw[f]) == "" {
			c.fail(f, "is required")
		}
	}

	pt := c.patch()
	if len(c.errs) > 0 {
		return models.Position{}, &Error{Fields: c.errs}
	}

	p := positions.Merge(models.Position{}, pt)
	if err := CheckPosition(p); err != nil {
		return models.Position{}, err
	}
	return p, nil
}

// ParsePatch validates a partial update. Only present keys are applied; an empty
// value clears an optional field and is rejected for a required one.
func ParsePatch(raw map[string]string) (positions.Patch, error) {
	c := newCollector(raw)
	for _, f := range requiredOnCreate {
		if v, ok := raw[f]; ok && strings.TrimSpace(v) == "" {
			c.fail(f, "cannot be cleared")
		}
	}

	pt := c.patch()
	if pt.OpenDate != nil && pt.ExpirationDate != nil && pt.ExpirationDate.Before(*pt.OpenDate) {
		c.fail("expiration_date", "must not be before open_date")
	}
	if pt.OpenDate != nil && pt.CloseDate != nil && pt.CloseDate.Valid && pt.CloseDate.Time.Before(*pt.OpenDate) {
		c.fail("close_date", "must not be before open_date")
	}
	if len(c.errs) > 0 {
		return positions.Patch{}, &Error{Fields: c.errs}
	}
	if pt.IsEmpty() {
		return positions.Patch{}, &Error{Fields: []FieldError{{Field: "patch", Message: "no fields to update"}}}
	}
	return pt, nil
}

// CheckPosition applies the cross-field rules to a complete (possibly merged) record.
func CheckPosition(p models.Position) error {
	var errs []FieldError
	if p.ExpirationDate.Before(p.OpenDate) {
		errs = append(errs, FieldError{"expiration_date", "must not be before open_date"})
	}
	if p.CloseDate != nil && p.CloseDate.Before(p.OpenDate) {
		errs = append(errs, FieldError{"close_date", "must not be before open_date"})
	}
	if p.StockSaleDate != nil && p.StockAcquiredDate != nil && p.StockSaleDate.Before(*p.StockAcquiredDate) {
		errs = append(errs, FieldError{"stock_sale_date", "must not be before stock_acquired_date"})
	}
	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

type collector struct {
	raw  map[string]string
	errs []FieldError
}

func newCollector(raw map[string]string) *collector {
	c := &collector{raw: raw}
	var unknown []string
	for k := range raw {
		if !knownFields[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		c.fail(k, "unknown field")
	}
	return c
}

func (c *collector) fail(field, msg string) {
	for _, f := range c.errs {
		if f.Field == field {
			return
		}
	}
	c.errs = append(c.errs, FieldError{Field: field, Message: msg})
}

// lookup returns the trimmed value and whether the key was supplied at all.
func (c *collector) lookup(field string) (string, bool) {
	v, ok := c.raw[field]
	return strings.TrimSpace(v), ok
}

func (c *collector) patch() positions.Patch {
	var pt positions.Patch

	if v, ok := c.lookup("ticker"); ok && v != "" {
		v = strings.ToUpper(v)
		if utf8.RuneCountInString(v) > maxTickerLen {
			c.fail("ticker", fmt.Sprintf("must be at most %d characters", maxTickerLen))
		}
		pt.Ticker = &v
	}
	if v, ok := c.lookup("wheel_cycle_name"); ok {
		pt.WheelCycleName = &v
	}
	if v, ok := c.lookup("option_type"); ok && v != "" {
		t := models.OptionType(strings.ToLower(v))
		if !t.Valid() {
			c.fail("option_type", "must be put or call")
		}
		pt.OptionType = &t
	}
	if v, ok := c.lookup("contracts"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.fail("contracts", "must be a whole number greater than 0")
		}
		pt.Contracts = &n
	}

	pt.Strike = c.amount("strike", true)
	pt.Premium = c.amount("premium", false)
	pt.OpenDate = c.date("open_date")
	pt.ExpirationDate = c.date("expiration_date")
	pt.CloseDate = c.nullDate("close_date")

	pt.PremiumPaidToClose = c.nullAmount("premium_paid_to_close")
	pt.OpenFees = c.nullAmount("open_fees")
	pt.CloseFees = c.nullAmount("close_fees")

	pt.Assigned = c.flag("assigned")
	pt.StockOwned = c.flag("stock_owned")
	pt.StockCostBasis = c.nullAmount("stock_cost_basis")
	pt.StockQuantity = c.nullAmount("stock_quantity")
	pt.StockAcquiredDate = c.nullDate("stock_acquired_date")
	pt.StockSaleDate = c.nullDate("stock_sale_date")
	pt.StockSalePrice = c.nullAmount("stock_sale_price")

	if v, ok := c.lookup("notes"); ok {
		if utf8.RuneCountInString(v) > maxNotesLen {
			c.fail("notes", fmt.Sprintf("must be at most %d characters", maxNotesLen))
		}
		pt.Notes = &v
	}
	return pt
}

// amount parses a required decimal. positive demands > 0, otherwise >= 0.
func (c *collector) amount(field string, positive bool) *decimal.Decimal {
	v, ok := c.lookup(field)
	if !ok || v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		c.fail(field, "must be a number")
		return nil
	}
	if positive && d.Sign() <= 0 {
		c.fail(field, "must be greater than 0")
	} else if d.Sign() < 0 {
		c.fail(field, "must not be negative")
	}
	return &d
}

// nullAmount parses an optional non-negative decimal; "" clears it.
func (c *collector) nullAmount(field string) *decimal.NullDecimal {
	v, ok := c.lookup(field)
	if !ok {
		return nil
	}
	if v == "" {
		return &decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		c.fail(field, "must be a number")
		return nil
	}
	if d.Sign() < 0 {
		c.fail(field, "must not be negative")
	}
	return &decimal.NullDecimal{Decimal: d, Valid: true}
}

func (c *collector) date(field string) *time.Time {
	v, ok := c.lookup(field)
	if !ok || v == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		c.fail(field, "must be a date like 2024-01-31")
		return nil
	}
	return &t
}

func (c *collector) nullDate(field string) *positions.NullTime {
	v, ok := c.lookup(field)
	if !ok {
		return nil
	}
	if v == "" {
		return &positions.NullTime{}
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		c.fail(field, "must be a date like 2024-01-31")
		return nil
	}
	return &positions.NullTime{Time: t, Valid: true}
}

func (c *collector) flag(field string) *bool {
	v, ok := c.lookup(field)
	if !ok {
		return nil
	}
	if v == "" {
		b := false
		return &b
	}
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		v = "true"
	case "no", "n", "off":
		v = "false"
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.fail(field, "must be true or false")
		return nil
	}
	return &b
}
