package positions

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"wheel_tracker/internal/models"
)

// Store is the record store the service writes through. Implementations return
// storage.ErrNotFound for unknown ids.
type Store interface {
	Insert(ctx context.Context, p *models.Position) error
	Get(ctx context.Context, id string) (*models.Position, error)
	Update(ctx context.Context, p *models.Position) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.PositionFilter) ([]models.Position, error)
}

// Service recomputes derived fields at every write boundary.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
	check func(models.Position) error
}

// NewService wires a service onto store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetCheck installs a rule run against every record right before it is written.
// Update runs it on the merged record, so cross-field rules see the full position.
func (s *Service) SetCheck(fn func(models.Position) error) {
	s.check = fn
}

// Create stores a new position built from already validated fields.
func (s *Service) Create(ctx context.Context, p models.Position) (*models.Position, error) {
	p.ID = s.newID()
	p.Ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
	p = Recalculate(ApplyCreateDefaults(p))
	if s.check != nil {
		if err := s.check(p); err != nil {
			return nil, err
		}
	}

	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.store.Insert(ctx, &p); err != nil {
		return nil, fmt.Errorf("insert position: %w", err)
	}
	log.Printf("Position created: %s %s %s x%d @ %s (%s)",
		p.ID, p.Ticker, p.OptionType, p.Contracts, p.Strike.StringFixed(2), p.Status)
	return &p, nil
}

// Update merges pt into the stored record and recomputes from the merged result,
// so a patch clearing the close date reverts the status.
func (s *Service) Update(ctx context.Context, id string, pt Patch) (*models.Position, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := Merge(*existing, pt)
	merged.Ticker = strings.ToUpper(strings.TrimSpace(merged.Ticker))
	// A cycle name that was only the ticker default follows a ticker change.
	if pt.WheelCycleName == nil && merged.Ticker != existing.Ticker && existing.WheelCycleName == existing.Ticker {
		merged.WheelCycleName = ""
	}
	if merged.StockOwned && !merged.StockQuantity.Valid {
		merged.StockQuantity = Some(contracts(merged).Mul(hundred))
	}
	merged = Recalculate(merged)
	if s.check != nil {
		if err := s.check(merged); err != nil {
			return nil, err
		}
	}
	merged.UpdatedAt = s.now()

	if err := s.store.Update(ctx, &merged); err != nil {
		return nil, fmt.Errorf("update position %s: %w", id, err)
	}
	if existing.Status != merged.Status {
		log.Printf("Position %s (%s): status %s -> %s", id, merged.Ticker, existing.Status, merged.Status)
	}
	return &merged, nil
}

// Delete removes a position.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Get returns one position.
func (s *Service) Get(ctx context.Context, id string) (*models.Position, error) {
	return s.store.Get(ctx, id)
}

// List returns positions matching filter, oldest open date first.
func (s *Service) List(ctx context.Context, filter models.PositionFilter) ([]models.Position, error) {
	filter.Ticker = strings.ToUpper(strings.TrimSpace(filter.Ticker))
	return s.store.List(ctx, filter)
}

// Tickers returns the distinct tickers of positions in any of the given statuses,
// in listing order.
func (s *Service) Tickers(ctx context.Context, statuses ...models.PositionStatus) ([]string, error) {
	all, err := s.store.List(ctx, models.PositionFilter{})
	if err != nil {
		return nil, err
	}
	want := make(map[models.PositionStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	seen := make(map[string]bool)
	var tickers []string
	for _, p := range all {
		if !want[p.Status] || seen[p.Ticker] {
			continue
		}
		seen[p.Ticker] = true
		tickers = append(tickers, p.Ticker)
	}
	return tickers, nil
}
