package positions

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"wheel_tracker/internal/models"
)

var errMissing = errors.New("not found")

// memStore is a minimal in-memory Store for service tests.
type memStore struct {
	data map[string]models.Position
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]models.Position)}
}

func (m *memStore) Insert(_ context.Context, p *models.Position) error {
	m.data[p.ID] = *p
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.Position, error) {
	p, ok := m.data[id]
	if !ok {
		return nil, errMissing
	}
	return &p, nil
}

func (m *memStore) Update(_ context.Context, p *models.Position) error {
	if _, ok := m.data[p.ID]; !ok {
		return errMissing
	}
	m.data[p.ID] = *p
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.data[id]; !ok {
		return errMissing
	}
	delete(m.data, id)
	return nil
}

func (m *memStore) List(_ context.Context, f models.PositionFilter) ([]models.Position, error) {
	var out []models.Position
	for _, p := range m.data {
		if f.Ticker != "" && !strings.Contains(p.Ticker, f.Ticker) {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenDate.Before(out[j].OpenDate) })
	return out, nil
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	svc := NewService(store)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	svc.newID = func() string {
		n++
		return "pos-" + string(rune('0'+n))
	}
	return svc, store
}

func TestService_CreateNormalizesAndDerives(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	in := basePut()
	in.Ticker = " xyz "
	in.StockOwned = true

	created, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID != "pos-1" {
		t.Errorf("Expected generated id pos-1, got %s", created.ID)
	}
	if created.Ticker != "XYZ" {
		t.Errorf("Expected ticker XYZ, got %q", created.Ticker)
	}
	if created.Status != models.StatusOpen {
		t.Errorf("Expected open, got %s", created.Status)
	}
	if !created.StockQuantity.Decimal.Equal(d("100")) {
		t.Errorf("Expected default stock quantity 100, got %s", created.StockQuantity.Decimal)
	}
	if _, ok := store.data["pos-1"]; !ok {
		t.Errorf("Position not persisted")
	}
}

func TestService_UpdateRecomputesFromMergedRecord(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, basePut())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 1. Close with a partial patch: only close-related fields supplied.
	paid := nd("0.50")
	fees := nd("1")
	closed := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Update(ctx, created.ID, Patch{
		CloseDate:          &NullTime{Time: closed, Valid: true},
		PremiumPaidToClose: &paid,
		CloseFees:          &fees,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != models.StatusClosed {
		t.Fatalf("Expected closed, got %s", updated.Status)
	}
	// Strike, premium and open fees come from the stored record.
	if !updated.RealizedPL.Decimal.Equal(d("148")) {
		t.Errorf("Expected realized 148, got %s", updated.RealizedPL.Decimal)
	}

	// 2. Clearing the close date reverts to open.
	reverted, err := svc.Update(ctx, created.ID, Patch{CloseDate: &NullTime{}})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if reverted.Status != models.StatusOpen {
		t.Errorf("Expected open after clearing close date, got %s", reverted.Status)
	}
	if reverted.RealizedPL.Valid {
		t.Errorf("Expected realized P/L cleared after revert")
	}
}

func TestService_UpdateTickerRenamesDefaultCycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, basePut())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	renamed := "abc"
	updated, err := svc.Update(ctx, created.ID, Patch{Ticker: &renamed})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Ticker != "ABC" || updated.WheelCycleName != "ABC" {
		t.Errorf("Expected ticker and cycle ABC, got %q / %q", updated.Ticker, updated.WheelCycleName)
	}

	// An explicit cycle name sticks through later ticker changes.
	cycle := "Spring ABC"
	if _, err := svc.Update(ctx, created.ID, Patch{WheelCycleName: &cycle}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	again := "DEF"
	updated, err = svc.Update(ctx, created.ID, Patch{Ticker: &again})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.WheelCycleName != cycle {
		t.Errorf("Expected custom cycle name kept, got %q", updated.WheelCycleName)
	}
}

func TestService_UpdateUnknownID(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), "missing", Patch{})
	if !errors.Is(err, errMissing) {
		t.Errorf("Expected store not-found error, got %v", err)
	}
}

func TestService_Tickers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, tk := range []string{"AAA", "BBB", "AAA"} {
		p := basePut()
		p.Ticker = tk
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tickers, err := svc.Tickers(ctx, models.StatusOpen)
	if err != nil {
		t.Fatalf("Tickers failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Errorf("Expected 2 distinct tickers, got %v", tickers)
	}
}
