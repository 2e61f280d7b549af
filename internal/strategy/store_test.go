package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
)

type memKV struct {
	data map[string][]byte
	puts int
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte) error {
	m.puts++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func newTestStore(kv *memKV, now time.Time) *Store {
	s := NewStore(kv)
	s.now = func() time.Time { return now }
	return s
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestConfig_DefaultsOnFirstRun(t *testing.T) {
	s := newTestStore(newMemKV(), t0)

	cfg := s.Config(context.Background())

	if cfg.ActiveStrategy != models.StrategyStandard {
		t.Errorf("Expected standard strategy, got %s", cfg.ActiveStrategy)
	}
	th := cfg.Thresholds()
	if !th.RollThreshold.Equal(decimal.NewFromInt(3)) || !th.CloseThreshold.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Unexpected default thresholds: %+v", th)
	}
	if len(cfg.DismissedAlerts) != 0 || len(cfg.DismissedAt) != 0 {
		t.Errorf("Expected empty dismissals")
	}
}

func TestConfig_CorruptBlobFallsBack(t *testing.T) {
	kv := newMemKV()
	kv.data[ConfigKey] = []byte("{not json")
	s := newTestStore(kv, t0)

	cfg := s.Config(context.Background())

	if cfg.ActiveStrategy != models.StrategyStandard {
		t.Errorf("Expected defaults on corrupt content, got %+v", cfg)
	}
}

func TestDismiss_PersistsImmediately(t *testing.T) {
	kv := newMemKV()
	s := newTestStore(kv, t0)
	ctx := context.Background()

	if err := s.Dismiss(ctx, "p1"); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}

	var stored models.UserStrategyConfig
	if err := json.Unmarshal(kv.data[ConfigKey], &stored); err != nil {
		t.Fatalf("Stored blob unreadable: %v", err)
	}
	if len(stored.DismissedAlerts) != 1 || stored.DismissedAlerts[0] != "p1" {
		t.Errorf("Expected p1 dismissed, got %v", stored.DismissedAlerts)
	}
	if !stored.DismissedAt["p1"].Equal(t0) {
		t.Errorf("Expected timestamp %v, got %v", t0, stored.DismissedAt["p1"])
	}

	// Dismissing twice keeps one entry.
	if err := s.Dismiss(ctx, "p1"); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}
	if got := s.Config(ctx).DismissedAlerts; len(got) != 1 {
		t.Errorf("Expected single entry, got %v", got)
	}
}

func TestUndismissAndClear(t *testing.T) {
	s := newTestStore(newMemKV(), t0)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Dismiss(ctx, id); err != nil {
			t.Fatalf("Dismiss failed: %v", err)
		}
	}

	if err := s.Undismiss(ctx, "b"); err != nil {
		t.Fatalf("Undismiss failed: %v", err)
	}
	cfg := s.Config(ctx)
	if len(cfg.DismissedAlerts) != 2 || len(cfg.DismissedAt) != 2 {
		t.Fatalf("Expected 2 dismissals, got %v / %v", cfg.DismissedAlerts, cfg.DismissedAt)
	}
	if _, ok := cfg.DismissedAt["b"]; ok {
		t.Errorf("Timestamp for b survived undismiss")
	}

	if err := s.ClearDismissals(ctx); err != nil {
		t.Fatalf("ClearDismissals failed: %v", err)
	}
	cfg = s.Config(ctx)
	if len(cfg.DismissedAlerts) != 0 || len(cfg.DismissedAt) != 0 {
		t.Errorf("Expected no dismissals after clear")
	}
}

func TestExpirySweep(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()

	old := newTestStore(kv, t0.Add(-25*time.Hour))
	if err := old.Dismiss(ctx, "stale"); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}
	recent := newTestStore(kv, t0.Add(-1*time.Hour))
	if err := recent.Dismiss(ctx, "fresh"); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}

	s := newTestStore(kv, t0)
	dismissed := s.Dismissed(ctx)

	if dismissed["stale"] {
		t.Errorf("Dismissal from 25h ago should have expired")
	}
	if !dismissed["fresh"] {
		t.Errorf("Dismissal from 1h ago should still be present")
	}

	var stored models.UserStrategyConfig
	if err := json.Unmarshal(kv.data[ConfigKey], &stored); err != nil {
		t.Fatalf("Stored blob unreadable: %v", err)
	}
	if _, ok := stored.DismissedAt["stale"]; ok {
		t.Errorf("Sweep was not persisted")
	}
	if len(stored.DismissedAlerts) != len(stored.DismissedAt) {
		t.Errorf("List and map out of sync: %v vs %v", stored.DismissedAlerts, stored.DismissedAt)
	}
}

func TestNormalize_RepairsMismatchedDismissals(t *testing.T) {
	kv := newMemKV()
	kv.data[ConfigKey] = []byte(`{
		"active_strategy": "custom",
		"custom_roll_threshold": "4",
		"custom_close_threshold": "60",
		"dismissed_alerts": ["listed-only", "both"],
		"dismissed_at": {"both": "2024-06-01T11:00:00Z", "map-only": "2024-06-01T11:00:00Z"}
	}`)
	s := newTestStore(kv, t0)

	cfg := s.Config(context.Background())

	if len(cfg.DismissedAlerts) != 1 || cfg.DismissedAlerts[0] != "both" {
		t.Errorf("Expected only 'both' to survive, got %v", cfg.DismissedAlerts)
	}
	if len(cfg.DismissedAt) != 1 {
		t.Errorf("Expected one timestamp, got %v", cfg.DismissedAt)
	}
	th := cfg.Thresholds()
	if !th.RollThreshold.Equal(decimal.NewFromInt(4)) || !th.CloseThreshold.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected custom thresholds 4/60, got %+v", th)
	}
}

func TestSetCustomThresholds(t *testing.T) {
	s := newTestStore(newMemKV(), t0)
	ctx := context.Background()

	if err := s.SetCustomThresholds(ctx, decimal.NewFromInt(5), decimal.NewFromInt(50)); err != nil {
		t.Fatalf("SetCustomThresholds failed: %v", err)
	}
	th := s.Thresholds(ctx)
	if !th.RollThreshold.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected roll 5, got %s", th.RollThreshold)
	}

	err := s.SetCustomThresholds(ctx, decimal.NewFromInt(5), decimal.NewFromInt(100))
	if !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("Expected ErrInvalidThreshold, got %v", err)
	}

	if err := s.SetStrategy(ctx, models.StrategyStandard); err != nil {
		t.Fatalf("SetStrategy failed: %v", err)
	}
	if th := s.Thresholds(ctx); !th.RollThreshold.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected standard roll 3 after switching back, got %s", th.RollThreshold)
	}
	if err := s.SetStrategy(ctx, "aggressive"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy, got %v", err)
	}
}

func TestUpdate_RejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := newTestStore(kv, t0)
	nine := decimal.NullDecimal{Decimal: decimal.NewFromInt(9), Valid: true}
	fifty := decimal.NullDecimal{Decimal: decimal.NewFromInt(50), Valid: true}

	if err := s.Update(ctx, "bogus", nine, fifty); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("Expected ErrUnknownStrategy, got %v", err)
	}
	hundred := decimal.NullDecimal{Decimal: decimal.NewFromInt(100), Valid: true}
	if err := s.Update(ctx, models.StrategyCustom, nine, hundred); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("Expected ErrInvalidThreshold, got %v", err)
	}
	if kv.puts != 0 {
		t.Errorf("Rejected updates wrote the config %d time(s)", kv.puts)
	}

	if err := s.Update(ctx, "", nine, decimal.NullDecimal{}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	cfg := s.Config(ctx)
	if cfg.ActiveStrategy != models.StrategyCustom || !cfg.CustomRollThreshold.Equal(nine.Decimal) ||
		!cfg.CustomCloseThreshold.Equal(models.DefaultCloseThreshold) {
		t.Errorf("Expected custom 9/75, got %+v", cfg)
	}
	if kv.puts != 1 {
		t.Errorf("Expected a single write, got %d", kv.puts)
	}
}
