// Package strategy holds the user's alert thresholds and the time-boxed
// dismissal list, persisted as one blob behind a key-value port.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
)

// ConfigKey is the logical key the configuration blob is stored under.
const ConfigKey = "wheel-strategy-config"

var (
	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrInvalidThreshold = errors.New("invalid threshold")
)

// KV is the persistence port. Get reports found=false when the key was never written.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store reads the blob fresh on every call and writes the whole structure back on
// every mutation. Concurrent writers from other processes resolve last-write-wins.
type Store struct {
	mu  sync.Mutex
	kv  KV
	now func() time.Time
}

// NewStore returns a store over kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Config returns the current configuration with expired dismissals swept.
func (s *Store) Config(ctx context.Context) models.UserStrategyConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.loadLocked(ctx)
	return cfg.Clone()
}

// Thresholds returns the thresholds of the active strategy.
func (s *Store) Thresholds(ctx context.Context) models.StrategyThresholds {
	return s.Config(ctx).Thresholds()
}

// Dismissed returns the current dismissal set.
func (s *Store) Dismissed(ctx context.Context) map[string]bool {
	cfg := s.Config(ctx)
	out := make(map[string]bool, len(cfg.DismissedAlerts))
	for _, id := range cfg.DismissedAlerts {
		out[id] = true
	}
	return out
}

// SetStrategy switches between the standard and custom thresholds.
func (s *Store) SetStrategy(ctx context.Context, name models.StrategyName) error {
	if name != models.StrategyStandard && name != models.StrategyCustom {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s.mutate(ctx, func(cfg *models.UserStrategyConfig) {
		cfg.ActiveStrategy = name
	})
}

// SetCustomThresholds stores custom percentages and activates the custom strategy.
func (s *Store) SetCustomThresholds(ctx context.Context, roll, close decimal.Decimal) error {
	if err := ValidateThresholds(roll, close); err != nil {
		return err
	}
	return s.mutate(ctx, func(cfg *models.UserStrategyConfig) {
		cfg.ActiveStrategy = models.StrategyCustom
		cfg.CustomRollThreshold = roll
		cfg.CustomCloseThreshold = close
	})
}

// Update applies an optional strategy switch and optional custom thresholds in one
// write. Everything is validated before anything is stored, so a rejected request
// leaves the config untouched. Supplying a threshold activates the custom strategy
// unless name says otherwise.
func (s *Store) Update(ctx context.Context, name models.StrategyName, roll, close decimal.NullDecimal) error {
	if name != "" && name != models.StrategyStandard && name != models.StrategyCustom {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.loadLocked(ctx)
	if roll.Valid || close.Valid {
		if roll.Valid {
			cfg.CustomRollThreshold = roll.Decimal
		}
		if close.Valid {
			cfg.CustomCloseThreshold = close.Decimal
		}
		if err := ValidateThresholds(cfg.CustomRollThreshold, cfg.CustomCloseThreshold); err != nil {
			return err
		}
		cfg.ActiveStrategy = models.StrategyCustom
	}
	if name != "" {
		cfg.ActiveStrategy = name
	}
	return s.saveLocked(ctx, cfg)
}

// ValidateThresholds checks roll > 0.5 (so the warning band stays positive) and 0 < close < 100.
func ValidateThresholds(roll, close decimal.Decimal) error {
	if roll.LessThanOrEqual(decimal.New(5, -1)) {
		return fmt.Errorf("%w: roll threshold must be greater than 0.5%%, got %s", ErrInvalidThreshold, roll)
	}
	if close.Sign() <= 0 || close.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: close threshold must be between 0 and 100%%, got %s", ErrInvalidThreshold, close)
	}
	return nil
}

// Dismiss hides alerts for positionID and stamps the time.
func (s *Store) Dismiss(ctx context.Context, positionID string) error {
	now := s.now()
	return s.mutate(ctx, func(cfg *models.UserStrategyConfig) {
		if _, ok := cfg.DismissedAt[positionID]; !ok {
			cfg.DismissedAlerts = append(cfg.DismissedAlerts, positionID)
		}
		cfg.DismissedAt[positionID] = now
	})
}

// Undismiss removes positionID and its timestamp together.
func (s *Store) Undismiss(ctx context.Context, positionID string) error {
	return s.mutate(ctx, func(cfg *models.UserStrategyConfig) {
		removeDismissal(cfg, positionID)
	})
}

// ClearDismissals empties both the id list and the timestamp map.
func (s *Store) ClearDismissals(ctx context.Context) error {
	return s.mutate(ctx, func(cfg *models.UserStrategyConfig) {
		cfg.DismissedAlerts = []string{}
		cfg.DismissedAt = map[string]time.Time{}
	})
}

func (s *Store) mutate(ctx context.Context, fn func(cfg *models.UserStrategyConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.loadLocked(ctx)
	fn(&cfg)
	return s.saveLocked(ctx, cfg)
}

// loadLocked never fails: absent or corrupt content falls back to defaults.
func (s *Store) loadLocked(ctx context.Context) models.UserStrategyConfig {
	raw, found, err := s.kv.Get(ctx, ConfigKey)
	if err != nil {
		log.Printf("WARN: strategy config unreadable, using defaults: %v", err)
		return models.DefaultStrategyConfig()
	}
	if !found {
		return models.DefaultStrategyConfig()
	}

	cfg := models.DefaultStrategyConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		log.Printf("WARN: strategy config corrupt, using defaults: %v", err)
		return models.DefaultStrategyConfig()
	}
	normalize(&cfg)

	if purged := purgeExpired(&cfg, s.now()); purged > 0 {
		log.Printf("Strategy config: %d dismissal(s) expired", purged)
		if err := s.saveLocked(ctx, cfg); err != nil {
			log.Printf("WARN: could not persist dismissal sweep: %v", err)
		}
	}
	return cfg
}

func (s *Store) saveLocked(ctx context.Context, cfg models.UserStrategyConfig) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal strategy config: %w", err)
	}
	if err := s.kv.Put(ctx, ConfigKey, b); err != nil {
		return fmt.Errorf("save strategy config: %w", err)
	}
	return nil
}

// normalize repairs a decoded blob: unknown strategy falls back to standard, and the
// dismissal list and timestamp map are reduced to the ids present in both.
func normalize(cfg *models.UserStrategyConfig) {
	if cfg.ActiveStrategy != models.StrategyStandard && cfg.ActiveStrategy != models.StrategyCustom {
		cfg.ActiveStrategy = models.StrategyStandard
	}
	if ValidateThresholds(cfg.CustomRollThreshold, cfg.CustomCloseThreshold) != nil {
		cfg.CustomRollThreshold = models.DefaultRollThreshold
		cfg.CustomCloseThreshold = models.DefaultCloseThreshold
	}
	if cfg.DismissedAt == nil {
		cfg.DismissedAt = map[string]time.Time{}
	}

	listed := make(map[string]bool, len(cfg.DismissedAlerts))
	ids := make([]string, 0, len(cfg.DismissedAlerts))
	for _, id := range cfg.DismissedAlerts {
		if _, ok := cfg.DismissedAt[id]; ok && !listed[id] {
			listed[id] = true
			ids = append(ids, id)
		}
	}
	for id := range cfg.DismissedAt {
		if !listed[id] {
			delete(cfg.DismissedAt, id)
		}
	}
	cfg.DismissedAlerts = ids
}

// purgeExpired drops dismissals older than the retention window from both
// structures and returns how many were removed.
func purgeExpired(cfg *models.UserStrategyConfig, now time.Time) int {
	var expired []string
	for _, id := range cfg.DismissedAlerts {
		if now.Sub(cfg.DismissedAt[id]) > models.DismissalRetention {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		removeDismissal(cfg, id)
	}
	return len(expired)
}

func removeDismissal(cfg *models.UserStrategyConfig, id string) {
	delete(cfg.DismissedAt, id)
	kept := cfg.DismissedAlerts[:0]
	for _, existing := range cfg.DismissedAlerts {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	cfg.DismissedAlerts = kept
}
