package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/positions"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = "1.1"

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
)

// State is the on-disk document.
type State struct {
	Version   string                     `json:"version"`
	Positions []models.Position          `json:"positions"`
	Settings  map[string]json.RawMessage `json:"settings,omitempty"`
}

// FileStore keeps the state in memory and writes the whole document through on
// every mutation. It serves as both the position record store and the settings KV.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	state State
}

// Open loads path, creating a template when it does not exist and migrating
// older schemas in place.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("State file %s missing, generating template...", path)
		s.state = State{Version: CurrentVersion, Positions: []models.Position{}, Settings: map[string]json.RawMessage{}}
		if err := writeState(path, s.state); err != nil {
			return nil, err
		}
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &s.state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if s.state.Positions == nil {
		s.state.Positions = []models.Position{}
	}
	if s.state.Settings == nil {
		s.state.Settings = map[string]json.RawMessage{}
	}

	if migrateState(&s.state) {
		log.Printf("INFO: State migrated to version %s. Saving...", s.state.Version)
		if err := writeState(path, s.state); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// migrateState returns true when the document changed and must be saved.
func migrateState(s *State) bool {
	updated := false

	// 1.0 -> 1.1: status and P/L become derived fields, cycles get a name.
	if s.Version < "1.1" {
		log.Printf("INFO: Migrating State Schema from %q to 1.1", s.Version)
		for i := range s.Positions {
			p := s.Positions[i]
			p.Ticker = strings.ToUpper(p.Ticker)
			if p.WheelCycleName == "" {
				p.WheelCycleName = p.Ticker
			}
			s.Positions[i] = positions.Recalculate(p)
		}
		s.Version = "1.1"
		updated = true
	}

	return updated
}

// Insert adds p. The id must be set and unused.
func (s *FileStore) Insert(_ context.Context, p *models.Position) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: position id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(p.ID) >= 0 {
		return fmt.Errorf("%w: position %s", ErrDuplicateKey, p.ID)
	}
	next := s.state
	next.Positions = append(append([]models.Position(nil), s.state.Positions...), *p)
	return s.commitLocked(next)
}

// Get returns a copy of the stored position.
func (s *FileStore) Get(_ context.Context, id string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	p := s.state.Positions[i]
	return &p, nil
}

// Update replaces the stored record with the same id.
func (s *FileStore) Update(_ context.Context, p *models.Position) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: position id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(p.ID)
	if i < 0 {
		return fmt.Errorf("%w: position %s", ErrNotFound, p.ID)
	}
	next := s.state
	next.Positions = append([]models.Position(nil), s.state.Positions...)
	next.Positions[i] = *p
	return s.commitLocked(next)
}

// Delete removes the record with id.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	next := s.state
	next.Positions = make([]models.Position, 0, len(s.state.Positions)-1)
	next.Positions = append(next.Positions, s.state.Positions[:i]...)
	next.Positions = append(next.Positions, s.state.Positions[i+1:]...)
	return s.commitLocked(next)
}

// List returns matching positions ordered by open date ascending.
func (s *FileStore) List(_ context.Context, filter models.PositionFilter) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticker := strings.ToUpper(filter.Ticker)
	out := make([]models.Position, 0, len(s.state.Positions))
	for _, p := range s.state.Positions {
		if ticker != "" && !strings.Contains(strings.ToUpper(p.Ticker), ticker) {
			continue
		}
		if filter.OptionType != "" && p.OptionType != filter.OptionType {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenDate.Before(out[j].OpenDate)
	})
	return out, nil
}

// GetSetting returns the raw blob stored under key.
func (s *FileStore) GetSetting(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.state.Settings[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// PutSetting stores value under key. value must be valid JSON.
func (s *FileStore) PutSetting(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("%w: setting %s is not valid JSON", ErrInvalidInput, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	next.Settings = make(map[string]json.RawMessage, len(s.state.Settings)+1)
	for k, v := range s.state.Settings {
		next.Settings[k] = v
	}
	next.Settings[key] = append(json.RawMessage(nil), value...)
	return s.commitLocked(next)
}

// Settings adapts the store to a Get/Put key-value interface.
func (s *FileStore) Settings() *SettingsKV {
	return &SettingsKV{store: s}
}

// SettingsKV exposes the settings map of a FileStore.
type SettingsKV struct {
	store *FileStore
}

func (kv *SettingsKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return kv.store.GetSetting(ctx, key)
}

func (kv *SettingsKV) Put(ctx context.Context, key string, value []byte) error {
	return kv.store.PutSetting(ctx, key, value)
}

func (s *FileStore) indexLocked(id string) int {
	for i := range s.state.Positions {
		if s.state.Positions[i].ID == id {
			return i
		}
	}
	return -1
}

// commitLocked persists next and only then swaps it in, so a failed write leaves
// the in-memory state matching the file.
func (s *FileStore) commitLocked(next State) error {
	if err := writeState(s.path, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// writeState writes atomically: temp file, fsync, rename.
func writeState(path string, st State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpFile := path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	// Sync before rename so a crash cannot leave a truncated document behind.
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp state file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
