package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"basisd/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// Store holds the append-only opportunity history for one run.
// Appends come from the detector, snapshots from the scheduler; the mutex
// keeps appends safe if per-symbol fetches are ever parallelized.
type Store struct {
	mu      sync.Mutex
	history []model.Opportunity
}

func New() *Store {
	return &Store{}
}

// Append adds opportunities to the history in the order given.
func (s *Store) Append(opps []model.Opportunity) {
	if len(opps) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, opps...)
}

// Len returns the number of recorded opportunities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// History returns a copy of the full history in insertion order.
func (s *Store) History() []model.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Opportunity, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot writes the full history to path as a JSON array, replacing any
// prior snapshot there. Returns the number of records written.
func (s *Store) Snapshot(path string) (int, error) {
	s.mu.Lock()
	history := make([]model.Opportunity, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	b, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	return len(history), nil
}

// Restore replaces the in-memory history with the snapshot at path.
// A missing file is a logged no-op that leaves the history untouched.
func (s *Store) Restore(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no snapshot to restore")
			return 0, nil
		}
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	var history []model.Opportunity
	if err := json.Unmarshal(b, &history); err != nil {
		return 0, fmt.Errorf("parse snapshot: %w", err)
	}

	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
	return len(history), nil
}
