package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"quote-observer/src/analysis"
	"quote-observer/src/analysis/core"
	"quote-observer/src/logger"
	"quote-observer/src/models"
)

// StateVersion tags the on-disk layout so an incompatible file is rejected
// instead of being misread.
const StateVersion = 1

// sumTolerance bounds the allowed disagreement between persisted running sums
// and a from-scratch recomputation when restoring a window.
const sumTolerance = 1e-6

// -----------------------------------------------------------------------------

// StateStore persists the full StateMap plus the high-water mark as a single
// JSON file, written atomically (temp file + rename).
type StateStore struct {
	Path       string
	WindowSize int
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewStateStore(cfg *models.MConfig, log *logger.Logger) *StateStore {
	return &StateStore{
		Path:       cfg.Engine.StatePath,
		WindowSize: cfg.Engine.WindowSize,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

// Load reconstructs the StateMap and high-water mark from the state file.
// A missing file is a cold start and yields an empty map; a file that exists
// but cannot be decoded or fails structural checks is a hard error, since
// silently starting empty would poison every window spanning the batch
// boundary.
func (s *StateStore) Load() (analysis.StateMap, int64, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Logger.Info("No state file at %s, cold start", s.Path)
			return make(analysis.StateMap), 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read state file '%s': %w", s.Path, err)
	}

	var persisted models.MCalcState
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, 0, fmt.Errorf("state file '%s' is not valid JSON: %w", s.Path, err)
	}

	if persisted.Version != StateVersion {
		return nil, 0, fmt.Errorf("state file '%s' has version %d, expected %d", s.Path, persisted.Version, StateVersion)
	}
	if persisted.WindowSize != s.WindowSize {
		return nil, 0, fmt.Errorf("state file '%s' was written with window size %d, configured size is %d",
			s.Path, persisted.WindowSize, s.WindowSize)
	}

	states := make(analysis.StateMap, len(persisted.Entities))
	for id, entity := range persisted.Entities {
		restored, err := s.restoreEntity(entity)
		if err != nil {
			return nil, 0, fmt.Errorf("state file '%s' entity '%s': %w", s.Path, id, err)
		}
		states[id] = restored
	}

	s.Logger.Info("Restored state for %d securities (high-water mark %d)", len(states), persisted.HighWaterMark)
	return states, persisted.HighWaterMark, nil
}

// -----------------------------------------------------------------------------

// Save serializes the StateMap. The file is written to a temporary sibling and
// renamed into place, so a crash mid-write leaves either the previous state or
// the new one, never a truncated file.
func (s *StateStore) Save(states analysis.StateMap, highWaterMark int64) error {
	persisted := models.MCalcState{
		Version:       StateVersion,
		WindowSize:    s.WindowSize,
		HighWaterMark: highWaterMark,
		SavedAt:       time.Now().UTC(),
		Entities:      make(map[string]models.MEntityState, len(states)),
	}

	for id, state := range states {
		persisted.Entities[id] = models.MEntityState{
			Bid:           windowState(state.Bid),
			Mid:           windowState(state.Mid),
			Ask:           windowState(state.Ask),
			LastTimestamp: state.LastTimestamp,
		}
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".calc_state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file '%s': %w", s.Path, err)
	}

	s.Logger.Info("Saved state for %d securities to %s", len(states), s.Path)
	return nil
}

// -----------------------------------------------------------------------------

// restoreEntity rebuilds one security's windows, cross-checking the persisted
// running sums against a recomputation over the persisted values.
func (s *StateStore) restoreEntity(entity models.MEntityState) (*analysis.EntityState, error) {
	if entity.LastTimestamp <= 0 {
		return nil, fmt.Errorf("invalid last timestamp %d", entity.LastTimestamp)
	}

	restored := analysis.NewEntityState(s.WindowSize)
	fields := []struct {
		name      string
		persisted models.MWindowState
		window    **core.Window
	}{
		{"bid", entity.Bid, &restored.Bid},
		{"mid", entity.Mid, &restored.Mid},
		{"ask", entity.Ask, &restored.Ask},
	}

	for _, f := range fields {
		if len(f.persisted.Values) > s.WindowSize {
			return nil, fmt.Errorf("%s window holds %d values, capacity is %d", f.name, len(f.persisted.Values), s.WindowSize)
		}

		w := core.NewWindowFromValues(s.WindowSize, f.persisted.Values)
		if math.Abs(w.Sum()-f.persisted.Sum) > sumTolerance*(1+math.Abs(f.persisted.Sum)) ||
			math.Abs(w.SumSquares()-f.persisted.SumSquares) > sumTolerance*(1+math.Abs(f.persisted.SumSquares)) {
			return nil, fmt.Errorf("%s window sums disagree with stored values (file corrupt?)", f.name)
		}
		*f.window = w
	}

	restored.LastTimestamp = entity.LastTimestamp
	return restored, nil
}

// -----------------------------------------------------------------------------

func windowState(w *core.Window) models.MWindowState {
	return models.MWindowState{
		Values:     w.Values(),
		Sum:        w.Sum(),
		SumSquares: w.SumSquares(),
	}
}
