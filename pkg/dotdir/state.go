package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	stateFile = "memorize.json"
)

// MemorizeState records the last transcript processed by the memorize
// command so it can be re-run without arguments.
type MemorizeState struct {
	// TranscriptPath is the path of the most recently processed transcript.
	TranscriptPath string `json:"transcript_path"`

	// ProcessedAt is when the transcript was last processed.
	ProcessedAt time.Time `json:"processed_at"`

	// Stored and Skipped count the outcomes of the last run.
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// LoadMemorizeState loads the memorize state from a target .engram/memorize.json.
// Returns nil, nil if no state exists.
// If overrideDir is non-empty, it is used instead of the default ~/.engram/ location.
func (m *Manager) LoadMemorizeState(overrideDir string) (*MemorizeState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, nil
	}

	path := filepath.Join(dir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading memorize state: %w", err)
	}

	state := &MemorizeState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing memorize state: %w", err)
	}

	return state, nil
}

// SaveMemorizeState persists the memorize state to a target .engram/memorize.json.
func (m *Manager) SaveMemorizeState(state *MemorizeState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil memorize state")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling memorize state: %w", err)
	}

	path := filepath.Join(dir, stateFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing memorize state: %w", err)
	}

	return nil
}

// ClearMemorizeState removes the memorize state file.
// Returns nil if the file doesn't exist.
func (m *Manager) ClearMemorizeState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return nil
	}

	path := filepath.Join(dir, stateFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing memorize state: %w", err)
	}

	return nil
}
