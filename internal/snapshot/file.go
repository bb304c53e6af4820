// Package snapshot persists engine snapshots to a local JSON file.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"smartpool/internal/model"
)

// FileStore reads and writes one snapshot file. Writes go to a temp file
// that is renamed over the target.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

// Load returns the stored snapshot; ok is false when the file does not exist.
func (f *FileStore) Load() (model.Snapshot, bool, error) {
	if f.path == "" {
		return model.Snapshot{}, false, nil
	}

	stat, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return model.Snapshot{}, false, fmt.Errorf("snapshot path is a directory")
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

func (f *FileStore) Save(snap model.Snapshot) error {
	if f.path == "" {
		return fmt.Errorf("snapshot path required")
	}

	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadPoolState reads an on-chain pool state written by the inspect command.
func LoadPoolState(path string) (model.PoolState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("read pool state: %w", err)
	}
	var state model.PoolState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool state: %w", err)
	}
	return state, nil
}
