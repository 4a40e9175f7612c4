package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// namespaceKey is the top-level key the persisted slices live under in the
// state file.
const namespaceKey = "root"

// persistence loads and saves the durable slices with an atomic
// write-then-rename.
type persistence struct {
	path string
}

func (p *persistence) load() (*Snapshot, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var file map[string]Snapshot
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	snap, ok := file[namespaceKey]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (p *persistence) save(snap Snapshot) error {
	data, err := json.MarshalIndent(map[string]Snapshot{namespaceKey: snap}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
