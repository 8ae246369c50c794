package slots

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a state saved by SaveFile. A missing file yields an empty
// state. The configured capacity replaces the stored one so operators can
// resize between runs; existing slots are never dropped.
func LoadFile(path string, maxSlots int) (State, error) {
	s, err := Init(maxSlots)
	if err != nil {
		return State{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read slot state: %w", err)
	}

	var stored State
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return State{}, fmt.Errorf("parse slot state %s: %w", path, err)
	}
	for _, slot := range stored.Active {
		if slot.TradeID == "" || slot.Symbol == "" {
			return State{}, fmt.Errorf("slot state %s: slot without trade id or symbol", path)
		}
	}
	if stored.Active != nil {
		s.Active = stored.Active
	}
	return s, nil
}

// SaveFile writes the state atomically via a temp file and rename
func SaveFile(path string, s State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode slot state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write slot state: %w", err)
	}
	return os.Rename(tmp, path)
}
