package portfolio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSource is a YAML trade book read from disk on every call. A missing
// file is an empty book; Insert creates it.
type FileSource struct {
	path string
	mu   sync.Mutex // serializes read-modify-write
}

// NewFileSource creates a file-backed Book and Ledger
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Snapshot loads and validates the snapshot
func (f *FileSource) Snapshot(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{Version: SchemaVersion, Trades: []Trade{}}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read trade book: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse trade book %s: %w", f.path, err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Trades implements Source
func (f *FileSource) Trades(ctx context.Context) ([]Trade, error) {
	snap, err := f.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Trades, nil
}

// HasPosition reports whether symbol is open or was closed in this book
func (f *FileSource) HasPosition(ctx context.Context, symbol string) (bool, error) {
	snap, err := f.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range append(snap.Trades, snap.Closed...) {
		if t.Symbol == symbol {
			return true, nil
		}
	}
	return false, nil
}

// Insert appends an open trade and rewrites the file
func (f *FileSource) Insert(ctx context.Context, t Trade) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, existing := range append(snap.Trades, snap.Closed...) {
		if existing.ID == t.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ID)
		}
	}
	snap.Trades = append(snap.Trades, t)
	snap.TakenAt = time.Now().UTC()
	return WriteSnapshot(f.path, snap)
}

// Close moves an open trade to the closed list dated on
func (f *FileSource) Close(ctx context.Context, tradeID string, on time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	for i, t := range snap.Trades {
		if t.ID != tradeID {
			continue
		}
		t.ClosedOn = on.Format(dateLayout)
		snap.Trades = append(snap.Trades[:i:i], snap.Trades[i+1:]...)
		snap.Closed = append(snap.Closed, t)
		snap.TakenAt = time.Now().UTC()
		return true, WriteSnapshot(f.path, snap)
	}
	return false, nil
}

// WriteSnapshot validates snap and writes it as YAML via a temp file
func WriteSnapshot(path string, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode trade book: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write trade book: %w", err)
	}
	return os.Rename(tmp, path)
}

var (
	_ Book   = (*FileSource)(nil)
	_ Ledger = (*FileSource)(nil)
)
