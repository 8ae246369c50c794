// Package portfolio is the typed, versioned trade-book contract consumed by
// the pipeline and the risk engine. Records are validated at this boundary.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the snapshot layout this build understands
const SchemaVersion = 1

const dateLayout = "2006-01-02"

// ErrInvalidSnapshot is returned for snapshots that fail validation
var ErrInvalidSnapshot = errors.New("invalid portfolio snapshot")

// Trade is one position in the book. Open trades have an empty ClosedOn.
type Trade struct {
	ID         string   `yaml:"id" json:"id"`
	Symbol     string   `yaml:"symbol" json:"symbol"`
	EntryPrice float64  `yaml:"entry_price" json:"entry_price"`
	Quantity   float64  `yaml:"quantity" json:"quantity"`
	Stop       *float64 `yaml:"stop,omitempty" json:"stop,omitempty"`
	OpenedOn   string   `yaml:"opened_on" json:"opened_on"` // YYYY-MM-DD
	Sector     string   `yaml:"sector,omitempty" json:"sector,omitempty"`
	ClosedOn   string   `yaml:"closed_on,omitempty" json:"closed_on,omitempty"` // YYYY-MM-DD
}

// Snapshot is one consistent read of the trade book
type Snapshot struct {
	Version int       `yaml:"version" json:"version"`
	TakenAt time.Time `yaml:"taken_at" json:"taken_at"`
	Trades  []Trade   `yaml:"trades" json:"trades"`
	Closed  []Trade   `yaml:"closed,omitempty" json:"closed,omitempty"`
}

// Source supplies the open trades in a stable order
type Source interface {
	Trades(ctx context.Context) ([]Trade, error)
}

// Book is a Source that also answers whether a symbol was ever held, open or
// closed. The first-ENTER gate relies on it.
type Book interface {
	Source
	HasPosition(ctx context.Context, symbol string) (bool, error)
}

// Ledger records trades opened and closed by applied decisions
type Ledger interface {
	Insert(ctx context.Context, t Trade) error
	Close(ctx context.Context, tradeID string, on time.Time) (bool, error)
}

// Validate checks the schema version and every trade. Trade ids are unique
// across open and closed trades.
func (s Snapshot) Validate() error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidSnapshot, s.Version, SchemaVersion)
	}
	ids := make(map[string]bool, len(s.Trades)+len(s.Closed))
	for i, t := range s.Trades {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: trade %d: %v", ErrInvalidSnapshot, i, err)
		}
		if t.ClosedOn != "" {
			return fmt.Errorf("%w: open trade %s has closed_on", ErrInvalidSnapshot, t.ID)
		}
		if ids[t.ID] {
			return fmt.Errorf("%w: duplicate trade id %s", ErrInvalidSnapshot, t.ID)
		}
		ids[t.ID] = true
	}
	for i, t := range s.Closed {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: closed trade %d: %v", ErrInvalidSnapshot, i, err)
		}
		if _, err := time.Parse(dateLayout, t.ClosedOn); err != nil {
			return fmt.Errorf("%w: closed trade %s: closed_on %q: %v", ErrInvalidSnapshot, t.ID, t.ClosedOn, err)
		}
		if ids[t.ID] {
			return fmt.Errorf("%w: duplicate trade id %s", ErrInvalidSnapshot, t.ID)
		}
		ids[t.ID] = true
	}
	return nil
}

// Validate checks one trade record
func (t Trade) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return errors.New("empty id")
	case strings.TrimSpace(t.Symbol) == "":
		return fmt.Errorf("trade %s: empty symbol", t.ID)
	case t.EntryPrice <= 0:
		return fmt.Errorf("trade %s: entry price must be positive", t.ID)
	case t.Quantity <= 0:
		return fmt.Errorf("trade %s: quantity must be positive", t.ID)
	case t.Stop != nil && *t.Stop <= 0:
		return fmt.Errorf("trade %s: stop must be positive", t.ID)
	}
	if _, err := time.Parse(dateLayout, t.OpenedOn); err != nil {
		return fmt.Errorf("trade %s: opened_on %q: %v", t.ID, t.OpenedOn, err)
	}
	return nil
}

// Symbols returns trade symbols in book order
func Symbols(trades []Trade) []string {
	out := make([]string, 0, len(trades))
	for _, t := range trades {
		out = append(out, t.Symbol)
	}
	return out
}
