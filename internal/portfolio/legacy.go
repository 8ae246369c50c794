package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// CoreTag marks records that belong to the core book in the dashboard's
// journal export.
const CoreTag = "CORE"

// LegacyRecord is a trade as exported by the dashboard journal. Only the
// fields the core book needs are decoded.
type LegacyRecord struct {
	ID            string   `json:"id" yaml:"id"`
	Ticker        string   `json:"ticker" yaml:"ticker"`
	EntryPrice    float64  `json:"entryPrice" yaml:"entryPrice"`
	Quantity      float64  `json:"quantity" yaml:"quantity"`
	StopLoss      *float64 `json:"stopLoss,omitempty" yaml:"stopLoss,omitempty"`
	ExitPrice     *float64 `json:"exitPrice,omitempty" yaml:"exitPrice,omitempty"`
	StrategyID    string   `json:"strategyId" yaml:"strategyId"`
	PortfolioType string   `json:"portfolioType" yaml:"portfolioType"`
	EntryDate     string   `json:"entryDate" yaml:"entryDate"`
	CreatedAt     string   `json:"createdAt" yaml:"createdAt"`
	ExitDate      string   `json:"exitDate,omitempty" yaml:"exitDate,omitempty"`
	Sector        string   `json:"sector,omitempty" yaml:"sector,omitempty"`
}

// FromLegacy keeps core-tagged records, converts them to a validated
// snapshot and fails on the first malformed record. Records with an exit
// price land in Closed, dated by exitDate or else by their entry date.
func FromLegacy(records []LegacyRecord, takenAt time.Time) (Snapshot, error) {
	snap := Snapshot{Version: SchemaVersion, TakenAt: takenAt}
	for _, r := range records {
		if r.StrategyID != CoreTag && r.PortfolioType != CoreTag {
			continue
		}
		opened, err := legacyDate(r)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: record %s: %v", ErrInvalidSnapshot, r.ID, err)
		}
		t := Trade{
			ID:         r.ID,
			Symbol:     r.Ticker,
			EntryPrice: r.EntryPrice,
			Quantity:   r.Quantity,
			Stop:       r.StopLoss,
			OpenedOn:   opened,
			Sector:     r.Sector,
		}
		if r.ExitPrice == nil {
			snap.Trades = append(snap.Trades, t)
			continue
		}
		t.ClosedOn = opened
		if closed, err := parseLegacyDate(r.ExitDate); err == nil {
			t.ClosedOn = closed
		}
		snap.Closed = append(snap.Closed, t)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func legacyDate(r LegacyRecord) (string, error) {
	raw := r.EntryDate
	if raw == "" {
		raw = r.CreatedAt
	}
	if raw == "" {
		return "", fmt.Errorf("no entry date")
	}
	return parseLegacyDate(raw)
}

func parseLegacyDate(raw string) (string, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(dateLayout), nil
	}
	if _, err := time.Parse(dateLayout, raw); err != nil {
		return "", fmt.Errorf("date %q: %v", raw, err)
	}
	return raw, nil
}

// LegacySource reads the dashboard's JSON journal export on every call. It is
// read-only; applied decisions are not written back.
type LegacySource struct {
	path string
}

// NewLegacySource creates a Book over a journal export file
func NewLegacySource(path string) *LegacySource {
	return &LegacySource{path: path}
}

// Snapshot decodes the export and converts it with FromLegacy
func (l *LegacySource) Snapshot(_ context.Context) (Snapshot, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open journal export: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat journal export: %w", err)
	}
	var records []LegacyRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return Snapshot{}, fmt.Errorf("parse journal export %s: %w", l.path, err)
	}
	return FromLegacy(records, info.ModTime().UTC())
}

// Trades implements Source
func (l *LegacySource) Trades(ctx context.Context) ([]Trade, error) {
	snap, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Trades, nil
}

// HasPosition reports whether the export holds any core record for symbol,
// exited ones included.
func (l *LegacySource) HasPosition(ctx context.Context, symbol string) (bool, error) {
	snap, err := l.Snapshot(ctx)
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

var _ Book = (*LegacySource)(nil)
