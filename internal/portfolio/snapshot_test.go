package portfolio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stop(v float64) *float64 { return &v }

func validSnapshot() Snapshot {
	return Snapshot{
		Version: SchemaVersion,
		TakenAt: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		Trades: []Trade{
			{ID: "T1", Symbol: "EQNR.OL", EntryPrice: 250, Quantity: 40, Stop: stop(230), OpenedOn: "2026-09-01", Sector: "Energy"},
			{ID: "T2", Symbol: "NHY.OL", EntryPrice: 70, Quantity: 100, OpenedOn: "2026-09-15", Sector: "Materials"},
		},
	}
}

func TestSnapshot_Validate(t *testing.T) {
	require.NoError(t, validSnapshot().Validate())

	cases := map[string]func(*Snapshot){
		"wrong version":       func(s *Snapshot) { s.Version = 2 },
		"empty id":            func(s *Snapshot) { s.Trades[0].ID = "" },
		"empty symbol":        func(s *Snapshot) { s.Trades[0].Symbol = " " },
		"zero entry":          func(s *Snapshot) { s.Trades[0].EntryPrice = 0 },
		"negative qty":        func(s *Snapshot) { s.Trades[0].Quantity = -1 },
		"bad stop":            func(s *Snapshot) { s.Trades[0].Stop = stop(0) },
		"bad date":            func(s *Snapshot) { s.Trades[0].OpenedOn = "01.09.2026" },
		"duplicate id":        func(s *Snapshot) { s.Trades[1].ID = "T1" },
		"open with closed_on": func(s *Snapshot) { s.Trades[0].ClosedOn = "2026-10-01" },
		"closed without date": func(s *Snapshot) {
			s.Closed = []Trade{{ID: "T9", Symbol: "ORK.OL", EntryPrice: 80, Quantity: 10, OpenedOn: "2026-08-01"}}
		},
		"duplicate across lists": func(s *Snapshot) {
			s.Closed = []Trade{{ID: "T1", Symbol: "ORK.OL", EntryPrice: 80, Quantity: 10, OpenedOn: "2026-08-01", ClosedOn: "2026-08-20"}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := validSnapshot()
			mutate(&s)
			err := s.Validate()
			assert.True(t, errors.Is(err, ErrInvalidSnapshot), "got %v", err)
		})
	}
}

func TestFromLegacy_FiltersCoreOpenTrades(t *testing.T) {
	exit := 120.0
	records := []LegacyRecord{
		{ID: "1", Ticker: "EQNR.OL", EntryPrice: 250, Quantity: 10, StrategyID: "CORE", EntryDate: "2026-09-01"},
		{ID: "2", Ticker: "DNB.OL", EntryPrice: 200, Quantity: 5, StrategyID: "SWING", EntryDate: "2026-09-01"},
		{ID: "3", Ticker: "NHY.OL", EntryPrice: 70, Quantity: 50, PortfolioType: "CORE", CreatedAt: "2026-09-02T10:00:00Z"},
		{ID: "4", Ticker: "MOWI.OL", EntryPrice: 190, Quantity: 5, StrategyID: "CORE", EntryDate: "2026-08-01", ExitPrice: &exit},
	}
	snap, err := FromLegacy(records, time.Now())
	require.NoError(t, err)
	require.Len(t, snap.Trades, 2)
	assert.Equal(t, []string{"EQNR.OL", "NHY.OL"}, Symbols(snap.Trades))
	assert.Equal(t, "2026-09-02", snap.Trades[1].OpenedOn)
	require.Len(t, snap.Closed, 1)
	assert.Equal(t, "MOWI.OL", snap.Closed[0].Symbol)
	assert.Equal(t, "2026-08-01", snap.Closed[0].ClosedOn)
}

func TestLegacySource_CountsExitedRecordsAsHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"1","ticker":"EQNR.OL","entryPrice":250,"quantity":10,"strategyId":"CORE","entryDate":"2026-09-01"},
		{"id":"2","ticker":"MOWI.OL","entryPrice":190,"quantity":5,"strategyId":"CORE","entryDate":"2026-08-01","exitPrice":200,"exitDate":"2026-09-10T15:00:00Z"},
		{"id":"3","ticker":"DNB.OL","entryPrice":200,"quantity":5,"strategyId":"SWING","entryDate":"2026-09-01"}
	]`), 0o644))

	src := NewLegacySource(path)
	ctx := context.Background()
	trades, err := src.Trades(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EQNR.OL"}, Symbols(trades))

	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Closed, 1)
	assert.Equal(t, "2026-09-10", snap.Closed[0].ClosedOn)

	for symbol, want := range map[string]bool{"EQNR.OL": true, "MOWI.OL": true, "DNB.OL": false} {
		held, err := src.HasPosition(ctx, symbol)
		require.NoError(t, err)
		assert.Equal(t, want, held, symbol)
	}

	_, err = NewLegacySource(filepath.Join(t.TempDir(), "missing.json")).Trades(ctx)
	assert.Error(t, err)
}

func TestFromLegacy_RejectsMalformed(t *testing.T) {
	_, err := FromLegacy([]LegacyRecord{{ID: "1", Ticker: "X", EntryPrice: 1, Quantity: 1, StrategyID: "CORE"}}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = FromLegacy([]LegacyRecord{{ID: "1", Ticker: "X", Quantity: 1, StrategyID: "CORE", EntryDate: "2026-01-01"}}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestFileSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	require.NoError(t, WriteSnapshot(path, validSnapshot()))

	src := NewFileSource(path)
	trades, err := src.Trades(context.Background())
	require.NoError(t, err)
	assert.Equal(t, validSnapshot().Trades, trades)

	held, err := src.HasPosition(context.Background(), "NHY.OL")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestFileSource_MissingFileIsEmptyBook(t *testing.T) {
	trades, err := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml")).Trades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestFileSource_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: [\n"), 0o644))
	_, err := NewFileSource(path).Trades(context.Background())
	assert.Error(t, err)
}

func TestFileSource_InsertAndClose(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.yaml")
	src := NewFileSource(path)

	trade := Trade{ID: "CORE-ORK.OL-20261016", Symbol: "ORK.OL", EntryPrice: 80, Quantity: 125, OpenedOn: "2026-10-16"}
	require.NoError(t, src.Insert(ctx, trade))
	assert.ErrorIs(t, src.Insert(ctx, trade), ErrDuplicateTrade)
	assert.ErrorIs(t, src.Insert(ctx, Trade{ID: "bad"}), ErrInvalidSnapshot)

	trades, err := src.Trades(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Trade{trade}, trades)

	closed, err := src.Close(ctx, trade.ID, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = src.Close(ctx, trade.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, closed, "already closed")

	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Trades)
	require.Len(t, snap.Closed, 1)
	assert.Equal(t, "2026-10-19", snap.Closed[0].ClosedOn)

	// a closed trade still counts as held for the first-ENTER gate
	held, err := src.HasPosition(ctx, "ORK.OL")
	require.NoError(t, err)
	assert.True(t, held)

	// closed ids stay reserved
	assert.ErrorIs(t, src.Insert(ctx, trade), ErrDuplicateTrade)
}
