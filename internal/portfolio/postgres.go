package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicateTrade is returned when inserting an existing trade id
var ErrDuplicateTrade = errors.New("duplicate trade")

// tradeRow is the core_trades table layout
type tradeRow struct {
	ID         string          `db:"id"`
	Symbol     string          `db:"symbol"`
	EntryPrice float64         `db:"entry_price"`
	Quantity   float64         `db:"quantity"`
	Stop       sql.NullFloat64 `db:"stop"`
	OpenedOn   time.Time       `db:"opened_on"`
	Sector     sql.NullString  `db:"sector"`
}

func (r tradeRow) trade() Trade {
	t := Trade{
		ID:         r.ID,
		Symbol:     r.Symbol,
		EntryPrice: r.EntryPrice,
		Quantity:   r.Quantity,
		OpenedOn:   r.OpenedOn.Format(dateLayout),
		Sector:     r.Sector.String,
	}
	if r.Stop.Valid {
		stop := r.Stop.Float64
		t.Stop = &stop
	}
	return t
}

// PostgresRepo reads and writes the core trade book in PostgreSQL
type PostgresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresRepo wraps an open connection
func NewPostgresRepo(db *sqlx.DB, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

// OpenPostgres connects with the lib/pq driver and pings the server
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// Trades returns open trades ordered by opening date then id
func (r *PostgresRepo) Trades(ctx context.Context) ([]Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, entry_price, quantity, stop, opened_on, sector
		FROM core_trades
		WHERE closed_on IS NULL
		ORDER BY opened_on, id`

	var rows []tradeRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query core trades: %w", err)
	}

	snap := Snapshot{Version: SchemaVersion, TakenAt: time.Now().UTC(), Trades: make([]Trade, 0, len(rows))}
	for _, row := range rows {
		snap.Trades = append(snap.Trades, row.trade())
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap.Trades, nil
}

// HasPosition reports whether symbol has ever been traded in the core book
func (r *PostgresRepo) HasPosition(ctx context.Context, symbol string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM core_trades WHERE symbol = $1)`, symbol)
	if err != nil {
		return false, fmt.Errorf("query position history: %w", err)
	}
	return exists, nil
}

// Insert records a newly opened trade
func (r *PostgresRepo) Insert(ctx context.Context, t Trade) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	opened, _ := time.Parse(dateLayout, t.OpenedOn)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO core_trades (id, symbol, entry_price, quantity, stop, opened_on, sector)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var sector sql.NullString
	if t.Sector != "" {
		sector = sql.NullString{String: t.Sector, Valid: true}
	}
	var stop sql.NullFloat64
	if t.Stop != nil {
		stop = sql.NullFloat64{Float64: *t.Stop, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, t.ID, t.Symbol, t.EntryPrice, t.Quantity, stop, opened, sector)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ID)
		}
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

// Close marks a trade closed on the given date
func (r *PostgresRepo) Close(ctx context.Context, tradeID string, on time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE core_trades SET closed_on = $2 WHERE id = $1 AND closed_on IS NULL`,
		tradeID, on.UTC().Truncate(24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	return n > 0, nil
}

var (
	_ Book   = (*PostgresRepo)(nil)
	_ Ledger = (*PostgresRepo)(nil)
)
