package portfolio

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepo(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func TestPostgresRepo_Trades(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "symbol", "entry_price", "quantity", "stop", "opened_on", "sector"}).
		AddRow("T1", "EQNR.OL", 250.0, 40.0, 230.0, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "Energy").
		AddRow("T2", "NHY.OL", 70.0, 100.0, nil, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM core_trades")).WillReturnRows(rows)

	trades, err := repo.Trades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "2026-09-01", trades[0].OpenedOn)
	require.NotNil(t, trades[0].Stop)
	assert.Equal(t, 230.0, *trades[0].Stop)
	assert.Equal(t, "Energy", trades[0].Sector)
	assert.Nil(t, trades[1].Stop)
	assert.Empty(t, trades[1].Sector)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_TradesRejectsBadRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "symbol", "entry_price", "quantity", "stop", "opened_on", "sector"}).
		AddRow("T1", "EQNR.OL", 0.0, 40.0, nil, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM core_trades")).WillReturnRows(rows)

	_, err := repo.Trades(context.Background())
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestPostgresRepo_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM core_trades")).WillReturnError(errors.New("connection reset"))

	_, err := repo.Trades(context.Background())
	assert.Error(t, err)
}

func TestPostgresRepo_HasPosition(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("EQNR.OL").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	held, err := repo.HasPosition(context.Background(), "EQNR.OL")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestPostgresRepo_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)
	trade := Trade{ID: "CORE-EQNR.OL", Symbol: "EQNR.OL", EntryPrice: 250, Quantity: 40, OpenedOn: "2026-10-19"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO core_trades")).
		WithArgs("CORE-EQNR.OL", "EQNR.OL", 250.0, 40.0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Insert(context.Background(), trade))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO core_trades")).
		WillReturnError(&pq.Error{Code: "23505"})
	err := repo.Insert(context.Background(), trade)
	assert.ErrorIs(t, err, ErrDuplicateTrade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Close(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE core_trades SET closed_on")).
		WithArgs("T1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	closed, err := repo.Close(context.Background(), "T1", time.Now())
	require.NoError(t, err)
	assert.True(t, closed)
}
