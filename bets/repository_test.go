package bets

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

var columns = []string{"id", "user_id", "date", "sport", "matchup", "bet_type", "bet_description", "odds", "amount", "sportsbook", "result", "profit", "created_at"}

func TestRepository_Create(t *testing.T) {
	repo, mock := newMock(t)
	b := &Bet{UserID: 7, Date: "2025-03-01", Sport: "NBA", Matchup: "LAL @ BOS", BetType: "Moneyline", Description: "LAL ML", Odds: 140, Amount: d("20"), Result: Pending}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bets")).
		WithArgs(7, "2025-03-01", "NBA", "LAL @ BOS", "Moneyline", "LAL ML", 140, sqlmock.AnyArg(), "", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	require.NoError(t, repo.Create(context.Background(), b))
	assert.Equal(t, 42, b.ID)
	assert.False(t, b.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListForUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	rows := sqlmock.NewRows(columns).
		AddRow(2, 7, "2025-03-02", "NFL", "KC @ BUF", "Spread", "KC +2.5", -110, "110.00", "FanDuel", "win", "100.000000", now).
		AddRow(1, 7, "2025-03-01", "NBA", "LAL @ BOS", "Moneyline", "LAL ML", 140, "20.00", "", "pending", "0", now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bets WHERE user_id=? ORDER BY created_at DESC")).WithArgs(7).WillReturnRows(rows)

	got, err := repo.ListForUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Win, got[0].Result)
	assert.True(t, got[0].Profit.Equal(d("100")))
	assert.True(t, got[1].Amount.Equal(d("20")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bets WHERE id=? AND user_id=?")).WithArgs(3, 7).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 3, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Settle(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bets SET result=?, profit=? WHERE id=? AND user_id=?")).
		WithArgs("loss", sqlmock.AnyArg(), 3, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Settle(context.Background(), 3, 7, Loss, d("-20")))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bets")).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Settle(context.Background(), 4, 7, Win, d("5")), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountSince(t *testing.T) {
	repo, mock := newMock(t)
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM bets WHERE user_id=? AND created_at >= ?")).
		WithArgs(7, since).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(14))

	n, err := repo.CountSince(context.Background(), 7, since)
	require.NoError(t, err)
	assert.Equal(t, 14, n)
}

func TestRepository_Exists(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("AND matchup=? AND bet_description=? AND amount=?")).
		WithArgs(7, "KC @ BUF", "KC +2.5", "110.01").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	ok, err := repo.Exists(context.Background(), 7, "KC @ BUF", "KC +2.5", d("110.005"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bets WHERE id=? AND user_id=?")).WithArgs(3, 7).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 3, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
