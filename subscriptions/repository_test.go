package subscriptions

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

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepository_Upsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, status)")).
		WithArgs(7, "cus_1", "sub_1", "active").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &Subscription{UserID: 7, StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1", Status: StatusActive})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status=? WHERE stripe_subscription_id=?")).
		WithArgs("past_due", "sub_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status=?")).
		WithArgs("cancelled", "sub_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := repo.SetStatus(context.Background(), "sub_1", StatusPastDue)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.SetStatus(context.Background(), "sub_missing", StatusCancelled)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_HasActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM subscriptions WHERE user_id=? AND status=?")).
		WithArgs(7, "active").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	ok, err := repo.HasActive(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_GetLatestForUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE user_id=?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "stripe_customer_id", "stripe_subscription_id", "status", "created_at", "updated_at"}).
			AddRow(3, 7, "cus_1", "sub_1", "past_due", now, now))

	s, err := repo.GetLatestForUser(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, StatusPastDue, s.Status)
	assert.Equal(t, "cus_1", s.StripeCustomerID)

	mock.ExpectQuery("FROM subscriptions").WithArgs(8).WillReturnError(sql.ErrNoRows)
	s, err = repo.GetLatestForUser(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, s)
}
