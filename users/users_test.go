package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() { hashCost = bcrypt.MinCost }

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewRepository(db)
	repo.now = func() time.Time { return time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, password_hash)")).
		WithArgs("sam@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))

	u, err := repo.Create(context.Background(), "  Sam@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, 5, u.ID)
	assert.Equal(t, "sam@example.com", u.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter22")))
}

func TestCreate_validation(t *testing.T) {
	repo, _ := newMock(t)
	_, err := repo.Create(context.Background(), "nope", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = repo.Create(context.Background(), "sam@example.com", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestCreate_duplicate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Create(context.Background(), "sam@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	repo, mock := newMock(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow(5, "sam@example.com", string(hash), time.Now())
	}

	mock.ExpectQuery("FROM users WHERE email=").WithArgs("sam@example.com").WillReturnRows(rows())
	u, err := repo.Authenticate(context.Background(), "SAM@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, 5, u.ID)

	mock.ExpectQuery("FROM users WHERE email=").WithArgs("sam@example.com").WillReturnRows(rows())
	_, err = repo.Authenticate(context.Background(), "sam@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	mock.ExpectQuery("FROM users WHERE email=").WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)
	_, err = repo.Authenticate(context.Background(), "ghost@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateResetToken(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_resets")).
		WithArgs(sqlmock.AnyArg(), 5, time.Date(2025, 5, 10, 13, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, err := repo.CreateResetToken(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, token, 36)
}

func TestResetPassword(t *testing.T) {
	repo, mock := newMock(t)
	token := "0b6f2d5e-3c8e-4f1a-9d2b-7a1c2e3f4a5b"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM password_resets")).
		WithArgs(token, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_resets SET used=1")).
		WithArgs(token).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?")).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ResetPassword(context.Background(), token, "newpass1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword_invalid(t *testing.T) {
	repo, mock := newMock(t)
	assert.ErrorIs(t, repo.ResetPassword(context.Background(), "not-a-uuid", "newpass1"), ErrInvalidResetToken)
	assert.ErrorIs(t, repo.ResetPassword(context.Background(), "0b6f2d5e-3c8e-4f1a-9d2b-7a1c2e3f4a5b", "x"), ErrWeakPassword)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id FROM password_resets").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	err := repo.ResetPassword(context.Background(), "0b6f2d5e-3c8e-4f1a-9d2b-7a1c2e3f4a5b", "newpass1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword_failedUpdateKeepsToken(t *testing.T) {
	repo, mock := newMock(t)
	token := "0b6f2d5e-3c8e-4f1a-9d2b-7a1c2e3f4a5b"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM password_resets")).
		WithArgs(token, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_resets SET used=1")).
		WithArgs(token).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?")).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.ResetPassword(context.Background(), token, "newpass1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidResetToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
