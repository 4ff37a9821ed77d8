package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrNotFound           = errors.New("user not found")
)

const (
	MinPasswordLength = 6
	ResetTokenTTL     = time.Hour

	mysqlDuplicateEntry = 1062
)

// hashCost is lowered by tests.
var hashCost = bcrypt.DefaultCost

type User struct {
	ID           int
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create registers a new account with a bcrypt-hashed password.
func (r *Repository) Create(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, string(hash))
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: int(id), Email: email, PasswordHash: string(hash), CreatedAt: r.now()}, nil
}

func (r *Repository) scanOne(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email=? LIMIT 1`, NormalizeEmail(email)))
}

func (r *Repository) GetByID(ctx context.Context, id int) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id=? LIMIT 1`, id))
}

// Authenticate returns the user whose password matches. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (r *Repository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// CreateResetToken stores a single-use token valid for ResetTokenTTL.
func (r *Repository) CreateResetToken(ctx context.Context, userID int) (string, error) {
	token := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, r.now().Add(ResetTokenTTL))
	if err != nil {
		return "", fmt.Errorf("insert reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes token and sets a new password for its owner. Both
// writes commit together, so a failed update leaves the token usable.
func (r *Repository) ResetPassword(ctx context.Context, token, password string) (err error) {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if _, err := uuid.Parse(token); err != nil {
		return ErrInvalidResetToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var userID int
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM password_resets WHERE token=? AND used=0 AND expires_at > ? LIMIT 1 FOR UPDATE`,
		token, r.now()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("load reset token: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE password_resets SET used=1 WHERE token=? AND used=0`, token)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		return ErrInvalidResetToken
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, string(hash), userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
