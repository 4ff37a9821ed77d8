package bets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const betColumns = `id, user_id, date, sport, matchup, bet_type, bet_description, odds, amount, sportsbook, result, profit, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(s scanner) (Bet, error) {
	var b Bet
	var result string
	err := s.Scan(&b.ID, &b.UserID, &b.Date, &b.Sport, &b.Matchup, &b.BetType, &b.Description,
		&b.Odds, &b.Amount, &b.Sportsbook, &result, &b.Profit, &b.CreatedAt)
	b.Result = Result(result)
	return b, err
}

// Create inserts b and sets its ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, b *Bet) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO bets (user_id, date, sport, matchup, bet_type, bet_description, odds, amount, sportsbook, result, profit, created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.Date, b.Sport, b.Matchup, b.BetType, b.Description, b.Odds, b.Amount, b.Sportsbook, string(b.Result), b.Profit, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = int(id)
	return nil
}

// ListForUser returns every bet of the user, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID int) ([]Bet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+betColumns+` FROM bets WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()
	out := []Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get returns the user's bet or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id, userID int) (*Bet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=? AND user_id=? LIMIT 1`, id, userID)
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Settle stores a new result and its profit. Nothing else on a bet changes
// after insertion.
func (r *Repository) Settle(ctx context.Context, id, userID int, result Result, profit decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bets SET result=?, profit=? WHERE id=? AND user_id=?`, string(result), profit, id, userID)
	if err != nil {
		return fmt.Errorf("settle bet %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bets WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete bet %d: %w", id, err)
	}
	return nil
}

// CountSince counts the bets the user created at or after since.
func (r *Repository) CountSince(ctx context.Context, userID int, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM bets WHERE user_id=? AND created_at >= ?`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bets: %w", err)
	}
	return n, nil
}

// Exists reports whether the user already logged a bet with the same
// matchup, description and amount.
func (r *Repository) Exists(ctx context.Context, userID int, matchup, description string, amount decimal.Decimal) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM bets WHERE user_id=? AND matchup=? AND bet_description=? AND amount=?`,
		userID, matchup, description, NormalizeAmount(amount)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("find duplicate bet: %w", err)
	}
	return n > 0, nil
}
