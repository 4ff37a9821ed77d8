package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates the row for s.StripeSubscriptionID or refreshes its owner,
// customer and status. Replaying the same event leaves the row unchanged.
func (r *Repository) Upsert(ctx context.Context, s *Subscription) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, status) VALUES (?,?,?,?)
		ON DUPLICATE KEY UPDATE user_id=VALUES(user_id), stripe_customer_id=VALUES(stripe_customer_id), status=VALUES(status)`,
		s.UserID, s.StripeCustomerID, s.StripeSubscriptionID, string(s.Status))
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", s.StripeSubscriptionID, err)
	}
	return nil
}

// SetStatus updates the status of a known Stripe subscription. It reports
// false when no row matches.
func (r *Repository) SetStatus(ctx context.Context, stripeSubscriptionID string, status Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET status=? WHERE stripe_subscription_id=?`, string(status), stripeSubscriptionID)
	if err != nil {
		return false, fmt.Errorf("update subscription %s: %w", stripeSubscriptionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetLatestForUser returns the user's most recently updated subscription, or nil.
func (r *Repository) GetLatestForUser(ctx context.Context, userID int) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, stripe_customer_id, stripe_subscription_id, status, created_at, updated_at
		FROM subscriptions WHERE user_id=? ORDER BY updated_at DESC, id DESC LIMIT 1`, userID)
	var s Subscription
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.StripeCustomerID, &s.StripeSubscriptionID, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

// HasActive reports whether the user holds any active subscription.
func (r *Repository) HasActive(ctx context.Context, userID int) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM subscriptions WHERE user_id=? AND status=?`, userID, string(StatusActive)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check active subscription: %w", err)
	}
	return n > 0, nil
}
