package subscriptions

import "time"

// Status is the local subscription vocabulary.
type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusInactive  Status = "inactive"
)

type Subscription struct {
	ID                   int       `json:"id"`
	UserID               int       `json:"user_id"`
	StripeCustomerID     string    `json:"stripe_customer_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	Status               Status    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// MapStripeStatus folds Stripe's subscription statuses into the local ones.
func MapStripeStatus(s string) Status {
	switch s {
	case "active", "trialing":
		return StatusActive
	case "past_due", "unpaid":
		return StatusPastDue
	}
	return StatusInactive
}
