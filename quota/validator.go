package quota

import (
	"context"
	"net/http"
	"time"

	"locktracker/login"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FreeTierMonthlyLimit caps bet creation for users without an active
// subscription.
const FreeTierMonthlyLimit = 15

type Tier string

const (
	Free Tier = "free"
	Pro  Tier = "pro"
)

// BetCounter counts a user's bets created at or after since.
type BetCounter interface {
	CountSince(ctx context.Context, userID int, since time.Time) (int, error)
}

// SubscriptionChecker reports whether a user holds an active paid subscription.
type SubscriptionChecker interface {
	HasActive(ctx context.Context, userID int) (bool, error)
}

// Usage is the metering state of one user for the current month.
type Usage struct {
	Tier         Tier `json:"tier"`
	MonthlyCount int  `json:"monthly_count"`
	MonthlyLimit int  `json:"monthly_limit"`
	Remaining    int  `json:"remaining"`
	AtLimit      bool `json:"at_limit"`
}

// Unlimited reports whether the user is exempt from the monthly cap.
func (u Usage) Unlimited() bool { return u.Tier == Pro }

// Allows reports whether n more bets fit in the quota.
func (u Usage) Allows(n int) bool {
	return u.Unlimited() || u.Remaining >= n
}

// Validator resolves tiers and monthly usage.
type Validator struct {
	bets  BetCounter
	subs  SubscriptionChecker
	log   *zap.Logger
	limit int
	now   func() time.Time
}

func NewValidator(bets BetCounter, subs SubscriptionChecker, log *zap.Logger) *Validator {
	return &Validator{bets: bets, subs: subs, log: log, limit: FreeTierMonthlyLimit, now: time.Now}
}

// StartOfMonth returns the first instant of t's calendar month in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Tier returns Pro for users with an active subscription. Lookup failures
// fall back to Free.
func (v *Validator) Tier(ctx context.Context, userID int) Tier {
	active, err := v.subs.HasActive(ctx, userID)
	if err != nil {
		v.log.Error("quota: resolve tier", zap.Int("user_id", userID), zap.Error(err))
		return Free
	}
	if active {
		return Pro
	}
	return Free
}

// MonthlyCount counts the user's bets since the start of the month. Count
// failures are logged and read as zero.
func (v *Validator) MonthlyCount(ctx context.Context, userID int) int {
	n, err := v.bets.CountSince(ctx, userID, StartOfMonth(v.now()))
	if err != nil {
		v.log.Error("quota: count monthly bets", zap.Int("user_id", userID), zap.Error(err))
		return 0
	}
	return n
}

// Usage reports the user's tier and how much of the monthly quota is left.
func (v *Validator) Usage(ctx context.Context, userID int) Usage {
	u := Usage{
		Tier:         v.Tier(ctx, userID),
		MonthlyCount: v.MonthlyCount(ctx, userID),
		MonthlyLimit: v.limit,
	}
	u.Remaining = u.MonthlyLimit - u.MonthlyCount
	if u.Remaining < 0 {
		u.Remaining = 0
	}
	u.AtLimit = !u.Allows(1)
	return u
}

// Check returns the usage and whether n more bets may be created.
func (v *Validator) Check(ctx context.Context, userID, n int) (Usage, bool) {
	u := v.Usage(ctx, userID)
	if !u.Allows(n) {
		v.log.Info("quota: denied",
			zap.Int("user_id", userID),
			zap.Int("monthly_count", u.MonthlyCount),
			zap.Int("monthly_limit", u.MonthlyLimit),
			zap.Int("requested", n))
		return u, false
	}
	return u, true
}

// UsageKey is the gin context key Middleware stores the caller's Usage under.
const UsageKey = "quota_usage"

// Middleware admits a request only if the signed-in user can create one more
// bet. Denied requests are handed to onDenied and aborted.
func (v *Validator) Middleware(onDenied gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := login.CurrentUser(c)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		u, ok := v.Check(c.Request.Context(), user.ID, 1)
		c.Set(UsageKey, u)
		if !ok {
			onDenied(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
