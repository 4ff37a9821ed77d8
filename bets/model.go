package bets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Result is the settlement state of a wager.
type Result string

const (
	Pending Result = "pending"
	Win     Result = "win"
	Loss    Result = "loss"
	Push    Result = "push"
)

// ParseResult accepts the four result names, case-insensitively.
func ParseResult(s string) (Result, error) {
	switch r := Result(strings.ToLower(strings.TrimSpace(s))); r {
	case Pending, Win, Loss, Push:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidResult, s)
}

// Settled reports whether the wager has a final outcome.
func (r Result) Settled() bool { return r != Pending }

// DateLayout is the layout of Bet.Date.
const DateLayout = "2006-01-02"

// AmountPlaces is the scale of a stored stake (DECIMAL(12,2)).
const AmountPlaces = 2

// NormalizeAmount rounds a stake to the stored scale, half away from zero
// as MySQL does.
func NormalizeAmount(a decimal.Decimal) decimal.Decimal {
	return a.Round(AmountPlaces)
}

type Bet struct {
	ID          int             `json:"id"`
	UserID      int             `json:"user_id"`
	Date        string          `json:"date"`
	Sport       string          `json:"sport"`
	Matchup     string          `json:"matchup"`
	BetType     string          `json:"bet_type"`
	Description string          `json:"bet_description"`
	Odds        int             `json:"odds"`
	Amount      decimal.Decimal `json:"amount"`
	Sportsbook  string          `json:"sportsbook"`
	Result      Result          `json:"result"`
	Profit      decimal.Decimal `json:"profit"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks the fields a new wager must carry.
func (b *Bet) Validate() error {
	if strings.TrimSpace(b.Sport) == "" || strings.TrimSpace(b.Matchup) == "" ||
		strings.TrimSpace(b.BetType) == "" || strings.TrimSpace(b.Description) == "" {
		return ErrMissingField
	}
	if b.Odds == 0 {
		return ErrZeroOdds
	}
	if !b.Amount.IsPositive() || !b.Amount.Equal(NormalizeAmount(b.Amount)) {
		return ErrInvalidAmount
	}
	if _, err := ParseResult(string(b.Result)); err != nil {
		return err
	}
	if _, err := time.Parse(DateLayout, b.Date); err != nil {
		return fmt.Errorf("%w: date %q", ErrMissingField, b.Date)
	}
	return nil
}
