package bets

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrZeroOdds      = errors.New("odds must be non-zero")
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidResult = errors.New("invalid result")
	ErrMissingField  = errors.New("missing required field")
	ErrNotFound      = errors.New("bet not found")
)

var hundred = decimal.NewFromInt(100)

// CalculateProfit returns the profit of a stake at American odds. Pending and
// pushed wagers make nothing, a loss forfeits the stake. The result is not
// rounded.
func CalculateProfit(odds int, amount decimal.Decimal, result Result) (decimal.Decimal, error) {
	switch result {
	case Win:
		if odds == 0 {
			return decimal.Zero, ErrZeroOdds
		}
		o := decimal.NewFromInt(int64(odds))
		if odds > 0 {
			return amount.Mul(o).Div(hundred), nil
		}
		return amount.Mul(hundred).Div(o.Abs()), nil
	case Loss:
		return amount.Neg(), nil
	case Pending, Push:
		return decimal.Zero, nil
	}
	return decimal.Zero, ErrInvalidResult
}
