// Package stats aggregates a user's wagers into performance figures.
//
// Aggregates are kept at full precision; Report and CategoryReport round for
// presentation only (percentages to 1 decimal, money to 2).
package stats

import (
	"sort"

	"locktracker/bets"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary holds the totals over settled bets.
type Summary struct {
	TotalBets    int
	Wins         int
	Losses       int
	Pushes       int
	TotalWagered decimal.Decimal
	TotalProfit  decimal.Decimal
}

// WinRate is wins/(wins+losses) as a percentage, 0 when nothing was decided.
func (s Summary) WinRate() decimal.Decimal {
	decided := s.Wins + s.Losses
	if decided == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(decided))).Mul(hundred)
}

// ROI is total profit over total wagered as a percentage, 0 when nothing was wagered.
func (s Summary) ROI() decimal.Decimal {
	if !s.TotalWagered.IsPositive() {
		return decimal.Zero
	}
	return s.TotalProfit.Div(s.TotalWagered).Mul(hundred)
}

// Compute sums the settled bets of list. Pending bets are ignored.
func Compute(list []bets.Bet) Summary {
	s := Summary{TotalWagered: decimal.Zero, TotalProfit: decimal.Zero}
	for _, b := range list {
		if !b.Result.Settled() {
			continue
		}
		s.TotalBets++
		switch b.Result {
		case bets.Win:
			s.Wins++
		case bets.Loss:
			s.Losses++
		case bets.Push:
			s.Pushes++
		}
		s.TotalWagered = s.TotalWagered.Add(b.Amount)
		s.TotalProfit = s.TotalProfit.Add(b.Profit)
	}
	return s
}

// Report is the rounded, JSON-ready form of a Summary.
type Report struct {
	TotalBets    int     `json:"total_bets"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Pushes       int     `json:"pushes"`
	WinRate      float64 `json:"win_rate"`
	TotalWagered float64 `json:"total_wagered"`
	TotalProfit  float64 `json:"total_profit"`
	ROI          float64 `json:"roi"`
}

func (s Summary) Report() Report {
	return Report{
		TotalBets:    s.TotalBets,
		Wins:         s.Wins,
		Losses:       s.Losses,
		Pushes:       s.Pushes,
		WinRate:      s.WinRate().Round(1).InexactFloat64(),
		TotalWagered: s.TotalWagered.Round(2).InexactFloat64(),
		TotalProfit:  s.TotalProfit.Round(2).InexactFloat64(),
		ROI:          s.ROI().Round(1).InexactFloat64(),
	}
}

// Category accumulates settled bets sharing a sport or bet type.
type Category struct {
	Profit decimal.Decimal
	Count  int
	Wins   int
}

type Categories struct {
	BySport   map[string]*Category
	ByBetType map[string]*Category
}

// ByCategory groups settled bets by sport and, independently, by bet type.
func ByCategory(list []bets.Bet) Categories {
	c := Categories{
		BySport:   map[string]*Category{},
		ByBetType: map[string]*Category{},
	}
	for _, b := range list {
		if !b.Result.Settled() {
			continue
		}
		add(c.BySport, b.Sport, b)
		add(c.ByBetType, b.BetType, b)
	}
	return c
}

func add(m map[string]*Category, key string, b bets.Bet) {
	cat, ok := m[key]
	if !ok {
		cat = &Category{Profit: decimal.Zero}
		m[key] = cat
	}
	cat.Profit = cat.Profit.Add(b.Profit)
	cat.Count++
	if b.Result == bets.Win {
		cat.Wins++
	}
}

type CategoryReport struct {
	Name   string  `json:"name"`
	Profit float64 `json:"profit"`
	Count  int     `json:"count"`
	Wins   int     `json:"wins"`
}

// Rows returns the categories of m sorted by name, rounded for display.
func Rows(m map[string]*Category) []CategoryReport {
	out := make([]CategoryReport, 0, len(m))
	for name, cat := range m {
		out = append(out, CategoryReport{
			Name:   name,
			Profit: cat.Profit.Round(2).InexactFloat64(),
			Count:  cat.Count,
			Wins:   cat.Wins,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
