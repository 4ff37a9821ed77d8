package extension

import (
	"context"
	"fmt"
	"strings"
	"time"

	"locktracker/bets"
	"locktracker/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Defaults applied to scraped bets that omit a field.
const (
	DefaultOdds    = -110
	defaultLabel   = "Other"
	defaultUnknown = "Unknown"
)

// ImportedBet is one bet as scraped by the browser extension.
type ImportedBet struct {
	Sport       string           `json:"sport"`
	Matchup     string           `json:"matchup"`
	BetType     string           `json:"bet_type"`
	Description string           `json:"bet_description"`
	Odds        *int             `json:"odds"`
	Amount      decimal.Decimal  `json:"amount"`
	Result      string           `json:"result"`
	Profit      *decimal.Decimal `json:"profit"`
	Source      string           `json:"source"`
}

// ImportStore is the bet persistence the importer writes through.
type ImportStore interface {
	Exists(ctx context.Context, userID int, matchup, description string, amount decimal.Decimal) (bool, error)
	Create(ctx context.Context, b *bets.Bet) error
}

// ImportResult counts what happened to each submitted bet.
type ImportResult struct {
	Imported          int
	SkippedDuplicates int
	SkippedLimit      int
	SkippedInvalid    int
}

var bookNames = map[string]string{
	"Fanduel":    "FanDuel",
	"Draftkings": "DraftKings",
	"Prizepicks": "PrizePicks",
}

// Sportsbook derives the display name of a sportsbook from the extension's
// source tag.
func Sportsbook(source string) string {
	name := cases.Title(language.English).String(strings.TrimSpace(source))
	if fixed, ok := bookNames[name]; ok {
		return fixed
	}
	return name
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// toBet fills defaults and resolves the profit of a scraped bet.
func (in ImportedBet) toBet(userID int, date string) (*bets.Bet, error) {
	b := &bets.Bet{
		UserID:      userID,
		Date:        date,
		Sport:       orDefault(in.Sport, defaultLabel),
		Matchup:     orDefault(in.Matchup, defaultUnknown),
		BetType:     orDefault(in.BetType, defaultLabel),
		Description: orDefault(in.Description, defaultUnknown),
		Odds:        DefaultOdds,
		Amount:      bets.NormalizeAmount(in.Amount),
		Sportsbook:  Sportsbook(in.Source),
		Result:      bets.Pending,
		Profit:      decimal.Zero,
	}
	if in.Odds != nil {
		b.Odds = *in.Odds
	}
	if strings.TrimSpace(in.Result) != "" {
		r, err := bets.ParseResult(in.Result)
		if err != nil {
			return nil, err
		}
		b.Result = r
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Result == bets.Win || b.Result == bets.Loss {
		// flex plays report partial payouts the odds cannot reproduce
		if in.Profit != nil && !in.Profit.IsZero() {
			b.Profit = *in.Profit
		} else {
			p, err := bets.CalculateProfit(b.Odds, b.Amount, b.Result)
			if err != nil {
				return nil, err
			}
			b.Profit = p
		}
	}
	return b, nil
}

// Importer admits scraped bets into a user's ledger.
type Importer struct {
	store ImportStore
	log   *zap.Logger
	now   func() time.Time
}

func NewImporter(store ImportStore, log *zap.Logger) *Importer {
	return &Importer{store: store, log: log, now: time.Now}
}

// Import inserts items in order until limit bets have been admitted. A
// negative limit admits everything. Duplicates and invalid bets are skipped
// without consuming quota. Storage errors abort the import and are returned
// with the counts so far.
func (im *Importer) Import(ctx context.Context, userID int, items []ImportedBet, limit int) (ImportResult, error) {
	var res ImportResult
	today := im.now().Format(bets.DateLayout)
	for i, item := range items {
		if limit >= 0 && res.Imported >= limit {
			res.SkippedLimit = len(items) - i
			metrics.ImportSkipped.WithLabelValues("limit").Add(float64(res.SkippedLimit))
			break
		}
		b, err := item.toBet(userID, today)
		if err != nil {
			im.log.Info("extension: invalid bet", zap.Int("user_id", userID), zap.Int("index", i), zap.Error(err))
			res.SkippedInvalid++
			metrics.ImportSkipped.WithLabelValues("invalid").Inc()
			continue
		}
		dup, err := im.store.Exists(ctx, userID, b.Matchup, b.Description, b.Amount)
		if err != nil {
			return res, fmt.Errorf("duplicate check: %w", err)
		}
		if dup {
			res.SkippedDuplicates++
			metrics.ImportSkipped.WithLabelValues("duplicate").Inc()
			continue
		}
		if err := im.store.Create(ctx, b); err != nil {
			return res, fmt.Errorf("insert bet %d: %w", i, err)
		}
		res.Imported++
		metrics.BetsCreated.WithLabelValues("import").Inc()
	}
	return res, nil
}
