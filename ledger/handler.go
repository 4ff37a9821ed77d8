// Package ledger serves the dashboard and the bet form routes.
package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"locktracker/bets"
	"locktracker/login"
	"locktracker/metrics"
	"locktracker/quota"
	"locktracker/stats"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BetStore is the bet persistence the ledger pages need.
type BetStore interface {
	Create(ctx context.Context, b *bets.Bet) error
	ListForUser(ctx context.Context, userID int) ([]bets.Bet, error)
	Get(ctx context.Context, id, userID int) (*bets.Bet, error)
	Settle(ctx context.Context, id, userID int, result bets.Result, profit decimal.Decimal) error
	Delete(ctx context.Context, id, userID int) error
}

var settleOptions = []string{string(bets.Win), string(bets.Loss), string(bets.Push)}

type Handler struct {
	bets    BetStore
	quota   *quota.Validator
	signer  *login.Signer
	log     *zap.Logger
	billing bool
	now     func() time.Time
}

// NewHandler builds the ledger pages. billing toggles the upgrade and
// portal buttons.
func NewHandler(store BetStore, q *quota.Validator, signer *login.Signer, log *zap.Logger, billing bool) *Handler {
	return &Handler{bets: store, quota: q, signer: signer, log: log, billing: billing, now: time.Now}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	g := r.Group("/", login.RequirePage(h.signer))
	g.GET("/", h.dashboard)
	g.POST("/add", h.quota.Middleware(func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, "/?error=limit_reached")
	}), h.add)
	g.POST("/update/:id", h.update)
	g.POST("/delete/:id", h.remove)
}

func (h *Handler) dashboard(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	ctx := c.Request.Context()

	list, err := h.bets.ListForUser(ctx, user.ID)
	if err != nil {
		h.log.Error("ledger: list bets", zap.Int("user_id", user.ID), zap.Error(err))
		list = nil
	}
	var pending []bets.Bet
	for _, b := range list {
		if !b.Result.Settled() {
			pending = append(pending, b)
		}
	}
	cats := stats.ByCategory(list)

	c.HTML(http.StatusOK, "index.html", gin.H{
		"user":          user,
		"error":         c.Query("error"),
		"usage":         h.quota.Usage(ctx, user.ID),
		"billing":       h.billing,
		"stats":         stats.Compute(list).Report(),
		"bySport":       stats.Rows(cats.BySport),
		"byBetType":     stats.Rows(cats.ByBetType),
		"today":         h.now().Format(bets.DateLayout),
		"pending":       pending,
		"bets":          list,
		"settleOptions": settleOptions,
	})
}

// betFromForm reads the add-bet form. Missing numbers are left zero so that
// Validate reports them.
func (h *Handler) betFromForm(c *gin.Context, userID int) *bets.Bet {
	b := &bets.Bet{
		UserID:      userID,
		Date:        strings.TrimSpace(c.PostForm("date")),
		Sport:       strings.TrimSpace(c.PostForm("sport")),
		Matchup:     strings.TrimSpace(c.PostForm("matchup")),
		BetType:     strings.TrimSpace(c.PostForm("bet_type")),
		Description: strings.TrimSpace(c.PostForm("bet_description")),
		Sportsbook:  strings.TrimSpace(c.PostForm("sportsbook")),
		Result:      bets.Pending,
		Profit:      decimal.Zero,
	}
	if b.Date == "" {
		b.Date = h.now().Format(bets.DateLayout)
	}
	b.Odds, _ = strconv.Atoi(strings.TrimSpace(c.PostForm("odds")))
	if amt, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("amount"))); err == nil {
		b.Amount = bets.NormalizeAmount(amt)
	}
	return b
}

func (h *Handler) add(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	b := h.betFromForm(c, user.ID)
	if err := b.Validate(); err != nil {
		h.log.Info("ledger: rejected bet", zap.Int("user_id", user.ID), zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/?error=invalid_bet")
		return
	}
	if err := h.bets.Create(c.Request.Context(), b); err != nil {
		h.log.Error("ledger: create bet", zap.Int("user_id", user.ID), zap.Error(err))
	} else {
		metrics.BetsCreated.WithLabelValues("manual").Inc()
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) update(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	ctx := c.Request.Context()
	defer c.Redirect(http.StatusSeeOther, "/")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return
	}
	result, err := bets.ParseResult(c.PostForm("result"))
	if err != nil {
		h.log.Info("ledger: bad result", zap.Int("bet_id", id), zap.Error(err))
		return
	}
	b, err := h.bets.Get(ctx, id, user.ID)
	if err != nil {
		if !errors.Is(err, bets.ErrNotFound) {
			h.log.Error("ledger: load bet", zap.Int("bet_id", id), zap.Error(err))
		}
		return
	}
	profit, err := bets.CalculateProfit(b.Odds, b.Amount, result)
	if err != nil {
		h.log.Warn("ledger: profit", zap.Int("bet_id", id), zap.Error(err))
		return
	}
	if err := h.bets.Settle(ctx, id, user.ID, result, profit); err != nil {
		h.log.Error("ledger: settle bet", zap.Int("bet_id", id), zap.Error(err))
		return
	}
	metrics.BetsSettled.WithLabelValues(string(result)).Inc()
}

func (h *Handler) remove(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	defer c.Redirect(http.StatusSeeOther, "/")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return
	}
	if err := h.bets.Delete(c.Request.Context(), id, user.ID); err != nil {
		h.log.Error("ledger: delete bet", zap.Int("bet_id", id), zap.Error(err))
	}
}
