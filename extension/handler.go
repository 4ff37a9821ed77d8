// Package extension serves the JSON API used by the browser extension.
package extension

import (
	"context"
	"fmt"
	"net/http"

	"locktracker/bets"
	"locktracker/login"
	"locktracker/quota"
	"locktracker/stats"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BetStore is the bet persistence the API needs.
type BetStore interface {
	ImportStore
	ListForUser(ctx context.Context, userID int) ([]bets.Bet, error)
}

type importRequest struct {
	Bets        []ImportedBet `json:"bets"`
	AccessToken string        `json:"access_token"`
}

type Handler struct {
	bets     BetStore
	importer *Importer
	quota    *quota.Validator
	signer   *login.Signer
	log      *zap.Logger
}

func NewHandler(store BetStore, q *quota.Validator, signer *login.Signer, log *zap.Logger) *Handler {
	return &Handler{
		bets:     store,
		importer: NewImporter(store, log),
		quota:    q,
		signer:   signer,
		log:      log,
	}
}

// CORS lets the extension call the API from any origin with credentials.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api", CORS())
	api.OPTIONS("/*path", func(c *gin.Context) {})
	api.POST("/import", h.importBets)
	api.GET("/auth/status", h.authStatus)

	authed := api.Group("", login.RequireAPI(h.signer))
	authed.GET("/stats", h.stats)
	authed.GET("/usage", h.usage)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func (h *Handler) importBets(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	token := login.BearerToken(c)
	if token == "" {
		token = req.AccessToken
	}
	if token == "" {
		fail(c, http.StatusUnauthorized, "No authentication token. Please log in to the web app first.")
		return
	}
	ctx := c.Request.Context()
	user, err := h.signer.Identify(ctx, token)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid or expired token. Please log in again.")
		return
	}
	if len(req.Bets) == 0 {
		fail(c, http.StatusBadRequest, "No bets provided")
		return
	}

	usage, ok := h.quota.Check(ctx, user.ID, 1)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{
			"success":       false,
			"error":         fmt.Sprintf("Monthly limit reached (%d bets). Upgrade to Pro for unlimited bets!", usage.MonthlyLimit),
			"limit_reached": true,
			"monthly_used":  usage.MonthlyCount,
			"monthly_limit": usage.MonthlyLimit,
		})
		return
	}
	limit := usage.Remaining
	if usage.Unlimited() {
		limit = -1
	}

	res, err := h.importer.Import(ctx, user.ID, req.Bets, limit)
	if err != nil {
		h.log.Error("extension: import", zap.Int("user_id", user.ID), zap.Int("imported", res.Imported), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":  false,
			"error":    "Import failed",
			"imported": res.Imported,
		})
		return
	}
	h.log.Info("extension: import",
		zap.Int("user_id", user.ID),
		zap.Int("imported", res.Imported),
		zap.Int("skipped_duplicates", res.SkippedDuplicates),
		zap.Int("skipped_limit", res.SkippedLimit),
		zap.Int("skipped_invalid", res.SkippedInvalid))

	body := gin.H{
		"success":            true,
		"imported":           res.Imported,
		"skipped_duplicates": res.SkippedDuplicates,
		"skipped_limit":      res.SkippedLimit,
		"skipped_invalid":    res.SkippedInvalid,
		"message":            fmt.Sprintf("Successfully imported %d bets", res.Imported),
		"monthly_used":       usage.MonthlyCount + res.Imported,
		"monthly_limit":      usage.MonthlyLimit,
	}
	if res.SkippedLimit > 0 {
		body["warning"] = fmt.Sprintf("Some bets were not imported due to monthly limit (%d). Upgrade to Pro for unlimited!", usage.MonthlyLimit)
	}
	c.JSON(http.StatusOK, body)
}

// authStatus hands the session cookie's token to the extension so it can
// call the API with a bearer header.
func (h *Handler) authStatus(c *gin.Context) {
	token, err := c.Cookie(login.CookieName)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}
	user, err := h.signer.Identify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logged_in":    true,
		"user":         user,
		"access_token": token,
	})
}

type statsResponse struct {
	stats.Report
	BySport   []stats.CategoryReport `json:"by_sport"`
	ByBetType []stats.CategoryReport `json:"by_bet_type"`
}

func (h *Handler) stats(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	list, err := h.bets.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error("extension: list bets", zap.Int("user_id", user.ID), zap.Error(err))
		list = nil
	}
	cats := stats.ByCategory(list)
	c.JSON(http.StatusOK, statsResponse{
		Report:    stats.Compute(list).Report(),
		BySport:   stats.Rows(cats.BySport),
		ByBetType: stats.Rows(cats.ByBetType),
	})
}

func (h *Handler) usage(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	c.JSON(http.StatusOK, h.quota.Usage(c.Request.Context(), user.ID))
}
