package subscriptions

import (
	"errors"
	"io"
	"net/http"

	"locktracker/login"
	"locktracker/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the webhook payload read.
const maxWebhookBody = 64 << 10

type Handler struct {
	stripe *StripeService
	signer *login.Signer
	log    *zap.Logger
}

func NewHandler(s *StripeService, signer *login.Signer, log *zap.Logger) *Handler {
	return &Handler{stripe: s, signer: signer, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	page := login.RequirePage(h.signer)
	r.POST("/checkout", page, h.checkout)
	r.GET("/checkout/success", page, h.checkoutSuccess)
	r.POST("/billing/portal", page, h.portal)

	r.POST("/webhook/stripe", h.webhook)
}

func (h *Handler) checkout(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	url, err := h.stripe.CreateCheckoutSession(c.Request.Context(), user.ID, user.Email)
	if err != nil {
		h.log.Error("subscriptions: checkout", zap.Int("user_id", user.ID), zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/?error=billing_unavailable")
		return
	}
	c.Redirect(http.StatusSeeOther, url)
}

// checkoutSuccess lands the user back on the dashboard; the subscription row
// itself arrives through the webhook.
func (h *Handler) checkoutSuccess(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) portal(c *gin.Context) {
	user, _ := login.CurrentUser(c)
	url, err := h.stripe.CreatePortalSession(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error("subscriptions: billing portal", zap.Int("user_id", user.ID), zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/?error=billing_unavailable")
		return
	}
	c.Redirect(http.StatusSeeOther, url)
}

func (h *Handler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	typ, err := h.stripe.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		metrics.WebhookEvents.WithLabelValues(typ, "ok").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrInvalidPayload):
		h.log.Warn("subscriptions: rejected webhook", zap.String("type", typ), zap.Error(err))
		metrics.WebhookEvents.WithLabelValues(typ, "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// storage failure: let Stripe retry
		h.log.Error("subscriptions: apply webhook", zap.String("type", typ), zap.Error(err))
		metrics.WebhookEvents.WithLabelValues(typ, "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not apply event"})
	}
}
