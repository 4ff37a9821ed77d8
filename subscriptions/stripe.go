package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"locktracker/config"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

var (
	ErrStripeDisabled      = errors.New("stripe not configured")
	ErrStripeInvalidAPIKey = errors.New("stripe_invalid_api_key")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
	ErrNoCustomer          = errors.New("no billing customer for user")
)

// Store is the persistence the webhook reconciliation writes through.
type Store interface {
	Upsert(ctx context.Context, s *Subscription) error
	SetStatus(ctx context.Context, stripeSubscriptionID string, status Status) (bool, error)
	GetLatestForUser(ctx context.Context, userID int) (*Subscription, error)
}

type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type portalSessions interface {
	New(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// StripeService creates hosted checkout and portal sessions and applies
// webhook events to local subscription rows.
type StripeService struct {
	store         Store
	log           *zap.Logger
	secretKey     string
	webhookSecret string
	priceID       string
	appURL        string
	checkout      checkoutSessions
	portal        portalSessions
	invalidKey    atomic.Bool // once detected, short-circuit further remote calls
}

func maskKey(k string) string {
	if len(k) < 12 {
		return "****"
	}
	return k[:7] + "..." + k[len(k)-4:]
}

// NewStripeService wires the Stripe client. Checkout and portal calls fail
// with ErrStripeDisabled when no secret key is configured; webhooks are still
// verified against the webhook secret.
func NewStripeService(cfg config.StripeConfig, appURL string, store Store, log *zap.Logger) *StripeService {
	s := &StripeService{
		store:         store,
		log:           log,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		priceID:       cfg.PriceID,
		appURL:        appURL,
	}
	if cfg.Enabled() {
		sc := &client.API{}
		sc.Init(cfg.SecretKey, nil)
		s.checkout = sc.CheckoutSessions
		s.portal = sc.BillingPortalSessions
	}
	return s
}

// Enabled reports whether checkout and portal sessions can be created.
func (s *StripeService) Enabled() bool { return s.checkout != nil && s.priceID != "" }

func (s *StripeService) stripeErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && (se.HTTPStatusCode == 401 || strings.Contains(strings.ToLower(se.Msg), "invalid api key")) {
		s.log.Error("stripe: invalid api key", zap.String("op", op), zap.String("key", maskKey(s.secretKey)), zap.Error(se))
		s.invalidKey.Store(true)
		return ErrStripeInvalidAPIKey
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

// CreateCheckoutSession starts a subscription checkout for the user and
// returns the hosted page URL.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID int, email string) (string, error) {
	if !s.Enabled() {
		return "", ErrStripeDisabled
	}
	if s.invalidKey.Load() {
		return "", ErrStripeInvalidAPIKey
	}
	uid := strconv.Itoa(userID)
	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(s.appURL + "/checkout/success"),
		CancelURL:         stripe.String(s.appURL + "/"),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(uid),
		CustomerEmail:     stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.priceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": uid},
		},
		Metadata: map[string]string{"user_id": uid},
	}
	params.Context = ctx
	sess, err := s.checkout.New(params)
	if err != nil {
		return "", s.stripeErr("checkout", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the billing portal for the user's Stripe customer.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID int) (string, error) {
	if s.portal == nil {
		return "", ErrStripeDisabled
	}
	if s.invalidKey.Load() {
		return "", ErrStripeInvalidAPIKey
	}
	sub, err := s.store.GetLatestForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(s.appURL + "/"),
	}
	params.Context = ctx
	sess, err := s.portal.New(params)
	if err != nil {
		return "", s.stripeErr("portal", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and applies one Stripe event and returns its type.
// Unhandled event types are accepted and ignored.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	typ := string(event.Type)
	if event.Data == nil {
		return typ, ErrInvalidPayload
	}
	raw := event.Data.Raw

	switch typ {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw, &cs); err != nil {
			return typ, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return typ, s.checkoutCompleted(ctx, &cs)
	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return typ, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return typ, s.applyStatus(ctx, &sub, MapStripeStatus(string(sub.Status)))
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return typ, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return typ, s.applyStatus(ctx, &sub, StatusCancelled)
	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return typ, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" {
			// one-off invoice, nothing to reconcile
			return typ, nil
		}
		_, err := s.store.SetStatus(ctx, inv.Subscription.ID, StatusPastDue)
		return typ, err
	}
	s.log.Debug("stripe: ignored event", zap.String("type", typ), zap.String("id", event.ID))
	return typ, nil
}

func (s *StripeService) checkoutCompleted(ctx context.Context, cs *stripe.CheckoutSession) error {
	if cs.Subscription == nil || cs.Subscription.ID == "" {
		s.log.Warn("stripe: checkout without subscription", zap.String("session", cs.ID))
		return nil
	}
	userID := parseUserID(cs.ClientReferenceID)
	if userID == 0 {
		userID = parseUserID(cs.Metadata["user_id"])
	}
	if userID == 0 {
		return fmt.Errorf("%w: checkout session %s has no user", ErrInvalidPayload, cs.ID)
	}
	sub := &Subscription{
		UserID:               userID,
		StripeSubscriptionID: cs.Subscription.ID,
		Status:               StatusActive,
	}
	if cs.Customer != nil {
		sub.StripeCustomerID = cs.Customer.ID
	}
	if err := s.store.Upsert(ctx, sub); err != nil {
		return err
	}
	s.log.Info("stripe: subscription activated", zap.Int("user_id", userID), zap.String("subscription", sub.StripeSubscriptionID))
	return nil
}

// applyStatus updates a known subscription, creating the row when the
// subscription carries its owner in metadata but checkout was never seen.
func (s *StripeService) applyStatus(ctx context.Context, sub *stripe.Subscription, status Status) error {
	if sub.ID == "" {
		return fmt.Errorf("%w: subscription without id", ErrInvalidPayload)
	}
	found, err := s.store.SetStatus(ctx, sub.ID, status)
	if err != nil || found {
		return err
	}
	userID := parseUserID(sub.Metadata["user_id"])
	if userID == 0 {
		s.log.Warn("stripe: status for unknown subscription", zap.String("subscription", sub.ID), zap.String("status", string(status)))
		return nil
	}
	row := &Subscription{UserID: userID, StripeSubscriptionID: sub.ID, Status: status}
	if sub.Customer != nil {
		row.StripeCustomerID = sub.Customer.ID
	}
	return s.store.Upsert(ctx, row)
}

func parseUserID(s string) int {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
