package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

type sessionAPI interface {
	New(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
	Get(id string, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
}

// Config configures the Stripe gateway.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Backends      *stripeapi.Backends
	Sessions      sessionAPI
}

// Gateway implements ports.PaymentGateway with Stripe Checkout.
type Gateway struct {
	sessions      sessionAPI
	webhookSecret string
}

var _ ports.PaymentGateway = (*Gateway)(nil)

func NewGateway(cfg Config) (*Gateway, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = client.New(key, cfg.Backends).CheckoutSessions
	}

	return &Gateway{
		sessions:      sessions,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateSession opens a hosted payment page. Amounts are sent in minor units.
func (g *Gateway) CreateSession(ctx context.Context, req ports.CheckoutRequest) (*ports.CheckoutSession, error) {
	if len(req.Lines) == 0 {
		return nil, errors.New("stripe: checkout needs at least one line")
	}

	currency := strings.ToLower(req.Currency)
	params := &stripeapi.CheckoutSessionParams{
		Mode:       stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL: stripeapi.String(req.SuccessURL),
		CancelURL:  stripeapi.String(req.CancelURL),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	params.LineItems = make([]*stripeapi.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripeapi.CheckoutSessionLineItemParams{
			Quantity: stripeapi.Int64(int64(max(line.Quantity, 1))),
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripeapi.String(currency),
				UnitAmount: stripeapi.Int64(minorUnits(line.UnitPrice)),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(line.Name),
				},
			},
		})
	}

	session, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return toCheckoutSession(session), nil
}

func (g *Gateway) RetrieveSession(ctx context.Context, sessionID string) (*ports.CheckoutSession, error) {
	params := &stripeapi.CheckoutSessionParams{}
	params.Context = ctx

	session, err := g.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripeapi.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("stripe: retrieve checkout session: %w", err)
	}
	return toCheckoutSession(session), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout events.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*ports.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidSignature, err)
	}

	result := &ports.PaymentEvent{
		ID:   event.ID,
		Type: ports.PaymentEventType(event.Type),
	}

	if result.Type == ports.PaymentEventCheckoutCompleted && event.Data != nil {
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
		}
		result.Session = toCheckoutSession(&session)
	}

	return result, nil
}

func toCheckoutSession(session *stripeapi.CheckoutSession) *ports.CheckoutSession {
	return &ports.CheckoutSession{
		ID:       session.ID,
		URL:      session.URL,
		Paid:     session.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusPaid,
		Metadata: session.Metadata,
	}
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
