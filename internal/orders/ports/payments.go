package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// PaymentGateway hides the payment provider behind checkout sessions and signed webhooks.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*PaymentEvent, error)
}

type CheckoutLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type CheckoutRequest struct {
	Currency       string
	Lines          []CheckoutLine
	CustomerEmail  string
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutSession struct {
	ID       string
	URL      string
	Paid     bool
	Metadata map[string]string
}

type PaymentEventType string

const (
	PaymentEventCheckoutCompleted PaymentEventType = "checkout.session.completed"
	PaymentEventPaymentFailed     PaymentEventType = "payment_intent.payment_failed"
)

// PaymentEvent is a verified webhook notification.
type PaymentEvent struct {
	ID      string
	Type    PaymentEventType
	Session *CheckoutSession
}

// Session metadata keys written at checkout and read back on confirmation.
const (
	MetadataUserID          = "user_id"
	MetadataCartID          = "cart_id"
	MetadataOrderID         = "order_id"
	MetadataShippingAddress = "shipping_address"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrPaymentNotCompleted is returned when a session is confirmed before it was paid.
	ErrPaymentNotCompleted = errors.New("payment not completed")
)
