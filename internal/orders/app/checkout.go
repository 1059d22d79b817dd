package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

// ErrPaymentsUnavailable is returned by checkout operations when no payment gateway is configured.
var ErrPaymentsUnavailable = errors.New("online payments are not configured")

// CheckoutInput starts a hosted checkout for the active cart, or for an existing pending order when OrderID is set.
type CheckoutInput struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	OrderID         string                 `json:"orderId,omitempty"`
}

// CreateCheckoutSession prices the cart (or order) plus shipping and opens a payment session for it.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string, input CheckoutInput) (*ports.CheckoutSession, error) {
	if s.payments == nil {
		return nil, ErrPaymentsUnavailable
	}
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user", "is required")
	}

	metadata := map[string]string{ports.MetadataUserID: userID}

	var lines []ports.CheckoutLine
	if input.OrderID != "" {
		order, err := s.orders.GetByID(ctx, input.OrderID)
		if err != nil {
			return nil, err
		}
		if order.UserID != userID {
			return nil, ports.ErrNotFound
		}
		if order.Status != domain.StatusPending || order.PaymentStatus != domain.PaymentPending {
			return nil, domain.NewValidationError("orderId", "is not awaiting payment")
		}
		lines = checkoutLines(order.Items, order.ShippingFee)
		metadata[ports.MetadataOrderID] = order.ID
	} else {
		if err := input.ShippingAddress.Validate(); err != nil {
			return nil, err
		}
		cart, err := s.carts.GetActiveCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cart.IsEmpty() {
			return nil, fmt.Errorf("%w: cart is empty", ports.ErrCartNotFound)
		}
		address, err := json.Marshal(input.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("encode shipping address: %w", err)
		}
		lines = checkoutLines(cart.OrderItems(), s.policy.ShippingFee)
		metadata[ports.MetadataCartID] = cart.ID
		metadata[ports.MetadataShippingAddress] = string(address)
	}

	session, err := s.payments.CreateSession(ctx, ports.CheckoutRequest{
		Currency:   s.checkout.Currency,
		Lines:      lines,
		Metadata:   metadata,
		SuccessURL: s.checkout.SuccessURL,
		CancelURL:  s.checkout.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		"session_id", session.ID,
		"user_id", userID,
		"order_id", metadata[ports.MetadataOrderID],
		"cart_id", metadata[ports.MetadataCartID],
	)

	return session, nil
}

// VerifyCheckoutSession confirms a session the customer returned from. It is safe to call more than once.
func (s *Service) VerifyCheckoutSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	if s.payments == nil {
		return nil, ErrPaymentsUnavailable
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.NewValidationError("session_id", "is required")
	}

	session, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if !session.Paid {
		return nil, ports.ErrPaymentNotCompleted
	}

	return s.confirmPayment.Handle(ctx, commands.ConfirmPaymentCommand{Session: *session})
}

// HandlePaymentWebhook verifies a provider notification and confirms the order it pays for.
// Events that do not complete a payment return a nil order.
func (s *Service) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (*domain.Order, error) {
	if s.payments == nil {
		return nil, ErrPaymentsUnavailable
	}

	event, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}

	switch event.Type {
	case ports.PaymentEventCheckoutCompleted:
		if event.Session == nil || !event.Session.Paid {
			s.logger.InfoContext(ctx, "checkout completed without payment", "event_id", event.ID)
			return nil, nil
		}
		return s.confirmPayment.Handle(ctx, commands.ConfirmPaymentCommand{Session: *event.Session})
	case ports.PaymentEventPaymentFailed:
		s.logger.WarnContext(ctx, "payment failed", "event_id", event.ID)
		return nil, nil
	default:
		s.logger.DebugContext(ctx, "ignoring payment event", "event_id", event.ID, "type", event.Type)
		return nil, nil
	}
}

// checkoutLines lists each item at its frozen unit price plus a shipping line when a fee applies.
func checkoutLines(items []domain.Item, shippingFee decimal.Decimal) []ports.CheckoutLine {
	lines := make([]ports.CheckoutLine, 0, len(items)+1)
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		lines = append(lines, ports.CheckoutLine{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if shippingFee.IsPositive() {
		lines = append(lines, ports.CheckoutLine{
			Name:      "Shipping Fees",
			Quantity:  1,
			UnitPrice: shippingFee,
		})
	}
	return lines
}
