package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/google/uuid"
)

// ConfirmPaymentCommand carries a checkout session the payment provider reported as paid.
type ConfirmPaymentCommand struct {
	Session ports.CheckoutSession
}

func (c ConfirmPaymentCommand) CommandName() string { return "confirm_payment" }

func (c ConfirmPaymentCommand) LogFields() []any {
	return []any{
		"session_id", c.Session.ID,
		"order_id", c.Session.Metadata[ports.MetadataOrderID],
		"cart_id", c.Session.Metadata[ports.MetadataCartID],
	}
}

func (c ConfirmPaymentCommand) Validate() error {
	if strings.TrimSpace(c.Session.ID) == "" {
		return domain.NewValidationError("session_id", "is required")
	}
	if !c.Session.Paid {
		return ports.ErrPaymentNotCompleted
	}
	if c.Session.Metadata[ports.MetadataOrderID] == "" && c.Session.Metadata[ports.MetadataCartID] == "" {
		return domain.NewValidationError("metadata", "must reference an order or a cart")
	}
	return nil
}

// ConfirmPaymentCommandHandler turns a paid checkout session into a paid, confirmed order.
// Sessions are processed at most once: a second delivery returns the order already linked to it.
type ConfirmPaymentCommandHandler struct {
	repo        ports.OrderRepository
	carts       ports.CartStore
	stock       StockReconciler
	events      ports.EventBus
	transitions TransitionRecorder
	logger      *slog.Logger
	policy      OrderPolicy
}

func NewConfirmPaymentCommandHandler(
	repo ports.OrderRepository,
	carts ports.CartStore,
	stock StockReconciler,
	events ports.EventBus,
	transitions TransitionRecorder,
	logger *slog.Logger,
	policy OrderPolicy,
) *ConfirmPaymentCommandHandler {
	return &ConfirmPaymentCommandHandler{
		repo:        repo,
		carts:       carts,
		stock:       stock,
		events:      events,
		transitions: transitions,
		logger:      logger,
		policy:      policy,
	}
}

func (h *ConfirmPaymentCommandHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	existing, err := h.repo.GetByPaymentSession(ctx, cmd.Session.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}

	if orderID := cmd.Session.Metadata[ports.MetadataOrderID]; orderID != "" {
		return h.confirmExisting(ctx, orderID, cmd.Session.ID)
	}
	return h.createFromCart(ctx, cmd.Session)
}

func (h *ConfirmPaymentCommandHandler) confirmExisting(ctx context.Context, orderID, sessionID string) (*domain.Order, error) {
	order, err := h.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	stored := *order

	order.PaymentStatus = domain.PaymentPaid
	order.PaymentSessionID = sessionID

	if order.Status != domain.StatusPending {
		if order.IsTerminal() {
			h.logger.WarnContext(ctx, "payment received for closed order",
				"order_id", order.ID,
				"order_status", order.Status,
			)
		}
		order.UpdatedAt = time.Now().UTC()
		if err := h.repo.Update(ctx, *order); err != nil {
			return nil, fmt.Errorf("save order: %w", err)
		}
		return order, nil
	}

	confirmed, err := applyTransition(ctx, h.repo, h.stock, h.events, h.transitions, h.logger, &stored, order, domain.StatusConfirmed)
	if errors.Is(err, domain.ErrInsufficientStock) {
		h.logger.WarnContext(ctx, "paid order left pending: not enough stock to confirm",
			"order_id", order.ID,
			"error", err,
		)
		order.UpdatedAt = time.Now().UTC()
		if err := h.repo.Update(ctx, *order); err != nil {
			return nil, fmt.Errorf("save order: %w", err)
		}
		return order, nil
	}
	return confirmed, err
}

func (h *ConfirmPaymentCommandHandler) createFromCart(ctx context.Context, session ports.CheckoutSession) (*domain.Order, error) {
	cart, err := h.carts.GetByID(ctx, session.Metadata[ports.MetadataCartID])
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, fmt.Errorf("%w: cart is empty", ports.ErrCartNotFound)
	}

	var address domain.ShippingAddress
	if raw := session.Metadata[ports.MetadataShippingAddress]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &address); err != nil {
			return nil, domain.NewValidationError("shipping_address", "is not valid JSON")
		}
	}

	userID := session.Metadata[ports.MetadataUserID]
	if userID == "" {
		userID = cart.UserID
	}

	order, err := domain.NewOrder(domain.NewOrderParams{
		ID:              uuid.NewString(),
		UserID:          userID,
		ShippingAddress: address,
		PaymentMethod:   domain.PaymentMethodOnline,
		Items:           cart.OrderItems(),
		Subtotal:        cart.TotalPrice,
		ShippingFee:     h.policy.ShippingFee,
		Now:             time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	order.PaymentStatus = domain.PaymentPaid
	order.PaymentSessionID = session.ID

	t, err := domain.PlanTransition(*order, domain.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if err := h.stock.Commit(ctx, order.Items); err != nil {
		if !errors.Is(err, domain.ErrInsufficientStock) {
			return nil, err
		}
		h.logger.WarnContext(ctx, "paid order left pending: not enough stock to confirm",
			"session_id", session.ID,
			"error", err,
		)
	} else {
		order.ApplyTransition(t, order.CreatedAt)
	}

	if err := h.repo.Create(ctx, *order); err != nil {
		if order.StockDeducted {
			h.stock.Restore(ctx, order.Items)
		}
		if errors.Is(err, ports.ErrConflict) {
			return h.repo.GetByPaymentSession(ctx, session.ID)
		}
		return nil, fmt.Errorf("save order: %w", err)
	}

	if err := h.carts.Clear(ctx, cart.ID); err != nil {
		h.logger.WarnContext(ctx, "order saved but cart was not cleared",
			"order_id", order.ID,
			"cart_id", cart.ID,
			"error", err,
		)
	}

	publish(ctx, h.logger, "order.created", order.ID, func() error {
		return h.events.PublishOrderCreated(ctx, *order)
	})
	if order.Status != domain.StatusPending {
		h.transitions.RecordTransition(ctx, string(domain.StatusPending), string(order.Status))
		publish(ctx, h.logger, "order.status_changed", order.ID, func() error {
			return h.events.PublishOrderStatusChanged(ctx, *order, domain.StatusPending)
		})
	}

	return order, nil
}
