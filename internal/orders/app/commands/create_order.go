package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/google/uuid"
)

type CreateOrderCommand struct {
	UserID          string
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

func (c CreateOrderCommand) CommandName() string { return "create_order" }

func (c CreateOrderCommand) LogFields() []any {
	return []any{"user_id", c.UserID, "payment_method", c.PaymentMethod}
}

func (c CreateOrderCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return domain.NewValidationError("user", "is required")
	}
	if err := c.ShippingAddress.Validate(); err != nil {
		return err
	}
	if _, err := domain.ParsePaymentMethod(c.PaymentMethod); err != nil {
		return err
	}
	return nil
}

// CreateOrderCommandHandler snapshots the user's active cart into a pending order and empties the cart.
type CreateOrderCommandHandler struct {
	repo   ports.OrderRepository
	carts  ports.CartStore
	stock  StockReconciler
	events ports.EventBus
	logger *slog.Logger
	policy OrderPolicy
}

func NewCreateOrderCommandHandler(
	repo ports.OrderRepository,
	carts ports.CartStore,
	stock StockReconciler,
	events ports.EventBus,
	logger *slog.Logger,
	policy OrderPolicy,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		repo:   repo,
		carts:  carts,
		stock:  stock,
		events: events,
		logger: logger,
		policy: policy,
	}
}

func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	method, _ := domain.ParsePaymentMethod(cmd.PaymentMethod)

	cart, err := h.carts.GetActiveCart(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, fmt.Errorf("%w: cart is empty", ports.ErrCartNotFound)
	}

	order, err := domain.NewOrder(domain.NewOrderParams{
		ID:              uuid.NewString(),
		UserID:          cmd.UserID,
		ShippingAddress: cmd.ShippingAddress,
		PaymentMethod:   method,
		Items:           cart.OrderItems(),
		Subtotal:        cart.TotalPrice,
		ShippingFee:     h.policy.ShippingFee,
		Now:             time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if h.policy.DeductOnCreate {
		if err := h.stock.Commit(ctx, order.Items); err != nil {
			return nil, err
		}
		order.StockDeducted = true
	}

	if err := h.repo.Create(ctx, *order); err != nil {
		if order.StockDeducted {
			h.stock.Restore(ctx, order.Items)
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

	return order, nil
}
