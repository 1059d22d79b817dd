package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// UpdateOrderStatusCommand moves an order through the state machine. Either field may be empty, not both.
type UpdateOrderStatusCommand struct {
	OrderID       string
	OrderStatus   string
	PaymentStatus string
}

func (c UpdateOrderStatusCommand) CommandName() string { return "update_order_status" }

func (c UpdateOrderStatusCommand) LogFields() []any {
	return []any{"order_id", c.OrderID, "order_status", c.OrderStatus, "payment_status", c.PaymentStatus}
}

func (c UpdateOrderStatusCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return domain.NewValidationError("order_id", "is required")
	}
	if strings.TrimSpace(c.OrderStatus) == "" && strings.TrimSpace(c.PaymentStatus) == "" {
		return domain.NewValidationError("", "orderStatus or paymentStatus is required")
	}
	if c.OrderStatus != "" {
		if _, err := domain.ParseOrderStatus(c.OrderStatus); err != nil {
			return err
		}
	}
	if c.PaymentStatus != "" {
		if _, err := domain.ParsePaymentStatus(c.PaymentStatus); err != nil {
			return err
		}
	}
	return nil
}

type UpdateOrderStatusCommandHandler struct {
	repo        ports.OrderRepository
	stock       StockReconciler
	events      ports.EventBus
	transitions TransitionRecorder
	logger      *slog.Logger
}

func NewUpdateOrderStatusCommandHandler(
	repo ports.OrderRepository,
	stock StockReconciler,
	events ports.EventBus,
	transitions TransitionRecorder,
	logger *slog.Logger,
) *UpdateOrderStatusCommandHandler {
	return &UpdateOrderStatusCommandHandler{
		repo:        repo,
		stock:       stock,
		events:      events,
		transitions: transitions,
		logger:      logger,
	}
}

// Handle applies an explicit payment status first, then the status transition and its stock effects.
// Stock is only touched when the stockDeducted flag says it is due, so retries are safe.
func (h *UpdateOrderStatusCommandHandler) Handle(ctx context.Context, cmd UpdateOrderStatusCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	stored := *order

	if cmd.PaymentStatus != "" {
		paymentStatus, _ := domain.ParsePaymentStatus(cmd.PaymentStatus)
		order.PaymentStatus = paymentStatus
	}

	target := order.Status
	if cmd.OrderStatus != "" {
		target, _ = domain.ParseOrderStatus(cmd.OrderStatus)
	}

	return applyTransition(ctx, h.repo, h.stock, h.events, h.transitions, h.logger, &stored, order, target)
}

// applyTransition plans, executes and persists a status change. Stock effects run before the write;
// if the write fails they are reverted so the ledger matches the stored flag. stored is the order as
// read from the repository; when the transition changes nothing relative to it no write happens.
func applyTransition(
	ctx context.Context,
	repo ports.OrderRepository,
	stock StockReconciler,
	events ports.EventBus,
	transitions TransitionRecorder,
	logger *slog.Logger,
	stored *domain.Order,
	order *domain.Order,
	target domain.OrderStatus,
) (*domain.Order, error) {
	t, err := domain.PlanTransition(*order, target)
	if err != nil {
		return nil, err
	}
	if t.IsNoop(*stored) {
		return stored, nil
	}

	switch {
	case t.CommitStock:
		if err := stock.Commit(ctx, order.Items); err != nil {
			return nil, err
		}
	case t.RestoreStock:
		stock.Restore(ctx, order.Items)
	}

	order.ApplyTransition(t, time.Now().UTC())

	if err := repo.Update(ctx, *order); err != nil {
		if undoErr := undoStockEffect(ctx, stock, t, order.Items); undoErr != nil {
			logger.ErrorContext(ctx, "stock effect could not be reverted after failed order write",
				"order_id", order.ID,
				"error", undoErr,
			)
			err = errors.Join(err, undoErr)
		}
		return nil, fmt.Errorf("save order: %w", err)
	}

	if t.From != t.To {
		transitions.RecordTransition(ctx, string(t.From), string(t.To))
		publish(ctx, logger, "order.status_changed", order.ID, func() error {
			return events.PublishOrderStatusChanged(ctx, *order, t.From)
		})
	}

	return order, nil
}

func undoStockEffect(ctx context.Context, stock StockReconciler, t domain.Transition, items []domain.Item) error {
	switch {
	case t.CommitStock:
		stock.Restore(ctx, items)
	case t.RestoreStock:
		return stock.Commit(ctx, items)
	}
	return nil
}
