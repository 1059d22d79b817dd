package commands_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm, re-confirm and cancel keep the ledger balanced", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 2, "B": 1})
		handler := f.updateHandler()

		confirmed, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"})
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if !confirmed.StockDeducted {
			t.Error("expected stockDeducted after confirm")
		}
		if got := f.stockOf(t, "A"); got != (domain.StockLevel{Stock: 8, Sale: 2}) {
			t.Errorf("A after confirm: expected 8/2, got %+v", got)
		}
		if got := f.stockOf(t, "B"); got != (domain.StockLevel{Stock: 2, Sale: 8}) {
			t.Errorf("B after confirm: expected 2/8, got %+v", got)
		}

		if _, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"}); err != nil {
			t.Fatalf("re-confirm: %v", err)
		}
		if got := f.stockOf(t, "A"); got != (domain.StockLevel{Stock: 8, Sale: 2}) {
			t.Errorf("A after re-confirm: expected unchanged 8/2, got %+v", got)
		}

		cancelled, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "cancelled"})
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.StockDeducted {
			t.Error("expected stockDeducted cleared after cancel")
		}
		if cancelled.PaymentStatus != domain.PaymentRefunded {
			t.Errorf("expected refunded, got %s", cancelled.PaymentStatus)
		}
		if got := f.stockOf(t, "A"); got != (domain.StockLevel{Stock: 10, Sale: 0}) {
			t.Errorf("A after cancel: expected 10/0, got %+v", got)
		}
		if got := f.stockOf(t, "B"); got != (domain.StockLevel{Stock: 3, Sale: 7}) {
			t.Errorf("B after cancel: expected 3/7, got %+v", got)
		}
	})

	t.Run("insufficient stock rejects the confirm and changes nothing", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 1, "B": 5})

		_, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"})

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got: %v", err)
		}
		if stockErr.ProductID != "B" || stockErr.Available != 3 || stockErr.Requested != 5 {
			t.Errorf("unexpected details: %+v", stockErr)
		}
		if got := f.stockOf(t, "A"); got.Stock != 10 {
			t.Errorf("A: expected untouched stock 10, got %d", got.Stock)
		}
		if stored := f.stored(t, order.ID); stored.Status != domain.StatusPending || stored.StockDeducted {
			t.Errorf("expected order still pending without deduction, got %s/%v", stored.Status, stored.StockDeducted)
		}
	})

	t.Run("cancelling a pending order touches no stock", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 3})

		cancelled, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "cancelled"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cancelled.PaymentStatus != domain.PaymentPending {
			t.Errorf("expected payment pending, got %s", cancelled.PaymentStatus)
		}
		if got := f.stockOf(t, "A"); got != (domain.StockLevel{Stock: 10, Sale: 0}) {
			t.Errorf("expected 10/0, got %+v", got)
		}
	})

	t.Run("delivering cash on delivery marks it paid", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 1})
		handler := f.updateHandler()

		for _, status := range []string{"confirmed", "processing", "shipped", "delivered"} {
			if _, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: status}); err != nil {
				t.Fatalf("move to %s: %v", status, err)
			}
		}

		stored := f.stored(t, order.ID)
		if stored.PaymentStatus != domain.PaymentPaid {
			t.Errorf("expected paid, got %s", stored.PaymentStatus)
		}
		if got := f.stockOf(t, "A"); got != (domain.StockLevel{Stock: 9, Sale: 1}) {
			t.Errorf("expected a single deduction 9/1, got %+v", got)
		}
	})

	t.Run("payment status only update is a plain write", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "online", map[string]int{"A": 1})

		updated, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, PaymentStatus: "paid"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if updated.PaymentStatus != domain.PaymentPaid || updated.Status != domain.StatusPending {
			t.Errorf("expected pending/paid, got %s/%s", updated.Status, updated.PaymentStatus)
		}
		if got := f.stockOf(t, "A"); got.Stock != 10 {
			t.Errorf("expected stock untouched, got %d", got.Stock)
		}
	})

	t.Run("rejects backwards moves", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 1})
		handler := f.updateHandler()
		if _, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "shipped"}); err != nil {
			t.Fatalf("ship: %v", err)
		}

		_, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "pending"})
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got: %v", err)
		}
	})

	t.Run("rejects unknown values and empty updates", func(t *testing.T) {
		f := newFixture(t)
		handler := f.updateHandler()

		cases := []commands.UpdateOrderStatusCommand{
			{OrderID: "x"},
			{OrderID: "x", OrderStatus: "teleported"},
			{OrderID: "x", PaymentStatus: "maybe"},
			{OrderStatus: "confirmed"},
		}
		for _, cmd := range cases {
			if _, err := handler.Handle(ctx, cmd); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("%+v: expected validation error, got: %v", cmd, err)
			}
		}
	})

	t.Run("returns not found for unknown order", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: "missing", OrderStatus: "confirmed"})
		if !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("reverts the commit when the order cannot be saved", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 2})
		f.repo.updateFn = func(context.Context, domain.Order) error {
			return errors.New("database unavailable")
		}

		_, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if got := f.stockOf(t, "A"); got != (domain.StockLevel{Stock: 10, Sale: 0}) {
			t.Errorf("expected stock reverted to 10/0, got %+v", got)
		}
	})

	t.Run("cancel succeeds when one product cannot be restored", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 2, "B": 1})
		if _, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"}); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		f.breakStockOf("B")

		cancelled, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "cancelled"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cancelled.Status != domain.StatusCancelled || cancelled.StockDeducted {
			t.Errorf("expected cancelled without deduction, got %s/%v", cancelled.Status, cancelled.StockDeducted)
		}
		if stored := f.stored(t, order.ID); stored.Status != domain.StatusCancelled || stored.StockDeducted {
			t.Errorf("expected stored order cancelled without deduction, got %s/%v", stored.Status, stored.StockDeducted)
		}
		if got := f.stockOf(t, "A"); got != (domain.StockLevel{Stock: 10, Sale: 0}) {
			t.Errorf("A: expected restored 10/0, got %+v", got)
		}
		if got := f.stockOf(t, "B"); got != (domain.StockLevel{Stock: 2, Sale: 8}) {
			t.Errorf("B: expected unchanged 2/8, got %+v", got)
		}
	})

	t.Run("re-confirming a deducted order does not write", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 1})
		handler := f.updateHandler()
		if _, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"}); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		f.repo.updateFn = func(context.Context, domain.Order) error {
			return errors.New("unexpected write")
		}
		published := len(f.events.names())

		again, err := handler.Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if again.Status != domain.StatusConfirmed || !again.StockDeducted {
			t.Errorf("expected confirmed with deduction, got %s/%v", again.Status, again.StockDeducted)
		}
		if got := len(f.events.names()); got != published {
			t.Errorf("expected no new events, got %d more", got-published)
		}
	})

	t.Run("publishes status changes", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 1})

		if _, err := f.updateHandler().Handle(ctx, commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: "confirmed"}); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		last := f.events.events[len(f.events.events)-1]
		if last.name != "order.status_changed" || last.from != domain.StatusPending || last.to != domain.StatusConfirmed {
			t.Errorf("unexpected event %+v", last)
		}
	})
}

// The stockDeducted flag must agree with the status after any sequence of updates.
func TestUpdateOrderStatusKeepsStockFlagConsistent(t *testing.T) {
	sequences := [][]string{
		{"confirmed", "cancelled"},
		{"processing", "shipped", "cancelled"},
		{"cancelled"},
		{"shipped", "delivered"},
		{"confirmed", "pending", "processing"},
		{"delivered", "cancelled", "confirmed"},
	}

	for _, seq := range sequences {
		f := newFixture(t)
		order := f.placeOrder(t, "u1", "cod", map[string]int{"A": 2})
		handler := f.updateHandler()

		for _, status := range seq {
			_, _ = handler.Handle(context.Background(), commands.UpdateOrderStatusCommand{OrderID: order.ID, OrderStatus: status})

			stored := f.stored(t, order.ID)
			if stored.StockDeducted != domain.HoldsStock(stored.Status) {
				t.Fatalf("sequence %v: status %s with stockDeducted=%v", seq, stored.Status, stored.StockDeducted)
			}

			wantStock := 10
			if stored.StockDeducted {
				wantStock = 8
			}
			if got := f.stockOf(t, "A"); got.Stock != wantStock {
				t.Fatalf("sequence %v at %s: expected stock %d, got %d", seq, status, wantStock, got.Stock)
			}
		}
	}
}
