package commands_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/stock"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric/noop"
)

type recordedEvent struct {
	name    string
	orderID string
	from    domain.OrderStatus
	to      domain.OrderStatus
}

type mockEventBus struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (m *mockEventBus) PublishOrderCreated(_ context.Context, order domain.Order) error {
	m.record(recordedEvent{name: "order.created", orderID: order.ID, to: order.Status})
	return m.err
}

func (m *mockEventBus) PublishOrderStatusChanged(_ context.Context, order domain.Order, from domain.OrderStatus) error {
	m.record(recordedEvent{name: "order.status_changed", orderID: order.ID, from: from, to: order.Status})
	return m.err
}

func (m *mockEventBus) PublishOrderDeleted(_ context.Context, orderID string) error {
	m.record(recordedEvent{name: "order.deleted", orderID: orderID})
	return m.err
}

func (m *mockEventBus) record(e recordedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *mockEventBus) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.events))
	for _, e := range m.events {
		names = append(names, e.name)
	}
	return names
}

// mockRepository wraps the in-memory repository and lets a test fail single operations.
type mockRepository struct {
	*memory.Repository
	updateFn func(ctx context.Context, order domain.Order) error
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockRepository) Update(ctx context.Context, order domain.Order) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, order)
	}
	return m.Repository.Update(ctx, order)
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return m.Repository.Delete(ctx, id)
}

// unadjustableProducts fails AdjustStock for a single product, as when it left the catalogue.
type unadjustableProducts struct {
	ports.ProductStore
	productID string
}

func (u *unadjustableProducts) AdjustStock(ctx context.Context, id string, stockDelta, saleDelta int) (domain.StockLevel, error) {
	if id == u.productID {
		return domain.StockLevel{}, ports.ErrProductNotFound
	}
	return u.ProductStore.AdjustStock(ctx, id, stockDelta, saleDelta)
}

type fixture struct {
	repo     *mockRepository
	carts    *memory.CartStore
	products *memory.ProductStore
	stock    *stock.Reconciler
	events   *mockEventBus
	metrics  *metrics.Metrics
	logger   *slog.Logger
	policy   commands.OrderPolicy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	m, err := metrics.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	products := memory.NewProductStore(
		domain.Product{ID: "A", Name: "Mug", Price: decimal.NewFromInt(50), Stock: 10},
		domain.Product{ID: "B", Name: "Tee", Price: decimal.NewFromInt(120), Stock: 3, Sale: 7},
	)

	return &fixture{
		repo:     &mockRepository{Repository: memory.NewRepository()},
		carts:    memory.NewCartStore(),
		products: products,
		stock:    stock.NewReconciler(products, logger, m),
		events:   &mockEventBus{},
		metrics:  m,
		logger:   logger,
		policy:   commands.OrderPolicy{ShippingFee: decimal.NewFromInt(100)},
	}
}

// breakStockOf makes every later stock adjustment of productID fail.
func (f *fixture) breakStockOf(productID string) {
	f.stock = stock.NewReconciler(&unadjustableProducts{ProductStore: f.products, productID: productID}, f.logger, f.metrics)
}

func (f *fixture) createHandler() *commands.CreateOrderCommandHandler {
	return commands.NewCreateOrderCommandHandler(f.repo, f.carts, f.stock, f.events, f.logger, f.policy)
}

func (f *fixture) updateHandler() *commands.UpdateOrderStatusCommandHandler {
	return commands.NewUpdateOrderStatusCommandHandler(f.repo, f.stock, f.events, f.metrics, f.logger)
}

func (f *fixture) deleteHandler() *commands.DeleteOrderCommandHandler {
	return commands.NewDeleteOrderCommandHandler(f.repo, f.stock, f.events, f.logger)
}

func (f *fixture) confirmHandler() *commands.ConfirmPaymentCommandHandler {
	return commands.NewConfirmPaymentCommandHandler(f.repo, f.carts, f.stock, f.events, f.metrics, f.logger, f.policy)
}

// placeOrder fills the user's cart and turns it into a pending order.
func (f *fixture) placeOrder(t *testing.T, userID, method string, lines map[string]int) *domain.Order {
	t.Helper()
	f.fillCart(t, userID, lines)
	order, err := f.createHandler().Handle(context.Background(), commands.CreateOrderCommand{
		UserID:          userID,
		ShippingAddress: validAddress(),
		PaymentMethod:   method,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (f *fixture) fillCart(t *testing.T, userID string, lines map[string]int) *domain.Cart {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	cart, err := f.carts.GetActiveCart(ctx, userID)
	if err != nil {
		cart = domain.NewCart("cart-"+userID, userID, now)
	}
	for _, id := range []string{"A", "B"} {
		qty, ok := lines[id]
		if !ok {
			continue
		}
		product, err := f.products.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID(%s): %v", id, err)
		}
		if err := cart.AddItem(*product, qty, now); err != nil {
			t.Fatalf("AddItem(%s): %v", id, err)
		}
	}
	if err := f.carts.Save(ctx, *cart); err != nil {
		t.Fatalf("Save cart: %v", err)
	}
	return cart
}

func (f *fixture) stockOf(t *testing.T, id string) domain.StockLevel {
	t.Helper()
	level, err := f.products.GetStock(context.Background(), id)
	if err != nil {
		t.Fatalf("GetStock(%s): %v", id, err)
	}
	return level
}

func (f *fixture) stored(t *testing.T, id string) *domain.Order {
	t.Helper()
	order, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return order
}

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:    "Omar Said",
		Phone:       "01100000000",
		Governorate: "Cairo",
		City:        "Nasr City",
		Street:      "5 Abbas El Akkad",
	}
}

var _ ports.EventBus = (*mockEventBus)(nil)
