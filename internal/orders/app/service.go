package app

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/app/stock"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Dependencies lists the collaborators of the order service. Payments may be nil, which disables checkout.
type Dependencies struct {
	Orders      ports.OrderRepository
	Carts       ports.CartStore
	Products    ports.ProductStore
	Payments    ports.PaymentGateway
	Events      ports.EventBus
	Idempotency ports.IdempotencyStore
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Policy      commands.OrderPolicy
	Checkout    CheckoutConfig
}

// CheckoutConfig controls hosted checkout sessions.
type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Service bundles use cases for handling carts and orders via the API.
type Service struct {
	orders    ports.OrderRepository
	carts     ports.CartStore
	products  ports.ProductStore
	payments  ports.PaymentGateway
	idemStore ports.IdempotencyStore
	logger    *slog.Logger
	policy    commands.OrderPolicy
	checkout  CheckoutConfig

	createOrder    commands.CommandHandler[commands.CreateOrderCommand]
	updateStatus   commands.CommandHandler[commands.UpdateOrderStatusCommand]
	deleteOrder    commands.CommandHandler[commands.DeleteOrderCommand]
	confirmPayment commands.CommandHandler[commands.ConfirmPaymentCommand]
	getOrder       *queries.GetOrderQueryHandler
	listOrders     *queries.ListOrdersQueryHandler
}

// NewService wires the command handlers, each wrapped with tracing, logging and metrics.
func NewService(deps Dependencies) *Service {
	reconciler := stock.NewReconciler(deps.Products, deps.Logger, deps.Metrics)

	createOrder := commands.NewCreateOrderCommandHandler(
		deps.Orders, deps.Carts, reconciler, deps.Events, deps.Logger, deps.Policy,
	)
	updateStatus := commands.NewUpdateOrderStatusCommandHandler(
		deps.Orders, reconciler, deps.Events, deps.Metrics, deps.Logger,
	)
	deleteOrder := commands.NewDeleteOrderCommandHandler(
		deps.Orders, reconciler, deps.Events, deps.Logger,
	)
	confirmPayment := commands.NewConfirmPaymentCommandHandler(
		deps.Orders, deps.Carts, reconciler, deps.Events, deps.Metrics, deps.Logger, deps.Policy,
	)

	return &Service{
		orders:    deps.Orders,
		carts:     deps.Carts,
		products:  deps.Products,
		payments:  deps.Payments,
		idemStore: deps.Idempotency,
		logger:    deps.Logger,
		policy:    deps.Policy,
		checkout:  deps.Checkout,

		createOrder:    commands.NewObservableCreateOrderHandler(createOrder, deps.Logger, deps.Metrics),
		updateStatus:   commands.NewObservableCommandHandler(updateStatus, deps.Logger, deps.Metrics),
		deleteOrder:    commands.NewObservableCommandHandler(deleteOrder, deps.Logger, deps.Metrics),
		confirmPayment: commands.NewObservableCommandHandler(confirmPayment, deps.Logger, deps.Metrics),
		getOrder:       queries.NewGetOrderQueryHandler(deps.Orders),
		listOrders:     queries.NewListOrdersQueryHandler(deps.Orders),
	}
}

// CreateOrderInput captures the checkout form for a cash or online order.
type CreateOrderInput struct {
	domain.ShippingAddress
	PaymentMethod string `json:"paymentMethod"`
}

// CreateOrder converts the user's active cart into a pending order.
func (s *Service) CreateOrder(ctx context.Context, userID string, input CreateOrderInput) (*domain.Order, error) {
	return s.createOrder.Handle(ctx, commands.CreateOrderCommand{
		UserID:          userID,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
	})
}

// UpdateOrderStatusInput holds the optional status fields of an admin update.
type UpdateOrderStatusInput struct {
	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`
}

// UpdateOrderStatus runs the state machine for one order.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, input UpdateOrderStatusInput) (*domain.Order, error) {
	return s.updateStatus.Handle(ctx, commands.UpdateOrderStatusCommand{
		OrderID:       orderID,
		OrderStatus:   input.OrderStatus,
		PaymentStatus: input.PaymentStatus,
	})
}

// DeleteOrder hard-deletes an order, restoring any stock it holds.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	_, err := s.deleteOrder.Handle(ctx, commands.DeleteOrderCommand{OrderID: orderID})
	return err
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ListOrders returns orders using a filter.
func (s *Service) ListOrders(ctx context.Context, query queries.ListOrdersQuery) ([]domain.Order, error) {
	return s.listOrders.Handle(ctx, query)
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}
