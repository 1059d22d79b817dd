package adapters

import (
	"context"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"go.opentelemetry.io/otel/attribute"
)

const (
	storeCarts    = "carts"
	storeProducts = "products"
)

type ObservableCartStore struct {
	carts   ports.CartStore
	metrics *database.Metrics
}

var _ ports.CartStore = (*ObservableCartStore)(nil)

func NewObservableCartStore(carts ports.CartStore, metrics *database.Metrics) *ObservableCartStore {
	return &ObservableCartStore{carts: carts, metrics: metrics}
}

func (s *ObservableCartStore) GetActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := observe(ctx, s.metrics, storeCarts, "CartStore.GetActiveCart", "get_active_cart",
		func(ctx context.Context) (err error) {
			cart, err = s.carts.GetActiveCart(ctx, userID)
			return err
		},
		attribute.String("user.id", userID),
	)
	return cart, err
}

func (s *ObservableCartStore) GetByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := observe(ctx, s.metrics, storeCarts, "CartStore.GetByID", "get_cart",
		func(ctx context.Context) (err error) {
			cart, err = s.carts.GetByID(ctx, cartID)
			return err
		},
		attribute.String("cart.id", cartID),
	)
	return cart, err
}

func (s *ObservableCartStore) Save(ctx context.Context, cart domain.Cart) error {
	return observe(ctx, s.metrics, storeCarts, "CartStore.Save", "save_cart",
		func(ctx context.Context) error { return s.carts.Save(ctx, cart) },
		attribute.String("cart.id", cart.ID),
		attribute.Int("cart.items", len(cart.Items)),
	)
}

func (s *ObservableCartStore) Clear(ctx context.Context, cartID string) error {
	return observe(ctx, s.metrics, storeCarts, "CartStore.Clear", "clear_cart",
		func(ctx context.Context) error { return s.carts.Clear(ctx, cartID) },
		attribute.String("cart.id", cartID),
	)
}

type ObservableProductStore struct {
	products ports.ProductStore
	metrics  *database.Metrics
}

var _ ports.ProductStore = (*ObservableProductStore)(nil)

func NewObservableProductStore(products ports.ProductStore, metrics *database.Metrics) *ObservableProductStore {
	return &ObservableProductStore{products: products, metrics: metrics}
}

func (s *ObservableProductStore) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var product *domain.Product
	err := observe(ctx, s.metrics, storeProducts, "ProductStore.FindByID", "find_product",
		func(ctx context.Context) (err error) {
			product, err = s.products.FindByID(ctx, id)
			return err
		},
		attribute.String("product.id", id),
	)
	return product, err
}

func (s *ObservableProductStore) GetStock(ctx context.Context, id string) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := observe(ctx, s.metrics, storeProducts, "ProductStore.GetStock", "get_stock",
		func(ctx context.Context) (err error) {
			level, err = s.products.GetStock(ctx, id)
			return err
		},
		attribute.String("product.id", id),
	)
	return level, err
}

func (s *ObservableProductStore) AdjustStock(ctx context.Context, id string, stockDelta, saleDelta int) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := observe(ctx, s.metrics, storeProducts, "ProductStore.AdjustStock", "adjust_stock",
		func(ctx context.Context) (err error) {
			level, err = s.products.AdjustStock(ctx, id, stockDelta, saleDelta)
			return err
		},
		attribute.String("product.id", id),
		attribute.Int("stock.delta", stockDelta),
		attribute.Int("sale.delta", saleDelta),
	)
	return level, err
}
