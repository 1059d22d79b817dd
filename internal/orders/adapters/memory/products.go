package memory

import (
	"context"
	"sync"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// ProductStore is an in-memory stock ledger. Each adjustment runs under the store lock.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewProductStore(products ...domain.Product) *ProductStore {
	s := &ProductStore{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// Put inserts or replaces a product.
func (s *ProductStore) Put(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

func (s *ProductStore) FindByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, ports.ErrProductNotFound
	}
	return &product, nil
}

func (s *ProductStore) GetStock(_ context.Context, id string) (domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.StockLevel{}, ports.ErrProductNotFound
	}
	return domain.StockLevel{Stock: product.Stock, Sale: product.Sale}, nil
}

func (s *ProductStore) AdjustStock(_ context.Context, id string, stockDelta, saleDelta int) (domain.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return domain.StockLevel{}, ports.ErrProductNotFound
	}
	if product.Stock+stockDelta < 0 {
		return domain.StockLevel{}, &domain.InsufficientStockError{
			ProductID: id,
			Available: product.Stock,
			Requested: -stockDelta,
		}
	}

	product.Stock += stockDelta
	product.Sale = max(0, product.Sale+saleDelta)
	s.products[id] = product

	return domain.StockLevel{Stock: product.Stock, Sale: product.Sale}, nil
}
