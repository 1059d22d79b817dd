package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// CartStore keeps one cart per user in memory.
type CartStore struct {
	mu     sync.RWMutex
	carts  map[string]domain.Cart
	byUser map[string]string
}

func NewCartStore() *CartStore {
	return &CartStore{
		carts:  make(map[string]domain.Cart),
		byUser: make(map[string]string),
	}
}

func (s *CartStore) GetActiveCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUser[userID]
	if !ok {
		return nil, ports.ErrCartNotFound
	}
	cart := cloneCart(s.carts[id])
	return &cart, nil
}

func (s *CartStore) GetByID(_ context.Context, cartID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[cartID]
	if !ok {
		return nil, ports.ErrCartNotFound
	}
	cart = cloneCart(cart)
	return &cart, nil
}

func (s *CartStore) Save(_ context.Context, cart domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[cart.ID] = cloneCart(cart)
	s.byUser[cart.UserID] = cart.ID
	return nil
}

func (s *CartStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[cartID]
	if !ok {
		return ports.ErrCartNotFound
	}
	cart.Clear(time.Now().UTC())
	s.carts[cartID] = cart
	return nil
}

func cloneCart(cart domain.Cart) domain.Cart {
	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)
	cart.Items = items
	return cart
}
