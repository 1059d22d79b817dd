package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/google/uuid"
)

// ErrCartItemNotFound is returned when a cart line update names a product not in the cart.
var ErrCartItemNotFound = errors.New("product not found in cart")

// GetCart returns the user's cart.
func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user", "is required")
	}
	return s.carts.GetActiveCart(ctx, userID)
}

// AddToCart adds a product at its current discounted price, creating the cart on first use.
func (s *Service) AddToCart(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user", "is required")
	}
	if strings.TrimSpace(productID) == "" {
		return nil, domain.NewValidationError("productId", "is required")
	}
	if quantity == 0 {
		quantity = 1
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cart, err := s.carts.GetActiveCart(ctx, userID)
	if errors.Is(err, ports.ErrCartNotFound) {
		cart = domain.NewCart(uuid.NewString(), userID, now)
	} else if err != nil {
		return nil, err
	}

	if err := cart.AddItem(*product, quantity, now); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, *cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// UpdateCartItem sets the quantity of a product already in the cart.
func (s *Service) UpdateCartItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	found, err := cart.SetQuantity(productID, quantity, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrCartItemNotFound
	}

	if err := s.carts.Save(ctx, *cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// RemoveFromCart drops a product line. Removing an absent product is not an error.
func (s *Service) RemoveFromCart(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !cart.RemoveItem(productID, time.Now().UTC()) {
		return cart, nil
	}
	if err := s.carts.Save(ctx, *cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// ClearCart empties the user's cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.carts.Clear(ctx, cart.ID)
}
