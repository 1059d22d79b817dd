package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Cart is a user's working basket. It is emptied, not deleted, once converted into an order.
type Cart struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func NewCart(id, userID string, now time.Time) *Cart {
	return &Cart{
		ID:         id,
		UserID:     userID,
		Items:      []CartItem{},
		TotalPrice: decimal.Zero,
		UpdatedAt:  now,
	}
}

// AddItem merges quantities for a product already in the cart and keeps its original price.
func (c *Cart) AddItem(product Product, quantity int, now time.Time) error {
	if quantity <= 0 {
		return NewValidationError("quantity", "must be positive")
	}

	for i := range c.Items {
		if c.Items[i].ProductID == product.ID {
			c.Items[i].Quantity += quantity
			c.touch(now)
			return nil
		}
	}

	c.Items = append(c.Items, CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  quantity,
		UnitPrice: product.PriceAfterDiscount(),
	})
	c.touch(now)
	return nil
}

// SetQuantity overwrites the quantity of an existing line. It returns false if the product is not in the cart.
func (c *Cart) SetQuantity(productID string, quantity int, now time.Time) (bool, error) {
	if quantity <= 0 {
		return false, NewValidationError("quantity", "must be positive")
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			c.touch(now)
			return true, nil
		}
	}
	return false, nil
}

func (c *Cart) RemoveItem(productID string, now time.Time) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch(now)
			return true
		}
	}
	return false
}

func (c *Cart) Clear(now time.Time) {
	c.Items = []CartItem{}
	c.touch(now)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// OrderItems snapshots the cart lines with their current unit prices.
func (c *Cart) OrderItems() []Item {
	items := make([]Item, 0, len(c.Items))
	for _, ci := range c.Items {
		items = append(items, Item{
			ProductID: ci.ProductID,
			Name:      ci.Name,
			Quantity:  ci.Quantity,
			UnitPrice: ci.UnitPrice,
		})
	}
	return items
}

// Recalculate refreshes TotalPrice from the lines.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalPrice = total
}

func (c *Cart) touch(now time.Time) {
	c.Recalculate()
	c.UpdatedAt = now
}
