package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

// ParseOrderStatus maps raw input to a known status.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return status, nil
	case "canceled":
		return StatusCancelled, nil
	}
	return "", NewValidationError("orderStatus", "must be one of pending, confirmed, processing, shipped, delivered, cancelled")
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return status, nil
	}
	return "", NewValidationError("paymentStatus", "must be one of pending, paid, refunded")
}

// ParsePaymentMethod accepts "cashOnDelivery" as an alias of cod.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cod", "cashondelivery":
		return PaymentMethodCOD, nil
	case "online":
		return PaymentMethodOnline, nil
	}
	return "", NewValidationError("paymentMethod", "must be cod or online")
}

type ShippingAddress struct {
	FullName    string `json:"fullName"`
	Phone       string `json:"phone"`
	Governorate string `json:"governorate"`
	City        string `json:"city"`
	Street      string `json:"street"`
	Notes       string `json:"notes,omitempty"`
}

func (a ShippingAddress) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"governorate", a.Governorate},
		{"city", a.City},
		{"street", a.Street},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(r.field, "is required")
		}
	}
	return nil
}

// Item is a line frozen at checkout time.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	Items            []Item          `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingFee      decimal.Decimal `json:"shippingFee"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
	Status           OrderStatus     `json:"orderStatus"`
	StockDeducted    bool            `json:"stockDeducted"`
	PaymentSessionID string          `json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// NewOrderParams carries everything needed to snapshot a cart into an order.
type NewOrderParams struct {
	ID              string
	UserID          string
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	Items           []Item
	Subtotal        decimal.Decimal
	ShippingFee     decimal.Decimal
	Now             time.Time
}

// NewOrder builds a pending order. The total is fixed here and never recomputed.
func NewOrder(p NewOrderParams) (*Order, error) {
	items := make([]Item, len(p.Items))
	copy(items, p.Items)

	order := &Order{
		ID:              p.ID,
		UserID:          p.UserID,
		ShippingAddress: p.ShippingAddress,
		Items:           items,
		Subtotal:        p.Subtotal,
		ShippingFee:     p.ShippingFee,
		TotalAmount:     p.Subtotal.Add(p.ShippingFee).Round(2),
		PaymentMethod:   p.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		CreatedAt:       p.Now,
		UpdatedAt:       p.Now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return NewValidationError("id", "is required")
	}
	if strings.TrimSpace(o.UserID) == "" {
		return NewValidationError("user", "is required")
	}
	if err := o.ShippingAddress.Validate(); err != nil {
		return err
	}
	if _, err := ParsePaymentMethod(string(o.PaymentMethod)); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return NewValidationError("items", "must not be empty")
	}
	for _, item := range o.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return NewValidationError("items.productId", "is required")
		}
		if item.Quantity <= 0 {
			return NewValidationError("items.quantity", "must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError("items.unitPrice", "must not be negative")
		}
	}
	if o.ShippingFee.IsNegative() {
		return NewValidationError("shippingFee", "must not be negative")
	}
	return nil
}

// IsTerminal reports whether the order can no longer change status.
func (o Order) IsTerminal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}
