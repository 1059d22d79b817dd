package domain

import "github.com/shopspring/decimal"

// Product is the catalogue view the order lifecycle needs: pricing plus the stock ledger.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"skuCode,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Discount int             `json:"discount"`
	Stock    int             `json:"stock"`
	Sale     int             `json:"sale"`
}

// PriceAfterDiscount applies the percentage discount, rounded to cents.
func (p Product) PriceAfterDiscount() decimal.Decimal {
	if p.Discount <= 0 {
		return p.Price
	}
	factor := decimal.NewFromInt(int64(100 - p.Discount)).Div(decimal.NewFromInt(100))
	return p.Price.Mul(factor).Round(2)
}

// StockLevel is a point-in-time read of a product's counters.
type StockLevel struct {
	Stock int `json:"stock"`
	Sale  int `json:"sale"`
}
