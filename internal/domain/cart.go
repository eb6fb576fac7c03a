package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem 购物车条目（product id + quantity）
type CartItem struct {
	ProductID string    `db:"product_id" json:"productId"`
	Quantity  int       `db:"quantity" json:"quantity"`
	AddedAt   time.Time `db:"added_at" json:"addedAt"`
}

// CartLine is a cart item joined with the current product data.
type CartLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"addedAt"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	InStock   int             `json:"inStock"`
}
