package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category 商品分类（对应 categories 表），名称在租户内大小写不敏感唯一
type Category struct {
	ID          string    `db:"id" json:"id"`
	CompanyID   string    `db:"company_id" json:"companyId"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Image       string    `db:"image" json:"image,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Product 商品（对应 products 表）
type Product struct {
	ID          string            `db:"id" json:"id"`
	CompanyID   string            `db:"company_id" json:"companyId"`
	CategoryID  string            `db:"category_id" json:"categoryId,omitempty"` // nullable
	Name        string            `db:"name" json:"name"`
	Description string            `db:"description" json:"description"`
	Price       decimal.Decimal   `db:"price" json:"price"`       // NUMERIC(12,2)
	Quantity    int               `db:"quantity" json:"quantity"` // CHECK (quantity >= 0)
	Image       string            `db:"image" json:"image,omitempty"`
	Variables   []ProductVariable `db:"variables" json:"variables,omitempty"` // JSONB
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updatedAt"`
}

type ProductVariable struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
}

// ProductFilters 商品列表过滤
type ProductFilters struct {
	CategoryID    string
	Search        string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	InStock       bool
	WithVariables bool
}

// StockChange is one atomic quantity adjustment for a product.
type StockChange struct {
	ProductID string
	Delta     int // negative reserves, positive restores
}
