package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderStatuses in lifecycle order.
var OrderStatuses = []OrderStatus{OrderPending, OrderConfirmed, OrderPreparing, OrderShipped, OrderDelivered, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// HoldsStock reports whether an order in this status keeps its items reserved.
func (s OrderStatus) HoldsStock() bool { return s != OrderCancelled }

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentDebitCard    PaymentMethod = "debit_card"
	PaymentPix          PaymentMethod = "pix"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCash         PaymentMethod = "cash"
)

// Address 收货地址（orders.delivery_address JSONB）
type Address struct {
	Street       string `json:"street" validate:"required,min=3,max=200"`
	Number       string `json:"number" validate:"required,min=1,max=10"`
	Complement   string `json:"complement,omitempty" validate:"max=100"`
	Neighborhood string `json:"neighborhood" validate:"required,min=2,max=100"`
	City         string `json:"city" validate:"required,min=2,max=100"`
	State        string `json:"state" validate:"required,min=2,max=50"`
	ZipCode      string `json:"zipCode" validate:"required,min=8,max=10"`
}

// Order 订单（对应 orders + order_items 表）
type Order struct {
	ID          string `db:"id" json:"id"`
	CompanyID   string `db:"company_id" json:"companyId"`
	UserID      string `db:"user_id" json:"userId"`
	OrderNumber string `db:"order_number" json:"orderNumber"` // UNIQUE: YYYYMMDD + 4位日序号

	Items        []OrderItem     `json:"items"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost decimal.Decimal `db:"shipping_cost" json:"shippingCost"`
	Discount     decimal.Decimal `db:"discount" json:"discount"`
	Total        decimal.Decimal `db:"total" json:"total"`

	Status        OrderStatus   `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"paymentMethod"`

	DeliveryAddress      Address `db:"delivery_address" json:"deliveryAddress"`
	DeliveryInstructions string  `db:"delivery_instructions" json:"deliveryInstructions,omitempty"`
	Notes                string  `db:"notes" json:"notes,omitempty"`

	EstimatedDeliveryDate *time.Time `db:"estimated_delivery_date" json:"estimatedDeliveryDate,omitempty"`
	ActualDeliveryDate    *time.Time `db:"actual_delivery_date" json:"actualDeliveryDate,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type OrderItem struct {
	ProductID    string          `db:"product_id" json:"productId"`
	ProductName  string          `db:"product_name" json:"productName"`
	Quantity     int             `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unitPrice"`
	TotalPrice   decimal.Decimal `db:"total_price" json:"totalPrice"`
	ProductImage string          `db:"product_image" json:"productImage,omitempty"`
}

// StockChanges returns the per-product adjustments that move this order's items by sign.
// sign -1 reserves stock, +1 releases it.
func (o *Order) StockChanges(sign int) []StockChange {
	byProduct := map[string]int{}
	var order []string
	for _, it := range o.Items {
		if _, ok := byProduct[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		byProduct[it.ProductID] += it.Quantity
	}
	changes := make([]StockChange, 0, len(order))
	for _, id := range order {
		changes = append(changes, StockChange{ProductID: id, Delta: sign * byProduct[id]})
	}
	return changes
}

// OrderPatch 订单部分更新；nil 字段保持不变
type OrderPatch struct {
	Status                *OrderStatus
	PaymentStatus         *PaymentStatus
	PaymentMethod         *PaymentMethod
	DeliveryAddress       *Address
	DeliveryInstructions  *string
	Notes                 *string
	EstimatedDeliveryDate *time.Time
	ActualDeliveryDate    *time.Time
}

// OrderFilters 订单列表过滤
type OrderFilters struct {
	Status OrderStatus
	UserID string
}

// OrderStats 订单统计
type OrderStats struct {
	TotalOrders       int                 `json:"totalOrders"`
	TotalRevenue      decimal.Decimal     `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal     `json:"averageOrderValue"`
	ByStatus          map[OrderStatus]int `json:"byStatus"`
}
