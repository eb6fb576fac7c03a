package service

import (
	"context"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 发货后预计送达天数
const estimatedDeliveryDays = 5

// OrderService 订单服务接口
// Customer 只能看到自己的订单；Operator 以上可以看到租户内全部订单
type OrderService interface {
	CreateOrder(ctx context.Context, rc auth.RequestContext, req CreateOrderRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, rc auth.RequestContext) ([]*domain.Order, error)
	GetOrder(ctx context.Context, rc auth.RequestContext, orderID string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, tenantID, orderNumber string) (*domain.Order, error)
	ListOrdersByStatus(ctx context.Context, rc auth.RequestContext, status string) ([]*domain.Order, error)
	ListOrdersByUser(ctx context.Context, rc auth.RequestContext, userID string) ([]*domain.Order, error)
	UpdateOrder(ctx context.Context, rc auth.RequestContext, orderID string, req UpdateOrderRequest) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, rc auth.RequestContext, orderID string, req UpdateOrderStatusRequest) (*domain.Order, error)
	DeleteOrder(ctx context.Context, rc auth.RequestContext, orderID string) error
	OrderStats(ctx context.Context, rc auth.RequestContext) (*domain.OrderStats, error)
	// ExportOrders returns the orders to export, optionally restricted to one status.
	ExportOrders(ctx context.Context, rc auth.RequestContext, status string) ([]*domain.Order, error)
}

type orderService struct {
	orders   repository.OrdersRepository
	products repository.ProductsRepository
	users    repository.UsersRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrderService 创建 OrderService 实例
func NewOrderService(orders repository.OrdersRepository, products repository.ProductsRepository, users repository.UsersRepository, logger *zap.Logger) OrderService {
	return &orderService{
		orders:   orders,
		products: products,
		users:    users,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OrderItemRequest 下单条目；单价取自商品当前价格
type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// CreateOrderRequest 下单请求；金额由服务端计算
type CreateOrderRequest struct {
	UserID               string               `json:"userId,omitempty"` // Operator 以上可以代客下单
	Items                []OrderItemRequest   `json:"items" validate:"required,min=1,dive"`
	ShippingCost         *decimal.Decimal     `json:"shippingCost,omitempty"`
	Discount             *decimal.Decimal     `json:"discount,omitempty"`
	PaymentMethod        domain.PaymentMethod `json:"paymentMethod" validate:"required,oneof=credit_card debit_card pix bank_transfer cash"`
	DeliveryAddress      domain.Address       `json:"deliveryAddress"`
	DeliveryInstructions string               `json:"deliveryInstructions,omitempty" validate:"max=500"`
	Notes                string               `json:"notes,omitempty" validate:"max=500"`
}

// UpdateOrderRequest 部分更新（Operator）
type UpdateOrderRequest struct {
	Status                *domain.OrderStatus   `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed preparing shipped delivered cancelled"`
	PaymentStatus         *domain.PaymentStatus `json:"paymentStatus,omitempty" validate:"omitempty,oneof=pending paid failed refunded"`
	PaymentMethod         *domain.PaymentMethod `json:"paymentMethod,omitempty" validate:"omitempty,oneof=credit_card debit_card pix bank_transfer cash"`
	DeliveryAddress       *domain.Address       `json:"deliveryAddress,omitempty"`
	DeliveryInstructions  *string               `json:"deliveryInstructions,omitempty" validate:"omitempty,max=500"`
	Notes                 *string               `json:"notes,omitempty" validate:"omitempty,max=500"`
	EstimatedDeliveryDate *time.Time            `json:"estimatedDeliveryDate,omitempty"`
	ActualDeliveryDate    *time.Time            `json:"actualDeliveryDate,omitempty"`
}

// UpdateOrderStatusRequest PATCH /orders/{id}/status
type UpdateOrderStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=pending confirmed preparing shipped delivered cancelled"`
}

func isStaff(rc auth.RequestContext) bool { return rc.Has(domain.RoleOperator) }

// visible hides other customers' orders from a Customer.
func visible(rc auth.RequestContext, o *domain.Order) bool {
	return isStaff(rc) || o.UserID == rc.UserID()
}

func (s *orderService) CreateOrder(ctx context.Context, rc auth.RequestContext, req CreateOrderRequest) (*domain.Order, error) {
	err := validateStruct(req)
	extra := append(nonNegative("shippingCost", req.ShippingCost), nonNegative("discount", req.Discount)...)
	if err != nil || len(extra) > 0 {
		return nil, mergeInvalid(err, extra)
	}

	userID := rc.UserID()
	if req.UserID != "" && req.UserID != userID {
		if !isStaff(rc) {
			return nil, apperr.Forbidden(apperr.ReasonInsufficientRole, "you can only place orders for yourself")
		}
		if _, err := s.users.GetUser(ctx, rc.TenantID(), req.UserID); err != nil {
			return nil, err
		}
		userID = req.UserID
	}

	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetProductsByIDs(ctx, rc.TenantID(), ids)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:               userID,
		Items:                make([]domain.OrderItem, 0, len(req.Items)),
		Status:               domain.OrderPending,
		PaymentStatus:        domain.PaymentPending,
		PaymentMethod:        req.PaymentMethod,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryInstructions: req.DeliveryInstructions,
		Notes:                req.Notes,
	}
	for _, it := range req.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, repository.ErrProductNotFound
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			Quantity:     it.Quantity,
			UnitPrice:    p.Price,
			TotalPrice:   p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
			ProductImage: p.Image,
		})
	}
	if req.ShippingCost != nil {
		order.ShippingCost = *req.ShippingCost
	}
	if req.Discount != nil {
		order.Discount = *req.Discount
	}
	computeTotals(order)

	created, err := s.orders.CreateOrder(ctx, rc.TenantID(), order)
	if err != nil {
		if apperr.ErrorReason(err) == apperr.ReasonInsufficientStock {
			s.logger.Warn("Order rejected: insufficient stock",
				zap.String("tenant_id", rc.TenantID()),
				zap.String("user_id", userID),
				zap.Any("errors", apperr.ErrorDetails(err)),
			)
		}
		return nil, err
	}
	s.logger.Info("Order created",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.String("total", created.Total.StringFixed(2)),
	)
	return created, nil
}

// computeTotals: subtotal = Σ item totals, total = max(0, subtotal + shipping - discount)
func computeTotals(o *domain.Order) {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	o.Subtotal = subtotal
	total := subtotal.Add(o.ShippingCost).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

func (s *orderService) ListOrders(ctx context.Context, rc auth.RequestContext) ([]*domain.Order, error) {
	filter := domain.OrderFilters{}
	if !isStaff(rc) {
		filter.UserID = rc.UserID()
	}
	return s.orders.ListOrders(ctx, rc.TenantID(), filter)
}

func (s *orderService) GetOrder(ctx context.Context, rc auth.RequestContext, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetOrder(ctx, rc.TenantID(), orderID)
	if err != nil {
		return nil, err
	}
	if !visible(rc, o) {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, tenantID, orderNumber string) (*domain.Order, error) {
	return s.orders.GetOrderByNumber(ctx, tenantID, orderNumber)
}

func parseStatus(status string) (domain.OrderStatus, error) {
	st := domain.OrderStatus(status)
	if !st.Valid() {
		return "", apperr.Invalid("invalid order status",
			apperr.Detail{Field: "status", Code: "oneof", Message: "must be one of: pending, confirmed, preparing, shipped, delivered, cancelled", Value: status})
	}
	return st, nil
}

func (s *orderService) ListOrdersByStatus(ctx context.Context, rc auth.RequestContext, status string) ([]*domain.Order, error) {
	st, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.orders.ListOrders(ctx, rc.TenantID(), domain.OrderFilters{Status: st})
}

// ListOrdersByUser Operator 以上，或查询自己的订单
func (s *orderService) ListOrdersByUser(ctx context.Context, rc auth.RequestContext, userID string) ([]*domain.Order, error) {
	if userID != rc.UserID() {
		if err := auth.RequireRole(&rc, domain.RoleOperator); err != nil {
			return nil, err
		}
	}
	return s.orders.ListOrders(ctx, rc.TenantID(), domain.OrderFilters{UserID: userID})
}

// statusEffects fills the delivery dates implied by a status change unless the caller set them.
func (s *orderService) statusEffects(patch *domain.OrderPatch) {
	if patch.Status == nil {
		return
	}
	now := s.now()
	switch *patch.Status {
	case domain.OrderShipped:
		if patch.EstimatedDeliveryDate == nil {
			eta := now.AddDate(0, 0, estimatedDeliveryDays)
			patch.EstimatedDeliveryDate = &eta
		}
	case domain.OrderDelivered:
		if patch.ActualDeliveryDate == nil {
			patch.ActualDeliveryDate = &now
		}
	}
}

func (s *orderService) UpdateOrder(ctx context.Context, rc auth.RequestContext, orderID string, req UpdateOrderRequest) (*domain.Order, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	patch := domain.OrderPatch{
		Status:                req.Status,
		PaymentStatus:         req.PaymentStatus,
		PaymentMethod:         req.PaymentMethod,
		DeliveryAddress:       req.DeliveryAddress,
		DeliveryInstructions:  req.DeliveryInstructions,
		Notes:                 req.Notes,
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
		ActualDeliveryDate:    req.ActualDeliveryDate,
	}
	s.statusEffects(&patch)
	return s.updateOrder(ctx, rc, orderID, patch)
}

// UpdateOrderStatus Operator 以上可任意变更；Customer 只能取消自己的待处理订单
func (s *orderService) UpdateOrderStatus(ctx context.Context, rc auth.RequestContext, orderID string, req UpdateOrderStatusRequest) (*domain.Order, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !isStaff(rc) {
		o, err := s.GetOrder(ctx, rc, orderID)
		if err != nil {
			return nil, err
		}
		if req.Status != domain.OrderCancelled || o.Status != domain.OrderPending {
			return nil, apperr.Forbidden(apperr.ReasonInsufficientRole, "customers can only cancel their own pending orders",
				apperr.Detail{Field: "role", Code: "requiredRole", Message: "required role", Value: domain.RoleOperator.String()},
				apperr.Detail{Field: "role", Code: "userRole", Message: "user role", Value: rc.Role().String()},
			)
		}
	}
	status := req.Status
	patch := domain.OrderPatch{Status: &status}
	s.statusEffects(&patch)
	return s.updateOrder(ctx, rc, orderID, patch)
}

func (s *orderService) updateOrder(ctx context.Context, rc auth.RequestContext, orderID string, patch domain.OrderPatch) (*domain.Order, error) {
	updated, err := s.orders.UpdateOrder(ctx, rc.TenantID(), orderID, patch)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		s.logger.Info("Order status changed",
			zap.String("tenant_id", rc.TenantID()),
			zap.String("order_id", orderID),
			zap.String("status", string(updated.Status)),
			zap.String("changed_by", rc.UserID()),
		)
	}
	return updated, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, rc auth.RequestContext, orderID string) error {
	if err := s.orders.DeleteOrder(ctx, rc.TenantID(), orderID); err != nil {
		return err
	}
	s.logger.Info("Order deleted",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("order_id", orderID),
		zap.String("deleted_by", rc.UserID()),
	)
	return nil
}

func (s *orderService) OrderStats(ctx context.Context, rc auth.RequestContext) (*domain.OrderStats, error) {
	return s.orders.OrderStats(ctx, rc.TenantID())
}

func (s *orderService) ExportOrders(ctx context.Context, rc auth.RequestContext, status string) ([]*domain.Order, error) {
	filter := domain.OrderFilters{}
	if status != "" {
		st, err := parseStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}
	return s.orders.ListOrders(ctx, rc.TenantID(), filter)
}
