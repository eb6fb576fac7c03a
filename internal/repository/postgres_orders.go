package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresOrdersRepository 订单Repository实现
// 库存预留使用条件 UPDATE（quantity + delta >= 0），与订单写入同一事务
type PostgresOrdersRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresOrdersRepository(db *sql.DB) *PostgresOrdersRepository {
	return &PostgresOrdersRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ OrdersRepository = (*PostgresOrdersRepository)(nil)

const orderSelect = `
	SELECT
		id::text,
		company_id::text,
		user_id::text,
		order_number,
		subtotal,
		shipping_cost,
		discount,
		total,
		status,
		payment_status,
		payment_method,
		delivery_address,
		COALESCE(delivery_instructions, ''),
		COALESCE(notes, ''),
		estimated_delivery_date,
		actual_delivery_date,
		created_at,
		updated_at
	FROM orders
`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status, paymentStatus, paymentMethod string
	var address []byte
	var estimated, actual sql.NullTime
	if err := row.Scan(
		&o.ID,
		&o.CompanyID,
		&o.UserID,
		&o.OrderNumber,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Discount,
		&o.Total,
		&status,
		&paymentStatus,
		&paymentMethod,
		&address,
		&o.DeliveryInstructions,
		&o.Notes,
		&estimated,
		&actual,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	if err := scanJSONB(address, &o.DeliveryAddress); err != nil {
		return nil, err
	}
	if estimated.Valid {
		t := estimated.Time
		o.EstimatedDeliveryDate = &t
	}
	if actual.Valid {
		t := actual.Time
		o.ActualDeliveryDate = &t
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// applyStock 逐条执行条件 UPDATE；任一商品库存不足返回 InsufficientStock，由调用方回滚事务
// 按 product id 排序加锁，避免并发订单互相死锁
func applyStock(ctx context.Context, q queryer, tenantID string, changes []domain.StockChange) error {
	sorted := append([]domain.StockChange(nil), changes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	for _, ch := range sorted {
		if !validIDs(ch.ProductID) {
			if ch.Delta < 0 {
				return InsufficientStock(ch.ProductID)
			}
			continue
		}
		res, err := q.ExecContext(ctx, `
			UPDATE products SET quantity = quantity + $3, updated_at = NOW()
			WHERE company_id = $1::uuid AND id = $2::uuid AND quantity + $3 >= 0
		`, tenantID, ch.ProductID, ch.Delta)
		if err != nil {
			return fmt.Errorf("failed to adjust stock: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 && ch.Delta < 0 {
			return InsufficientStock(ch.ProductID)
		}
	}
	return nil
}

// nextOrderNumber 以 order_sequences 的行锁保证同一天内序号唯一递增
func nextOrderNumber(ctx context.Context, q queryer, now time.Time) (string, error) {
	day := now.Format("20060102")
	var seq int
	err := q.QueryRowContext(ctx, `
		INSERT INTO order_sequences (day, last_value) VALUES ($1::date, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value
	`, now.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("%s%04d", day, seq), nil
}

// CreateOrder 创建订单：预留库存、分配订单号、写入订单与明细
func (r *PostgresOrdersRepository) CreateOrder(ctx context.Context, tenantID string, order *domain.Order) (*domain.Order, error) {
	o := *order
	o.Items = append([]domain.OrderItem(nil), order.Items...)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CompanyID = tenantID
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = domain.PaymentPending
	}
	address, err := jsonb(o.DeliveryAddress)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if o.Status.HoldsStock() {
		if err := applyStock(ctx, tx, tenantID, o.StockChanges(-1)); err != nil {
			return nil, err
		}
	}
	if o.OrderNumber, err = nextOrderNumber(ctx, tx, r.now()); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, company_id, user_id, order_number, subtotal, shipping_cost, discount, total,
			status, payment_status, payment_method, delivery_address, delivery_instructions, notes,
			estimated_delivery_date, actual_delivery_date
		) VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`, o.ID, tenantID, o.UserID, o.OrderNumber, o.Subtotal, o.ShippingCost, o.Discount, o.Total,
		string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod), address,
		nullString(o.DeliveryInstructions), nullString(o.Notes),
		nullTime(o.EstimatedDeliveryDate), nullTime(o.ActualDeliveryDate),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i, it := range o.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, product_name, quantity, unit_price, total_price, product_image)
			VALUES ($1::uuid, $2, $3::uuid, $4, $5, $6, $7, $8)
		`, o.ID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.TotalPrice, nullString(it.ProductImage)); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return &o, nil
}

// loadItems 为 orders 填充明细（按 position 排序）
func loadItems(ctx context.Context, q queryer, orders ...*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT order_id::text, product_id::text, product_name, quantity, unit_price, total_price, COALESCE(product_image, '')
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.ProductImage); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func (r *PostgresOrdersRepository) getOrder(ctx context.Context, q queryer, tenantID, where string, arg any, lock bool) (*domain.Order, error) {
	query := orderSelect + ` WHERE company_id = $1::uuid AND ` + where
	if lock {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, tenantID, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if err := loadItems(ctx, q, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresOrdersRepository) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	if !validIDs(tenantID, orderID) {
		return nil, ErrOrderNotFound
	}
	return r.getOrder(ctx, r.db, tenantID, `id = $2::uuid`, orderID, false)
}

func (r *PostgresOrdersRepository) GetOrderByNumber(ctx context.Context, tenantID, orderNumber string) (*domain.Order, error) {
	if !validIDs(tenantID) {
		return nil, ErrOrderNotFound
	}
	return r.getOrder(ctx, r.db, tenantID, `order_number = $2`, orderNumber, false)
}

// ListOrders 按订单号倒序（即创建时间倒序）
func (r *PostgresOrdersRepository) ListOrders(ctx context.Context, tenantID string, f domain.OrderFilters) ([]*domain.Order, error) {
	where := []string{"company_id = $1::uuid"}
	args := []any{tenantID}
	argIdx := 2
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.UserID != "" {
		if !validIDs(f.UserID) {
			return []*domain.Order{}, nil
		}
		where = append(where, fmt.Sprintf("user_id = $%d::uuid", argIdx))
		args = append(args, f.UserID)
	}

	query := orderSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY order_number DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	if err := loadItems(ctx, r.db, orders...); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrder 锁定订单行后应用 patch；状态跨越 cancelled 时调整库存
func (r *PostgresOrdersRepository) UpdateOrder(ctx context.Context, tenantID, orderID string, patch domain.OrderPatch) (*domain.Order, error) {
	if !validIDs(tenantID, orderID) {
		return nil, ErrOrderNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := r.getOrder(ctx, tx, tenantID, `id = $2::uuid`, orderID, true)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if changes := stockTransition(o, *patch.Status); changes != nil {
			if err := applyStock(ctx, tx, tenantID, changes); err != nil {
				return nil, err
			}
		}
	}
	applyOrderPatch(o, patch)

	address, err := jsonb(o.DeliveryAddress)
	if err != nil {
		return nil, err
	}
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $3, payment_status = $4, payment_method = $5, delivery_address = $6,
		    delivery_instructions = $7, notes = $8, estimated_delivery_date = $9, actual_delivery_date = $10,
		    updated_at = NOW()
		WHERE company_id = $1::uuid AND id = $2::uuid
		RETURNING updated_at
	`, tenantID, orderID, string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod), address,
		nullString(o.DeliveryInstructions), nullString(o.Notes),
		nullTime(o.EstimatedDeliveryDate), nullTime(o.ActualDeliveryDate),
	).Scan(&o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	return o, nil
}

// DeleteOrder 删除订单；未取消的订单先归还库存
func (r *PostgresOrdersRepository) DeleteOrder(ctx context.Context, tenantID, orderID string) error {
	if !validIDs(tenantID, orderID) {
		return ErrOrderNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := r.getOrder(ctx, tx, tenantID, `id = $2::uuid`, orderID, true)
	if err != nil {
		return err
	}
	if o.Status.HoldsStock() {
		if err := applyStock(ctx, tx, tenantID, o.StockChanges(1)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE company_id = $1::uuid AND id = $2::uuid`, tenantID, orderID); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order deletion: %w", err)
	}
	return nil
}

// OrderStats 按状态聚合；收入不计入已取消订单
func (r *PostgresOrdersRepository) OrderStats(ctx context.Context, tenantID string) (*domain.OrderStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE company_id = $1::uuid
		GROUP BY status
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.OrderStats{ByStatus: map[domain.OrderStatus]int{}}
	for _, st := range domain.OrderStatuses {
		stats.ByStatus[st] = 0
	}
	revenueOrders := 0
	for rows.Next() {
		var status string
		var count int
		var sum decimal.Decimal
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan order stats: %w", err)
		}
		st := domain.OrderStatus(status)
		stats.ByStatus[st] = count
		stats.TotalOrders += count
		if st != domain.OrderCancelled {
			stats.TotalRevenue = stats.TotalRevenue.Add(sum)
			revenueOrders += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order stats: %w", err)
	}
	if revenueOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(revenueOrders))).Round(2)
	}
	return stats, nil
}
