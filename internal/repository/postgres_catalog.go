package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresCategoriesRepository 分类Repository实现
type PostgresCategoriesRepository struct {
	db *sql.DB
}

func NewPostgresCategoriesRepository(db *sql.DB) *PostgresCategoriesRepository {
	return &PostgresCategoriesRepository{db: db}
}

var _ CategoriesRepository = (*PostgresCategoriesRepository)(nil)

const categorySelect = `
	SELECT id::text, company_id::text, name, COALESCE(description, ''), COALESCE(image, ''), created_at, updated_at
	FROM categories
`

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Description, &c.Image, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func mapCategoryWriteError(err error, name string) error {
	if code, constraint := pqErrorCode(err); code == pqUniqueViolation && constraint == "ux_categories_company_name" {
		return fieldConflict("name", msgCategoryNameTaken, name)
	}
	return fmt.Errorf("failed to save category: %w", err)
}

func (r *PostgresCategoriesRepository) CreateCategory(ctx context.Context, tenantID string, category *domain.Category) (*domain.Category, error) {
	c := *category
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CompanyID = tenantID
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (id, company_id, name, description, image)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5)
		RETURNING created_at, updated_at
	`, c.ID, tenantID, c.Name, nullString(c.Description), nullString(c.Image)).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapCategoryWriteError(err, c.Name)
	}
	return &c, nil
}

func (r *PostgresCategoriesRepository) GetCategory(ctx context.Context, tenantID, categoryID string) (*domain.Category, error) {
	if !validIDs(tenantID, categoryID) {
		return nil, ErrCategoryNotFound
	}
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		categorySelect+` WHERE company_id = $1::uuid AND id = $2::uuid`, tenantID, categoryID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// ListCategories 按名称排序；search 匹配 name 或 description
func (r *PostgresCategoriesRepository) ListCategories(ctx context.Context, tenantID, search string) ([]*domain.Category, error) {
	query := categorySelect + ` WHERE company_id = $1::uuid`
	args := []any{tenantID}
	if search != "" {
		query += ` AND (name ILIKE $2 OR description ILIKE $2)`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY LOWER(name)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

func (r *PostgresCategoriesRepository) UpdateCategory(ctx context.Context, tenantID string, category *domain.Category) (*domain.Category, error) {
	if !validIDs(tenantID, category.ID) {
		return nil, ErrCategoryNotFound
	}
	c := *category
	c.CompanyID = tenantID
	err := r.db.QueryRowContext(ctx, `
		UPDATE categories SET name = $3, description = $4, image = $5, updated_at = NOW()
		WHERE company_id = $1::uuid AND id = $2::uuid
		RETURNING created_at, updated_at
	`, tenantID, c.ID, c.Name, nullString(c.Description), nullString(c.Image)).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, mapCategoryWriteError(err, c.Name)
	}
	return &c, nil
}

// DeleteCategory products.category_id 由外键 ON DELETE SET NULL 置空
func (r *PostgresCategoriesRepository) DeleteCategory(ctx context.Context, tenantID, categoryID string) error {
	if !validIDs(tenantID, categoryID) {
		return ErrCategoryNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE company_id = $1::uuid AND id = $2::uuid`, tenantID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// PostgresProductsRepository 商品Repository实现
type PostgresProductsRepository struct {
	db *sql.DB
}

func NewPostgresProductsRepository(db *sql.DB) *PostgresProductsRepository {
	return &PostgresProductsRepository{db: db}
}

var _ ProductsRepository = (*PostgresProductsRepository)(nil)

const productSelect = `
	SELECT
		id::text,
		company_id::text,
		COALESCE(category_id::text, '') as category_id,
		name,
		description,
		price,
		quantity,
		COALESCE(image, '') as image,
		variables,
		created_at,
		updated_at
	FROM products
`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var variables []byte
	if err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.CategoryID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Quantity,
		&p.Image,
		&variables,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := scanJSONB(variables, &p.Variables); err != nil {
		return nil, err
	}
	return &p, nil
}

// ensureCategory 商品引用的分类必须属于同一租户
func ensureCategory(ctx context.Context, q queryer, tenantID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	if !validIDs(categoryID) {
		return ErrCategoryNotFound
	}
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE company_id = $1::uuid AND id = $2::uuid)`, tenantID, categoryID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if !exists {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *PostgresProductsRepository) CreateProduct(ctx context.Context, tenantID string, product *domain.Product) (*domain.Product, error) {
	if err := ensureCategory(ctx, r.db, tenantID, product.CategoryID); err != nil {
		return nil, err
	}
	p := *product
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CompanyID = tenantID
	variables, err := jsonb(p.Variables)
	if err != nil {
		return nil, err
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, company_id, category_id, name, description, price, quantity, image, variables)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.ID, tenantID, nullString(p.CategoryID), p.Name, p.Description, p.Price, p.Quantity,
		nullString(p.Image), variables,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &p, nil
}

func (r *PostgresProductsRepository) GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error) {
	if !validIDs(tenantID, productID) {
		return nil, ErrProductNotFound
	}
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		productSelect+` WHERE company_id = $1::uuid AND id = $2::uuid`, tenantID, productID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetProductsByIDs 批量获取；不属于租户或不存在的 id 不出现在结果中
func (r *PostgresProductsRepository) GetProductsByIDs(ctx context.Context, tenantID string, productIDs []string) (map[string]*domain.Product, error) {
	out := map[string]*domain.Product{}
	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if validIDs(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		productSelect+` WHERE company_id = $1::uuid AND id = ANY($2::uuid[])`, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return out, nil
}

// ListProducts 查询商品列表（支持分类、搜索、价格区间、库存过滤）
func (r *PostgresProductsRepository) ListProducts(ctx context.Context, tenantID string, f domain.ProductFilters) ([]*domain.Product, error) {
	where := []string{"company_id = $1::uuid"}
	args := []any{tenantID}
	argIdx := 2

	if f.CategoryID != "" {
		if !validIDs(f.CategoryID) {
			return []*domain.Product{}, nil
		}
		where = append(where, fmt.Sprintf("category_id = $%d::uuid", argIdx))
		args = append(args, f.CategoryID)
		argIdx++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+f.Search+"%")
		argIdx++
	}
	if f.MinPrice != nil {
		where = append(where, fmt.Sprintf("price >= $%d", argIdx))
		args = append(args, *f.MinPrice)
		argIdx++
	}
	if f.MaxPrice != nil {
		where = append(where, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, *f.MaxPrice)
	}
	if f.InStock {
		where = append(where, "quantity > 0")
	}
	if f.WithVariables {
		where = append(where, "jsonb_array_length(variables) > 0")
	}

	query := productSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *PostgresProductsRepository) UpdateProduct(ctx context.Context, tenantID string, product *domain.Product) (*domain.Product, error) {
	if !validIDs(tenantID, product.ID) {
		return nil, ErrProductNotFound
	}
	if err := ensureCategory(ctx, r.db, tenantID, product.CategoryID); err != nil {
		return nil, err
	}
	p := *product
	p.CompanyID = tenantID
	variables, err := jsonb(p.Variables)
	if err != nil {
		return nil, err
	}
	err = r.db.QueryRowContext(ctx, `
		UPDATE products
		SET category_id = $3::uuid, name = $4, description = $5, price = $6, quantity = $7,
		    image = $8, variables = $9, updated_at = NOW()
		WHERE company_id = $1::uuid AND id = $2::uuid
		RETURNING created_at, updated_at
	`, tenantID, p.ID, nullString(p.CategoryID), p.Name, p.Description, p.Price, p.Quantity,
		nullString(p.Image), variables,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &p, nil
}

// DeleteProduct 购物车条目随外键级联删除
func (r *PostgresProductsRepository) DeleteProduct(ctx context.Context, tenantID, productID string) error {
	if !validIDs(tenantID, productID) {
		return ErrProductNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE company_id = $1::uuid AND id = $2::uuid`, tenantID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}
