package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"

	"github.com/google/uuid"
)

// PostgresUsersRepository 用户Repository实现（含购物车 cart_items）
type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userSelect = `
	SELECT
		id::text,
		COALESCE(company_id::text, '') as company_id,
		name,
		email,
		password_hash,
		role,
		COALESCE(tax_id, '') as tax_id,
		COALESCE(phone, '') as phone,
		COALESCE(address, '') as address,
		created_at,
		updated_at
	FROM users
`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(
		&u.ID,
		&u.CompanyID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.TaxID,
		&u.Phone,
		&u.Address,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func mapUserWriteError(err error, email, taxID string) error {
	code, constraint := pqErrorCode(err)
	switch {
	case code == pqUniqueViolation && constraint == "ux_users_company_email":
		return fieldConflict("email", msgUserEmailTaken, email)
	case code == pqUniqueViolation && constraint == "ux_users_company_tax_id":
		return fieldConflict("cpf", msgUserTaxIDTaken, taxID)
	case code == pqForeignKeyViolation:
		return ErrCompanyNotFound
	}
	return fmt.Errorf("failed to save user: %w", err)
}

// CreateUser 在租户内创建用户
func (r *PostgresUsersRepository) CreateUser(ctx context.Context, tenantID string, user *domain.User) (*domain.User, error) {
	if tenantID == "" {
		return nil, apperr.Invalid("company is required")
	}
	if !validIDs(tenantID) {
		return nil, ErrCompanyNotFound
	}
	return r.insertUser(ctx, tenantID, user)
}

// CreateBootstrapAdmin 创建不属于任何公司的 Admin（仅 CLI bootstrap 使用）
func (r *PostgresUsersRepository) CreateBootstrapAdmin(ctx context.Context, user *domain.User) (*domain.User, error) {
	u := *user
	u.Role = domain.RoleAdmin
	// 唯一索引对 NULL company_id 不生效，手动检查
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE company_id IS NULL AND LOWER(email) = LOWER($1))`, u.Email,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check bootstrap admin: %w", err)
	}
	if exists {
		return nil, fieldConflict("email", msgUserEmailTaken, u.Email)
	}
	return r.insertUser(ctx, "", &u)
}

func (r *PostgresUsersRepository) insertUser(ctx context.Context, tenantID string, user *domain.User) (*domain.User, error) {
	u := *user
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	u.CompanyID = tenantID
	u.Cart = nil

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, company_id, name, email, password_hash, role, tax_id, phone, address)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, u.ID, nullString(tenantID), u.Name, u.Email, u.PasswordHash, string(u.Role),
		nullString(u.TaxID), nullString(u.Phone), nullString(u.Address),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapUserWriteError(err, u.Email, u.TaxID)
	}
	return &u, nil
}

// AssignCompany 将无公司的用户分配到 companyID
func (r *PostgresUsersRepository) AssignCompany(ctx context.Context, userID, companyID string) error {
	if !validIDs(userID) {
		return ErrUserNotFound
	}
	if !validIDs(companyID) {
		return ErrCompanyNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET company_id = $2::uuid, updated_at = NOW()
		WHERE id = $1::uuid AND company_id IS NULL
	`, userID, companyID)
	if err != nil {
		return mapUserWriteError(err, "", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUsersRepository) GetUser(ctx context.Context, tenantID, userID string) (*domain.User, error) {
	if !validIDs(tenantID, userID) {
		return nil, ErrUserNotFound
	}
	u, err := scanUser(r.db.QueryRowContext(ctx,
		userSelect+` WHERE company_id = $1::uuid AND id = $2::uuid`, tenantID, userID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail 邮箱匹配大小写不敏感
func (r *PostgresUsersRepository) GetUserByEmail(ctx context.Context, tenantID, email string) (*domain.User, error) {
	if !validIDs(tenantID) {
		return nil, ErrUserNotFound
	}
	u, err := scanUser(r.db.QueryRowContext(ctx,
		userSelect+` WHERE company_id = $1::uuid AND LOWER(email) = LOWER($2)`, tenantID, email))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresUsersRepository) ListUsers(ctx context.Context, tenantID string) ([]*domain.User, error) {
	users := []*domain.User{}
	if !validIDs(tenantID) {
		return users, nil
	}
	rows, err := r.db.QueryContext(ctx, userSelect+` WHERE company_id = $1::uuid ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdateUser 部分更新；只写 patch 中非 nil 的列
func (r *PostgresUsersRepository) UpdateUser(ctx context.Context, tenantID, userID string, patch domain.UserPatch) (*domain.User, error) {
	if !validIDs(tenantID, userID) {
		return nil, ErrUserNotFound
	}
	if patch.Empty() {
		return r.GetUser(ctx, tenantID, userID)
	}

	set := []string{}
	args := []any{tenantID, userID}
	argIdx := 3
	add := func(col string, v any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, v)
		argIdx++
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.TaxID != nil {
		add("tax_id", nullString(*patch.TaxID))
	}
	if patch.Phone != nil {
		add("phone", nullString(*patch.Phone))
	}
	if patch.Address != nil {
		add("address", nullString(*patch.Address))
	}
	set = append(set, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE users SET %s
		WHERE company_id = $1::uuid AND id = $2::uuid
		RETURNING id::text, COALESCE(company_id::text, ''), name, email, password_hash, role,
		          COALESCE(tax_id, ''), COALESCE(phone, ''), COALESCE(address, ''), created_at, updated_at
	`, strings.Join(set, ", "))

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		var email, taxID string
		if patch.Email != nil {
			email = *patch.Email
		}
		if patch.TaxID != nil {
			taxID = *patch.TaxID
		}
		return nil, mapUserWriteError(err, email, taxID)
	}
	return u, nil
}

func (r *PostgresUsersRepository) DeleteUser(ctx context.Context, tenantID, userID string) error {
	if !validIDs(tenantID, userID) {
		return ErrUserNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE company_id = $1::uuid AND id = $2::uuid`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ========== Cart ==========

func (r *PostgresUsersRepository) ensureTenantUser(ctx context.Context, tenantID, userID string) error {
	if !validIDs(tenantID, userID) {
		return ErrUserNotFound
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE company_id = $1::uuid AND id = $2::uuid)`, tenantID, userID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

// GetCart 购物车条目关联当前商品信息
func (r *PostgresUsersRepository) GetCart(ctx context.Context, tenantID, userID string) ([]domain.CartLine, error) {
	if err := r.ensureTenantUser(ctx, tenantID, userID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.product_id::text, ci.quantity, ci.added_at, p.name, p.price, COALESCE(p.image, ''), p.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id AND p.company_id = ci.company_id
		WHERE ci.company_id = $1::uuid AND ci.user_id = $2::uuid
		ORDER BY ci.added_at
	`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.AddedAt, &l.Name, &l.Price, &l.Image, &l.InStock); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart: %w", err)
	}
	return lines, nil
}

func (r *PostgresUsersRepository) ensureTenantProduct(ctx context.Context, tenantID, productID string) error {
	if !validIDs(productID) {
		return ErrProductNotFound
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE company_id = $1::uuid AND id = $2::uuid)`, tenantID, productID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return ErrProductNotFound
	}
	return nil
}

// AddCartItem 已存在则累加数量
func (r *PostgresUsersRepository) AddCartItem(ctx context.Context, tenantID, userID, productID string, quantity int) error {
	if err := r.ensureTenantUser(ctx, tenantID, userID); err != nil {
		return err
	}
	if err := r.ensureTenantProduct(ctx, tenantID, productID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, company_id, quantity)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, productID, tenantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

func (r *PostgresUsersRepository) SetCartItem(ctx context.Context, tenantID, userID, productID string, quantity int) error {
	if err := r.ensureTenantUser(ctx, tenantID, userID); err != nil {
		return err
	}
	if err := r.ensureTenantProduct(ctx, tenantID, productID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $4
		WHERE company_id = $1::uuid AND user_id = $2::uuid AND product_id = $3::uuid
	`, tenantID, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *PostgresUsersRepository) RemoveCartItem(ctx context.Context, tenantID, userID, productID string) error {
	if err := r.ensureTenantUser(ctx, tenantID, userID); err != nil {
		return err
	}
	if !validIDs(productID) {
		return ErrCartItemNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE company_id = $1::uuid AND user_id = $2::uuid AND product_id = $3::uuid
	`, tenantID, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}
