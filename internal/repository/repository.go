// Package repository holds the persistence layer: Postgres implementations for production and an
// in-memory store for DB_ENABLED=false and tests. Every tenant-owned entity is addressed by
// (tenantID, id); there is no id-only lookup for users, products, categories or orders.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"

	"github.com/lib/pq"
)

// CompaniesRepository 公司（租户）Repository
type CompaniesRepository interface {
	GetCompany(ctx context.Context, companyID string) (*domain.Company, error)
	// GetCompanyByDomain 精确匹配规范化后的域名
	GetCompanyByDomain(ctx context.Context, host string) (*domain.Company, error)
	// FindDomainOwners returns host -> company id for the hosts already claimed.
	FindDomainOwners(ctx context.Context, hosts []string) (map[string]string, error)
	ListCompanies(ctx context.Context, filter domain.CompanyFilters) ([]*domain.Company, error)
	// CreateCompany 插入公司及其域名（同一事务）；域名冲突返回 Conflict
	CreateCompany(ctx context.Context, company *domain.Company) (*domain.Company, error)
	// UpdateCompany 整体替换可变字段与域名列表（同一事务）
	UpdateCompany(ctx context.Context, company *domain.Company) (*domain.Company, error)
	DeleteCompany(ctx context.Context, companyID string) error
	// CountCompanyResources counts products, categories and orders owned by the company.
	CountCompanyResources(ctx context.Context, companyID string) (int, error)
}

// UsersRepository 用户Repository（所有方法都以 tenantID 作为必选过滤条件）
type UsersRepository interface {
	CreateUser(ctx context.Context, tenantID string, user *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, tenantID, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, tenantID, email string) (*domain.User, error)
	ListUsers(ctx context.Context, tenantID string) ([]*domain.User, error)
	UpdateUser(ctx context.Context, tenantID, userID string, patch domain.UserPatch) (*domain.User, error)
	DeleteUser(ctx context.Context, tenantID, userID string) error

	// CreateBootstrapAdmin creates the only kind of user without a company.
	CreateBootstrapAdmin(ctx context.Context, user *domain.User) (*domain.User, error)
	// AssignCompany moves a company-less user into companyID; NotFound if the user already has one.
	AssignCompany(ctx context.Context, userID, companyID string) error

	GetCart(ctx context.Context, tenantID, userID string) ([]domain.CartLine, error)
	// AddCartItem 原子地增加数量（不存在则插入）
	AddCartItem(ctx context.Context, tenantID, userID, productID string, quantity int) error
	SetCartItem(ctx context.Context, tenantID, userID, productID string, quantity int) error
	RemoveCartItem(ctx context.Context, tenantID, userID, productID string) error
}

// CategoriesRepository 分类Repository
type CategoriesRepository interface {
	CreateCategory(ctx context.Context, tenantID string, category *domain.Category) (*domain.Category, error)
	GetCategory(ctx context.Context, tenantID, categoryID string) (*domain.Category, error)
	ListCategories(ctx context.Context, tenantID, search string) ([]*domain.Category, error)
	UpdateCategory(ctx context.Context, tenantID string, category *domain.Category) (*domain.Category, error)
	// DeleteCategory 删除分类，关联商品的 category 置空
	DeleteCategory(ctx context.Context, tenantID, categoryID string) error
}

// ProductsRepository 商品Repository
type ProductsRepository interface {
	CreateProduct(ctx context.Context, tenantID string, product *domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, tenantID string, productIDs []string) (map[string]*domain.Product, error)
	ListProducts(ctx context.Context, tenantID string, filter domain.ProductFilters) ([]*domain.Product, error)
	UpdateProduct(ctx context.Context, tenantID string, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, tenantID, productID string) error
}

// OrdersRepository 订单Repository
// 库存调整与订单写入在同一事务内完成：任一商品库存不足则整体回滚
type OrdersRepository interface {
	// CreateOrder assigns the order number and reserves stock for every item.
	CreateOrder(ctx context.Context, tenantID string, order *domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, tenantID, orderNumber string) (*domain.Order, error)
	ListOrders(ctx context.Context, tenantID string, filter domain.OrderFilters) ([]*domain.Order, error)
	// UpdateOrder applies patch; a status change into cancelled releases stock, out of cancelled reserves it again.
	UpdateOrder(ctx context.Context, tenantID, orderID string, patch domain.OrderPatch) (*domain.Order, error)
	// DeleteOrder releases stock unless the order is already cancelled.
	DeleteOrder(ctx context.Context, tenantID, orderID string) error
	OrderStats(ctx context.Context, tenantID string) (*domain.OrderStats, error)
}

// 业务错误（service 层按 apperr code 映射 HTTP 状态）
var (
	ErrCompanyNotFound  = apperr.NotFound("company not found")
	ErrUserNotFound     = apperr.NotFound("user not found")
	ErrCategoryNotFound = apperr.NotFound("category not found")
	ErrProductNotFound  = apperr.NotFound("product not found")
	ErrOrderNotFound    = apperr.NotFound("order not found")
	ErrCartItemNotFound = apperr.NotFound("product not in cart")
)

// InsufficientStock builds the 409 raised when a reservation cannot be satisfied.
func InsufficientStock(productID string) *apperr.Error {
	return apperr.Conflict(apperr.ReasonInsufficientStock, "insufficient stock",
		apperr.Detail{Field: "items", Code: apperr.ReasonInsufficientStock, Message: "insufficient stock", Value: productID})
}

const (
	msgCompanyTaxIDTaken = "company with this CNPJ already exists"
	msgUserEmailTaken    = "email already registered in this company"
	msgUserTaxIDTaken    = "CPF already registered in this company"
	msgCategoryNameTaken = "category with this name already exists"
)

// fieldConflict builds a 409 for a unique field such as email, cpf or cnpj.
func fieldConflict(field, msg, value string) *apperr.Error {
	return apperr.Conflict("", msg, apperr.Detail{Field: field, Message: "already exists", Value: value})
}

// pq 错误码
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqErrorCode(err error) (code string, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
