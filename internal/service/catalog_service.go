package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductService 商品服务
type ProductService struct {
	products repository.ProductsRepository
	logger   *zap.Logger
}

// NewProductService 创建商品服务
func NewProductService(products repository.ProductsRepository, logger *zap.Logger) *ProductService {
	return &ProductService{products: products, logger: logger}
}

// ProductVariableRequest 商品规格
type ProductVariableRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Quantity int             `json:"quantity" validate:"gte=0"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty" validate:"omitempty,max=500"`
}

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	Name        string                   `json:"name" validate:"required,min=2,max=200"`
	Description string                   `json:"description" validate:"required,min=10,max=1000"`
	Price       *decimal.Decimal         `json:"price" validate:"required"`
	Quantity    int                      `json:"quantity" validate:"gte=0"`
	CategoryID  string                   `json:"categoryId,omitempty"`
	Image       string                   `json:"image,omitempty" validate:"omitempty,max=500"`
	Variables   []ProductVariableRequest `json:"variables,omitempty" validate:"omitempty,dive"`
}

// UpdateProductRequest 部分更新；categoryId 为 "" 时取消分类
type UpdateProductRequest struct {
	Name        *string                  `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string                  `json:"description,omitempty" validate:"omitempty,min=10,max=1000"`
	Price       *decimal.Decimal         `json:"price,omitempty"`
	Quantity    *int                     `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	CategoryID  *string                  `json:"categoryId,omitempty"`
	Image       *string                  `json:"image,omitempty" validate:"omitempty,max=500"`
	Variables   []ProductVariableRequest `json:"variables,omitempty" validate:"omitempty,dive"`
}

func variableDetails(vars []ProductVariableRequest) []apperr.Detail {
	var details []apperr.Detail
	for i := range vars {
		details = append(details, nonNegative(fmt.Sprintf("variables[%d].price", i), &vars[i].Price)...)
	}
	return details
}

func toVariables(vars []ProductVariableRequest) []domain.ProductVariable {
	out := make([]domain.ProductVariable, 0, len(vars))
	for _, v := range vars {
		out = append(out, domain.ProductVariable{Name: strings.TrimSpace(v.Name), Quantity: v.Quantity, Price: v.Price, Image: v.Image})
	}
	return out
}

// ListProducts 商品列表（支持分类、价格区间、库存过滤）
func (s *ProductService) ListProducts(ctx context.Context, tenantID string, filter domain.ProductFilters) ([]*domain.Product, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, apperr.Invalid("minPrice cannot be greater than maxPrice")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.products.ListProducts(ctx, tenantID, filter)
}

// SearchProducts 按名称或描述搜索（不区分大小写）
func (s *ProductService) SearchProducts(ctx context.Context, tenantID, q string) ([]*domain.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Invalid("search term is required", apperr.Detail{Field: "q", Code: "required", Message: "is required"})
	}
	return s.products.ListProducts(ctx, tenantID, domain.ProductFilters{Search: q})
}

// ListProductsWithVariables 有规格的商品
func (s *ProductService) ListProductsWithVariables(ctx context.Context, tenantID string) ([]*domain.Product, error) {
	return s.products.ListProducts(ctx, tenantID, domain.ProductFilters{WithVariables: true})
}

func (s *ProductService) GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error) {
	return s.products.GetProduct(ctx, tenantID, productID)
}

func (s *ProductService) CreateProduct(ctx context.Context, rc auth.RequestContext, req CreateProductRequest) (*domain.Product, error) {
	err := validateStruct(req)
	extra := append(nonNegative("price", req.Price), variableDetails(req.Variables)...)
	if err != nil || len(extra) > 0 {
		return nil, mergeInvalid(err, extra)
	}

	product, err := s.products.CreateProduct(ctx, rc.TenantID(), &domain.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       *req.Price,
		Quantity:    req.Quantity,
		CategoryID:  req.CategoryID,
		Image:       req.Image,
		Variables:   toVariables(req.Variables),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product created",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("product_id", product.ID),
	)
	return product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, rc auth.RequestContext, productID string, req UpdateProductRequest) (*domain.Product, error) {
	err := validateStruct(req)
	extra := append(nonNegative("price", req.Price), variableDetails(req.Variables)...)
	if err != nil || len(extra) > 0 {
		return nil, mergeInvalid(err, extra)
	}

	p, err := s.products.GetProduct(ctx, rc.TenantID(), productID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Quantity != nil {
		p.Quantity = *req.Quantity
	}
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	if req.Image != nil {
		p.Image = *req.Image
	}
	if req.Variables != nil {
		p.Variables = toVariables(req.Variables)
	}
	return s.products.UpdateProduct(ctx, rc.TenantID(), p)
}

func (s *ProductService) DeleteProduct(ctx context.Context, rc auth.RequestContext, productID string) error {
	if err := s.products.DeleteProduct(ctx, rc.TenantID(), productID); err != nil {
		return err
	}
	s.logger.Info("Product deleted",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("product_id", productID),
		zap.String("deleted_by", rc.UserID()),
	)
	return nil
}

// CategoryService 分类服务
type CategoryService struct {
	categories repository.CategoriesRepository
	logger     *zap.Logger
}

// NewCategoryService 创建分类服务
func NewCategoryService(categories repository.CategoriesRepository, logger *zap.Logger) *CategoryService {
	return &CategoryService{categories: categories, logger: logger}
}

// CategoryRequest 创建/更新分类
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
	Image       string `json:"image,omitempty" validate:"omitempty,max=500"`
}

// UpdateCategoryRequest 部分更新
type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Image       *string `json:"image,omitempty" validate:"omitempty,max=500"`
}

func (s *CategoryService) ListCategories(ctx context.Context, tenantID string) ([]*domain.Category, error) {
	return s.categories.ListCategories(ctx, tenantID, "")
}

func (s *CategoryService) SearchCategories(ctx context.Context, tenantID, q string) ([]*domain.Category, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Invalid("search term is required", apperr.Detail{Field: "q", Code: "required", Message: "is required"})
	}
	return s.categories.ListCategories(ctx, tenantID, q)
}

func (s *CategoryService) GetCategory(ctx context.Context, tenantID, categoryID string) (*domain.Category, error) {
	return s.categories.GetCategory(ctx, tenantID, categoryID)
}

func (s *CategoryService) CreateCategory(ctx context.Context, rc auth.RequestContext, req CategoryRequest) (*domain.Category, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.categories.CreateCategory(ctx, rc.TenantID(), &domain.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Image:       req.Image,
	})
}

func (s *CategoryService) UpdateCategory(ctx context.Context, rc auth.RequestContext, categoryID string, req UpdateCategoryRequest) (*domain.Category, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	c, err := s.categories.GetCategory(ctx, rc.TenantID(), categoryID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Image != nil {
		c.Image = *req.Image
	}
	return s.categories.UpdateCategory(ctx, rc.TenantID(), c)
}

// DeleteCategory 删除分类；该分类下的商品变为未分类
func (s *CategoryService) DeleteCategory(ctx context.Context, rc auth.RequestContext, categoryID string) error {
	if err := s.categories.DeleteCategory(ctx, rc.TenantID(), categoryID); err != nil {
		return err
	}
	s.logger.Info("Category deleted",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("category_id", categoryID),
	)
	return nil
}
