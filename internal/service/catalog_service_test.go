package service

import (
	"context"
	"testing"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductService_CreateAndFilter(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProductService(env.repo, env.logger)
	ctx := context.Background()
	admin := env.seedUser(t, env.tenant.ID, "admin@loja-a.com", domain.RoleAdmin)

	cat, err := NewCategoryService(env.repo, env.logger).CreateCategory(ctx, rcFor(admin), CategoryRequest{Name: "Cozinha"})
	require.NoError(t, err)

	p, err := svc.CreateProduct(ctx, rcFor(admin), CreateProductRequest{
		Name:        "  Chaleira  ",
		Description: "Chaleira elétrica 1,7L inox",
		Price:       ptr(decimal.RequireFromString("129.90")),
		Quantity:    3,
		CategoryID:  cat.ID,
		Variables: []ProductVariableRequest{
			{Name: "110V", Quantity: 1, Price: decimal.RequireFromString("129.90")},
			{Name: "220V", Quantity: 2, Price: decimal.RequireFromString("134.90")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Chaleira", p.Name)
	assert.Len(t, p.Variables, 2)

	env.seedProduct(t, env.tenant.ID, "9.90", 0)
	env.seedProduct(t, env.other.ID, "1.00", 100)

	all, err := svc.ListProducts(ctx, env.tenant.ID, domain.ProductFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inStock, err := svc.ListProducts(ctx, env.tenant.ID, domain.ProductFilters{InStock: true})
	require.NoError(t, err)
	require.Len(t, inStock, 1)
	assert.Equal(t, p.ID, inStock[0].ID)

	byCategory, err := svc.ListProducts(ctx, env.tenant.ID, domain.ProductFilters{CategoryID: cat.ID})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	cheap, err := svc.ListProducts(ctx, env.tenant.ID, domain.ProductFilters{MaxPrice: ptr(decimal.RequireFromString("50"))})
	require.NoError(t, err)
	require.Len(t, cheap, 1)
	assert.Equal(t, "Caneca", cheap[0].Name)

	_, err = svc.ListProducts(ctx, env.tenant.ID, domain.ProductFilters{
		MinPrice: ptr(decimal.RequireFromString("100")),
		MaxPrice: ptr(decimal.RequireFromString("10")),
	})
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	withVars, err := svc.ListProductsWithVariables(ctx, env.tenant.ID)
	require.NoError(t, err)
	assert.Len(t, withVars, 1)

	found, err := svc.SearchProducts(ctx, env.tenant.ID, "INOX")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	_, err = svc.SearchProducts(ctx, env.tenant.ID, "   ")
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	_, err = svc.GetProduct(ctx, env.other.ID, p.ID)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
}

func TestProductService_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProductService(env.repo, env.logger)
	admin := env.seedUser(t, env.tenant.ID, "admin@loja-a.com", domain.RoleAdmin)

	_, err := svc.CreateProduct(context.Background(), rcFor(admin), CreateProductRequest{
		Name:        "X",
		Description: "curta",
		Price:       ptr(decimal.RequireFromString("-1")),
		Quantity:    -1,
	})
	require.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))
	fields := map[string]bool{}
	for _, d := range apperr.ErrorDetails(err) {
		fields[d.Field] = true
	}
	for _, f := range []string{"name", "description", "price", "quantity"} {
		assert.True(t, fields[f], f)
	}

	_, err = svc.CreateProduct(context.Background(), rcFor(admin), CreateProductRequest{
		Name: "Sem preço", Description: "Produto sem preço definido",
	})
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	_, err = svc.CreateProduct(context.Background(), rcFor(admin), CreateProductRequest{
		Name: "Órfão", Description: "Categoria inexistente aqui", Price: ptr(decimal.NewFromInt(1)), CategoryID: "missing",
	})
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
}

func TestProductService_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProductService(env.repo, env.logger)
	ctx := context.Background()
	admin := env.seedUser(t, env.tenant.ID, "admin@loja-a.com", domain.RoleAdmin)
	p := env.seedProduct(t, env.tenant.ID, "10.00", 1)

	updated, err := svc.UpdateProduct(ctx, rcFor(admin), p.ID, UpdateProductRequest{
		Price:    ptr(decimal.RequireFromString("12.50")),
		Quantity: ptr(0),
	})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, 0, updated.Quantity)
	assert.Equal(t, "Caneca", updated.Name)

	_, err = svc.UpdateProduct(ctx, rcFor(admin), p.ID, UpdateProductRequest{Price: ptr(decimal.RequireFromString("-3"))})
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	require.NoError(t, svc.DeleteProduct(ctx, rcFor(admin), p.ID))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(svc.DeleteProduct(ctx, rcFor(admin), p.ID)))
}

func TestCategoryService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := NewCategoryService(env.repo, env.logger)
	ctx := context.Background()
	admin := env.seedUser(t, env.tenant.ID, "admin@loja-a.com", domain.RoleAdmin)

	c, err := svc.CreateCategory(ctx, rcFor(admin), CategoryRequest{Name: "Bebidas", Description: "Cafés e chás"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, rcFor(admin), CategoryRequest{Name: "bebidas"})
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))
	_, err = svc.CreateCategory(ctx, rcFor(admin), CategoryRequest{Name: "B"})
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	found, err := svc.SearchCategories(ctx, env.tenant.ID, "chá")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	_, err = svc.SearchCategories(ctx, env.tenant.ID, "")
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	renamed, err := svc.UpdateCategory(ctx, rcFor(admin), c.ID, UpdateCategoryRequest{Name: ptr("Bebidas quentes")})
	require.NoError(t, err)
	assert.Equal(t, "Bebidas quentes", renamed.Name)
	assert.Equal(t, "Cafés e chás", renamed.Description)

	// 删除分类后商品变为未分类
	p, err := env.repo.CreateProduct(ctx, env.tenant.ID, &domain.Product{
		Name: "Café", Description: "Café torrado 500g", Price: decimal.NewFromInt(30), CategoryID: c.ID,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCategory(ctx, rcFor(admin), c.ID))
	got, err := env.repo.GetProduct(ctx, env.tenant.ID, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)

	list, err := svc.ListCategories(ctx, env.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = svc.GetCategory(ctx, env.tenant.ID, c.ID)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
}
