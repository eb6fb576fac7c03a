package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCompany(t *testing.T, s *MemoryStore, taxID string, domains ...string) *domain.Company {
	t.Helper()
	c, err := s.CreateCompany(context.Background(), &domain.Company{
		Name: "Loja " + taxID, TaxID: taxID, Address: "Rua A, 1", Domains: domains,
	})
	require.NoError(t, err)
	return c
}

func seedProduct(t *testing.T, s *MemoryStore, tenantID string, qty int) *domain.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), tenantID, &domain.Product{
		Name: "Camiseta", Description: "Camiseta de algodão", Price: decimal.RequireFromString("49.90"), Quantity: qty,
	})
	require.NoError(t, err)
	return p
}

func TestMemoryStore_UserCrossTenantIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11", "t1.example.com")
	t2 := seedCompany(t, s, "22.222.222/0001-22", "t2.example.com")

	u, err := s.CreateUser(ctx, t1.ID, &domain.User{Name: "Ana", Email: "a@b.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, u.Role)

	_, err = s.GetUser(ctx, t2.ID, u.ID)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	_, err = s.GetUserByEmail(ctx, t2.ID, "a@b.com")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	_, err = s.UpdateUser(ctx, t2.ID, u.ID, domain.UserPatch{})
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.DeleteUser(ctx, t2.ID, u.ID)))

	list, err := s.ListUsers(ctx, t2.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 同一邮箱可以在另一个租户注册
	_, err = s.CreateUser(ctx, t2.ID, &domain.User{Name: "Ana", Email: "A@B.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, t1.ID, &domain.User{Name: "Ana 2", Email: "A@b.COM", PasswordHash: "h"})
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))
}

func TestMemoryStore_UserTaxIDUniqueWithinTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")

	_, err := s.CreateUser(ctx, t1.ID, &domain.User{Name: "A", Email: "a@x.com", TaxID: "123.456.789-00"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, t1.ID, &domain.User{Name: "B", Email: "b@x.com", TaxID: "123.456.789-00"})
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))

	// 没有 CPF 的用户之间不冲突
	_, err = s.CreateUser(ctx, t1.ID, &domain.User{Name: "C", Email: "c@x.com"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, t1.ID, &domain.User{Name: "D", Email: "d@x.com"})
	require.NoError(t, err)
}

func TestMemoryStore_DeleteTwice(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")
	p := seedProduct(t, s, t1.ID, 1)

	require.NoError(t, s.DeleteProduct(ctx, t1.ID, p.ID))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.DeleteProduct(ctx, t1.ID, p.ID)))
}

func TestMemoryStore_DomainConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedCompany(t, s, "11.111.111/0001-11", "shop.example.com")

	_, err := s.CreateCompany(ctx, &domain.Company{Name: "Outra", TaxID: "22.222.222/0001-22", Domains: []string{"shop.example.com"}})
	require.Error(t, err)
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))
	assert.Equal(t, "shop.example.com", apperr.ErrorDetails(err)[0].Value)

	_, err = s.CreateCompany(ctx, &domain.Company{Name: "Outra", TaxID: "11.111.111/0001-11"})
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))

	// 没有域名的公司之间不冲突
	seedCompany(t, s, "33.333.333/0001-33")
	seedCompany(t, s, "44.444.444/0001-44")
}

func TestMemoryStore_UpdateCompanyReplacesDomains(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := seedCompany(t, s, "11.111.111/0001-11", "old.example.com")

	c.Domains = []string{"new.example.com"}
	_, err := s.UpdateCompany(ctx, c)
	require.NoError(t, err)

	_, err = s.GetCompanyByDomain(ctx, "old.example.com")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	got, err := s.GetCompanyByDomain(ctx, "new.example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	// 释放后的域名可以被其他公司使用
	seedCompany(t, s, "22.222.222/0001-22", "old.example.com")
}

func TestMemoryStore_OrderStockLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")
	p := seedProduct(t, s, t1.ID, 5)

	order, err := s.CreateOrder(ctx, t1.ID, &domain.Order{
		UserID: "u1",
		Items:  []domain.OrderItem{{ProductID: p.ID, ProductName: p.Name, Quantity: 2, UnitPrice: p.Price}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Len(t, order.OrderNumber, 12)

	got, _ := s.GetProduct(ctx, t1.ID, p.ID)
	assert.Equal(t, 3, got.Quantity)

	cancelled := domain.OrderCancelled
	_, err = s.UpdateOrder(ctx, t1.ID, order.ID, domain.OrderPatch{Status: &cancelled})
	require.NoError(t, err)
	got, _ = s.GetProduct(ctx, t1.ID, p.ID)
	assert.Equal(t, 5, got.Quantity)

	_, err = s.UpdateOrder(ctx, t1.ID, order.ID, domain.OrderPatch{Status: &cancelled})
	require.NoError(t, err)
	got, _ = s.GetProduct(ctx, t1.ID, p.ID)
	assert.Equal(t, 5, got.Quantity)

	// 从 cancelled 恢复会重新占用库存
	pending := domain.OrderPending
	_, err = s.UpdateOrder(ctx, t1.ID, order.ID, domain.OrderPatch{Status: &pending})
	require.NoError(t, err)
	got, _ = s.GetProduct(ctx, t1.ID, p.ID)
	assert.Equal(t, 3, got.Quantity)

	require.NoError(t, s.DeleteOrder(ctx, t1.ID, order.ID))
	got, _ = s.GetProduct(ctx, t1.ID, p.ID)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.DeleteOrder(ctx, t1.ID, order.ID)))
}

func TestMemoryStore_CreateOrder_AllOrNothing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")
	plenty := seedProduct(t, s, t1.ID, 10)
	scarce := seedProduct(t, s, t1.ID, 1)

	_, err := s.CreateOrder(ctx, t1.ID, &domain.Order{Items: []domain.OrderItem{
		{ProductID: plenty.ID, Quantity: 3},
		{ProductID: scarce.ID, Quantity: 2},
	}})
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonInsufficientStock, apperr.ErrorReason(err))

	got, _ := s.GetProduct(ctx, t1.ID, plenty.ID)
	assert.Equal(t, 10, got.Quantity)
	got, _ = s.GetProduct(ctx, t1.ID, scarce.ID)
	assert.Equal(t, 1, got.Quantity)
}

func TestMemoryStore_CreateOrder_ConcurrentNeverOversells(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")
	p := seedProduct(t, s, t1.ID, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateOrder(ctx, t1.ID, &domain.Order{Items: []domain.OrderItem{{ProductID: p.ID, Quantity: 1}}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	got, _ := s.GetProduct(ctx, t1.ID, p.ID)
	assert.Equal(t, 0, got.Quantity)
}

func TestMemoryStore_OrderNumbersSequential(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")
	t2 := seedCompany(t, s, "22.222.222/0001-22")

	a, err := s.CreateOrder(ctx, t1.ID, &domain.Order{})
	require.NoError(t, err)
	b, err := s.CreateOrder(ctx, t2.ID, &domain.Order{})
	require.NoError(t, err)

	day := s.now().Format("20060102")
	assert.Equal(t, day+"0001", a.OrderNumber)
	assert.Equal(t, day+"0002", b.OrderNumber)

	_, err = s.GetOrderByNumber(ctx, t2.ID, a.OrderNumber)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
}

func TestMemoryStore_Cart(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")
	t2 := seedCompany(t, s, "22.222.222/0001-22")
	p := seedProduct(t, s, t1.ID, 5)
	foreign := seedProduct(t, s, t2.ID, 5)
	u, err := s.CreateUser(ctx, t1.ID, &domain.User{Name: "Ana", Email: "a@b.com"})
	require.NoError(t, err)

	require.NoError(t, s.AddCartItem(ctx, t1.ID, u.ID, p.ID, 1))
	require.NoError(t, s.AddCartItem(ctx, t1.ID, u.ID, p.ID, 2))
	lines, err := s.GetCart(ctx, t1.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "Camiseta", lines[0].Name)

	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.AddCartItem(ctx, t1.ID, u.ID, foreign.ID, 1)))

	require.NoError(t, s.SetCartItem(ctx, t1.ID, u.ID, p.ID, 7))
	lines, _ = s.GetCart(ctx, t1.ID, u.ID)
	assert.Equal(t, 7, lines[0].Quantity)

	require.NoError(t, s.RemoveCartItem(ctx, t1.ID, u.ID, p.ID))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.RemoveCartItem(ctx, t1.ID, u.ID, p.ID)))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.SetCartItem(ctx, t1.ID, u.ID, p.ID, 1)))
}

func TestMemoryStore_CategoryDeleteDetachesProducts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")

	cat, err := s.CreateCategory(ctx, t1.ID, &domain.Category{Name: "Roupas"})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, t1.ID, &domain.Category{Name: "roupas"})
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))

	p, err := s.CreateProduct(ctx, t1.ID, &domain.Product{Name: "Camiseta", CategoryID: cat.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCategory(ctx, t1.ID, cat.ID))
	got, _ := s.GetProduct(ctx, t1.ID, p.ID)
	assert.Empty(t, got.CategoryID)
}

func TestMemoryStore_ListProductsFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")

	_, _ = s.CreateProduct(ctx, t1.ID, &domain.Product{Name: "Caneca azul", Description: "cerâmica", Price: decimal.NewFromInt(20), Quantity: 0})
	_, _ = s.CreateProduct(ctx, t1.ID, &domain.Product{Name: "Camiseta", Description: "algodão azul", Price: decimal.NewFromInt(50), Quantity: 3,
		Variables: []domain.ProductVariable{{Name: "G", Quantity: 1, Price: decimal.NewFromInt(55)}}})

	list, _ := s.ListProducts(ctx, t1.ID, domain.ProductFilters{Search: "AZUL"})
	assert.Len(t, list, 2)
	list, _ = s.ListProducts(ctx, t1.ID, domain.ProductFilters{InStock: true})
	assert.Len(t, list, 1)
	minPrice := decimal.NewFromInt(30)
	list, _ = s.ListProducts(ctx, t1.ID, domain.ProductFilters{MinPrice: &minPrice})
	assert.Len(t, list, 1)
	list, _ = s.ListProducts(ctx, t1.ID, domain.ProductFilters{WithVariables: true})
	require.Len(t, list, 1)
	assert.Equal(t, "Camiseta", list[0].Name)
}

func TestMemoryStore_OrderStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t1 := seedCompany(t, s, "11.111.111/0001-11")

	_, _ = s.CreateOrder(ctx, t1.ID, &domain.Order{Total: decimal.NewFromInt(100)})
	_, _ = s.CreateOrder(ctx, t1.ID, &domain.Order{Total: decimal.NewFromInt(50)})
	_, _ = s.CreateOrder(ctx, t1.ID, &domain.Order{Total: decimal.NewFromInt(70), Status: domain.OrderCancelled})

	stats, err := s.OrderStats(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.True(t, decimal.NewFromInt(150).Equal(stats.TotalRevenue))
	assert.True(t, decimal.NewFromInt(75).Equal(stats.AverageOrderValue))
	assert.Equal(t, 2, stats.ByStatus[domain.OrderPending])
	assert.Equal(t, 1, stats.ByStatus[domain.OrderCancelled])
	assert.Equal(t, 0, stats.ByStatus[domain.OrderShipped])
}

func TestMemoryStore_DeleteCompany(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := seedCompany(t, s, "11.111.111/0001-11", "shop.example.com")
	u, err := s.CreateUser(ctx, c.ID, &domain.User{Name: "Ana", Email: "a@b.com"})
	require.NoError(t, err)

	n, err := s.CountCompanyResources(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.DeleteCompany(ctx, c.ID))
	_, err = s.GetCompanyByDomain(ctx, "shop.example.com")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	_, err = s.GetUser(ctx, c.ID, u.ID)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.DeleteCompany(ctx, c.ID)))
}

func TestMemoryStore_BootstrapAdmin(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	admin, err := s.CreateBootstrapAdmin(ctx, &domain.User{Name: "Root", Email: "root@shop.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Empty(t, admin.CompanyID)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	c := seedCompany(t, s, "11.111.111/0001-11")
	require.NoError(t, s.AssignCompany(ctx, admin.ID, c.ID))
	got, err := s.GetUser(ctx, c.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.CompanyID)

	// 已分配的用户不能再次分配
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(s.AssignCompany(ctx, admin.ID, c.ID)))
}
