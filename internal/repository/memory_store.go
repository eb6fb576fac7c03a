package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/tenancy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore 内存实现（DB_ENABLED=false 时使用，也是 service 测试的 fake）
// 所有实体共用一把锁，跨实体操作（下单扣库存等）因此是原子的。
type MemoryStore struct {
	mu         sync.RWMutex
	companies  map[string]*domain.Company
	domains    map[string]string // hostname -> company id
	users      map[string]*domain.User
	carts      map[string][]domain.CartItem // user id -> items
	categories map[string]*domain.Category
	products   map[string]*domain.Product
	orders     map[string]*domain.Order
	orderSeq   map[string]int // YYYYMMDD -> last sequence
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies:  map[string]*domain.Company{},
		domains:    map[string]string{},
		users:      map[string]*domain.User{},
		carts:      map[string][]domain.CartItem{},
		categories: map[string]*domain.Category{},
		products:   map[string]*domain.Product{},
		orders:     map[string]*domain.Order{},
		orderSeq:   map[string]int{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ CompaniesRepository  = (*MemoryStore)(nil)
	_ UsersRepository      = (*MemoryStore)(nil)
	_ CategoriesRepository = (*MemoryStore)(nil)
	_ ProductsRepository   = (*MemoryStore)(nil)
	_ OrdersRepository     = (*MemoryStore)(nil)
)

// ========== Companies ==========

func cloneCompany(c *domain.Company) *domain.Company {
	cp := *c
	cp.Domains = append([]string(nil), c.Domains...)
	cp.Customizations.HomeBanners = append([]string(nil), c.Customizations.HomeBanners...)
	cp.Customizations.BrandColors = append([]string(nil), c.Customizations.BrandColors...)
	cp.Cart = append([]domain.CartItem(nil), c.Cart...)
	return &cp
}

func (s *MemoryStore) GetCompany(_ context.Context, companyID string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	return cloneCompany(c), nil
}

func (s *MemoryStore) GetCompanyByDomain(_ context.Context, host string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.domains[host]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	return cloneCompany(s.companies[id]), nil
}

func (s *MemoryStore) FindDomainOwners(_ context.Context, hosts []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]string{}
	for _, h := range hosts {
		if id, ok := s.domains[h]; ok {
			out[h] = id
		}
	}
	return out, nil
}

func (s *MemoryStore) ListCompanies(_ context.Context, filter domain.CompanyFilters) ([]*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Company, 0, len(s.companies))
	for _, c := range s.companies {
		if filter.OwnerUserID != "" || filter.OrID != "" {
			owned := filter.OwnerUserID != "" && c.OwnerUserID == filter.OwnerUserID
			if !owned && c.ID != filter.OrID {
				continue
			}
		}
		if filter.Search != "" && !containsFold(c.Name, filter.Search) {
			continue
		}
		out = append(out, cloneCompany(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// checkCompanyUniqueLocked caller holds mu.
func (s *MemoryStore) checkCompanyUniqueLocked(c *domain.Company) error {
	for _, other := range s.companies {
		if other.ID != c.ID && other.TaxID == c.TaxID {
			return fieldConflict("cnpj", msgCompanyTaxIDTaken, c.TaxID)
		}
	}
	var conflicting []string
	for _, d := range c.Domains {
		if owner, ok := s.domains[d]; ok && owner != c.ID {
			conflicting = append(conflicting, d)
		}
	}
	if len(conflicting) > 0 {
		sort.Strings(conflicting)
		return tenancy.DomainConflict(conflicting)
	}
	return nil
}

func (s *MemoryStore) CreateCompany(_ context.Context, company *domain.Company) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneCompany(company)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.companies[c.ID]; exists {
		return nil, apperr.Conflict("", "company already exists")
	}
	if err := s.checkCompanyUniqueLocked(c); err != nil {
		return nil, err
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.companies[c.ID] = c
	for _, d := range c.Domains {
		s.domains[d] = c.ID
	}
	return cloneCompany(c), nil
}

func (s *MemoryStore) UpdateCompany(_ context.Context, company *domain.Company) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.companies[company.ID]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	c := cloneCompany(company)
	if err := s.checkCompanyUniqueLocked(c); err != nil {
		return nil, err
	}
	for _, d := range existing.Domains {
		delete(s.domains, d)
	}
	for _, d := range c.Domains {
		s.domains[d] = c.ID
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	s.companies[c.ID] = c
	return cloneCompany(c), nil
}

func (s *MemoryStore) DeleteCompany(_ context.Context, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return ErrCompanyNotFound
	}
	for _, d := range c.Domains {
		delete(s.domains, d)
	}
	for id, u := range s.users {
		if u.CompanyID == companyID {
			delete(s.users, id)
			delete(s.carts, id)
		}
	}
	for _, other := range s.companies {
		if other.OwnerUserID != "" {
			if _, alive := s.users[other.OwnerUserID]; !alive {
				other.OwnerUserID = ""
			}
		}
	}
	delete(s.companies, companyID)
	return nil
}

func (s *MemoryStore) CountCompanyResources(_ context.Context, companyID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.products {
		if p.CompanyID == companyID {
			n++
		}
	}
	for _, c := range s.categories {
		if c.CompanyID == companyID {
			n++
		}
	}
	for _, o := range s.orders {
		if o.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

// ========== Users ==========

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.Cart = nil
	return &cp
}

// checkUserUniqueLocked caller holds mu.
func (s *MemoryStore) checkUserUniqueLocked(tenantID, userID, email, taxID string) error {
	for _, other := range s.users {
		if other.CompanyID != tenantID || other.ID == userID {
			continue
		}
		if strings.EqualFold(other.Email, email) {
			return fieldConflict("email", msgUserEmailTaken, email)
		}
		if taxID != "" && other.TaxID == taxID {
			return fieldConflict("cpf", msgUserTaxIDTaken, taxID)
		}
	}
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, tenantID string, user *domain.User) (*domain.User, error) {
	if tenantID == "" {
		return nil, apperr.Invalid("company is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[tenantID]; !ok {
		return nil, ErrCompanyNotFound
	}
	return s.insertUserLocked(tenantID, user)
}

func (s *MemoryStore) CreateBootstrapAdmin(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	u.Role = domain.RoleAdmin
	return s.insertUserLocked("", &u)
}

func (s *MemoryStore) insertUserLocked(tenantID string, user *domain.User) (*domain.User, error) {
	if err := s.checkUserUniqueLocked(tenantID, "", user.Email, user.TaxID); err != nil {
		return nil, err
	}
	u := cloneUser(user)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CompanyID = tenantID
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *MemoryStore) AssignCompany(_ context.Context, userID, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.CompanyID != "" {
		return ErrUserNotFound
	}
	if _, ok := s.companies[companyID]; !ok {
		return ErrCompanyNotFound
	}
	if err := s.checkUserUniqueLocked(companyID, u.ID, u.Email, u.TaxID); err != nil {
		return err
	}
	u.CompanyID = companyID
	u.UpdatedAt = s.now()
	return nil
}

// tenantUserLocked caller holds mu.
func (s *MemoryStore) tenantUserLocked(tenantID, userID string) (*domain.User, bool) {
	u, ok := s.users[userID]
	if !ok || tenantID == "" || u.CompanyID != tenantID {
		return nil, false
	}
	return u, true
}

func (s *MemoryStore) GetUser(_ context.Context, tenantID, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.tenantUserLocked(tenantID, userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, tenantID, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if tenantID != "" && u.CompanyID == tenantID && strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context, tenantID string) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.User{}
	for _, u := range s.users {
		if tenantID != "" && u.CompanyID == tenantID {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, tenantID, userID string, patch domain.UserPatch) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.tenantUserLocked(tenantID, userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	email, taxID := u.Email, u.TaxID
	if patch.Email != nil {
		email = *patch.Email
	}
	if patch.TaxID != nil {
		taxID = *patch.TaxID
	}
	if err := s.checkUserUniqueLocked(tenantID, userID, email, taxID); err != nil {
		return nil, err
	}
	next := *u
	applyUserPatch(&next, patch)
	next.UpdatedAt = s.now()
	s.users[userID] = &next
	return cloneUser(&next), nil
}

func applyUserPatch(u *domain.User, p domain.UserPatch) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.TaxID != nil {
		u.TaxID = *p.TaxID
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
}

func (s *MemoryStore) DeleteUser(_ context.Context, tenantID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenantUserLocked(tenantID, userID); !ok {
		return ErrUserNotFound
	}
	delete(s.users, userID)
	delete(s.carts, userID)
	for _, c := range s.companies {
		if c.OwnerUserID == userID {
			c.OwnerUserID = ""
		}
	}
	return nil
}

// ========== Cart ==========

func (s *MemoryStore) GetCart(_ context.Context, tenantID, userID string) ([]domain.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tenantUserLocked(tenantID, userID); !ok {
		return nil, ErrUserNotFound
	}
	lines := []domain.CartLine{}
	for _, it := range s.carts[userID] {
		p, ok := s.products[it.ProductID]
		if !ok || p.CompanyID != tenantID {
			continue
		}
		lines = append(lines, domain.CartLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			AddedAt:   it.AddedAt,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			InStock:   p.Quantity,
		})
	}
	return lines, nil
}

// cartTargetLocked validates user and product for a cart mutation; caller holds mu.
func (s *MemoryStore) cartTargetLocked(tenantID, userID, productID string) error {
	if _, ok := s.tenantUserLocked(tenantID, userID); !ok {
		return ErrUserNotFound
	}
	if p, ok := s.products[productID]; !ok || p.CompanyID != tenantID {
		return ErrProductNotFound
	}
	return nil
}

func (s *MemoryStore) AddCartItem(_ context.Context, tenantID, userID, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartTargetLocked(tenantID, userID, productID); err != nil {
		return err
	}
	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			return nil
		}
	}
	s.carts[userID] = append(items, domain.CartItem{ProductID: productID, Quantity: quantity, AddedAt: s.now()})
	return nil
}

func (s *MemoryStore) SetCartItem(_ context.Context, tenantID, userID, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cartTargetLocked(tenantID, userID, productID); err != nil {
		return err
	}
	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			return nil
		}
	}
	return ErrCartItemNotFound
}

func (s *MemoryStore) RemoveCartItem(_ context.Context, tenantID, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenantUserLocked(tenantID, userID); !ok {
		return ErrUserNotFound
	}
	items := s.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			s.carts[userID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return ErrCartItemNotFound
}

// ========== Categories ==========

func (s *MemoryStore) checkCategoryNameLocked(tenantID, categoryID, name string) error {
	for _, c := range s.categories {
		if c.CompanyID == tenantID && c.ID != categoryID && strings.EqualFold(c.Name, name) {
			return fieldConflict("name", msgCategoryNameTaken, name)
		}
	}
	return nil
}

func (s *MemoryStore) CreateCategory(_ context.Context, tenantID string, category *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCategoryNameLocked(tenantID, "", category.Name); err != nil {
		return nil, err
	}
	c := *category
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CompanyID = tenantID
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.categories[c.ID] = &c
	out := c
	return &out, nil
}

func (s *MemoryStore) GetCategory(_ context.Context, tenantID, categoryID string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[categoryID]
	if !ok || c.CompanyID != tenantID {
		return nil, ErrCategoryNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) ListCategories(_ context.Context, tenantID, search string) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.Category{}
	for _, c := range s.categories {
		if c.CompanyID != tenantID {
			continue
		}
		if search != "" && !containsFold(c.Name, search) && !containsFold(c.Description, search) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *MemoryStore) UpdateCategory(_ context.Context, tenantID string, category *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.categories[category.ID]
	if !ok || existing.CompanyID != tenantID {
		return nil, ErrCategoryNotFound
	}
	if err := s.checkCategoryNameLocked(tenantID, category.ID, category.Name); err != nil {
		return nil, err
	}
	c := *category
	c.CompanyID = tenantID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	s.categories[c.ID] = &c
	out := c
	return &out, nil
}

func (s *MemoryStore) DeleteCategory(_ context.Context, tenantID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.CompanyID != tenantID {
		return ErrCategoryNotFound
	}
	for _, p := range s.products {
		if p.CompanyID == tenantID && p.CategoryID == categoryID {
			p.CategoryID = ""
		}
	}
	delete(s.categories, categoryID)
	return nil
}

// ========== Products ==========

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Variables = append([]domain.ProductVariable(nil), p.Variables...)
	return &cp
}

func (s *MemoryStore) checkProductCategoryLocked(tenantID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	if c, ok := s.categories[categoryID]; !ok || c.CompanyID != tenantID {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, tenantID string, product *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkProductCategoryLocked(tenantID, product.CategoryID); err != nil {
		return nil, err
	}
	p := cloneProduct(product)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CompanyID = tenantID
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = p
	return cloneProduct(p), nil
}

func (s *MemoryStore) GetProduct(_ context.Context, tenantID, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok || p.CompanyID != tenantID {
		return nil, ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (s *MemoryStore) GetProductsByIDs(_ context.Context, tenantID string, productIDs []string) (map[string]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]*domain.Product{}
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok && p.CompanyID == tenantID {
			out[id] = cloneProduct(p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListProducts(_ context.Context, tenantID string, f domain.ProductFilters) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.Product{}
	for _, p := range s.products {
		if p.CompanyID != tenantID {
			continue
		}
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Search != "" && !containsFold(p.Name, f.Search) && !containsFold(p.Description, f.Search) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.InStock && p.Quantity <= 0 {
			continue
		}
		if f.WithVariables && len(p.Variables) == 0 {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, tenantID string, product *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[product.ID]
	if !ok || existing.CompanyID != tenantID {
		return nil, ErrProductNotFound
	}
	if err := s.checkProductCategoryLocked(tenantID, product.CategoryID); err != nil {
		return nil, err
	}
	p := cloneProduct(product)
	p.CompanyID = tenantID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	return cloneProduct(p), nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, tenantID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.CompanyID != tenantID {
		return ErrProductNotFound
	}
	delete(s.products, productID)
	for uid, items := range s.carts {
		kept := items[:0]
		for _, it := range items {
			if it.ProductID != productID {
				kept = append(kept, it)
			}
		}
		s.carts[uid] = kept
	}
	return nil
}

// ========== Orders ==========

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.EstimatedDeliveryDate != nil {
		t := *o.EstimatedDeliveryDate
		cp.EstimatedDeliveryDate = &t
	}
	if o.ActualDeliveryDate != nil {
		t := *o.ActualDeliveryDate
		cp.ActualDeliveryDate = &t
	}
	return &cp
}

// applyStockLocked applies every change or none; caller holds mu.
func (s *MemoryStore) applyStockLocked(tenantID string, changes []domain.StockChange) error {
	for _, ch := range changes {
		if ch.Delta >= 0 {
			continue
		}
		p, ok := s.products[ch.ProductID]
		if !ok || p.CompanyID != tenantID || p.Quantity+ch.Delta < 0 {
			return InsufficientStock(ch.ProductID)
		}
	}
	for _, ch := range changes {
		if p, ok := s.products[ch.ProductID]; ok && p.CompanyID == tenantID {
			p.Quantity += ch.Delta
		}
	}
	return nil
}

func (s *MemoryStore) nextOrderNumberLocked(now time.Time) string {
	day := now.Format("20060102")
	s.orderSeq[day]++
	return fmt.Sprintf("%s%04d", day, s.orderSeq[day])
}

func (s *MemoryStore) CreateOrder(_ context.Context, tenantID string, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := cloneOrder(order)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CompanyID = tenantID
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.Status.HoldsStock() {
		if err := s.applyStockLocked(tenantID, o.StockChanges(-1)); err != nil {
			return nil, err
		}
	}
	now := s.now()
	o.OrderNumber = s.nextOrderNumberLocked(now)
	o.CreatedAt, o.UpdatedAt = now, now
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *MemoryStore) GetOrder(_ context.Context, tenantID, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok || o.CompanyID != tenantID {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) GetOrderByNumber(_ context.Context, tenantID, orderNumber string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.CompanyID == tenantID && o.OrderNumber == orderNumber {
			return cloneOrder(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *MemoryStore) ListOrders(_ context.Context, tenantID string, f domain.OrderFilters) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.Order{}
	for _, o := range s.orders {
		if o.CompanyID != tenantID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	return out, nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, tenantID, orderID string, patch domain.OrderPatch) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.CompanyID != tenantID {
		return nil, ErrOrderNotFound
	}
	if patch.Status != nil {
		if changes := stockTransition(o, *patch.Status); changes != nil {
			if err := s.applyStockLocked(tenantID, changes); err != nil {
				return nil, err
			}
		}
	}
	next := cloneOrder(o)
	applyOrderPatch(next, patch)
	next.UpdatedAt = s.now()
	s.orders[orderID] = next
	return cloneOrder(next), nil
}

// stockTransition returns the stock changes implied by moving o to status, or nil.
func stockTransition(o *domain.Order, to domain.OrderStatus) []domain.StockChange {
	from := o.Status
	switch {
	case from.HoldsStock() && !to.HoldsStock():
		return o.StockChanges(1)
	case !from.HoldsStock() && to.HoldsStock():
		return o.StockChanges(-1)
	}
	return nil
}

func applyOrderPatch(o *domain.Order, p domain.OrderPatch) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentMethod != nil {
		o.PaymentMethod = *p.PaymentMethod
	}
	if p.DeliveryAddress != nil {
		o.DeliveryAddress = *p.DeliveryAddress
	}
	if p.DeliveryInstructions != nil {
		o.DeliveryInstructions = *p.DeliveryInstructions
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.EstimatedDeliveryDate != nil {
		t := *p.EstimatedDeliveryDate
		o.EstimatedDeliveryDate = &t
	}
	if p.ActualDeliveryDate != nil {
		t := *p.ActualDeliveryDate
		o.ActualDeliveryDate = &t
	}
}

func (s *MemoryStore) DeleteOrder(_ context.Context, tenantID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.CompanyID != tenantID {
		return ErrOrderNotFound
	}
	if o.Status.HoldsStock() {
		_ = s.applyStockLocked(tenantID, o.StockChanges(1))
	}
	delete(s.orders, orderID)
	return nil
}

func (s *MemoryStore) OrderStats(_ context.Context, tenantID string) (*domain.OrderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &domain.OrderStats{ByStatus: map[domain.OrderStatus]int{}}
	for _, st := range domain.OrderStatuses {
		stats.ByStatus[st] = 0
	}
	revenueOrders := 0
	for _, o := range s.orders {
		if o.CompanyID != tenantID {
			continue
		}
		stats.TotalOrders++
		stats.ByStatus[o.Status]++
		if o.Status != domain.OrderCancelled {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
			revenueOrders++
		}
	}
	if revenueOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(revenueOrders))).Round(2)
	}
	return stats, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
