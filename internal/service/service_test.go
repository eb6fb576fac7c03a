package service

import (
	"context"
	"testing"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/repository"
	"github.com/LsSens/backend-ecommerce/internal/store"
	"github.com/LsSens/backend-ecommerce/internal/tenancy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// testEnv 两个租户 + 内存仓库
type testEnv struct {
	repo   *repository.MemoryStore
	dir    *tenancy.Directory
	tokens *auth.TokenIssuer
	hasher *auth.BcryptHasher
	logger *zap.Logger

	tenant *domain.Company
	other  *domain.Company
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := repository.NewMemoryStore()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	env := &testEnv{
		repo:   repo,
		dir:    tenancy.NewDirectory(repo, store.NewMemoryKV(), time.Minute, zap.NewNop()),
		tokens: tokens,
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		logger: zap.NewNop(),
	}
	env.tenant = env.seedCompany(t, "11.111.111/0001-11", "loja-a.example.com")
	env.other = env.seedCompany(t, "22.222.222/0001-22", "loja-b.example.com")
	return env
}

func (e *testEnv) seedCompany(t *testing.T, cnpj string, domains ...string) *domain.Company {
	t.Helper()
	c, err := e.repo.CreateCompany(context.Background(), &domain.Company{
		Name: "Loja " + cnpj, TaxID: cnpj, Address: "Rua das Flores, 10", Domains: domains,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) seedUser(t *testing.T, tenantID, email string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash("secret123")
	require.NoError(t, err)
	u, err := e.repo.CreateUser(context.Background(), tenantID, &domain.User{
		Name: "User " + email, Email: email, PasswordHash: hash, Role: role,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) seedProduct(t *testing.T, tenantID, price string, qty int) *domain.Product {
	t.Helper()
	p, err := e.repo.CreateProduct(context.Background(), tenantID, &domain.Product{
		Name: "Caneca", Description: "Caneca de cerâmica 300ml", Price: decimal.RequireFromString(price), Quantity: qty,
	})
	require.NoError(t, err)
	return p
}

func rcFor(u *domain.User) auth.RequestContext {
	return auth.NewRequestContext(u.CompanyID, u.ID, u.Role)
}

func ptr[T any](v T) *T { return &v }
