package tenancy

import (
	"context"
	"testing"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompanies struct {
	byHost  map[string]*domain.Company
	lookups int
}

func newFakeCompanies(companies ...*domain.Company) *fakeCompanies {
	f := &fakeCompanies{byHost: map[string]*domain.Company{}}
	for _, c := range companies {
		for _, d := range c.Domains {
			f.byHost[d] = c
		}
	}
	return f
}

func (f *fakeCompanies) GetCompanyByDomain(_ context.Context, host string) (*domain.Company, error) {
	f.lookups++
	c, ok := f.byHost[host]
	if !ok {
		return nil, apperr.NotFound("company not found")
	}
	return c, nil
}

func (f *fakeCompanies) FindDomainOwners(_ context.Context, hosts []string) (map[string]string, error) {
	out := map[string]string{}
	for _, h := range hosts {
		if c, ok := f.byHost[h]; ok {
			out[h] = c.ID
		}
	}
	return out, nil
}

func TestDirectory_ResolveByHost(t *testing.T) {
	t1 := &domain.Company{ID: "t1", Name: "Loja Um", Domains: []string{"shop.example.com", "localhost:3000"}}
	t2 := &domain.Company{ID: "t2", Name: "Loja Dois", Domains: []string{"other.example.com"}}
	dir := NewDirectory(newFakeCompanies(t1, t2), nil, 0, zap.NewNop())
	ctx := context.Background()

	c, err := dir.ResolveByHost(ctx, "shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, "t1", c.ID)

	c, err = dir.ResolveByHost(ctx, "https://SHOP.example.com/cart")
	require.NoError(t, err)
	assert.Equal(t, "t1", c.ID)

	c, err = dir.ResolveByHost(ctx, "localhost:3000")
	require.NoError(t, err)
	assert.Equal(t, "t1", c.ID)

	c, err = dir.ResolveByHost(ctx, "other.example.com")
	require.NoError(t, err)
	assert.Equal(t, "t2", c.ID)

	_, err = dir.ResolveByHost(ctx, "unknown.example.com")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))

	_, err = dir.ResolveByHost(ctx, "localhost:3001")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))

	_, err = dir.ResolveByHost(ctx, "")
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))
	assert.Equal(t, apperr.ReasonInvalidOrigin, apperr.ErrorReason(err))
}

func TestDirectory_ResolveByHost_Cached(t *testing.T) {
	companies := newFakeCompanies(&domain.Company{ID: "t1", Name: "Loja", Domains: []string{"shop.example.com"}})
	kv := store.NewMemoryKV()
	dir := NewDirectory(companies, kv, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c, err := dir.ResolveByHost(ctx, "shop.example.com")
		require.NoError(t, err)
		assert.Equal(t, "Loja", c.Name)
	}
	assert.Equal(t, 1, companies.lookups)

	dir.Invalidate(ctx, "shop.example.com")
	_, err := dir.ResolveByHost(ctx, "shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, companies.lookups)
}

func TestDirectory_ValidateDomainsUnique(t *testing.T) {
	t1 := &domain.Company{ID: "t1", Domains: []string{"shop.example.com"}}
	dir := NewDirectory(newFakeCompanies(t1), nil, 0, zap.NewNop())
	ctx := context.Background()

	got, err := dir.ValidateDomainsUnique(ctx, []string{"https://New.example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"new.example.com"}, got)

	// 同一公司更新自己的域名不冲突
	got, err = dir.ValidateDomainsUnique(ctx, []string{"shop.example.com", "www.shop.example.com"}, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.example.com", "www.shop.example.com"}, got)

	_, err = dir.ValidateDomainsUnique(ctx, []string{"shop.example.com", "free.example.com"}, "t2")
	require.Error(t, err)
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))
	details := apperr.ErrorDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "shop.example.com", details[0].Value)

	_, err = dir.ValidateDomainsUnique(ctx, []string{"a.example.com", "A.example.com"}, "")
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	_, err = dir.ValidateDomainsUnique(ctx, []string{"not a domain"}, "")
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	got, err = dir.ValidateDomainsUnique(ctx, nil, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
