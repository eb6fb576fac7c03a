package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAssetBaseURL = "http://localhost:8080/uploads"

func pngDataURL(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

type companyFixture struct {
	*testEnv
	svc      CompanyService
	assetDir string
	admin    *domain.User
}

func newCompanyFixture(t *testing.T) *companyFixture {
	env := newTestEnv(t)
	dir := t.TempDir()
	uploader := storage.NewUploader(storage.NewLocalBlob(dir, testAssetBaseURL), 5<<20, 1920, env.logger)
	return &companyFixture{
		testEnv:  env,
		svc:      NewCompanyService(env.repo, env.dir, uploader, env.logger),
		assetDir: dir,
		admin:    env.seedUser(t, env.tenant.ID, "admin@loja-a.com", domain.RoleAdmin),
	}
}

// assetExists reports whether the file behind a stored asset URL is on disk.
func (f *companyFixture) assetExists(url string) bool {
	rel := strings.TrimPrefix(url, testAssetBaseURL+"/")
	_, err := os.Stat(filepath.Join(f.assetDir, filepath.FromSlash(rel)))
	return err == nil
}

func TestCompanyService_CreateCompany(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()
	img := pngDataURL(t)

	c, err := f.svc.CreateCompany(ctx, rcFor(f.admin), CreateCompanyRequest{
		Name:    "Nova Loja",
		CNPJ:    "33.333.333/0001-33",
		Address: "Av. Paulista, 1000",
		Domains: []string{"Shop.Example.com.", "https://www.shop.example.com/home"},
		Customizations: &CustomizationsRequest{
			Logo:        &img,
			HomeBanners: []string{img, img},
			BrandColors: []string{"#fff", "#00FF00"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.example.com", "www.shop.example.com"}, c.Domains)
	assert.Equal(t, f.admin.ID, c.OwnerUserID)
	assert.True(t, strings.HasPrefix(c.Customizations.Logo, testAssetBaseURL+"/logos/"+c.ID+"/"))
	require.Len(t, c.Customizations.HomeBanners, 2)
	for _, url := range c.Customizations.AssetURLs() {
		assert.True(t, f.assetExists(url), url)
	}

	resolved, err := f.dir.ResolveByHost(ctx, "SHOP.example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, resolved.ID)
}

func TestCompanyService_CreateCompany_DomainConflict(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()
	req := CreateCompanyRequest{Name: "Loja X", CNPJ: "33.333.333/0001-33", Address: "Rua 1", Domains: []string{"shop.example.com"}}
	_, err := f.svc.CreateCompany(ctx, rcFor(f.admin), req)
	require.NoError(t, err)

	req.CNPJ = "44.444.444/0001-44"
	req.Domains = []string{"other.example.com", "SHOP.EXAMPLE.COM"}
	_, err = f.svc.CreateCompany(ctx, rcFor(f.admin), req)
	require.Error(t, err)
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))
	assert.Equal(t, apperr.ReasonDomainConflict, apperr.ErrorReason(err))
	details := apperr.ErrorDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "shop.example.com", details[0].Value)

	req.Domains = []string{"dup.example.com", "DUP.example.com"}
	_, err = f.svc.CreateCompany(ctx, rcFor(f.admin), req)
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))
}

func TestCompanyService_CreateCompany_Validation(t *testing.T) {
	f := newCompanyFixture(t)
	_, err := f.svc.CreateCompany(context.Background(), rcFor(f.admin), CreateCompanyRequest{
		Name:           "Loja",
		CNPJ:           "33333333000133",
		Address:        "Rua 1",
		Customizations: &CustomizationsRequest{BrandColors: []string{"#fff", "red"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	fields := map[string]string{}
	for _, d := range apperr.ErrorDetails(err) {
		fields[d.Field] = d.Code
	}
	assert.Equal(t, "cnpj", fields["cnpj"])
	assert.Equal(t, "brandcolor", fields["customizations.brandColors[1]"])
}

func TestCompanyService_UpdateCompany_ReplacesAssetsAndDomains(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()
	img := pngDataURL(t)

	c, err := f.svc.CreateCompany(ctx, rcFor(f.admin), CreateCompanyRequest{
		Name: "Loja X", CNPJ: "33.333.333/0001-33", Address: "Rua 1", Domains: []string{"old.example.com"},
		Customizations: &CustomizationsRequest{Logo: &img, HomeBanners: []string{img}},
	})
	require.NoError(t, err)
	oldLogo := c.Customizations.Logo
	keptBanner := c.Customizations.HomeBanners[0]

	// 缓存旧域名的解析结果
	_, err = f.dir.ResolveByHost(ctx, "old.example.com")
	require.NoError(t, err)

	updated, err := f.svc.UpdateCompany(ctx, rcFor(f.admin), c.ID, UpdateCompanyRequest{
		Name:    ptr("Loja Y"),
		Domains: []string{"new.example.com"},
		Customizations: &CustomizationsRequest{
			Logo:        &img,
			HomeBanners: []string{keptBanner, img},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Loja Y", updated.Name)
	assert.Equal(t, []string{"new.example.com"}, updated.Domains)
	assert.NotEqual(t, oldLogo, updated.Customizations.Logo)
	assert.Equal(t, keptBanner, updated.Customizations.HomeBanners[0])

	assert.False(t, f.assetExists(oldLogo))
	assert.True(t, f.assetExists(updated.Customizations.Logo))
	assert.True(t, f.assetExists(keptBanner))

	_, err = f.dir.ResolveByHost(ctx, "old.example.com")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	resolved, err := f.dir.ResolveByHost(ctx, "new.example.com")
	require.NoError(t, err)
	assert.Equal(t, "Loja Y", resolved.Name)

	// 清空 logo
	cleared, err := f.svc.UpdateCompany(ctx, rcFor(f.admin), c.ID, UpdateCompanyRequest{
		Customizations: &CustomizationsRequest{Logo: ptr("")},
	})
	require.NoError(t, err)
	assert.Empty(t, cleared.Customizations.Logo)
	assert.False(t, f.assetExists(updated.Customizations.Logo))
}

func TestCompanyService_Scope(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()
	outsider := f.seedUser(t, f.other.ID, "admin@loja-b.com", domain.RoleAdmin)

	owned, err := f.svc.CreateCompany(ctx, rcFor(f.admin), CreateCompanyRequest{
		Name: "Filial", CNPJ: "33.333.333/0001-33", Address: "Rua 1", Domains: []string{"filial.example.com"},
	})
	require.NoError(t, err)

	list, err := f.svc.ListCompanies(ctx, rcFor(f.admin), "")
	require.NoError(t, err)
	ids := []string{}
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{f.tenant.ID, owned.ID}, ids)

	_, err = f.svc.GetCompany(ctx, rcFor(outsider), owned.ID)
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	_, err = f.svc.UpdateCompany(ctx, rcFor(outsider), f.tenant.ID, UpdateCompanyRequest{Name: ptr("Hijack")})
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))

	byUser, err := f.svc.ListCompaniesByUser(ctx, rcFor(outsider), f.admin.ID)
	require.NoError(t, err)
	assert.Empty(t, byUser)
	byUser, err = f.svc.ListCompaniesByUser(ctx, rcFor(f.admin), f.admin.ID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, owned.ID, byUser[0].ID)

	current, err := f.svc.UpdateCurrentCompany(ctx, rcFor(f.admin), UpdateCompanyRequest{Address: ptr("Rua Nova, 2")})
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, current.ID)
	assert.Equal(t, "Rua Nova, 2", current.Address)
}

func TestCompanyService_DeleteCompany(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()
	img := pngDataURL(t)

	c, err := f.svc.CreateCompany(ctx, rcFor(f.admin), CreateCompanyRequest{
		Name: "Temporária", CNPJ: "33.333.333/0001-33", Address: "Rua 1", Domains: []string{"tmp.example.com"},
		Customizations: &CustomizationsRequest{Logo: &img},
	})
	require.NoError(t, err)
	p := f.seedProduct(t, c.ID, "10.00", 1)

	err = f.svc.DeleteCompany(ctx, rcFor(f.admin), c.ID)
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))
	assert.Equal(t, apperr.ReasonCompanyNotEmpty, apperr.ErrorReason(err))

	require.NoError(t, f.repo.DeleteProduct(ctx, c.ID, p.ID))
	require.NoError(t, f.svc.DeleteCompany(ctx, rcFor(f.admin), c.ID))
	assert.False(t, f.assetExists(c.Customizations.Logo))

	_, err = f.dir.ResolveByHost(ctx, "tmp.example.com")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(f.svc.DeleteCompany(ctx, rcFor(f.admin), c.ID)))
}

func TestBootstrapper_Run(t *testing.T) {
	env := newTestEnv(t)
	b := NewBootstrapper(env.repo, env.repo, env.dir, env.hasher, env.logger)
	ctx := context.Background()

	res, err := b.Run(ctx, BootstrapRequest{
		CompanyName:   "Matriz",
		CNPJ:          "55.555.555/0001-55",
		Address:       "Rua 1",
		Domains:       []string{"matriz.example.com"},
		AdminName:     "Root Admin",
		AdminEmail:    "root@matriz.com",
		AdminPassword: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, res.Company.ID, res.Admin.CompanyID)
	assert.Equal(t, domain.RoleAdmin, res.Admin.Role)
	assert.Equal(t, res.Admin.ID, res.Company.OwnerUserID)

	users := NewUserService(env.repo, env.tokens, env.hasher, env.logger)
	login, err := users.Login(ctx, res.Company.ID, LoginRequest{Email: "root@matriz.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, login.User.Role)

	_, err = b.Run(ctx, BootstrapRequest{
		CompanyName:   "Outra",
		CNPJ:          "66.666.666/0001-66",
		Address:       "Rua 2",
		Domains:       []string{"matriz.example.com"},
		AdminName:     "Other",
		AdminEmail:    "o@o.com",
		AdminPassword: "secret123",
	})
	assert.Equal(t, apperr.EConflict, apperr.ErrorCode(err))
}
