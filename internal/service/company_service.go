package service

import (
	"context"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/repository"
	"github.com/LsSens/backend-ecommerce/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompanyService 公司（租户）管理服务接口
// 管理范围：请求者拥有的公司 + 请求者所属的公司
type CompanyService interface {
	CreateCompany(ctx context.Context, rc auth.RequestContext, req CreateCompanyRequest) (*domain.Company, error)
	ListCompanies(ctx context.Context, rc auth.RequestContext, search string) ([]*domain.Company, error)
	ListCompaniesByUser(ctx context.Context, rc auth.RequestContext, userID string) ([]*domain.Company, error)
	GetCompany(ctx context.Context, rc auth.RequestContext, companyID string) (*domain.Company, error)
	UpdateCompany(ctx context.Context, rc auth.RequestContext, companyID string, req UpdateCompanyRequest) (*domain.Company, error)
	DeleteCompany(ctx context.Context, rc auth.RequestContext, companyID string) error

	GetCurrentCompany(ctx context.Context, tenantID string) (*domain.Company, error)
	UpdateCurrentCompany(ctx context.Context, rc auth.RequestContext, req UpdateCompanyRequest) (*domain.Company, error)
}

// DomainRegistry is the write side of the tenant directory (tenancy.Directory).
type DomainRegistry interface {
	ValidateDomainsUnique(ctx context.Context, domains []string, excludingCompanyID string) ([]string, error)
	Invalidate(ctx context.Context, hosts ...string)
}

// AssetStore stores customization images (storage.Uploader).
type AssetStore interface {
	Upload(ctx context.Context, src, folder, companyID string) (string, error)
	UploadAll(ctx context.Context, srcs []string, folder, companyID string) ([]string, error)
	Remove(ctx context.Context, urls ...string)
}

type companyService struct {
	companies repository.CompaniesRepository
	domains   DomainRegistry
	assets    AssetStore
	logger    *zap.Logger
}

// NewCompanyService 创建 CompanyService 实例
func NewCompanyService(companies repository.CompaniesRepository, domains DomainRegistry, assets AssetStore, logger *zap.Logger) CompanyService {
	return &companyService{companies: companies, domains: domains, assets: assets, logger: logger}
}

// CustomizationsRequest 图片字段可以是 data URL、裸 base64 或已存储的 URL（原样保留）
type CustomizationsRequest struct {
	Logo        *string  `json:"logo,omitempty"`
	HomeBanners []string `json:"homeBanners,omitempty" validate:"omitempty,max=10,dive,required"`
	BrandColors []string `json:"brandColors,omitempty" validate:"omitempty,max=5,dive,brandcolor"`
}

// CreateCompanyRequest 创建公司请求
type CreateCompanyRequest struct {
	Name           string                 `json:"name" validate:"required,min=2,max=200"`
	CNPJ           string                 `json:"cnpj" validate:"required,cnpj"`
	Address        string                 `json:"address" validate:"required,max=300"`
	Domains        []string               `json:"domains" validate:"dive,required"`
	Customizations *CustomizationsRequest `json:"customizations,omitempty"`
}

// UpdateCompanyRequest 部分更新；domains / homeBanners 给出时整体替换
type UpdateCompanyRequest struct {
	Name           *string                `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	CNPJ           *string                `json:"cnpj,omitempty" validate:"omitempty,cnpj"`
	Address        *string                `json:"address,omitempty" validate:"omitempty,max=300"`
	Domains        []string               `json:"domains,omitempty" validate:"omitempty,dive,required"`
	Customizations *CustomizationsRequest `json:"customizations,omitempty"`
}

func canManage(rc auth.RequestContext, c *domain.Company) bool {
	return c.ID == rc.TenantID() || (c.OwnerUserID != "" && c.OwnerUserID == rc.UserID())
}

// manageable loads companyID and hides companies outside the requester's scope.
func (s *companyService) manageable(ctx context.Context, rc auth.RequestContext, companyID string) (*domain.Company, error) {
	c, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !canManage(rc, c) {
		return nil, repository.ErrCompanyNotFound
	}
	return c, nil
}

func (s *companyService) CreateCompany(ctx context.Context, rc auth.RequestContext, req CreateCompanyRequest) (*domain.Company, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	domains, err := s.domains.ValidateDomainsUnique(ctx, req.Domains, "")
	if err != nil {
		return nil, err
	}

	company := &domain.Company{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		TaxID:       req.CNPJ,
		Address:     req.Address,
		Domains:     domains,
		OwnerUserID: rc.UserID(),
	}
	if req.Customizations != nil {
		custom, err := s.applyCustomizations(ctx, company.ID, domain.Customizations{}, req.Customizations)
		if err != nil {
			return nil, err
		}
		company.Customizations = custom
	}

	created, err := s.companies.CreateCompany(ctx, company)
	if err != nil {
		s.assets.Remove(context.WithoutCancel(ctx), company.Customizations.AssetURLs()...)
		return nil, err
	}
	s.logger.Info("Company created",
		zap.String("company_id", created.ID),
		zap.Strings("domains", created.Domains),
		zap.String("created_by", rc.UserID()),
	)
	return created, nil
}

// applyCustomizations uploads new images on top of current; nil fields keep the current value.
func (s *companyService) applyCustomizations(ctx context.Context, companyID string, current domain.Customizations, req *CustomizationsRequest) (domain.Customizations, error) {
	next := current
	next.HomeBanners = append([]string(nil), current.HomeBanners...)
	next.BrandColors = append([]string(nil), current.BrandColors...)

	var uploaded []string
	if req.Logo != nil {
		next.Logo = ""
		if *req.Logo != "" {
			url, err := s.assets.Upload(ctx, *req.Logo, storage.FolderLogos, companyID)
			if err != nil {
				return current, err
			}
			next.Logo = url
			uploaded = append(uploaded, url)
		}
	}
	if req.HomeBanners != nil {
		urls, err := s.assets.UploadAll(ctx, req.HomeBanners, storage.FolderBanners, companyID)
		if err != nil {
			s.assets.Remove(context.WithoutCancel(ctx), newAssets(current, uploaded)...)
			return current, err
		}
		next.HomeBanners = urls
	}
	if req.BrandColors != nil {
		next.BrandColors = append([]string(nil), req.BrandColors...)
	}
	return next, nil
}

// newAssets returns the urls that current does not already reference.
func newAssets(current domain.Customizations, urls []string) []string {
	known := map[string]bool{}
	for _, u := range current.AssetURLs() {
		known[u] = true
	}
	var out []string
	for _, u := range urls {
		if !known[u] {
			out = append(out, u)
		}
	}
	return out
}

func (s *companyService) ListCompanies(ctx context.Context, rc auth.RequestContext, search string) ([]*domain.Company, error) {
	return s.companies.ListCompanies(ctx, domain.CompanyFilters{
		OwnerUserID: rc.UserID(),
		OrID:        rc.TenantID(),
		Search:      strings.TrimSpace(search),
	})
}

func (s *companyService) ListCompaniesByUser(ctx context.Context, rc auth.RequestContext, userID string) ([]*domain.Company, error) {
	owned, err := s.companies.ListCompanies(ctx, domain.CompanyFilters{OwnerUserID: userID})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Company, 0, len(owned))
	for _, c := range owned {
		if canManage(rc, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *companyService) GetCompany(ctx context.Context, rc auth.RequestContext, companyID string) (*domain.Company, error) {
	return s.manageable(ctx, rc, companyID)
}

func (s *companyService) GetCurrentCompany(ctx context.Context, tenantID string) (*domain.Company, error) {
	return s.companies.GetCompany(ctx, tenantID)
}

func (s *companyService) UpdateCurrentCompany(ctx context.Context, rc auth.RequestContext, req UpdateCompanyRequest) (*domain.Company, error) {
	return s.UpdateCompany(ctx, rc, rc.TenantID(), req)
}

func (s *companyService) UpdateCompany(ctx context.Context, rc auth.RequestContext, companyID string, req UpdateCompanyRequest) (*domain.Company, error) {
	existing, err := s.manageable(ctx, rc, companyID)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	next := *existing
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
	}
	if req.CNPJ != nil {
		next.TaxID = *req.CNPJ
	}
	if req.Address != nil {
		next.Address = *req.Address
	}
	if req.Domains != nil {
		domains, err := s.domains.ValidateDomainsUnique(ctx, req.Domains, existing.ID)
		if err != nil {
			return nil, err
		}
		next.Domains = domains
	}
	if req.Customizations != nil {
		custom, err := s.applyCustomizations(ctx, existing.ID, existing.Customizations, req.Customizations)
		if err != nil {
			return nil, err
		}
		next.Customizations = custom
	}

	updated, err := s.companies.UpdateCompany(ctx, &next)
	if err != nil {
		s.assets.Remove(context.WithoutCancel(ctx), newAssets(existing.Customizations, next.Customizations.AssetURLs())...)
		return nil, err
	}

	// 替换掉的旧图片
	s.assets.Remove(ctx, newAssets(updated.Customizations, existing.Customizations.AssetURLs())...)
	s.domains.Invalidate(ctx, append(existing.Domains, updated.Domains...)...)

	s.logger.Info("Company updated",
		zap.String("company_id", updated.ID),
		zap.String("updated_by", rc.UserID()),
	)
	return updated, nil
}

// DeleteCompany 仅允许删除没有商品、分类、订单的公司；用户与域名随之删除，图片从 blob store 移除
func (s *companyService) DeleteCompany(ctx context.Context, rc auth.RequestContext, companyID string) error {
	existing, err := s.manageable(ctx, rc, companyID)
	if err != nil {
		return err
	}
	n, err := s.companies.CountCompanyResources(ctx, existing.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict(apperr.ReasonCompanyNotEmpty, "company still has products, categories or orders")
	}
	if err := s.companies.DeleteCompany(ctx, existing.ID); err != nil {
		return err
	}
	s.assets.Remove(ctx, existing.Customizations.AssetURLs()...)
	s.domains.Invalidate(ctx, existing.Domains...)

	s.logger.Info("Company deleted",
		zap.String("company_id", existing.ID),
		zap.String("deleted_by", rc.UserID()),
	)
	return nil
}
