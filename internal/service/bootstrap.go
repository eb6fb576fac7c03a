package service

import (
	"context"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/repository"

	"go.uber.org/zap"
)

// BootstrapRequest 初始化第一个公司及其 Admin（CLI: storefront bootstrap）
type BootstrapRequest struct {
	CompanyName   string   `json:"companyName" validate:"required,min=2,max=200"`
	CNPJ          string   `json:"cnpj" validate:"required,cnpj"`
	Address       string   `json:"address" validate:"required,max=300"`
	Domains       []string `json:"domains" validate:"required,min=1,dive,required"`
	AdminName     string   `json:"adminName" validate:"required,min=2,max=100"`
	AdminEmail    string   `json:"adminEmail" validate:"required,email"`
	AdminPassword string   `json:"adminPassword" validate:"required,min=6"`
}

// BootstrapResult 初始化结果
type BootstrapResult struct {
	Company *domain.Company `json:"company"`
	Admin   *domain.User    `json:"admin"`
}

// Bootstrapper creates the first tenant: the Admin exists without a company until the
// company it owns is created, then it is moved into it.
type Bootstrapper struct {
	companies repository.CompaniesRepository
	users     repository.UsersRepository
	domains   DomainRegistry
	hasher    auth.PasswordHasher
	logger    *zap.Logger
}

func NewBootstrapper(companies repository.CompaniesRepository, users repository.UsersRepository, domains DomainRegistry, hasher auth.PasswordHasher, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{companies: companies, users: users, domains: domains, hasher: hasher, logger: logger}
}

func (b *Bootstrapper) Run(ctx context.Context, req BootstrapRequest) (*BootstrapResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	domains, err := b.domains.ValidateDomainsUnique(ctx, req.Domains, "")
	if err != nil {
		return nil, err
	}
	hash, err := b.hasher.Hash(req.AdminPassword)
	if err != nil {
		return nil, apperr.Internal("service.Bootstrap", err)
	}

	admin, err := b.users.CreateBootstrapAdmin(ctx, &domain.User{
		Name:         strings.TrimSpace(req.AdminName),
		Email:        normalizeEmail(req.AdminEmail),
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}

	company, err := b.companies.CreateCompany(ctx, &domain.Company{
		Name:        strings.TrimSpace(req.CompanyName),
		TaxID:       req.CNPJ,
		Address:     req.Address,
		Domains:     domains,
		OwnerUserID: admin.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := b.users.AssignCompany(ctx, admin.ID, company.ID); err != nil {
		return nil, err
	}
	admin.CompanyID = company.ID
	b.domains.Invalidate(ctx, domains...)

	b.logger.Info("Bootstrap completed",
		zap.String("company_id", company.ID),
		zap.String("admin_id", admin.ID),
		zap.Strings("domains", company.Domains),
	)
	return &BootstrapResult{Company: company, Admin: admin}, nil
}
