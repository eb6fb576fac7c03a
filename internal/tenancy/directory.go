package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/store"

	"go.uber.org/zap"
)

// CompanyLookup is the slice of the companies repository the directory needs.
type CompanyLookup interface {
	// GetCompanyByDomain matches the canonical host exactly; apperr.ENotFound when unclaimed.
	GetCompanyByDomain(ctx context.Context, host string) (*domain.Company, error)
	// FindDomainOwners returns host -> company id for every given host that is already claimed.
	FindDomainOwners(ctx context.Context, hosts []string) (map[string]string, error)
}

// Directory 租户目录：Host -> Company，结果缓存在 KV 中
type Directory struct {
	companies CompanyLookup
	cache     store.KV
	ttl       time.Duration
	logger    *zap.Logger
}

func NewDirectory(companies CompanyLookup, cache store.KV, ttl time.Duration, logger *zap.Logger) *Directory {
	return &Directory{companies: companies, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(host string) string { return "tenant:host:" + host }

// ResolveByHost returns the company that claims hostHeader.
// Unparseable hosts yield apperr.EInvalid (INVALID_ORIGIN); unclaimed hosts yield apperr.ENotFound.
func (d *Directory) ResolveByHost(ctx context.Context, hostHeader string) (*domain.Company, error) {
	host, err := CanonicalHost(hostHeader)
	if err != nil {
		e := apperr.Invalid("invalid origin")
		e.Reason = apperr.ReasonInvalidOrigin
		return nil, e
	}

	if d.cache != nil && d.ttl > 0 {
		if raw, err := d.cache.Get(ctx, cacheKey(host)); err == nil {
			var c domain.Company
			if err := json.Unmarshal([]byte(raw), &c); err == nil {
				return &c, nil
			}
		} else if !errors.Is(err, store.ErrMiss) {
			d.logger.Warn("tenant cache read failed", zap.String("host", host), zap.Error(err))
		}
	}

	company, err := d.companies.GetCompanyByDomain(ctx, host)
	if err != nil {
		return nil, err
	}

	if d.cache != nil && d.ttl > 0 {
		if b, err := json.Marshal(company); err == nil {
			if err := d.cache.Set(ctx, cacheKey(host), string(b), d.ttl); err != nil {
				d.logger.Warn("tenant cache write failed", zap.String("host", host), zap.Error(err))
			}
		}
	}
	return company, nil
}

// ValidateDomainsUnique canonicalizes domains and checks them against every other company.
// Internal duplicates or malformed entries are a validation error; domains owned by a company
// other than excludingCompanyID are a conflict listing each one.
func (d *Directory) ValidateDomainsUnique(ctx context.Context, domains []string, excludingCompanyID string) ([]string, error) {
	canonical, invalid, duplicates := CanonicalDomains(domains)
	if len(invalid) > 0 {
		details := make([]apperr.Detail, 0, len(invalid))
		for _, v := range invalid {
			details = append(details, apperr.Detail{Field: "domains", Message: "invalid domain", Value: v})
		}
		return nil, apperr.Invalid("invalid domains", details...)
	}
	if len(duplicates) > 0 {
		details := make([]apperr.Detail, 0, len(duplicates))
		for _, v := range duplicates {
			details = append(details, apperr.Detail{Field: "domains", Message: "duplicate domain", Value: v})
		}
		return nil, apperr.Invalid("duplicate domains are not allowed", details...)
	}
	if len(canonical) == 0 {
		return canonical, nil
	}

	owners, err := d.companies.FindDomainOwners(ctx, canonical)
	if err != nil {
		return nil, err
	}
	var conflicting []string
	for host, owner := range owners {
		if owner != excludingCompanyID {
			conflicting = append(conflicting, host)
		}
	}
	if len(conflicting) > 0 {
		sort.Strings(conflicting)
		return nil, DomainConflict(conflicting)
	}
	return canonical, nil
}

// DomainConflict builds the 409 error listing hosts already claimed by another company.
func DomainConflict(hosts []string) *apperr.Error {
	details := make([]apperr.Detail, 0, len(hosts))
	for _, h := range hosts {
		details = append(details, apperr.Detail{
			Field:   "domains",
			Code:    apperr.ReasonDomainConflict,
			Message: "domain already belongs to another company",
			Value:   h,
		})
	}
	return apperr.Conflict(apperr.ReasonDomainConflict, "domains already exist in another company", details...)
}

// Invalidate drops cached resolutions for hosts (call after a company's domains or data change).
func (d *Directory) Invalidate(ctx context.Context, hosts ...string) {
	if d.cache == nil || len(hosts) == 0 {
		return
	}
	keys := make([]string, 0, len(hosts))
	for _, h := range hosts {
		keys = append(keys, cacheKey(h))
	}
	if err := d.cache.Del(ctx, keys...); err != nil {
		d.logger.Warn("tenant cache invalidation failed", zap.Strings("hosts", hosts), zap.Error(err))
	}
}
