package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/config"
	"github.com/LsSens/backend-ecommerce/internal/tenancy"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNoSuchDomain is returned by a NameserverResolver when the domain does not exist.
var ErrNoSuchDomain = errors.New("no such domain")

// NameserverResolver 查询域名的 NS 记录
type NameserverResolver interface {
	LookupNS(ctx context.Context, domain string) ([]string, error)
}

// NewNameserverResolver 按配置选择 DoH（默认）或系统解析器
func NewNameserverResolver(cfg config.DomainsConfig, logger *zap.Logger) NameserverResolver {
	if cfg.Resolver == "system" {
		return &SystemResolver{resolver: net.DefaultResolver}
	}
	return NewDoHResolver(cfg.DoHURL, cfg.LookupTimeout, logger)
}

// DoHResolver DNS-over-HTTPS JSON API（dns.google/resolve、cloudflare-dns.com/dns-query）
type DoHResolver struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewDoHResolver(url string, timeout time.Duration, logger *zap.Logger) *DoHResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Accept", "application/dns-json")
	return &DoHResolver{httpClient: client, url: url, logger: logger}
}

// dohResponse DoH JSON 响应（RFC 8484 之外的 JSON 方言，Google/Cloudflare 通用）
type dohResponse struct {
	Status int         `json:"Status"` // 0 NOERROR, 3 NXDOMAIN
	Answer []dohAnswer `json:"Answer"`
}

type dohAnswer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	Data string `json:"data"`
}

const (
	dnsTypeNS     = 2
	dnsRcodeNXDom = 3
)

func (r *DoHResolver) LookupNS(ctx context.Context, domain string) ([]string, error) {
	var response dohResponse
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"name": domain, "type": "NS"}).
		SetResult(&response).
		Get(r.url)
	if err != nil {
		r.logger.Error("DoH lookup failed", zap.String("domain", domain), zap.Error(err))
		return nil, fmt.Errorf("failed to query nameservers: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("DoH server returned status %d", resp.StatusCode())
	}
	if response.Status == dnsRcodeNXDom {
		return nil, ErrNoSuchDomain
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("DoH lookup failed with rcode %d", response.Status)
	}

	var ns []string
	for _, a := range response.Answer {
		if a.Type == dnsTypeNS {
			ns = append(ns, strings.TrimSuffix(strings.ToLower(a.Data), "."))
		}
	}
	return ns, nil
}

// SystemResolver 使用本机解析器
type SystemResolver struct {
	resolver *net.Resolver
}

func (r *SystemResolver) LookupNS(ctx context.Context, domain string) ([]string, error) {
	records, err := r.resolver.LookupNS(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, ErrNoSuchDomain
		}
		return nil, fmt.Errorf("failed to query nameservers: %w", err)
	}
	ns := make([]string, 0, len(records))
	for _, rec := range records {
		ns = append(ns, strings.TrimSuffix(strings.ToLower(rec.Host), "."))
	}
	return ns, nil
}

// DomainService 自定义域名校验：域名的 NS 记录必须指向期望的 DNS 服务商
type DomainService struct {
	resolver NameserverResolver
	expected []string
	logger   *zap.Logger
}

// NewDomainService expected 为 NS 主机名需要包含的子串（默认 "awsdns"）
func NewDomainService(resolver NameserverResolver, expected []string, logger *zap.Logger) *DomainService {
	lowered := make([]string, 0, len(expected))
	for _, e := range expected {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			lowered = append(lowered, e)
		}
	}
	return &DomainService{resolver: resolver, expected: lowered, logger: logger}
}

// VerifyDomainRequest POST /domains/verify
type VerifyDomainRequest struct {
	Domain string `json:"domain" validate:"required,max=253"`
}

// DomainVerification 校验结果；Status 同时作为 HTTP 状态码
type DomainVerification struct {
	IsValid         bool     `json:"isValid"`
	IsPointingToAWS bool     `json:"isPointingToAWS"`
	Domain          string   `json:"domain"`
	Status          int      `json:"status"`
	Nameservers     []string `json:"nameservers"`
}

func (s *DomainService) VerifyDomain(ctx context.Context, req VerifyDomainRequest) (*DomainVerification, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	host, err := tenancy.CanonicalHost(req.Domain)
	if err != nil {
		return nil, apperr.Invalid("invalid domain", apperr.Detail{Field: "domain", Message: "invalid domain", Value: req.Domain})
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	result := &DomainVerification{Domain: host, Nameservers: []string{}}
	ns, err := s.resolver.LookupNS(ctx, host)
	if err != nil {
		if errors.Is(err, ErrNoSuchDomain) {
			result.Status = http.StatusNotFound
			return result, nil
		}
		return nil, apperr.Internal("service.VerifyDomain", err)
	}
	if ns != nil {
		result.Nameservers = ns
	}

	result.IsPointingToAWS = s.matches(ns)
	result.IsValid = result.IsPointingToAWS
	result.Status = http.StatusOK
	if !result.IsValid {
		result.Status = http.StatusBadRequest
	}
	s.logger.Info("Domain verified",
		zap.String("domain", host),
		zap.Bool("is_valid", result.IsValid),
		zap.Strings("nameservers", result.Nameservers),
	)
	return result, nil
}

func (s *DomainService) matches(ns []string) bool {
	for _, n := range ns {
		for _, e := range s.expected {
			if strings.Contains(n, e) {
				return true
			}
		}
	}
	return false
}
