package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/tenancy"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// TenantResolver 按 Host 解析租户（tenancy.Directory）
type TenantResolver interface {
	ResolveByHost(ctx context.Context, host string) (*domain.Company, error)
}

// Authenticator 校验 bearer token 并重新加载用户（service.UserService）
type Authenticator interface {
	Authenticate(ctx context.Context, tenantID, token string) (auth.RequestContext, error)
}

// 按路由类别区分的 handler 类型：每一类只拿到该类别保证存在的上下文
type (
	// TenantHandler 已解析租户，未要求登录
	TenantHandler func(w http.ResponseWriter, r *http.Request, tenant *domain.Company)
	// AuthedHandler 已解析租户且已登录（可再叠加角色要求）
	AuthedHandler func(w http.ResponseWriter, r *http.Request, rc auth.RequestContext)
)

type tenantCtxKey struct{}

func withTenant(ctx context.Context, c *domain.Company) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, c)
}

func tenantFromContext(ctx context.Context) (*domain.Company, bool) {
	c, ok := ctx.Value(tenantCtxKey{}).(*domain.Company)
	return c, ok && c != nil
}

// pipeline 租户解析 -> CORS -> 认证 -> 角色
type pipeline struct {
	*responder
	tenants TenantResolver
	authn   Authenticator
	metrics *Metrics
}

// rejected 记录并返回管道拒绝
func (p *pipeline) rejected(w http.ResponseWriter, r *http.Request, err error, msg string) {
	reason := apperr.ErrorReason(err)
	p.metrics.Rejected(reason)
	p.logger.Warn(msg,
		zap.String("reason", reason),
		zap.String("ip_address", getClientIP(r)),
		zap.String("host", r.Host),
		zap.String("path", r.URL.Path),
		zap.String("user_agent", r.UserAgent()),
	)
	p.error(w, r, err)
}

// resolveTenant 缺失或无法解析的 Host -> 400 INVALID_ORIGIN；未登记的域名 -> 403 DOMAIN_NOT_AUTHORIZED
func (p *pipeline) resolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Host) == "" {
			e := apperr.Invalid("invalid origin")
			e.Reason = apperr.ReasonInvalidOrigin
			p.rejected(w, r, e, "Request rejected: missing host")
			return
		}
		company, err := p.tenants.ResolveByHost(r.Context(), r.Host)
		if err != nil {
			switch apperr.ErrorCode(err) {
			case apperr.EInvalid:
				p.rejected(w, r, err, "Request rejected: invalid origin")
			case apperr.ENotFound:
				p.rejected(w, r, apperr.Forbidden(apperr.ReasonDomainNotAuthorized, "domain not authorized"), "Request rejected: domain not authorized")
			default:
				p.error(w, r, err)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), company)))
	})
}

// cors 只回显属于当前租户的 Origin（请求 Host 或租户登记的域名），允许携带凭证；
// 没有 Origin 时使用 Host。其它 Origin 不带 CORS 头，预检直接 403
func (p *pipeline) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Add("Vary", "Origin")

		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = r.Host
		} else if company, _ := tenantFromContext(r.Context()); !originAllowed(origin, r.Host, company) {
			if r.Method == http.MethodOptions {
				p.rejected(w, r, apperr.Forbidden(apperr.ReasonOriginNotAllowed, "origin not allowed",
					apperr.Detail{Field: "origin", Code: apperr.ReasonOriginNotAllowed, Message: "origin not allowed", Value: origin},
				), "Preflight rejected: origin not allowed")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		h.Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed 比较规范化后的 Origin 与请求 Host、租户域名
func originAllowed(origin, host string, company *domain.Company) bool {
	o, err := tenancy.CanonicalHost(origin)
	if err != nil {
		return false
	}
	if h, err := tenancy.CanonicalHost(host); err == nil && h == o {
		return true
	}
	if company == nil {
		return false
	}
	for _, d := range company.Domains {
		if d == o {
			return true
		}
	}
	return false
}

// tenant 适配 TenantHandler
func (p *pipeline) tenant(h TenantHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		company, ok := tenantFromContext(r.Context())
		if !ok {
			p.error(w, r, apperr.Internal("httpapi.tenant", fmt.Errorf("route %s registered outside the tenant group", r.URL.Path)))
			return
		}
		h(w, r, company)
	}
}

// authed 适配 AuthedHandler：校验 bearer token，并按已解析的租户重新加载用户
func (p *pipeline) authed(h AuthedHandler) http.HandlerFunc {
	return p.tenant(func(w http.ResponseWriter, r *http.Request, company *domain.Company) {
		rc, err := p.authn.Authenticate(r.Context(), company.ID, bearerToken(r))
		if err != nil {
			if apperr.Is(err, apperr.EUnauthorized) || apperr.Is(err, apperr.EForbidden) {
				p.rejected(w, r, err, "Authentication failed")
				return
			}
			p.error(w, r, err)
			return
		}
		h(w, r, rc)
	})
}

// role 在 authed 的基础上要求最低角色
func (p *pipeline) role(required domain.Role, h AuthedHandler) http.HandlerFunc {
	return p.authed(func(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
		if err := auth.RequireRole(&rc, required); err != nil {
			p.rejected(w, r, err, "Authorization failed")
			return
		}
		h(w, r, rc)
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// recoverer 捕获 panic，按统一格式返回 500（非生产环境附带堆栈）
func (p *pipeline) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			stack := debug.Stack()
			p.logger.Error("Panic recovered",
				zap.Any("panic", rvr),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.ByteString("stack", stack),
			)
			body := Fail("internal server error")
			if !p.production {
				body.Message = fmt.Sprint(rvr)
				body.Stack = string(stack)
			}
			writeJSON(w, http.StatusInternalServerError, body)
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog 记录 method/path/status/耗时，并回写 X-Request-ID
func (p *pipeline) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		p.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", reqID),
			zap.String("ip_address", getClientIP(r)),
		)
	})
}
