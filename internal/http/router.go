package httpapi

import (
	"net/http"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options 路由器依赖
type Options struct {
	Tenants        TenantResolver
	Authenticator  Authenticator
	Limiter        *ratelimit.Limiter        // nil 表示不限流
	Proxies        *ratelimit.TrustedProxies // nil 表示不信任任何转发头
	Metrics        *Metrics
	Production     bool
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Router chi 路由：公共路由不经过租户解析，其余路由统一挂在租户分组下
type Router struct {
	mux    *chi.Mux
	public chi.Router
	tenant chi.Router
	p      *pipeline
	logger *zap.Logger
}

func NewRouter(opts Options, logger *zap.Logger) *Router {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	p := &pipeline{
		responder: &responder{logger: logger, production: opts.Production, maxBody: opts.MaxBodyBytes},
		tenants:   opts.Tenants,
		authn:     opts.Authenticator,
		metrics:   opts.Metrics,
	}

	mux := chi.NewRouter()
	mux.Use(opts.Proxies.RealIP)
	mux.Use(middleware.RequestID)
	mux.Use(p.recoverer)
	mux.Use(p.accessLog)
	mux.Use(opts.Metrics.Middleware)
	if opts.RequestTimeout > 0 {
		mux.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if opts.Limiter != nil {
		mux.Use(opts.Limiter.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
			p.metrics.Rejected(apperr.ErrorReason(err))
			p.error(w, r, err)
		}))
	}

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		p.error(w, r, apperr.NotFound("route not found: "+r.URL.Path))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	})

	public := mux.With(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	tenant := mux.With(p.resolveTenant, p.cors)

	return &Router{mux: mux, public: public, tenant: tenant, p: p, logger: logger}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes /health 与 /metrics：公共路由，不解析租户
func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.public.Get("/health", h.Health)
	r.public.Handle("/metrics", r.p.metrics.Handler())
}

// RegisterUploadRoutes 本地存储驱动的文件访问（S3 驱动时不注册）
func (r *Router) RegisterUploadRoutes(dir string) {
	r.public.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir))))
}

func (r *Router) RegisterDomainRoutes(h *DomainHandler) {
	r.public.Post("/domains/verify", h.Verify)
	r.public.Options("/domains/verify", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func (r *Router) RegisterUserRoutes(h *UserHandler) {
	p := r.p
	r.tenant.Route("/users", func(sr chi.Router) {
		sr.Post("/register", p.tenant(h.Register))
		sr.Post("/login", p.tenant(h.Login))

		sr.Get("/", p.role(domain.RoleOperator, h.List))
		sr.Get("/{id}", p.role(domain.RoleOperator, h.Get))
		sr.Put("/{id}", p.authed(h.Update))
		sr.Delete("/{id}", p.role(domain.RoleAdmin, h.Delete))

		sr.Get("/{id}/cart", p.authed(h.GetCart))
		sr.Post("/{id}/cart", p.authed(h.AddToCart))
		sr.Put("/{id}/cart", p.authed(h.UpdateCartItem))
		sr.Delete("/{id}/cart", p.authed(h.RemoveFromCart))
		sr.Delete("/{id}/cart/{productId}", p.authed(h.RemoveFromCart))
	})
}

func (r *Router) RegisterCompanyRoutes(h *CompanyHandler) {
	p := r.p
	r.tenant.Route("/companies", func(sr chi.Router) {
		sr.Get("/current", p.tenant(h.GetCurrent))
		sr.Put("/current", p.role(domain.RoleAdmin, h.UpdateCurrent))

		sr.Post("/", p.role(domain.RoleAdmin, h.Create))
		sr.Get("/", p.role(domain.RoleAdmin, h.List))
		sr.Get("/user/{userId}", p.role(domain.RoleAdmin, h.ListByUser))
		sr.Get("/{id}", p.role(domain.RoleAdmin, h.Get))
		sr.Put("/{id}", p.role(domain.RoleAdmin, h.Update))
		sr.Delete("/{id}", p.role(domain.RoleAdmin, h.Delete))
	})
}

func (r *Router) RegisterProductRoutes(h *ProductHandler) {
	p := r.p
	r.tenant.Route("/products", func(sr chi.Router) {
		sr.Get("/", p.tenant(h.List))
		sr.Get("/search", p.tenant(h.Search))
		sr.Get("/variables", p.tenant(h.ListWithVariables))
		sr.Get("/{id}", p.tenant(h.Get))

		sr.Post("/", p.role(domain.RoleOperator, h.Create))
		sr.Put("/{id}", p.role(domain.RoleOperator, h.Update))
		sr.Delete("/{id}", p.role(domain.RoleOperator, h.Delete))
	})
}

func (r *Router) RegisterCategoryRoutes(h *CategoryHandler) {
	p := r.p
	r.tenant.Route("/categories", func(sr chi.Router) {
		sr.Get("/", p.tenant(h.List))
		sr.Get("/search", p.tenant(h.Search))
		sr.Get("/{id}", p.tenant(h.Get))

		sr.Post("/", p.role(domain.RoleOperator, h.Create))
		sr.Put("/{id}", p.role(domain.RoleOperator, h.Update))
		sr.Delete("/{id}", p.role(domain.RoleOperator, h.Delete))
	})
}

func (r *Router) RegisterOrderRoutes(h *OrderHandler) {
	p := r.p
	r.tenant.Route("/orders", func(sr chi.Router) {
		sr.Get("/number/{orderNumber}", p.tenant(h.GetByNumber))

		sr.Get("/", p.authed(h.List))
		sr.Post("/", p.authed(h.Create))
		sr.Get("/statistics", p.role(domain.RoleOperator, h.Statistics))
		sr.Get("/export", p.role(domain.RoleOperator, h.Export))
		sr.Get("/status/{status}", p.role(domain.RoleOperator, h.ListByStatus))
		sr.Get("/user/{userId}", p.authed(h.ListByUser))
		sr.Get("/{id}", p.authed(h.Get))
		sr.Put("/{id}", p.role(domain.RoleOperator, h.Update))
		sr.Patch("/{id}/status", p.authed(h.UpdateStatus))
		sr.Delete("/{id}", p.role(domain.RoleAdmin, h.Delete))
	})
}
