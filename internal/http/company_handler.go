package httpapi

import (
	"net/http"

	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/service"

	"github.com/go-chi/chi/v5"
)

// CompanyHandler 公司（租户）管理
type CompanyHandler struct {
	*responder
	companies service.CompanyService
}

func NewCompanyHandler(rt *Router, companies service.CompanyService) *CompanyHandler {
	return &CompanyHandler{responder: rt.p.responder, companies: companies}
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.CreateCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.companies.CreateCompany(r.Context(), rc, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, Ok("company created successfully", c))
}

// List 支持 ?search= 按名称过滤
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	list, err := h.companies.ListCompanies(r.Context(), rc, r.URL.Query().Get("search"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("companies found", list))
}

func (h *CompanyHandler) ListByUser(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	list, err := h.companies.ListCompaniesByUser(r.Context(), rc, chi.URLParam(r, "userId"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("companies found", list))
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	c, err := h.companies.GetCompany(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("company found", c))
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.UpdateCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.companies.UpdateCompany(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("company updated successfully", c))
}

func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	if err := h.companies.DeleteCompany(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok[any]("company deleted successfully", nil))
}

// GetCurrent 当前 Host 对应的公司（店铺前台加载 logo、banner、品牌色）
func (h *CompanyHandler) GetCurrent(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	c, err := h.companies.GetCurrentCompany(r.Context(), tenant.ID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("company found", c))
}

func (h *CompanyHandler) UpdateCurrent(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.UpdateCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.companies.UpdateCurrentCompany(r.Context(), rc, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("company updated successfully", c))
}
