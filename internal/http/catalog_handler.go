package httpapi

import (
	"net/http"
	"strconv"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ProductHandler 商品
type ProductHandler struct {
	*responder
	products *service.ProductService
}

func NewProductHandler(rt *Router, products *service.ProductService) *ProductHandler {
	return &ProductHandler{responder: rt.p.responder, products: products}
}

// productFilters 解析 ?categoryId=&minPrice=&maxPrice=&inStock=&search=
func productFilters(r *http.Request) (domain.ProductFilters, error) {
	q := r.URL.Query()
	f := domain.ProductFilters{
		CategoryID: q.Get("categoryId"),
		Search:     q.Get("search"),
	}
	var details []apperr.Detail
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			details = append(details, apperr.Detail{Field: p.name, Code: "decimal", Message: "must be a number", Value: raw})
			continue
		}
		*p.dst = &d
	}
	if raw := q.Get("inStock"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			details = append(details, apperr.Detail{Field: "inStock", Code: "boolean", Message: "must be true or false", Value: raw})
		}
		f.InStock = b
	}
	if len(details) > 0 {
		return f, apperr.Invalid("invalid query parameters", details...)
	}
	return f, nil
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	filter, err := productFilters(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	list, err := h.products.ListProducts(r.Context(), tenant.ID, filter)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("products found", list))
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	list, err := h.products.SearchProducts(r.Context(), tenant.ID, r.URL.Query().Get("q"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("products found", list))
}

func (h *ProductHandler) ListWithVariables(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	list, err := h.products.ListProductsWithVariables(r.Context(), tenant.ID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("products found", list))
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	p, err := h.products.GetProduct(r.Context(), tenant.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("product found", p))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.products.CreateProduct(r.Context(), rc, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, Ok("product created successfully", p))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.UpdateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.products.UpdateProduct(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("product updated successfully", p))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	if err := h.products.DeleteProduct(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok[any]("product deleted successfully", nil))
}

// CategoryHandler 分类
type CategoryHandler struct {
	*responder
	categories *service.CategoryService
}

func NewCategoryHandler(rt *Router, categories *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{responder: rt.p.responder, categories: categories}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	list, err := h.categories.ListCategories(r.Context(), tenant.ID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("categories found", list))
}

func (h *CategoryHandler) Search(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	list, err := h.categories.SearchCategories(r.Context(), tenant.ID, r.URL.Query().Get("q"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("categories found", list))
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	c, err := h.categories.GetCategory(r.Context(), tenant.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("category found", c))
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.categories.CreateCategory(r.Context(), rc, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, Ok("category created successfully", c))
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.UpdateCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.categories.UpdateCategory(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("category updated successfully", c))
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	if err := h.categories.DeleteCategory(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok[any]("category deleted successfully", nil))
}
