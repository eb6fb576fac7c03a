package httpapi

import (
	"net/http"

	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/service"

	"github.com/go-chi/chi/v5"
)

// UserHandler 用户、登录与购物车
type UserHandler struct {
	*responder
	users service.UserService
}

func NewUserHandler(rt *Router, users service.UserService) *UserHandler {
	return &UserHandler{responder: rt.p.responder, users: users}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	var req service.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.users.Register(r.Context(), tenant.ID, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, Ok("user registered successfully", u))
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	var req service.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.IPAddress = getClientIP(r)
	req.UserAgent = r.UserAgent()

	resp, err := h.users.Login(r.Context(), tenant.ID, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("login successful", resp))
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	users, err := h.users.ListUsers(r.Context(), rc)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("users found", users))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	u, err := h.users.GetUser(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("user found", u))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.users.UpdateUser(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("user updated successfully", u))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	if err := h.users.DeleteUser(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok[any]("user deleted successfully", nil))
}

func (h *UserHandler) GetCart(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	cart, err := h.users.GetCart(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("cart found", cart))
}

func (h *UserHandler) AddToCart(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.CartItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	cart, err := h.users.AddToCart(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("product added to cart", cart))
}

func (h *UserHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.CartItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	cart, err := h.users.UpdateCartItem(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("cart updated", cart))
}

// RemoveFromCart productId 可以放在路径、query 或 body 中
func (h *UserHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	productID := chi.URLParam(r, "productId")
	if productID == "" {
		productID = r.URL.Query().Get("productId")
	}
	if productID == "" {
		var body struct {
			ProductID string `json:"productId"`
		}
		if !h.decode(w, r, &body) {
			return
		}
		productID = body.ProductID
	}
	cart, err := h.users.RemoveFromCart(r.Context(), rc, chi.URLParam(r, "id"), productID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("product removed from cart", cart))
}
