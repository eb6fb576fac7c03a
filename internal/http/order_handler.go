package httpapi

import (
	"net/http"
	"strconv"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const orderExportFilename = "orders-export.xlsx"

// OrderHandler 订单
type OrderHandler struct {
	*responder
	orders service.OrderService
}

func NewOrderHandler(rt *Router, orders service.OrderService) *OrderHandler {
	return &OrderHandler{responder: rt.p.responder, orders: orders}
}

// GetByNumber 按订单号查询（订单追踪页，无需登录）
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request, tenant *domain.Company) {
	o, err := h.orders.GetOrderByNumber(r.Context(), tenant.ID, chi.URLParam(r, "orderNumber"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("order found", o))
}

// List Customer 只能看到自己的订单
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	list, err := h.orders.ListOrders(r.Context(), rc)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("orders found", list))
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.orders.CreateOrder(r.Context(), rc, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, Ok("order created successfully", o))
}

func (h *OrderHandler) Statistics(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	stats, err := h.orders.OrderStats(r.Context(), rc)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("order statistics", stats))
}

// Export 导出订单 Excel，支持 ?status= 过滤
func (h *OrderHandler) Export(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	list, err := h.orders.ExportOrders(r.Context(), rc, r.URL.Query().Get("status"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	data, err := GenerateOrderExport(list)
	if err != nil {
		h.error(w, r, apperr.Internal("httpapi.ExportOrders", err))
		return
	}
	h.logger.Info("Orders exported",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("user_id", rc.UserID()),
		zap.Int("count", len(list)),
	)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+orderExportFilename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *OrderHandler) ListByStatus(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	list, err := h.orders.ListOrdersByStatus(r.Context(), rc, chi.URLParam(r, "status"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("orders found", list))
}

func (h *OrderHandler) ListByUser(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	list, err := h.orders.ListOrdersByUser(r.Context(), rc, chi.URLParam(r, "userId"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, List("orders found", list))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	o, err := h.orders.GetOrder(r.Context(), rc, chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("order found", o))
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.UpdateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateOrder(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("order updated successfully", o))
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	var req service.UpdateOrderStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateOrderStatus(r.Context(), rc, chi.URLParam(r, "id"), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok("order status updated successfully", o))
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request, rc auth.RequestContext) {
	if err := h.orders.DeleteOrder(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, Ok[any]("order deleted successfully", nil))
}
