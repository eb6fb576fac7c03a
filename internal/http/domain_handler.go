package httpapi

import (
	"net/http"

	"github.com/LsSens/backend-ecommerce/internal/service"
)

// DomainHandler POST /domains/verify：公共接口，不解析租户
type DomainHandler struct {
	*responder
	domains *service.DomainService
}

func NewDomainHandler(rt *Router, domains *service.DomainService) *DomainHandler {
	return &DomainHandler{responder: rt.p.responder, domains: domains}
}

type verifyEnvelope struct {
	Success bool                        `json:"success"`
	Message string                      `json:"message"`
	Data    *service.DomainVerification `json:"data"`
}

// Verify 状态码取自校验结果：200 已指向 AWS，400 未指向，404 域名不存在
func (h *DomainHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyDomainRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.domains.VerifyDomain(r.Context(), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	msg := "domain is pointing to AWS"
	switch {
	case result.Status == http.StatusNotFound:
		msg = "domain not found"
	case !result.IsValid:
		msg = "domain is not pointing to AWS"
	}
	h.ok(w, result.Status, verifyEnvelope{Success: result.IsValid, Message: msg, Data: result})
}
