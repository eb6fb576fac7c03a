package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/ratelimit"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBodyJSON 空 body 视为 {}；超过 maxBytes 或格式错误返回 400
func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return apperr.Invalid("failed to read request body")
	}
	if int64(len(body)) > maxBytes {
		return apperr.Invalid("request body too large")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.Invalid("invalid request body",
				apperr.Detail{Field: typeErr.Field, Code: "type", Message: "must be " + typeErr.Type.String()})
		}
		return apperr.Invalid("invalid JSON body")
	}
	return nil
}

func getClientIP(r *http.Request) string {
	return ratelimit.ClientKey(r)
}

// responder 统一写响应：业务错误按 apperr code 映射状态码，内部错误在生产环境隐藏细节
type responder struct {
	logger     *zap.Logger
	production bool
	maxBody    int64
}

func (rs *responder) ok(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func (rs *responder) error(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.ErrorCode(err)
	status := apperr.HTTPStatus(code)
	msg := apperr.ErrorMessage(err)

	details := apperr.ErrorDetails(err)
	if reason := apperr.ErrorReason(err); reason != "" && !hasCode(details, reason) {
		details = append([]apperr.Detail{{Code: reason, Message: msg}}, details...)
	}

	if code == apperr.EInternal {
		rs.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		if !rs.production {
			msg = err.Error()
		}
	}
	writeJSON(w, status, Fail(msg, details...))
}

func hasCode(details []apperr.Detail, code string) bool {
	for _, d := range details {
		if d.Code == code {
			return true
		}
	}
	return false
}

// decode 解析 JSON body；失败时已写出 400，调用方直接 return
func (rs *responder) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := readBodyJSON(r, rs.maxBody, out); err != nil {
		rs.error(w, r, err)
		return false
	}
	return true
}
