package httpapi

import "github.com/LsSens/backend-ecommerce/internal/apperr"

// Result 统一成功响应结构
// - success: 恒为 true
// - message: 提示信息
// - data: 业务数据
// - count: 列表接口返回条数
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
	Count   *int   `json:"count,omitempty"`
}

// ErrorResult 失败响应；errors 为字段级错误（校验失败、冲突的域名、角色不足等）
type ErrorResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  []apperr.Detail `json:"errors,omitempty"`
	Stack   string          `json:"stack,omitempty"`
}

func Ok[T any](message string, data T) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

// List 带 count 的列表响应
func List[T any](message string, items []T) Result[[]T] {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return Result[[]T]{Success: true, Message: message, Data: items, Count: &n}
}

func Fail(message string, details ...apperr.Detail) ErrorResult {
	return ErrorResult{Success: false, Message: message, Errors: details}
}
