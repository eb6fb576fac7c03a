// Package apperr defines the error taxonomy shared by repositories, services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes. Each maps to exactly one HTTP status.
const (
	EInvalid         = "invalid"
	EConflict        = "conflict"
	ENotFound        = "not found"
	EUnauthorized    = "unauthorized"
	EForbidden       = "forbidden"
	ETooManyRequests = "too many requests"
	EInternal        = "internal error"
)

// Machine-readable reasons attached to pipeline and auth failures.
const (
	ReasonInvalidOrigin       = "INVALID_ORIGIN"
	ReasonDomainNotAuthorized = "DOMAIN_NOT_AUTHORIZED"
	ReasonMissingToken        = "MISSING_TOKEN"
	ReasonInvalidToken        = "INVALID_TOKEN"
	ReasonExpiredToken        = "EXPIRED_TOKEN"
	ReasonUserNotFound        = "USER_NOT_FOUND"
	ReasonInvalidCredential   = "INVALID_CREDENTIAL"
	ReasonTenantMismatch      = "TENANT_MISMATCH"
	ReasonInsufficientRole    = "INSUFFICIENT_ROLE"
	ReasonDomainConflict      = "DOMAIN_CONFLICT"
	ReasonInsufficientStock   = "INSUFFICIENT_STOCK"
	ReasonRateLimited         = "RATE_LIMITED"
	ReasonOriginNotAllowed    = "ORIGIN_NOT_ALLOWED"
	ReasonCompanyNotEmpty     = "COMPANY_NOT_EMPTY"
)

// Detail is one entry of the response envelope's errors list.
type Detail struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error carries a code, a human message, the logical operation and an optional cause.
//
// To create a not found error:
//
//	apperr.NotFound("product not found")
//
// To wrap an infrastructure failure:
//
//	apperr.Internal("repository.CreateOrder", err)
type Error struct {
	Code    string
	Reason  string
	Msg     string
	Op      string
	Err     error
	Details []Detail
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		fmt.Fprintf(&b, "<%s>", e.Code)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// WithOp returns a copy of e annotated with op.
func (e *Error) WithOp(op string) *Error {
	c := *e
	c.Op = op
	return &c
}

func Invalid(msg string, details ...Detail) *Error {
	return &Error{Code: EInvalid, Msg: msg, Details: details}
}

func Conflict(reason, msg string, details ...Detail) *Error {
	return &Error{Code: EConflict, Reason: reason, Msg: msg, Details: details}
}

func NotFound(msg string) *Error {
	return &Error{Code: ENotFound, Msg: msg}
}

func Unauthorized(reason, msg string) *Error {
	return &Error{Code: EUnauthorized, Reason: reason, Msg: msg}
}

func Forbidden(reason, msg string, details ...Detail) *Error {
	return &Error{Code: EForbidden, Reason: reason, Msg: msg, Details: details}
}

func TooManyRequests(msg string) *Error {
	return &Error{Code: ETooManyRequests, Reason: ReasonRateLimited, Msg: msg}
}

func Internal(op string, err error) *Error {
	return &Error{Code: EInternal, Op: op, Err: err}
}

// ErrorCode returns the code of the outermost *Error in err's chain, or EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || e.Code == "" {
		return EInternal
	}
	return e.Code
}

// ErrorMessage returns the human-readable message; internal errors get a generic one.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	}
	if !errors.As(err, &e) || e.Code == EInternal || e.Msg == "" {
		return "internal server error"
	}
	return e.Msg
}

func ErrorReason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func ErrorDetails(err error) []Detail {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// Is reports whether err carries code.
func Is(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// HTTPStatus maps an error code to its response status.
func HTTPStatus(code string) int {
	switch code {
	case EInvalid:
		return http.StatusBadRequest
	case EConflict:
		return http.StatusConflict
	case ENotFound:
		return http.StatusNotFound
	case EUnauthorized:
		return http.StatusUnauthorized
	case EForbidden:
		return http.StatusForbidden
	case ETooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
