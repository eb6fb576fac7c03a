package auth

import (
	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"
)

var roleRanks = map[domain.Role]int{
	domain.RoleAdmin:    3,
	domain.RoleOperator: 2,
	domain.RoleCustomer: 1,
}

// Rank returns the role's position in the hierarchy; unknown roles rank 0.
func Rank(r domain.Role) int {
	return roleRanks[r]
}

// Authorize reports whether requester is at least as privileged as required.
func Authorize(requester, required domain.Role) bool {
	need := Rank(required)
	return need > 0 && Rank(requester) >= need
}

// RequireRole is the guard form of Authorize: nil requester -> 401, insufficient rank -> 403.
func RequireRole(rc *RequestContext, required domain.Role) error {
	if rc == nil || rc.UserID() == "" {
		return apperr.Unauthorized(apperr.ReasonMissingToken, "authentication required")
	}
	if !Authorize(rc.Role(), required) {
		return apperr.Forbidden(apperr.ReasonInsufficientRole, "insufficient permissions",
			apperr.Detail{Field: "role", Code: "requiredRole", Message: "required role", Value: required.String()},
			apperr.Detail{Field: "role", Code: "userRole", Message: "user role", Value: rc.Role().String()},
		)
	}
	return nil
}
