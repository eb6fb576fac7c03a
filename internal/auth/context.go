package auth

import "github.com/LsSens/backend-ecommerce/internal/domain"

// RequestContext is the immutable {tenantId, userId, role} value handed to resource services
// once a request has been authenticated.
type RequestContext struct {
	tenantID string
	userID   string
	role     domain.Role
}

func NewRequestContext(tenantID, userID string, role domain.Role) RequestContext {
	return RequestContext{tenantID: tenantID, userID: userID, role: role}
}

func (c RequestContext) TenantID() string  { return c.tenantID }
func (c RequestContext) UserID() string    { return c.userID }
func (c RequestContext) Role() domain.Role { return c.role }

// Has reports whether the requester's rank reaches required.
func (c RequestContext) Has(required domain.Role) bool { return Authorize(c.role, required) }

// IsSelfOrAdmin reports whether the requester is userID or an Admin of the tenant.
func (c RequestContext) IsSelfOrAdmin(userID string) bool {
	return c.userID == userID || c.role == domain.RoleAdmin
}
