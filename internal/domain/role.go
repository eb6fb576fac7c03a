package domain

// Role 用户角色（固定层级：Admin > Operator > Customer）
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleOperator Role = "Operator"
	RoleCustomer Role = "Customer"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleCustomer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
