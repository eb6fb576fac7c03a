package domain

import "time"

// User 用户领域模型（对应 users 表）
// email / tax_id 在租户内唯一，不是全局唯一
type User struct {
	ID        string `db:"id" json:"id"`
	CompanyID string `db:"company_id" json:"companyId,omitempty"` // nullable: 仅 bootstrap admin 在分配租户前为空

	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         Role   `db:"role" json:"role"`

	TaxID   string `db:"tax_id" json:"cpf,omitempty"` // nullable
	Phone   string `db:"phone" json:"phone,omitempty"`
	Address string `db:"address" json:"address,omitempty"`

	Cart []CartItem `json:"cart,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// UserPatch 部分更新；nil 字段保持不变
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *Role
	TaxID        *string
	Phone        *string
	Address      *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil && p.Role == nil &&
		p.TaxID == nil && p.Phone == nil && p.Address == nil
}
