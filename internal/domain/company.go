package domain

import "time"

// Company 租户领域模型（对应 companies + company_domains 表）
type Company struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	TaxID   string `db:"tax_id" json:"cnpj"` // UNIQUE, 格式 NN.NNN.NNN/NNNN-NN
	Address string `db:"address" json:"address"`

	// 授权域名：规范形式（小写 host[:port]），全局唯一（company_domains.hostname PRIMARY KEY）
	Domains []string `json:"domains"`

	OwnerUserID    string         `db:"owner_user_id" json:"userId,omitempty"` // nullable
	Customizations Customizations `db:"customizations" json:"customizations"`  // JSONB
	Cart           []CartItem     `db:"cart" json:"cart,omitempty"`            // JSONB

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Customizations 店铺外观（图片存放在 blob store，这里只保存 URL）
type Customizations struct {
	Logo        string   `json:"logo,omitempty"`
	HomeBanners []string `json:"homeBanners,omitempty"`
	BrandColors []string `json:"brandColors,omitempty"`
}

// AssetURLs lists every blob-backed URL the company references.
func (c Customizations) AssetURLs() []string {
	urls := make([]string, 0, len(c.HomeBanners)+1)
	if c.Logo != "" {
		urls = append(urls, c.Logo)
	}
	return append(urls, c.HomeBanners...)
}

// CompanyFilters 公司列表过滤
// OwnerUserID and OrID combine with OR: companies owned by the user plus the company OrID.
type CompanyFilters struct {
	OwnerUserID string
	OrID        string
	Search      string
}
