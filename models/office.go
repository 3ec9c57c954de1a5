package models

// Office is one location entry (拠点・事業所一覧) owned by a Company.
// Same replacement semantics as Executive.
type Office struct {
	ID              int    `gorm:"primary_key" json:"id"`
	CompanyId       int    `gorm:"index;not null" json:"company_id"`
	Name            string `gorm:"size:100" json:"name"`
	PostalCode      string `gorm:"size:10" json:"postal_code"`
	Address         string `gorm:"type:text" json:"address"`
	Phone           string `gorm:"size:20" json:"phone"`
	BusinessContent string `gorm:"type:text" json:"business_content"`
	Order           int    `gorm:"column:order;not null;default:1" json:"order"`
}
