package models

// Executive is one roster entry (役員名簿) owned by a Company. Rows are
// replaced wholesale on every reconciliation; Order is always dense 1..N.
type Executive struct {
	ID        int    `gorm:"primary_key" json:"id"`
	CompanyId int    `gorm:"index;not null" json:"company_id"`
	Position  string `gorm:"size:50" json:"position"`
	Name      string `gorm:"size:100" json:"name"`
	NameKana  string `gorm:"size:100" json:"name_kana"`
	Order     int    `gorm:"column:order;not null;default:1" json:"order"`
}
