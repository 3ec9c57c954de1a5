package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/research_backend/config"
	"github.com/mmdatafocus/research_backend/utils"
	"gorm.io/gorm"
)

// ErrMissingCorporateNumber rejects documents without the reconciliation key.
// The corporate number is the only identity a company record has; a document
// without one cannot be upserted safely.
var ErrMissingCorporateNumber = errors.New("corporate number is required")

// Company is the persisted root entity, keyed by the corporate number
// (法人番号). The corporate number is never reassigned; every other scalar is
// overwritten wholesale on each reconciliation.
type Company struct {
	ID              int    `gorm:"primary_key" json:"id"`
	CorporateNumber string `gorm:"size:13;uniqueIndex;not null" json:"corporate_number"`

	// Basic corporate info
	CompanyName              string `gorm:"size:200" json:"company_name"`
	CompanyNameKana          string `gorm:"size:200" json:"company_name_kana"`
	EnglishName              string `gorm:"size:200" json:"english_name"`
	RepresentativeName       string `gorm:"size:100" json:"representative_name"`
	RepresentativeKana       string `gorm:"size:100" json:"representative_kana"`
	RepresentativeAge        string `gorm:"size:10" json:"representative_age"`
	RepresentativeBirth      string `gorm:"size:20" json:"representative_birth"`
	RepresentativeUniversity string `gorm:"size:100" json:"representative_university"`
	PostalCode               string `gorm:"size:10" json:"postal_code"`
	Address                  string `gorm:"type:text" json:"address"`
	Phone                    string `gorm:"size:20" json:"phone"`
	RegisteredAddress        string `gorm:"type:text" json:"registered_address"`
	Fax                      string `gorm:"size:20" json:"fax"`
	Url                      string `gorm:"size:255" json:"url"`
	Founded                  string `gorm:"size:20" json:"founded"`
	Established              string `gorm:"size:20" json:"established"`
	Capital                  string `gorm:"size:50" json:"capital"`
	Investment               string `gorm:"size:50" json:"investment"`
	MemberCount              string `gorm:"size:20" json:"member_count"`
	UnionMemberCount         string `gorm:"size:20" json:"union_member_count"`
	StockMarket              string `gorm:"size:50" json:"stock_market"`
	StockCode                string `gorm:"size:10" json:"stock_code"`
	FiscalYearEnd            string `gorm:"size:20" json:"fiscal_year_end"`

	// Financial info
	Revenue          string `gorm:"size:50" json:"revenue"`
	NetProfit        string `gorm:"size:50" json:"net_profit"`
	Deposits         string `gorm:"size:50" json:"deposits"`
	EmployeeCount    string `gorm:"size:20" json:"employee_count"`
	AverageAge       string `gorm:"size:10" json:"average_age"`
	AverageSalary    string `gorm:"size:50" json:"average_salary"`
	ExecutiveCount   string `gorm:"size:10" json:"executive_count"`
	ShareholderCount string `gorm:"size:20" json:"shareholder_count"`
	MainBank         string `gorm:"size:100" json:"main_bank"`

	// Business info
	Industry         string `gorm:"size:100" json:"industry"`
	BusinessContent  string `gorm:"type:text" json:"business_content"`
	MainBusiness     string `gorm:"type:text" json:"main_business"`
	BusinessArea     string `gorm:"size:100" json:"business_area"`
	GroupAffiliation string `gorm:"size:100" json:"group_affiliation"`
	SalesDestination string `gorm:"type:text" json:"sales_destination"`
	Supplier         string `gorm:"type:text" json:"supplier"`

	// Scale info
	OfficeCount string `gorm:"size:20" json:"office_count"`
	StoreCount  string `gorm:"size:20" json:"store_count"`

	// Reference URLs
	CompanyOverviewUrl   string `gorm:"size:255" json:"company_overview_url"`
	OfficeListUrl        string `gorm:"size:255" json:"office_list_url"`
	OrganizationChartUrl string `gorm:"size:255" json:"organization_chart_url"`
	RelatedCompaniesUrl  string `gorm:"size:255" json:"related_companies_url"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Executives []Executive `gorm:"constraint:OnDelete:CASCADE" json:"executives"`
	Offices    []Office    `gorm:"constraint:OnDelete:CASCADE" json:"offices"`
}

// scalarField pairs a column name with its value so reconciliation can diff
// old and new records field-by-field in a stable order.
type scalarField struct {
	Column string
	Value  string
}

func (c *Company) scalarFields() []scalarField {
	return []scalarField{
		{"company_name", c.CompanyName},
		{"company_name_kana", c.CompanyNameKana},
		{"english_name", c.EnglishName},
		{"representative_name", c.RepresentativeName},
		{"representative_kana", c.RepresentativeKana},
		{"representative_age", c.RepresentativeAge},
		{"representative_birth", c.RepresentativeBirth},
		{"representative_university", c.RepresentativeUniversity},
		{"postal_code", c.PostalCode},
		{"address", c.Address},
		{"phone", c.Phone},
		{"registered_address", c.RegisteredAddress},
		{"fax", c.Fax},
		{"url", c.Url},
		{"founded", c.Founded},
		{"established", c.Established},
		{"capital", c.Capital},
		{"investment", c.Investment},
		{"member_count", c.MemberCount},
		{"union_member_count", c.UnionMemberCount},
		{"stock_market", c.StockMarket},
		{"stock_code", c.StockCode},
		{"fiscal_year_end", c.FiscalYearEnd},
		{"revenue", c.Revenue},
		{"net_profit", c.NetProfit},
		{"deposits", c.Deposits},
		{"employee_count", c.EmployeeCount},
		{"average_age", c.AverageAge},
		{"average_salary", c.AverageSalary},
		{"executive_count", c.ExecutiveCount},
		{"shareholder_count", c.ShareholderCount},
		{"main_bank", c.MainBank},
		{"industry", c.Industry},
		{"business_content", c.BusinessContent},
		{"main_business", c.MainBusiness},
		{"business_area", c.BusinessArea},
		{"group_affiliation", c.GroupAffiliation},
		{"sales_destination", c.SalesDestination},
		{"supplier", c.Supplier},
		{"office_count", c.OfficeCount},
		{"store_count", c.StoreCount},
		{"company_overview_url", c.CompanyOverviewUrl},
		{"office_list_url", c.OfficeListUrl},
		{"organization_chart_url", c.OrganizationChartUrl},
		{"related_companies_url", c.RelatedCompaniesUrl},
	}
}

// ReconcileCompany upserts the company by corporate number and fully replaces
// its executives and offices. Atomic: either the company row and both child
// collections reflect the new document, or nothing changed.
//
// Scalars are overwritten unconditionally (last-write-wins). When the change
// log is enabled and the company already existed, a ResearchHistory row is
// appended for every scalar whose old and new values are both non-empty and
// differ. Empty-to-populated transitions are not logged: only real
// corrections are of audit interest.
func ReconcileCompany(ctx context.Context, db *gorm.DB, company *Company, executives []Executive, offices []Office) (*Company, error) {
	if strings.TrimSpace(company.CorporateNumber) == "" {
		return nil, ErrMissingCorporateNumber
	}
	company.CorporateNumber = strings.TrimSpace(company.CorporateNumber)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Company
		findErr := tx.Where("corporate_number = ?", company.CorporateNumber).Take(&existing).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			if err := tx.Create(company).Error; err != nil {
				return err
			}
		} else {
			if config.ChangeLogEnabled() {
				if err := recordScalarChanges(tx, &existing, company); err != nil {
					return err
				}
			}
			updates := map[string]interface{}{}
			for _, f := range company.scalarFields() {
				updates[f.Column] = f.Value
			}
			if err := tx.Model(&Company{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			company.ID = existing.ID
			company.CreatedAt = existing.CreatedAt
		}

		// Full replace of owned collections: delete everything, reinsert in
		// normalized order. No orphaned rows survive a shrinking roster.
		if err := tx.Where("company_id = ?", company.ID).Delete(&Executive{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&Office{}).Error; err != nil {
			return err
		}

		for i := range executives {
			executives[i].ID = 0
			executives[i].CompanyId = company.ID
			executives[i].Order = i + 1
		}
		if len(executives) > 0 {
			if err := tx.CreateInBatches(executives, 500).Error; err != nil {
				return err
			}
		}

		for i := range offices {
			offices[i].ID = 0
			offices[i].CompanyId = company.ID
			offices[i].Order = i + 1
		}
		if len(offices) > 0 {
			if err := tx.CreateInBatches(offices, 500).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

func recordScalarChanges(tx *gorm.DB, oldCompany *Company, newCompany *Company) error {
	oldFields := oldCompany.scalarFields()
	newFields := newCompany.scalarFields()
	for i := range newFields {
		oldValue := oldFields[i].Value
		newValue := newFields[i].Value
		if oldValue == newValue || oldValue == "" || newValue == "" {
			continue
		}
		history := ResearchHistory{
			CorporateNumber: newCompany.CorporateNumber,
			ChangedField:    newFields[i].Column,
			OldValue:        oldValue,
			NewValue:        newValue,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetCompanyByNumber loads one company with its executives and offices in
// roster order.
func GetCompanyByNumber(ctx context.Context, corporateNumber string) (*Company, error) {
	db := config.GetDB()
	var result Company

	err := db.WithContext(ctx).
		Preload("Executives", func(db *gorm.DB) *gorm.DB { return db.Order("`order` ASC") }).
		Preload("Offices", func(db *gorm.DB) *gorm.DB { return db.Order("`order` ASC") }).
		Where("corporate_number = ?", corporateNumber).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetCompanies lists companies, most recently updated first.
func GetCompanies(ctx context.Context, limit int) ([]*Company, error) {
	db := config.GetDB()
	var results []*Company

	if limit <= 0 {
		limit = 50
	}
	err := db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
