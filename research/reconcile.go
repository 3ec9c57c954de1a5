package research

import (
	"context"
	"strings"

	"github.com/mmdatafocus/research_backend/models"
	"gorm.io/gorm"
)

// companyFromDocument flattens the sectioned document into the persisted
// scalar layout. Missing keys map to empty strings; every value is trimmed.
func companyFromDocument(doc *CompanyDocument) *models.Company {
	get := func(section map[string]string, key string) string {
		return strings.TrimSpace(section[key])
	}

	return &models.Company{
		CorporateNumber: doc.CorporateNumber(),

		CompanyName:              get(doc.Identity, "会社名"),
		CompanyNameKana:          get(doc.Identity, "会社名かな"),
		EnglishName:              get(doc.Identity, "英文企業名"),
		RepresentativeName:       get(doc.Identity, "代表者名"),
		RepresentativeKana:       get(doc.Identity, "代表者かな"),
		RepresentativeAge:        get(doc.Identity, "代表者年齢"),
		RepresentativeBirth:      get(doc.Identity, "代表者生年月日"),
		RepresentativeUniversity: get(doc.Identity, "代表者出身大学"),
		PostalCode:               get(doc.Identity, "郵便番号"),
		Address:                  get(doc.Identity, "住所"),
		Phone:                    get(doc.Identity, "電話番号"),
		RegisteredAddress:        get(doc.Identity, "登記住所"),
		Fax:                      get(doc.Identity, "FAX番号"),
		Url:                      get(doc.Identity, "URL"),
		Founded:                  get(doc.Identity, "創業"),
		Established:              get(doc.Identity, "設立"),
		Capital:                  get(doc.Identity, "資本金"),
		Investment:               get(doc.Identity, "出資金"),
		MemberCount:              get(doc.Identity, "会員数"),
		UnionMemberCount:         get(doc.Identity, "組合員数"),
		StockMarket:              get(doc.Identity, "上場市場"),
		StockCode:                get(doc.Identity, "証券コード"),
		FiscalYearEnd:            get(doc.Identity, "決算期"),

		Revenue:          get(doc.Financials, "売上高"),
		NetProfit:        get(doc.Financials, "純利益"),
		Deposits:         get(doc.Financials, "預金量"),
		EmployeeCount:    get(doc.Financials, "従業員数"),
		AverageAge:       get(doc.Financials, "平均年齢"),
		AverageSalary:    get(doc.Financials, "平均年収"),
		ExecutiveCount:   get(doc.Financials, "役員数"),
		ShareholderCount: get(doc.Financials, "株主数"),
		MainBank:         get(doc.Financials, "取引銀行"),

		Industry:         get(doc.Business, "業種"),
		BusinessContent:  get(doc.Business, "事業内容"),
		MainBusiness:     get(doc.Business, "主要事業"),
		BusinessArea:     get(doc.Business, "事業エリア"),
		GroupAffiliation: get(doc.Business, "系列"),
		SalesDestination: get(doc.Business, "販売先"),
		Supplier:         get(doc.Business, "仕入先"),

		OfficeCount: get(doc.Scale, "事業所数"),
		StoreCount:  get(doc.Scale, "店舗数"),

		CompanyOverviewUrl:   get(doc.URLs, "会社概要ページURL"),
		OfficeListUrl:        get(doc.URLs, "拠点・事業所ページURL"),
		OrganizationChartUrl: get(doc.URLs, "組織図ページURL"),
		RelatedCompaniesUrl:  get(doc.URLs, "関係会社ページURL"),
	}
}

// executivesFromRoster drops placeholder entries: a roster row needs at least
// a position or a name to persist.
func executivesFromRoster(roster []RosterEntry) []models.Executive {
	var out []models.Executive
	for _, e := range roster {
		if e.Position == "" && e.Name == "" {
			continue
		}
		out = append(out, models.Executive{
			Position: e.Position,
			Name:     e.Name,
			NameKana: e.NameKana,
		})
	}
	return out
}

// officesFromEntries drops placeholder entries: an office row needs at least
// a name or an address to persist.
func officesFromEntries(offices []OfficeEntry) []models.Office {
	var out []models.Office
	for _, o := range offices {
		if o.Name == "" && o.Address == "" {
			continue
		}
		out = append(out, models.Office{
			Name:            o.Name,
			PostalCode:      o.PostalCode,
			Address:         o.Address,
			Phone:           o.Phone,
			BusinessContent: o.BusinessContent,
		})
	}
	return out
}

// ReconcileDocument normalizes the repeating groups and writes the document
// through to the database in one transaction.
func ReconcileDocument(ctx context.Context, db *gorm.DB, doc *CompanyDocument) (*models.Company, []RosterEntry, []OfficeEntry, error) {
	roster := ExtractRoster(doc)
	offices := ExtractOffices(doc)

	company, err := models.ReconcileCompany(ctx, db, companyFromDocument(doc), executivesFromRoster(roster), officesFromEntries(offices))
	if err != nil {
		return nil, nil, nil, err
	}
	return company, roster, offices, nil
}
