package research

import (
	"encoding/json"
	"strings"
)

// Section key constants matching the JSON schema the model is asked to fill.
const (
	sectionIdentity   = "基本法人情報（識別・概要）"
	sectionFinancials = "経営・財務情報"
	sectionBusiness   = "事業・業務内容"
	sectionRoster     = "役員名簿"
	sectionScale      = "拠点・展開規模"
	sectionOffices    = "拠点・事業所一覧"
	sectionURLs       = "URL"
)

const keyCorporateNumber = "企業法人番号"

// CompanyDocument is the raw structured payload returned by the extraction
// service. Sections are kept as string maps because the repeating groups
// (roster, offices) arrive as flat indexed keys whose index digits may be
// rendered in either ASCII or full-width form; a fixed struct cannot capture
// that, a map can.
type CompanyDocument struct {
	Identity   map[string]string `json:"基本法人情報（識別・概要）"`
	Financials map[string]string `json:"経営・財務情報"`
	Business   map[string]string `json:"事業・業務内容"`
	Roster     map[string]string `json:"役員名簿"`
	Scale      map[string]string `json:"拠点・展開規模"`
	Offices    map[string]string `json:"拠点・事業所一覧"`
	URLs       map[string]string `json:"URL"`
}

// ParseCompanyDocument parses raw model output into a document. All sections
// are non-nil afterwards so lookups never need a nil check.
func ParseCompanyDocument(raw []byte) (*CompanyDocument, error) {
	var doc CompanyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc.ensureSections()
	return &doc, nil
}

func (d *CompanyDocument) ensureSections() {
	if d.Identity == nil {
		d.Identity = map[string]string{}
	}
	if d.Financials == nil {
		d.Financials = map[string]string{}
	}
	if d.Business == nil {
		d.Business = map[string]string{}
	}
	if d.Roster == nil {
		d.Roster = map[string]string{}
	}
	if d.Scale == nil {
		d.Scale = map[string]string{}
	}
	if d.Offices == nil {
		d.Offices = map[string]string{}
	}
	if d.URLs == nil {
		d.URLs = map[string]string{}
	}
}

// CorporateNumber returns the trimmed reconciliation key.
func (d *CompanyDocument) CorporateNumber() string {
	return strings.TrimSpace(d.Identity[keyCorporateNumber])
}

// SetCorporateNumber overwrites the model's rendering of the corporate
// number. The input row's number is the reconciliation key and is never
// trusted to the model.
func (d *CompanyDocument) SetCorporateNumber(corporateNumber string) {
	d.ensureSections()
	d.Identity[keyCorporateNumber] = strings.TrimSpace(corporateNumber)
}
