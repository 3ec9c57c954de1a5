package research

import "testing"

func TestCompanyFromDocumentMapsAllSections(t *testing.T) {
	doc := &CompanyDocument{
		Identity: map[string]string{
			"企業法人番号": "1234567890123",
			"会社名":    "テスト株式会社 ",
			"代表者名":   "山田太郎",
			"決算期":    "3月",
		},
		Financials: map[string]string{"売上高": "10億円", "取引銀行": "テスト銀行"},
		Business:   map[string]string{"業種": "製造業", "仕入先": "各社"},
		Scale:      map[string]string{"事業所数": "3", "店舗数": "12"},
		URLs:       map[string]string{"会社概要ページURL": "https://example.co.jp/about"},
	}
	doc.ensureSections()

	company := companyFromDocument(doc)
	if company.CorporateNumber != "1234567890123" {
		t.Fatalf("corporate number: %q", company.CorporateNumber)
	}
	if company.CompanyName != "テスト株式会社" {
		t.Fatalf("company name not trimmed: %q", company.CompanyName)
	}
	if company.RepresentativeName != "山田太郎" || company.FiscalYearEnd != "3月" {
		t.Fatalf("identity section mapping: %+v", company)
	}
	if company.Revenue != "10億円" || company.MainBank != "テスト銀行" {
		t.Fatalf("financials section mapping: %+v", company)
	}
	if company.Industry != "製造業" || company.Supplier != "各社" {
		t.Fatalf("business section mapping: %+v", company)
	}
	if company.OfficeCount != "3" || company.StoreCount != "12" {
		t.Fatalf("scale section mapping: %+v", company)
	}
	if company.CompanyOverviewUrl != "https://example.co.jp/about" {
		t.Fatalf("url section mapping: %+v", company)
	}
}

func TestCompanyFromDocumentMissingKeysAreEmpty(t *testing.T) {
	doc := &CompanyDocument{}
	doc.ensureSections()
	doc.SetCorporateNumber("1234567890123")

	company := companyFromDocument(doc)
	if company.CompanyName != "" || company.Revenue != "" || company.Industry != "" {
		t.Fatalf("missing keys should map to empty strings: %+v", company)
	}
}

func TestExecutivesFromRosterDropsPlaceholders(t *testing.T) {
	roster := []RosterEntry{
		{Position: "代表取締役", Name: "山田太郎"},
		{NameKana: "ふりがなだけ"},
		{Name: "佐藤花子"},
		{Position: "監査役"},
	}

	execs := executivesFromRoster(roster)
	if len(execs) != 3 {
		t.Fatalf("expected 3 executives, got %d", len(execs))
	}
	if execs[0].Name != "山田太郎" || execs[1].Name != "佐藤花子" || execs[2].Position != "監査役" {
		t.Fatalf("unexpected executives: %+v", execs)
	}
}

func TestOfficesFromEntriesDropsPlaceholders(t *testing.T) {
	offices := []OfficeEntry{
		{Name: "本社", Address: "東京都"},
		{Phone: "03-1234-5678"},
		{Address: "大阪市北区"},
	}

	out := officesFromEntries(offices)
	if len(out) != 2 {
		t.Fatalf("expected 2 offices, got %d", len(out))
	}
	if out[0].Name != "本社" || out[1].Address != "大阪市北区" {
		t.Fatalf("unexpected offices: %+v", out)
	}
}
