package research

import (
	"strings"
	"testing"
)

func TestUniqueTitleNoCollision(t *testing.T) {
	if got := uniqueTitle("1234567890123", []string{"other", "sheets"}); got != "1234567890123" {
		t.Fatalf("expected base title, got %q", got)
	}
}

func TestUniqueTitleSuffixesOnCollision(t *testing.T) {
	existing := []string{"1234567890123", "1234567890123_2"}
	if got := uniqueTitle("1234567890123", existing); got != "1234567890123_3" {
		t.Fatalf("expected _3 suffix, got %q", got)
	}
}

func TestUniqueTitleEmptyBase(t *testing.T) {
	if got := uniqueTitle("", nil); got != "Company" {
		t.Fatalf("expected fallback title, got %q", got)
	}
}

func TestUniqueTitleTruncatesLongBase(t *testing.T) {
	long := strings.Repeat("あ", maxSheetTitleLen+10)
	got := uniqueTitle(long, nil)
	if len([]rune(got)) != maxSheetTitleLen {
		t.Fatalf("expected %d runes, got %d", maxSheetTitleLen, len([]rune(got)))
	}
}

func TestBuildMirrorRowsMarkerRowFirst(t *testing.T) {
	doc := &CompanyDocument{}
	doc.ensureSections()
	doc.SetCorporateNumber("1234567890123")
	doc.Identity["会社名"] = "テスト株式会社"

	rows := buildMirrorRows(doc, nil, nil)
	if len(rows) == 0 {
		t.Fatalf("no rows built")
	}
	first := rows[0]
	if len(first) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(first))
	}
	// The lookup marker the worksheet scanner depends on: column B label,
	// column C corporate number.
	if first[1] != "法人番号" || first[2] != "1234567890123" {
		t.Fatalf("marker row wrong: %+v", first)
	}
}

func TestBuildMirrorRowsSectionOrder(t *testing.T) {
	doc := &CompanyDocument{}
	doc.ensureSections()
	doc.SetCorporateNumber("1234567890123")

	rows := buildMirrorRows(doc, nil, nil)

	var sections []string
	for _, row := range rows {
		if s, ok := row[0].(string); ok && s != "" {
			sections = append(sections, s)
		}
	}
	want := []string{
		"◆ I. " + sectionIdentity,
		"◆ II. " + sectionFinancials,
		"◆ III. " + sectionBusiness,
		"◆ IV. " + sectionRoster,
		"◆ V. " + sectionScale,
		"◆ VI. " + sectionOffices,
		"◆ VII. " + sectionURLs,
	}
	if len(sections) != len(want) {
		t.Fatalf("expected %d section headers, got %d: %v", len(want), len(sections), sections)
	}
	for i := range want {
		if sections[i] != want[i] {
			t.Fatalf("section %d = %q, want %q", i, sections[i], want[i])
		}
	}
}

func TestBuildMirrorRowsRosterAndOffices(t *testing.T) {
	doc := &CompanyDocument{}
	doc.ensureSections()
	doc.SetCorporateNumber("1234567890123")

	roster := []RosterEntry{
		{Position: "代表取締役", Name: "山田太郎", NameKana: "やまだたろう"},
		{Position: "取締役", Name: "佐藤花子"},
	}
	offices := []OfficeEntry{
		{Name: "本社", Address: "東京都千代田区"},
	}

	rows := buildMirrorRows(doc, roster, offices)

	find := func(label string) (string, bool) {
		for _, row := range rows {
			if row[1] == label {
				v, _ := row[2].(string)
				return v, true
			}
		}
		return "", false
	}

	if v, ok := find("役員名1"); !ok || v != "山田太郎" {
		t.Fatalf("役員名1 = %q (found=%v)", v, ok)
	}
	if v, ok := find("役職名2"); !ok || v != "取締役" {
		t.Fatalf("役職名2 = %q (found=%v)", v, ok)
	}
	if v, ok := find("事業所名1"); !ok || v != "本社" {
		t.Fatalf("事業所名1 = %q (found=%v)", v, ok)
	}
	if _, ok := find("役員名3"); ok {
		t.Fatalf("unexpected third roster entry")
	}
}
