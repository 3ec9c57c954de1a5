package research

import "testing"

func TestCompaniesFromRowsPadsShortRows(t *testing.T) {
	rows := [][]interface{}{
		{"1234567890123"},
		{"9876543210987", "テスト株式会社"},
		{"1111111111111", "会社A", "東京都", "備考", "extra cell ignored"},
	}

	records := companiesFromRows(rows)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Name != "" || records[0].Address != "" || records[0].Note != "" {
		t.Fatalf("short row not padded: %+v", records[0])
	}
	if records[1].Name != "テスト株式会社" {
		t.Fatalf("unexpected name: %+v", records[1])
	}
	if records[2].Note != "備考" {
		t.Fatalf("unexpected note: %+v", records[2])
	}
}

func TestCompaniesFromRowsDropsRowsWithoutCorporateNumber(t *testing.T) {
	rows := [][]interface{}{
		{"", "番号なし株式会社", "東京都"},
		{"   ", "空白番号株式会社"},
		{"1234567890123", "有効株式会社"},
		{},
	}

	records := companiesFromRows(rows)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CorporateNumber != "1234567890123" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestCompaniesFromRowsTrimsCorporateNumber(t *testing.T) {
	records := companiesFromRows([][]interface{}{{"  1234567890123  ", "会社"}})
	if len(records) != 1 || records[0].CorporateNumber != "1234567890123" {
		t.Fatalf("corporate number not trimmed: %+v", records)
	}
}

func TestCellStringNonStringValues(t *testing.T) {
	if got := cellString(nil); got != "" {
		t.Fatalf("nil cell should be empty, got %q", got)
	}
	if got := cellString(float64(42)); got != "42" {
		t.Fatalf("numeric cell formatting: got %q", got)
	}
	if got := cellString("text"); got != "text" {
		t.Fatalf("string cell passthrough: got %q", got)
	}
}
