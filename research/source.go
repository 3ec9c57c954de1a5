package research

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// sheetSource reads the company list range of the research spreadsheet.
type sheetSource struct {
	svc           *sheets.Service
	spreadsheetId string
}

func NewSheetSource(svc *sheets.Service, spreadsheetId string) CompanySource {
	return &sheetSource{svc: svc, spreadsheetId: spreadsheetId}
}

// ReadCompanyList returns the candidate rows of the configured range.
// Transport or API failure is fatal to the caller's whole batch: without a
// record list there is nothing to isolate per item.
func (s *sheetSource) ReadCompanyList(ctx context.Context, readRange string) ([]SourceRecord, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetId, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return companiesFromRows(resp.Values), nil
}

// companiesFromRows pads each row to the 4-column layout
// [corporate number, name, address, note] and drops rows whose trimmed
// corporate number is empty. Dropping is a filter, not an error: such rows
// were never candidates.
func companiesFromRows(rows [][]interface{}) []SourceRecord {
	var out []SourceRecord
	for _, row := range rows {
		cells := make([]string, 4)
		for i := 0; i < len(row) && i < 4; i++ {
			cells[i] = cellString(row[i])
		}
		corporateNumber := strings.TrimSpace(cells[0])
		if corporateNumber == "" {
			continue
		}
		out = append(out, SourceRecord{
			CorporateNumber: corporateNumber,
			Name:            cells[1],
			Address:         cells[2],
			Note:            cells[3],
		})
	}
	return out
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
