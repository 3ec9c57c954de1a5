package research

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetLockKeyPrefix = "sheetlock:"
	sheetLockTtl       = 1 * time.Minute
	maxSheetTitleLen   = 100
)

// sheetSink mirrors reconciled companies into per-company worksheets of the
// report spreadsheet. Everything here is best-effort: the database is the
// system of record, the spreadsheet is a view.
type sheetSink struct {
	svc           *sheets.Service
	spreadsheetId string
	locker        *redislock.Client
	logger        *logrus.Logger
}

// NewSheetSink builds the report sink. locker may be nil, in which case
// concurrent mirrors of the same company are not guarded.
func NewSheetSink(svc *sheets.Service, spreadsheetId string, locker *redislock.Client, logger *logrus.Logger) Sink {
	return &sheetSink{svc: svc, spreadsheetId: spreadsheetId, locker: locker, logger: logger}
}

func (s *sheetSink) MirrorCompany(ctx context.Context, doc *CompanyDocument, roster []RosterEntry, offices []OfficeEntry) error {
	corporateNumber := doc.CorporateNumber()
	if corporateNumber == "" {
		return fmt.Errorf("%w: document has no corporate number", ErrSinkWriteFailed)
	}

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, sheetLockKeyPrefix+corporateNumber, sheetLockTtl, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			// Another writer holds this company's worksheet. Skipping is
			// safe: the holder writes the same reconciled state.
			s.logger.WithField("corporate_number", corporateNumber).Info("sheet mirror skipped, lock held elsewhere")
			return nil
		}
		if err != nil {
			s.logger.WithField("corporate_number", corporateNumber).Warn("sheet lock unavailable, mirroring without it: " + err.Error())
		} else {
			defer lock.Release(context.Background())
		}
	}

	title, err := s.findOrCreateWorksheet(ctx, corporateNumber)
	if err != nil {
		return err
	}

	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetId, title, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear %q: %v", ErrSinkWriteFailed, title, err)
	}

	vr := &sheets.ValueRange{Values: buildMirrorRows(doc, roster, offices)}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetId, title+"!A1", vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: update %q: %v", ErrSinkWriteFailed, title, err)
	}
	return nil
}

// findOrCreateWorksheet resolves the worksheet for a corporate number.
// Lookup is by title first, then by the marker row every mirror writes
// ("法人番号" in column B, the number in column C), so a manually renamed
// tab is still found. Missing worksheets are created.
func (s *sheetSink) findOrCreateWorksheet(ctx context.Context, corporateNumber string) (string, error) {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetId).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: read spreadsheet metadata: %v", ErrSinkWriteFailed, err)
	}

	titles := make([]string, 0, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}

	for _, t := range titles {
		if t == corporateNumber {
			return t, nil
		}
	}

	for _, t := range titles {
		resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetId, t+"!A1:C60").Context(ctx).Do()
		if err != nil {
			continue
		}
		for _, row := range resp.Values {
			if len(row) >= 3 && cellString(row[1]) == "法人番号" && cellString(row[2]) == corporateNumber {
				return t, nil
			}
		}
	}

	title := uniqueTitle(corporateNumber, titles)
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    5000,
						ColumnCount: 6,
					},
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetId, req).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("%w: add worksheet %q: %v", ErrSinkWriteFailed, title, err)
	}
	return title, nil
}

// uniqueTitle returns base truncated to the sheet title limit, suffixed with
// _2, _3, ... until it collides with no existing title.
func uniqueTitle(base string, existing []string) string {
	safe := base
	if safe == "" {
		safe = "Company"
	}
	if runes := []rune(safe); len(runes) > maxSheetTitleLen {
		safe = string(runes[:maxSheetTitleLen])
	}

	taken := make(map[string]bool, len(existing))
	for _, t := range existing {
		taken[t] = true
	}
	if !taken[safe] {
		return safe
	}
	for idx := 2; ; idx++ {
		cand := safe + "_" + strconv.Itoa(idx)
		if !taken[cand] {
			return cand
		}
	}
}

// buildMirrorRows lays the document out as a vertical three-column form:
// section title, label, value. The first row doubles as the lookup marker.
func buildMirrorRows(doc *CompanyDocument, roster []RosterEntry, offices []OfficeEntry) [][]interface{} {
	var rows [][]interface{}

	addSection := func(title string, kv [][2]string) {
		for i, pair := range kv {
			sectionCell := ""
			if i == 0 {
				sectionCell = title
			}
			rows = append(rows, []interface{}{sectionCell, pair[0], pair[1]})
		}
	}

	addSection("◆ I. "+sectionIdentity, [][2]string{
		{"法人番号", doc.CorporateNumber()},
		{"会社名", doc.Identity["会社名"]},
		{"会社名かな", doc.Identity["会社名かな"]},
		{"英文企業名", doc.Identity["英文企業名"]},
		{"代表者名", doc.Identity["代表者名"]},
		{"代表者かな", doc.Identity["代表者かな"]},
		{"代表者年齢", doc.Identity["代表者年齢"]},
		{"代表者生年月日", doc.Identity["代表者生年月日"]},
		{"代表者出身大学", doc.Identity["代表者出身大学"]},
		{"郵便番号", doc.Identity["郵便番号"]},
		{"住所", doc.Identity["住所"]},
		{"電話番号", doc.Identity["電話番号"]},
		{"登記住所", doc.Identity["登記住所"]},
		{"FAX番号", doc.Identity["FAX番号"]},
		{"URL", doc.Identity["URL"]},
		{"創業", doc.Identity["創業"]},
		{"設立", doc.Identity["設立"]},
		{"資本金", doc.Identity["資本金"]},
		{"出資金", doc.Identity["出資金"]},
		{"会員数", doc.Identity["会員数"]},
		{"組合員数", doc.Identity["組合員数"]},
		{"上場市場", doc.Identity["上場市場"]},
		{"証券コード", doc.Identity["証券コード"]},
		{"決算期", doc.Identity["決算期"]},
	})

	addSection("◆ II. "+sectionFinancials, [][2]string{
		{"売上高", doc.Financials["売上高"]},
		{"純利益", doc.Financials["純利益"]},
		{"預金量", doc.Financials["預金量"]},
		{"従業員数", doc.Financials["従業員数"]},
		{"平均年齢", doc.Financials["平均年齢"]},
		{"平均年収", doc.Financials["平均年収"]},
		{"役員数", doc.Financials["役員数"]},
		{"株主数", doc.Financials["株主数"]},
		{"取引銀行", doc.Financials["取引銀行"]},
	})

	addSection("◆ III. "+sectionBusiness, [][2]string{
		{"業種", doc.Business["業種"]},
		{"事業内容", doc.Business["事業内容"]},
		{"主要事業", doc.Business["主要事業"]},
		{"事業エリア", doc.Business["事業エリア"]},
		{"系列", doc.Business["系列"]},
		{"販売先", doc.Business["販売先"]},
		{"仕入先", doc.Business["仕入先"]},
	})

	rosterKv := make([][2]string, 0, len(roster)*3)
	for i, entry := range roster {
		idx := strconv.Itoa(i + 1)
		rosterKv = append(rosterKv,
			[2]string{"役職名" + idx, entry.Position},
			[2]string{"役員名" + idx, entry.Name},
			[2]string{"ふりがな" + idx, entry.NameKana},
		)
	}
	if len(rosterKv) == 0 {
		rosterKv = [][2]string{{"", ""}}
	}
	addSection("◆ IV. "+sectionRoster, rosterKv)

	addSection("◆ V. "+sectionScale, [][2]string{
		{"事業所数", doc.Scale["事業所数"]},
		{"店舗数", doc.Scale["店舗数"]},
	})

	officeKv := make([][2]string, 0, len(offices)*5)
	for i, entry := range offices {
		idx := strconv.Itoa(i + 1)
		officeKv = append(officeKv,
			[2]string{"事業所名" + idx, entry.Name},
			[2]string{"郵便番号" + idx, entry.PostalCode},
			[2]string{"住所" + idx, entry.Address},
			[2]string{"電話番号" + idx, entry.Phone},
			[2]string{"扱い品目・業務内容" + idx, entry.BusinessContent},
		)
	}
	if len(officeKv) == 0 {
		officeKv = [][2]string{{"", ""}}
	}
	addSection("◆ VI. "+sectionOffices, officeKv)

	addSection("◆ VII. "+sectionURLs, [][2]string{
		{"会社概要ページURL", doc.URLs["会社概要ページURL"]},
		{"拠点・事業所ページURL", doc.URLs["拠点・事業所ページURL"]},
		{"組織図ページURL", doc.URLs["組織図ページURL"]},
		{"関係会社ページURL", doc.URLs["関係会社ページURL"]},
	})

	return rows
}
