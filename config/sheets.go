package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var (
	sheetsService   *sheets.Service
	sheetsServiceMu sync.Mutex
)

// ResearchSpreadsheetID is the spreadsheet that holds both the company
// list (source) and the per-company report worksheets (sink).
func ResearchSpreadsheetID() string {
	return strings.TrimSpace(os.Getenv("RESEARCH_SPREADSHEET_ID"))
}

// ResearchSourceRange is the range the company list is read from.
func ResearchSourceRange() string {
	if v := strings.TrimSpace(os.Getenv("RESEARCH_SOURCE_RANGE")); v != "" {
		return v
	}
	return "会社リスト!A3:D"
}

// GetSheetsService returns a shared Sheets API service.
// Credential resolution order:
//  1. SHEETS_CREDENTIALS_JSON (service account JSON, required for writes)
//  2. RESEARCH_SHEETS_API_KEY (read-only access)
//  3. Application Default Credentials
func GetSheetsService(ctx context.Context) (*sheets.Service, error) {
	sheetsServiceMu.Lock()
	defer sheetsServiceMu.Unlock()
	if sheetsService != nil {
		return sheetsService, nil
	}

	if ResearchSpreadsheetID() == "" {
		return nil, errors.New("RESEARCH_SPREADSHEET_ID is required")
	}

	var opts []option.ClientOption
	if credJSON := strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_JSON")); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)), option.WithScopes(sheets.SpreadsheetsScope))
	} else if apiKey := strings.TrimSpace(os.Getenv("RESEARCH_SHEETS_API_KEY")); apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	sheetsService = svc
	return sheetsService, nil
}
