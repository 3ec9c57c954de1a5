// Package research implements the company enrichment pipeline: it reads the
// company list from a spreadsheet, asks a language model for a structured
// profile per company, normalizes the loosely-structured payload, reconciles
// it into the database and mirrors each company into a report worksheet.
package research

import (
	"context"
	"errors"
)

// Pipeline error taxonomy. Only ErrSourceUnavailable is fatal to a run;
// everything else is caught at the per-company boundary and logged.
var (
	ErrSourceUnavailable = errors.New("company list source unavailable")
	ErrExtractionFailed  = errors.New("company extraction failed")
	ErrSinkWriteFailed   = errors.New("report sheet write failed")
)

// SourceRecord is one row of the company list. CorporateNumber is the only
// required cell; rows without it are not candidates and are dropped before
// processing.
type SourceRecord struct {
	CorporateNumber string
	Name            string
	Address         string
	Note            string
}

// RosterEntry is one normalized executive roster record.
type RosterEntry struct {
	Position string
	Name     string
	NameKana string
}

// OfficeEntry is one normalized office/location record.
type OfficeEntry struct {
	Name            string
	PostalCode      string
	Address         string
	Phone           string
	BusinessContent string
}

// CompanySource reads the candidate company list.
type CompanySource interface {
	ReadCompanyList(ctx context.Context, readRange string) ([]SourceRecord, error)
}

// Extractor turns one source record into a structured company document.
// (nil, nil) means the model produced no usable document; the caller treats
// the record as skipped. A non-nil error is a transport-level failure.
type Extractor interface {
	ExtractCompany(ctx context.Context, rec SourceRecord) (*CompanyDocument, error)
}

// Sink mirrors a reconciled company into the report spreadsheet.
// Best-effort: errors are logged by the caller, never escalated.
type Sink interface {
	MirrorCompany(ctx context.Context, doc *CompanyDocument, roster []RosterEntry, offices []OfficeEntry) error
}
