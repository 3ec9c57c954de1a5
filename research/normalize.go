package research

import (
	"strconv"
	"strings"
)

// Repeating-group scan bounds. The model sometimes leaves low indices blank
// while still filling higher ones, so scanning must not stop at the first
// empty index before the floor is reached. The ceiling bounds worst-case
// scans on garbage output.
const (
	rosterScanFloor = 5
	officeScanFloor = 3
	scanCeiling     = 20
)

var zenkakuDigits = strings.NewReplacer(
	"0", "０", "1", "１", "2", "２", "3", "３", "4", "４",
	"5", "５", "6", "６", "7", "７", "8", "８", "9", "９",
)

// toZenkaku renders an index with full-width digits (e.g. 12 -> １２).
func toZenkaku(i int) string {
	return zenkakuDigits.Replace(strconv.Itoa(i))
}

// pick probes one field of one index under both digit encodings and returns
// the first non-empty hit. The model renders index suffixes in ASCII or
// full-width digits interchangeably, even within one document.
func pick(src map[string]string, base string, i int) string {
	if v := src[base+strconv.Itoa(i)]; v != "" {
		return v
	}
	return src[base+toZenkaku(i)]
}

// ExtractRoster recovers the ordered executive roster from the document's
// flat indexed keys. An index contributes an entry when any of its fields is
// non-empty; the scan stops at the first fully-empty index once the floor has
// been scanned.
func ExtractRoster(doc *CompanyDocument) []RosterEntry {
	src := doc.Roster
	var out []RosterEntry
	for i := 1; i <= scanCeiling; i++ {
		entry := RosterEntry{
			Position: pick(src, "役職名", i),
			Name:     pick(src, "役員名", i),
			NameKana: pick(src, "ふりがな", i),
		}
		if entry.Position == "" && entry.Name == "" && entry.NameKana == "" {
			if i >= rosterScanFloor {
				break
			}
			continue
		}
		out = append(out, entry)
	}
	return out
}

// ExtractOffices recovers the ordered office list; same scan shape as
// ExtractRoster with its own floor.
func ExtractOffices(doc *CompanyDocument) []OfficeEntry {
	src := doc.Offices
	var out []OfficeEntry
	for i := 1; i <= scanCeiling; i++ {
		entry := OfficeEntry{
			Name:            pick(src, "事業所名", i),
			PostalCode:      pick(src, "郵便番号", i),
			Address:         pick(src, "住所", i),
			Phone:           pick(src, "電話番号", i),
			BusinessContent: pick(src, "扱い品目・業務内容", i),
		}
		if entry.Name == "" && entry.PostalCode == "" && entry.Address == "" && entry.Phone == "" && entry.BusinessContent == "" {
			if i >= officeScanFloor {
				break
			}
			continue
		}
		out = append(out, entry)
	}
	return out
}
