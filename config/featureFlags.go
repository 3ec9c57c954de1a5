package config

import (
	"os"
	"strings"
)

// ChangeLogEnabled controls whether company reconciliation records a
// ResearchHistory row for every scalar field that changes between two
// non-empty values. Disable when the audit trail is not needed.
//
// Set via env:
// - RESEARCH_CHANGE_LOG=false
func ChangeLogEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RESEARCH_CHANGE_LOG")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SinkWorkerCount is the size of the bounded pool used for mirroring
// companies to the report spreadsheet during a run.
//
// Set via env:
// - RESEARCH_SINK_WORKERS (default 3)
func SinkWorkerCount() int {
	n := intFromEnv("RESEARCH_SINK_WORKERS", 3)
	if n < 1 {
		return 1
	}
	return n
}
