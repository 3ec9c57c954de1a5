// run-research executes one research run synchronously and exits. Meant for
// cron jobs and manual reprocessing where the HTTP service is not running.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... GEMINI_API_KEY=... RESEARCH_SPREADSHEET_ID=... \
//     go run ./cmd/run-research -max 10 -sync=false
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/research_backend/config"
	"github.com/mmdatafocus/research_backend/models"
	"github.com/mmdatafocus/research_backend/research"
	"github.com/mmdatafocus/research_backend/utils"
)

func main() {
	sourceRange := flag.String("range", "", "source range override (default: configured range)")
	maxCompanies := flag.Int("max", 0, "cap on companies to process (0 = no cap)")
	syncToSheet := flag.Bool("sync", true, "mirror reconciled companies to the report spreadsheet")
	description := flag.String("desc", "manual run via run-research", "run description")
	pollInterval := flag.Duration("poll", 2*time.Second, "run status poll interval")
	flag.Parse()

	ctx := utils.SetCorrelationIdInContext(context.Background(), uuid.NewString())
	ctx = utils.SetTriggeredByInContext(ctx, "cli")

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	runner, err := research.NewDefaultRunner(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build runner: %v\n", err)
		os.Exit(1)
	}

	run, err := runner.StartRun(ctx, research.RunOptions{
		SourceRange:  *sourceRange,
		SyncToSheet:  *syncToSheet,
		MaxCompanies: *maxCompanies,
		Description:  *description,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to queue run: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("run %d queued\n", run.ID)

	// The runner processes on its own goroutine; poll the run row until it
	// reaches a terminal status.
	for {
		time.Sleep(*pollInterval)
		current, err := models.GetResearchRun(ctx, run.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read run %d: %v\n", run.ID, err)
			os.Exit(1)
		}
		fmt.Printf("run %d: %s (%d/%d)\n", current.ID, current.Status, current.ProcessedCount, current.TotalCount)
		if current.IsTerminal() {
			if summary, err := utils.MarshalToJSON(current); err == nil {
				fmt.Println(summary)
			}
			if current.ErrorLog != "" {
				fmt.Fprintln(os.Stderr, current.ErrorLog)
			}
			if current.Status != models.RunStatusCompleted {
				os.Exit(2)
			}
			return
		}
	}
}
