package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/research_backend/config"
	"github.com/mmdatafocus/research_backend/models"
	"github.com/mmdatafocus/research_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunOptions is the caller-facing run configuration. Zero values fall back
// to the configured defaults.
type RunOptions struct {
	SourceRange  string
	SyncToSheet  bool
	MaxCompanies int
	Description  string
}

// Runner drives research runs. One goroutine owns each run from queued to a
// terminal status; the run row is the only shared state.
type Runner struct {
	db        *gorm.DB
	logger    *logrus.Logger
	source    CompanySource
	extractor Extractor
	sink      Sink
}

func NewRunner(db *gorm.DB, logger *logrus.Logger, source CompanySource, extractor Extractor, sink Sink) *Runner {
	return &Runner{db: db, logger: logger, source: source, extractor: extractor, sink: sink}
}

// NewDefaultRunner wires the runner against the configured Sheets, Gemini
// and Redis clients.
func NewDefaultRunner(ctx context.Context) (*Runner, error) {
	logger := config.GetLogger()

	sheetsSvc, err := config.GetSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	genaiClient, err := config.GetGenAIClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	spreadsheetId := config.ResearchSpreadsheetID()
	return NewRunner(
		config.GetDB(),
		logger,
		NewSheetSource(sheetsSvc, spreadsheetId),
		NewGeminiExtractor(genaiClient, config.GeminiModel(), logger),
		NewSheetSink(sheetsSvc, spreadsheetId, config.GetRedisLock(), logger),
	), nil
}

// StartRun records a queued run and processes it on a detached goroutine.
// The returned run is the queued row; callers poll it for progress.
func (r *Runner) StartRun(ctx context.Context, opts RunOptions) (*models.ResearchRun, error) {
	if opts.SourceRange == "" {
		opts.SourceRange = config.ResearchSourceRange()
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	triggeredBy, _ := utils.GetTriggeredByFromContext(ctx)
	run := &models.ResearchRun{
		SourceRange:   opts.SourceRange,
		SyncToSheet:   opts.SyncToSheet,
		MaxCompanies:  opts.MaxCompanies,
		Description:   opts.Description,
		TriggeredBy:   triggeredBy,
		CorrelationId: correlationId,
	}
	run, err := models.CreateResearchRun(ctx, run)
	if err != nil {
		return nil, err
	}

	// The run outlives the HTTP request: detach from the caller's context
	// but carry the correlation id forward for log continuity.
	runCtx := context.Background()
	if correlationId != "" {
		runCtx = utils.SetCorrelationIdInContext(runCtx, correlationId)
	}
	go r.processRun(runCtx, run.ID, opts)

	return run, nil
}

func (r *Runner) processRun(ctx context.Context, runId int, opts RunOptions) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	log := r.logger.WithFields(logrus.Fields{
		"module":         "research",
		"run_id":         runId,
		"correlation_id": correlationId,
	})

	processed := 0
	total := 0
	var errorLines []string

	defer func() {
		if rec := recover(); rec != nil {
			log.Error(fmt.Sprintf("run panicked: %v", rec))
			errorLines = append(errorLines, fmt.Sprintf("panic: %v", rec))
			r.finishRun(ctx, runId, models.RunStatusFailed, processed, total, errorLines, correlationId)
		}
	}()

	if err := models.MarkRunRunning(ctx, r.db, runId); err != nil {
		log.Error("could not mark run running: " + err.Error())
		return
	}
	log.Info("research run started")

	records, err := r.source.ReadCompanyList(ctx, opts.SourceRange)
	if err != nil {
		// No record list means no per-record isolation is possible; the
		// whole run fails.
		log.Error("company list unavailable: " + err.Error())
		errorLines = append(errorLines, err.Error())
		r.finishRun(ctx, runId, models.RunStatusFailed, processed, total, errorLines, correlationId)
		return
	}

	if opts.MaxCompanies > 0 && len(records) > opts.MaxCompanies {
		records = records[:opts.MaxCompanies]
	}
	total = len(records)
	if err := models.SetRunTotal(ctx, r.db, runId, total); err != nil {
		log.Warn("could not record run total: " + err.Error())
	}

	mirror := r.startMirrorPool(ctx, log, opts.SyncToSheet)

	for _, rec := range records {
		doc, roster, offices, err := r.processRecord(ctx, rec)
		if err != nil {
			log.WithField("corporate_number", rec.CorporateNumber).Warn("record skipped: " + err.Error())
			errorLines = append(errorLines, rec.CorporateNumber+": "+err.Error())
			continue
		}
		processed++
		if err := models.SetRunProgress(ctx, r.db, runId, processed); err != nil {
			log.Warn("could not record run progress: " + err.Error())
		}
		mirror.submit(doc, roster, offices)
	}

	mirror.wait()

	r.finishRun(ctx, runId, models.RunStatusCompleted, processed, total, errorLines, correlationId)
	log.WithFields(logrus.Fields{"processed": processed, "total": total, "skipped": total - processed}).Info("research run completed")
}

// processRecord runs one company through extraction and reconciliation.
// Every failure is reported to the caller as a skip reason; only the caller
// decides what is fatal.
func (r *Runner) processRecord(ctx context.Context, rec SourceRecord) (*CompanyDocument, []RosterEntry, []OfficeEntry, error) {
	doc, err := r.extractor.ExtractCompany(ctx, rec)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("extraction: %w", err)
	}
	if doc == nil {
		return nil, nil, nil, fmt.Errorf("%w: no usable document", ErrExtractionFailed)
	}

	_, roster, offices, err := ReconcileDocument(ctx, r.db, doc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reconciliation: %w", err)
	}
	return doc, roster, offices, nil
}

func (r *Runner) finishRun(ctx context.Context, runId int, status string, processed int, total int, errorLines []string, correlationId string) {
	if err := models.FinishRun(ctx, r.db, runId, status, processed, total, strings.Join(errorLines, "\n")); err != nil {
		config.LogError(r.logger, "research", "finishRun", "persist terminal status", runId, err)
		return
	}
	if err := config.PublishRunEvent(ctx, config.RunEvent{
		RunId:          runId,
		Status:         status,
		TotalCount:     total,
		ProcessedCount: processed,
		FinishedAt:     time.Now().UTC(),
		CorrelationId:  correlationId,
	}); err != nil {
		r.logger.WithField("run_id", runId).Warn("run event not published: " + err.Error())
	}
}

// mirrorPool fans sheet mirroring out to a small fixed worker set. Mirror
// failures are logged and dropped; the database write already succeeded.
type mirrorPool struct {
	jobs chan mirrorJob
	wg   sync.WaitGroup
}

type mirrorJob struct {
	doc     *CompanyDocument
	roster  []RosterEntry
	offices []OfficeEntry
}

func (r *Runner) startMirrorPool(ctx context.Context, log *logrus.Entry, enabled bool) *mirrorPool {
	p := &mirrorPool{}
	if !enabled || r.sink == nil {
		return p
	}

	workers := config.SinkWorkerCount()
	p.jobs = make(chan mirrorJob, workers)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				if err := r.sink.MirrorCompany(ctx, job.doc, job.roster, job.offices); err != nil {
					log.WithField("corporate_number", job.doc.CorporateNumber()).Warn("sheet mirror failed: " + err.Error())
				}
			}
		}()
	}
	return p
}

func (p *mirrorPool) submit(doc *CompanyDocument, roster []RosterEntry, offices []OfficeEntry) {
	if p.jobs == nil {
		return
	}
	p.jobs <- mirrorJob{doc: doc, roster: roster, offices: offices}
}

func (p *mirrorPool) wait() {
	if p.jobs == nil {
		return
	}
	close(p.jobs)
	p.wg.Wait()
}
