package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/research_backend/config"
	"github.com/mmdatafocus/research_backend/utils"
	"gorm.io/gorm"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ResearchRun records one execution of the research pipeline. The run row is
// the source of truth for status: there is no in-memory worker registry, and
// the row is mutated only by the goroutine that owns the run. Once the status
// leaves "running" it is terminal.
type ResearchRun struct {
	ID             int        `gorm:"primary_key" json:"id"`
	Status         string     `gorm:"size:20;not null;index" json:"status"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	TotalCount     int        `json:"total_count"`
	ProcessedCount int        `json:"processed_count"`
	ErrorLog       string     `gorm:"type:text" json:"error_log"`

	// Effective configuration the run was started with.
	SourceRange   string `gorm:"size:200" json:"source_range"`
	SyncToSheet   bool   `json:"sync_to_sheet"`
	MaxCompanies  int    `json:"max_companies"`
	Description   string `gorm:"size:255" json:"description"`
	TriggeredBy   string `gorm:"size:20" json:"triggered_by"`
	CorrelationId string `gorm:"size:64" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *ResearchRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// CreateResearchRun inserts the run in "queued" state.
func CreateResearchRun(ctx context.Context, run *ResearchRun) (*ResearchRun, error) {
	db := config.GetDB()
	run.Status = RunStatusQueued
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// MarkRunRunning moves a queued run to "running" and stamps started_at.
func MarkRunRunning(ctx context.Context, db *gorm.DB, runId int) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Model(&ResearchRun{}).
		Where("id = ? AND status = ?", runId, RunStatusQueued).
		Updates(map[string]interface{}{
			"status":     RunStatusRunning,
			"started_at": &now,
		}).Error
}

// SetRunTotal fixes total_count once the (possibly capped) record list is known.
func SetRunTotal(ctx context.Context, db *gorm.DB, runId int, total int) error {
	return db.WithContext(ctx).Model(&ResearchRun{}).
		Where("id = ? AND status = ?", runId, RunStatusRunning).
		Update("total_count", total).Error
}

// SetRunProgress updates the processed counter mid-run.
func SetRunProgress(ctx context.Context, db *gorm.DB, runId int, processed int) error {
	return db.WithContext(ctx).Model(&ResearchRun{}).
		Where("id = ? AND status = ?", runId, RunStatusRunning).
		Update("processed_count", processed).Error
}

// FinishRun moves a run to a terminal status. The status guard makes the
// transition idempotent: a run already terminal is never rewritten.
func FinishRun(ctx context.Context, db *gorm.DB, runId int, status string, processed int, total int, errorLog string) error {
	if status != RunStatusCompleted && status != RunStatusFailed {
		return errors.New("finish status must be completed or failed")
	}
	now := time.Now().UTC()
	return db.WithContext(ctx).Model(&ResearchRun{}).
		Where("id = ? AND status IN ?", runId, []string{RunStatusQueued, RunStatusRunning}).
		Updates(map[string]interface{}{
			"status":          status,
			"completed_at":    &now,
			"processed_count": processed,
			"total_count":     total,
			"error_log":       errorLog,
		}).Error
}

// GetResearchRun reads one run by id.
func GetResearchRun(ctx context.Context, runId int) (*ResearchRun, error) {
	db := config.GetDB()
	var result ResearchRun

	err := db.WithContext(ctx).First(&result, runId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetRecentResearchRuns lists runs, newest first.
func GetRecentResearchRuns(ctx context.Context, limit int) ([]*ResearchRun, error) {
	db := config.GetDB()
	var results []*ResearchRun

	if limit <= 0 {
		limit = 20
	}
	err := db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
