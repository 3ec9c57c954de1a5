package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/research_backend/config"
)

// ResearchHistory is the append-only audit trail of scalar corrections.
// A row is written only when a field moves between two non-empty values;
// filling a blank (or blanking a value) is not a correction and is skipped.
type ResearchHistory struct {
	ID              int       `gorm:"primary_key" json:"id"`
	CorporateNumber string    `gorm:"size:13;index;not null" json:"corporate_number"`
	ChangedField    string    `gorm:"size:100;not null" json:"changed_field"`
	OldValue        string    `gorm:"type:text" json:"old_value"`
	NewValue        string    `gorm:"type:text" json:"new_value"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// GetResearchHistories lists history rows for one company, newest first.
func GetResearchHistories(ctx context.Context, corporateNumber string, limit int) ([]*ResearchHistory, error) {
	db := config.GetDB()
	var results []*ResearchHistory

	if limit <= 0 {
		limit = 100
	}
	err := db.WithContext(ctx).
		Where("corporate_number = ?", corporateNumber).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
