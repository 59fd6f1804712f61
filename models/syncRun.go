package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/utils"
)

const (
	SyncRunStatusPending   = "pending"
	SyncRunStatusSuccess   = "success"
	SyncRunStatusFailed    = "failed"
	SyncRunStatusPartial   = "partial"
	SyncRunStatusCancelled = "cancelled"
)

const (
	SyncKindManual    = "manual"
	SyncKindScheduled = "scheduled"
)

const (
	SyncSourceERP          = "erp"
	SyncSourcePrintService = "print_service"
)

// SyncRun tracks one execution of a sync against one upstream. Created in
// pending by the orchestrator, mutated only by it, finalized exactly once.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Kind          string     `gorm:"size:20;not null" json:"kind"`
	Source        string     `gorm:"index;size:20;not null" json:"source"`
	Status        string     `gorm:"index;size:20;not null" json:"status"`
	CorrelationId string     `gorm:"size:64" json:"correlation_id"`
	Total         int        `json:"total"`
	Synced        int        `json:"synced"`
	Failed        int        `json:"failed"`
	Deleted       int        `json:"deleted"`
	CurrentItem   string     `gorm:"size:255" json:"current_item"`
	ErrorDetails  string     `gorm:"type:text" json:"error_details"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncErrorRecord keeps the forensics for a single failed item inside a run.
type SyncErrorRecord struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	EntityType  string    `gorm:"size:50" json:"entity_type"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// HasPendingSyncRun reports whether a run of the given source is still open.
// A pending run acts as a mutex: a new run is refused while one exists.
func HasPendingSyncRun(ctx context.Context, source string) (bool, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&SyncRun{}).
		Where("source = ? AND status = ?", source, SyncRunStatusPending).
		Count(&count).Error
	return count > 0, err
}

// LastSuccessfulSyncAt returns the finish time of the most recent successful
// run for the source, or nil when there is none.
func LastSuccessfulSyncAt(ctx context.Context, source string) (*time.Time, error) {
	db := config.GetDB()
	var run SyncRun
	err := db.WithContext(ctx).
		Where("source = ? AND status = ? AND finished_at IS NOT NULL", source, SyncRunStatusSuccess).
		Order("finished_at DESC").
		Take(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return run.FinishedAt, nil
}

// LastSyncStartedAt returns the start time of the most recent run regardless
// of outcome; the periodic trigger uses it for its self-skip.
func LastSyncStartedAt(ctx context.Context, source string) (*time.Time, error) {
	db := config.GetDB()
	var run SyncRun
	err := db.WithContext(ctx).
		Where("source = ? AND started_at IS NOT NULL", source).
		Order("started_at DESC").
		Take(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return run.StartedAt, nil
}

func GetSyncRunById(ctx context.Context, id uint) (*SyncRun, error) {
	db := config.GetDB()
	var run SyncRun
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func ListSyncRuns(ctx context.Context, source string, limit int) ([]SyncRun, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&SyncRun{}).Order("id DESC").Limit(limit)
	if source != "" {
		query = query.Where("source = ?", source)
	}
	var runs []SyncRun
	err := query.Find(&runs).Error
	return runs, err
}

func ListSyncErrors(ctx context.Context, runId uint) ([]SyncErrorRecord, error) {
	db := config.GetDB()
	var errs []SyncErrorRecord
	err := db.WithContext(ctx).Where("sync_run_id = ?", runId).Order("id").Find(&errs).Error
	return errs, err
}

// CreateSyncError records a per-item failure; it never aborts the caller.
func CreateSyncError(ctx context.Context, db *gorm.DB, runId uint, entityType string, externalId string, code string, message string, payload []byte, retryable bool) error {
	rec := SyncErrorRecord{
		SyncRunId:   runId,
		EntityType:  entityType,
		ExternalId:  externalId,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	return db.WithContext(ctx).Create(&rec).Error
}
