package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
)

// Mirror entities for the print-management service. Each row keeps the
// upstream identifier, a sync timestamp and the raw upstream payload for
// forensics.

const (
	PrinterStatePrinting = "printing"
	PrinterStateIdle     = "idle"
	PrinterStateOffline  = "offline"
	PrinterStatePaused   = "paused"
	PrinterStateError    = "error"
)

const (
	PrintJobStatusPrinting  = "printing"
	PrintJobStatusPaused    = "paused"
	PrintJobStatusCompleted = "completed"
	PrintJobStatusFailed    = "failed"
	PrintJobStatusCancelled = "cancelled"
)

// PrintFolder stores only the parent id, never a live parent pointer;
// traversal happens over an id -> folder arena with a visited set.
type PrintFolder struct {
	ID             uint       `gorm:"primary_key" json:"id"`
	RemoteId       string     `gorm:"uniqueIndex;size:64;not null" json:"remote_id"`
	ParentRemoteId string     `gorm:"index;size:64" json:"parent_remote_id"`
	Name           string     `gorm:"size:255" json:"name"`
	Depth          int        `json:"depth"`
	RawPayload     []byte     `gorm:"type:json" json:"raw_payload"`
	LastSyncedAt   *time.Time `json:"last_synced_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type PrintFile struct {
	ID             uint       `gorm:"primary_key" json:"id"`
	RemoteId       string     `gorm:"uniqueIndex;size:64;not null" json:"remote_id"`
	FolderRemoteId string     `gorm:"index;size:64" json:"folder_remote_id"`
	Name           string     `gorm:"size:255" json:"name"`
	SizeBytes      int64      `json:"size_bytes"`
	RawPayload     []byte     `gorm:"type:json" json:"raw_payload"`
	LastSyncedAt   *time.Time `json:"last_synced_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type PrintQueueItem struct {
	ID              uint       `gorm:"primary_key" json:"id"`
	RemoteId        string     `gorm:"uniqueIndex;size:64;not null" json:"remote_id"`
	PrinterRemoteId string     `gorm:"index;size:64" json:"printer_remote_id"`
	FileRemoteId    string     `gorm:"index;size:64" json:"file_remote_id"`
	Position        int        `json:"position"`
	RawPayload      []byte     `gorm:"type:json" json:"raw_payload"`
	LastSyncedAt    *time.Time `json:"last_synced_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PrintJob rows are keyed by the upstream job id; terminal states are
// absorbing, which makes webhook replays harmless.
type PrintJob struct {
	ID              uint       `gorm:"primary_key" json:"id"`
	RemoteJobId     string     `gorm:"uniqueIndex;size:64;not null" json:"remote_job_id"`
	PrinterRemoteId string     `gorm:"index;size:64" json:"printer_remote_id"`
	FileName        string     `gorm:"size:255" json:"file_name"`
	Status          string     `gorm:"size:20;not null" json:"status"`
	StartedAt       *time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	RawPayload      []byte     `gorm:"type:json" json:"raw_payload"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *PrintJob) IsTerminal() bool {
	return j.Status == PrintJobStatusCompleted || j.Status == PrintJobStatusFailed || j.Status == PrintJobStatusCancelled
}

// PrinterSnapshot is one telemetry observation per printer per sync call.
type PrinterSnapshot struct {
	ID              uint             `gorm:"primary_key" json:"id"`
	PrinterRemoteId string           `gorm:"index;size:64;not null" json:"printer_remote_id"`
	Name            string           `gorm:"size:255" json:"name"`
	State           string           `gorm:"size:20;not null" json:"state"`
	Percentage      decimal.Decimal  `gorm:"type:decimal(5,2);default:0" json:"percentage"`
	ElapsedSeconds  int64            `json:"elapsed_seconds"`
	JobStartTime    *time.Time       `json:"job_start_time"`
	JobEndEstimate  *time.Time       `json:"job_end_estimate"`
	IdleSince       *time.Time       `json:"idle_since"`
	NozzleTemp      *decimal.Decimal `gorm:"type:decimal(6,2)" json:"nozzle_temp"`
	BedTemp         *decimal.Decimal `gorm:"type:decimal(6,2)" json:"bed_temp"`
	AmbientTemp     *decimal.Decimal `gorm:"type:decimal(6,2)" json:"ambient_temp"`
	RawPayload      []byte           `gorm:"type:json" json:"raw_payload"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// PrintWebhookEvent persists every inbound webhook post, processed or not.
type PrintWebhookEvent struct {
	ID           uint       `gorm:"primary_key" json:"id"`
	WebhookId    string     `gorm:"index;size:64" json:"webhook_id"`
	Event        string     `gorm:"size:100" json:"event"`
	MappedEvent  string     `gorm:"size:50" json:"mapped_event"`
	EventTime    *time.Time `json:"event_time"`
	Payload      []byte     `gorm:"type:json" json:"payload"`
	Processed    bool       `gorm:"default:false" json:"processed"`
	ProcessError string     `gorm:"type:text" json:"process_error"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// LatestPrinterSnapshot returns nil when the printer has never been observed.
func LatestPrinterSnapshot(ctx context.Context, printerRemoteId string) (*PrinterSnapshot, error) {
	db := config.GetDB()
	var snap PrinterSnapshot
	err := db.WithContext(ctx).
		Where("printer_remote_id = ?", printerRemoteId).
		Order("id DESC").
		Take(&snap).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}
