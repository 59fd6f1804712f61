package simpleprint

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/models"
)

// Internal event taxonomy. Unknown upstream events are stored as unknown and
// change no state.
const (
	EventJobStarted   = "job_started"
	EventJobCompleted = "job_completed"
	EventJobPaused    = "job_paused"
	EventJobResumed   = "job_resumed"
	EventJobFailed    = "job_failed"
	EventQueueChanged = "queue_changed"
	EventPrinterState = "printer_state"
	EventTest         = "test"
	EventUnknown      = "unknown"
)

const timelineInvalidatedKey = "simpleprint:timeline_invalidated"
const webhookTokenHeader = "X-SP-Token"

// MapEvent folds an upstream event name into the internal taxonomy.
func MapEvent(event string) string {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "job.started", "print_started", "job_started":
		return EventJobStarted
	case "job.done", "job.completed", "print_done", "job_completed":
		return EventJobCompleted
	case "job.paused", "print_paused", "job_paused":
		return EventJobPaused
	case "job.resumed", "print_resumed", "job_resumed":
		return EventJobResumed
	case "job.failed", "print_failure", "job_failed":
		return EventJobFailed
	case "queue.changed", "queue_changed":
		return EventQueueChanged
	case "printer.state", "printer.state_changed", "printer_state":
		return EventPrinterState
	case "test", "ping", "webhook.test":
		return EventTest
	default:
		return EventUnknown
	}
}

// WebhookHandler receives print-service webhook posts. Every envelope is
// persisted before processing; job events also move the local PrintJob row.
// Ordering is not guaranteed upstream, so terminal job states absorb.
func WebhookHandler() gin.HandlerFunc {
	secret := strings.TrimSpace(os.Getenv("SIMPLEPRINT_WEBHOOK_SECRET"))

	return func(c *gin.Context) {
		if secret != "" {
			token := c.GetHeader(webhookTokenHeader)
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
				return
			}
		}

		var envelope WebhookEnvelope
		if err := c.ShouldBindJSON(&envelope); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		record, err := ProcessWebhook(c.Request.Context(), envelope)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "event": record.MappedEvent})
	}
}

// ProcessWebhook persists the envelope and applies its effect. The returned
// record carries the mapped event and the processing outcome.
func ProcessWebhook(ctx context.Context, envelope WebhookEnvelope) (*models.PrintWebhookEvent, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	mapped := MapEvent(envelope.Event)
	record := models.PrintWebhookEvent{
		WebhookId:   envelope.WebhookId,
		Event:       envelope.Event,
		MappedEvent: mapped,
		EventTime:   envelope.Timestamp,
		Payload:     envelope.Data,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		config.LogError(logger, "simpleprint", "ProcessWebhook", "persist event", envelope.Event, err)
		return nil, err
	}

	if err := applyWebhookEffect(ctx, db, mapped, envelope); err != nil {
		record.ProcessError = err.Error()
		db.WithContext(ctx).Model(&models.PrintWebhookEvent{}).Where("id = ?", record.ID).
			Updates(map[string]any{"process_error": record.ProcessError})
		config.LogError(logger, "simpleprint", "ProcessWebhook", "apply event", mapped, err)
		return &record, nil
	}

	record.Processed = true
	db.WithContext(ctx).Model(&models.PrintWebhookEvent{}).Where("id = ?", record.ID).
		Updates(map[string]any{"processed": true})
	return &record, nil
}

func applyWebhookEffect(ctx context.Context, db *gorm.DB, mapped string, envelope WebhookEnvelope) error {
	switch mapped {
	case EventJobStarted, EventJobCompleted, EventJobPaused, EventJobResumed, EventJobFailed:
		if err := applyJobEvent(ctx, db, mapped, envelope); err != nil {
			return err
		}
	case EventQueueChanged:
		if err := applyQueueEvent(ctx, db, envelope); err != nil {
			return err
		}
	case EventPrinterState:
		// No local row to move; the flag below tells consumers to refetch.
	case EventTest, EventUnknown:
		return nil
	}
	invalidateTimeline()
	return nil
}

// applyQueueEvent rewrites the mirrored queue of the printer named in the
// payload. An envelope without a printer id is stored but changes nothing.
func applyQueueEvent(ctx context.Context, db *gorm.DB, envelope WebhookEnvelope) error {
	var data struct {
		Printer string `json:"printer"`
		Queue   []struct {
			Id   string `json:"id"`
			File string `json:"file"`
		} `json:"queue"`
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return err
	}
	if data.Printer == "" {
		return nil
	}

	syncedAt := time.Now()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("printer_remote_id = ?", data.Printer).Delete(&models.PrintQueueItem{}).Error; err != nil {
			return err
		}
		for i, entry := range data.Queue {
			item := models.PrintQueueItem{
				RemoteId:        entry.Id,
				PrinterRemoteId: data.Printer,
				FileRemoteId:    entry.File,
				Position:        i + 1,
				RawPayload:      envelope.Data,
				LastSyncedAt:    &syncedAt,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func applyJobEvent(ctx context.Context, db *gorm.DB, mapped string, envelope WebhookEnvelope) error {
	var data WebhookJobData
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return err
		}
	}
	if data.JobId == "" {
		return nil
	}

	var job models.PrintJob
	err := db.WithContext(ctx).Where("remote_job_id = ?", data.JobId).Take(&job).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == gorm.ErrRecordNotFound {
		job = models.PrintJob{RemoteJobId: data.JobId}
	}

	// Replays of non-terminal events after a terminal one are ignored.
	if job.ID != 0 && job.IsTerminal() {
		return nil
	}

	eventTime := envelope.Timestamp
	if eventTime == nil {
		now := time.Now()
		eventTime = &now
	}

	if data.Printer != "" {
		job.PrinterRemoteId = data.Printer
	}
	if data.FileName != "" {
		job.FileName = data.FileName
	}
	job.RawPayload = envelope.Data

	switch mapped {
	case EventJobStarted:
		job.Status = models.PrintJobStatusPrinting
		job.StartedAt = eventTime
	case EventJobPaused:
		job.Status = models.PrintJobStatusPaused
	case EventJobResumed:
		job.Status = models.PrintJobStatusPrinting
	case EventJobCompleted:
		job.Status = models.PrintJobStatusCompleted
		job.FinishedAt = eventTime
	case EventJobFailed:
		job.Status = models.PrintJobStatusFailed
		job.FinishedAt = eventTime
	}

	return db.WithContext(ctx).Save(&job).Error
}

// invalidateTimeline sets a short-lived flag consumers poll to know the
// printer timeline view is stale.
func invalidateTimeline() {
	if err := config.SetRedisValue(timelineInvalidatedKey, time.Now().Format(time.RFC3339), time.Hour); err != nil {
		config.LogError(config.GetLogger(), "simpleprint", "invalidateTimeline", "set redis flag", nil, err)
	}
}

// TimelineInvalidated reports whether the flag is currently set.
func TimelineInvalidated() (bool, error) {
	_, found, err := config.GetRedisValue(timelineInvalidatedKey)
	return found, err
}
