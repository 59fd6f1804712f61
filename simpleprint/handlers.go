package simpleprint

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/printforge/printflow_backend/models"
	"github.com/printforge/printflow_backend/syncsched"
)

// fullSyncLatch carries the full-sync request from the HTTP handler to the
// runner the dispatcher launches; it resets when the runner consumes it.
var fullSyncLatch atomic.Bool

// ConsumeFullSyncRequest reports whether a full sync was requested since the
// previous run and clears the request.
func ConsumeFullSyncRequest() bool {
	return fullSyncLatch.Swap(false)
}

// Dispatcher is the slice of the sync scheduler the file-sync handler drives.
type Dispatcher interface {
	Trigger(ctx context.Context, source string, kind string, force bool) error
}

type fileSyncRequest struct {
	Force    bool `json:"force"`
	FullSync bool `json:"full_sync"`
}

// TriggerFileSyncHandler starts a file sync through the dispatcher.
func TriggerFileSyncHandler(dispatcher Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fileSyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		if req.FullSync {
			fullSyncLatch.Store(true)
		}

		err := dispatcher.Trigger(c.Request.Context(), models.SyncSourcePrintService, models.SyncKindManual, req.Force)
		if err != nil && req.FullSync {
			// A refused trigger must not leave the request armed for the
			// next scheduled run.
			fullSyncLatch.Store(false)
		}
		switch {
		case err == nil:
			c.JSON(http.StatusAccepted, gin.H{"status": "started", "full_sync": req.FullSync})
		case errors.Is(err, syncsched.ErrSyncAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
		case errors.Is(err, syncsched.ErrCooldownActive):
			var cooldown *syncsched.CooldownError
			resp := gin.H{"error": err.Error()}
			if errors.As(err, &cooldown) {
				resp["retry_after_seconds"] = cooldown.RetryAfterSeconds()
			}
			c.JSON(http.StatusTooManyRequests, resp)
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

// TriggerPrinterSyncHandler records a telemetry snapshot per printer. The
// call is synchronous; it is bounded by the printer count, not the catalog.
func TriggerPrinterSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := RunPrinterSync(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// TimelineStatusHandler exposes the timeline-invalidated flag for pollers.
func TimelineStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invalidated, err := TimelineInvalidated()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"timeline_invalidated": invalidated})
	}
}
