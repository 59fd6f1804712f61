package moysklad

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/printforge/printflow_backend/models"
	"github.com/printforge/printflow_backend/syncsched"
	"github.com/printforge/printflow_backend/utils"
)

type triggerRequest struct {
	Force bool   `json:"force"`
	Kind  string `json:"kind"`
}

// Dispatcher is the slice of the sync scheduler the handlers drive.
type Dispatcher interface {
	Trigger(ctx context.Context, source string, kind string, force bool) error
	Cancel(source string)
}

// TriggerSyncHandler starts a product sync through the dispatcher. A refusal
// is reported with the reason; only a broken dispatcher is a 500.
func TriggerSyncHandler(dispatcher Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		kind := req.Kind
		if kind == "" {
			kind = models.SyncKindManual
		}
		if kind != models.SyncKindManual && kind != models.SyncKindScheduled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be manual or scheduled"})
			return
		}

		err := dispatcher.Trigger(c.Request.Context(), models.SyncSourceERP, kind, req.Force)
		switch {
		case err == nil:
			c.JSON(http.StatusAccepted, gin.H{"status": "started"})
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

// CancelSyncHandler cancels the in-flight product sync, if any.
func CancelSyncHandler(dispatcher Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		dispatcher.Cancel(models.SyncSourceERP)
		c.JSON(http.StatusOK, gin.H{"status": "cancel requested"})
	}
}

// SyncRunsHandler lists recent runs, newest first, optionally filtered by
// source and capped by limit.
func SyncRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		runs, err := models.ListSyncRuns(c.Request.Context(), c.Query("source"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// SyncRunDetailHandler returns one run with its per-item error records.
func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		run, err := models.GetSyncRunById(c.Request.Context(), uint(id))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "sync run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		errs, err := models.ListSyncErrors(c.Request.Context(), run.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "errors": errs})
	}
}
