package feed

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printforge/printflow_backend/config"
)

// readFeedUpload extracts and parses the uploaded xlsx feed from a multipart
// form field named "file".
func readFeedUpload(c *gin.Context) (*ParseResult, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return nil, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file upload"})
		return nil, false
	}
	defer file.Close()

	result, err := ParseFeed(file)
	if err != nil {
		var headerErr *HeaderError
		if errors.As(err, &headerErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":         "required columns not found",
				"headers_found": headerErr.HeadersFound,
			})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return result, true
}

// ReconcileHandler accepts a marketplace feed upload and returns the coverage
// report: which production-needed products the feed covers and which still
// need registration.
func ReconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := readFeedUpload(c)
		if !ok {
			return
		}

		entries, err := CoverageReport(c.Request.Context(), result.Rows)
		if err != nil {
			config.LogError(config.GetLogger(), "feed", "ReconcileHandler", "build coverage", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"entries":      entries,
			"feed_rows":    len(result.Rows),
			"total_rows":   result.TotalRows,
			"parse_errors": result.ParseErrors,
		})
	}
}

// FilteredProductionHandler accepts a feed upload and returns the production
// items restricted to feed-present articles. Nothing is persisted.
func FilteredProductionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := readFeedUpload(c)
		if !ok {
			return
		}

		items, err := FilteredProduction(c.Request.Context(), result.Rows)
		if err != nil {
			config.LogError(config.GetLogger(), "feed", "FilteredProductionHandler", "filter production", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":        items,
			"feed_rows":    len(result.Rows),
			"total_rows":   result.TotalRows,
			"parse_errors": result.ParseErrors,
		})
	}
}
