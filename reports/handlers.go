package reports

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printforge/printflow_backend/models"
)

type buildListRequest struct {
	MinPriority    int   `json:"min_priority"`
	AssortmentMode *bool `json:"assortment_mode"`
}

// BuildProductionListHandler builds and persists a new production list from
// the current candidates.
func BuildProductionListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := buildListRequest{MinPriority: 20}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		assortment := true
		if req.AssortmentMode != nil {
			assortment = *req.AssortmentMode
		}

		list, err := models.BuildProductionList(c.Request.Context(), models.BuildProductionListOptions{
			MinPriority:    req.MinPriority,
			AssortmentMode: assortment,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, list)
	}
}

// LatestProductionListHandler returns the newest persisted list.
func LatestProductionListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := models.GetLatestProductionList(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if list == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no production list built yet"})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}
