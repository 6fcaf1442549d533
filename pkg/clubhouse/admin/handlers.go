package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/apierror"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
)

// Handler handles maintenance requests
type Handler struct {
	store store.Maintainer
}

// NewHandler creates a new admin handler
func NewHandler(s store.Maintainer) *Handler {
	return &Handler{store: s}
}

// GetStats returns entity and membership counts
// @Summary System statistics
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// CheckConsistency compares memberships against both index views and the
// cached member counts. Responds 200 either way; "consistent" says which.
// @Summary Check membership consistency
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/consistency [get]
func (h *Handler) CheckConsistency(c *gin.Context) {
	report, err := h.store.Verify(c.Request.Context())
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"consistent": report.Consistent(),
		"report":     report,
	})
}

// RebuildIndexes regenerates both index views from the memberships table
// @Summary Rebuild membership indexes
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{} "Storage unavailable"
// @Router /admin/rebuild-indexes [post]
func (h *Handler) RebuildIndexes(c *gin.Context) {
	result, err := h.store.RebuildIndexes(c.Request.Context())
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/consistency", h.CheckConsistency)
	rg.POST("/rebuild-indexes", h.RebuildIndexes)
}
