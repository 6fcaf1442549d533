package importexport

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/apierror"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles import/export requests
type Handler struct {
	store store.MembershipStore
}

// NewHandler creates a new import/export handler
func NewHandler(s store.MembershipStore) *Handler {
	return &Handler{store: s}
}

// ImportRequest represents an import request
type ImportRequest struct {
	Students []ExportStudent `json:"students"`
	Clubs    []ExportClub    `json:"clubs"`
}

// Export exports all clubs, students and memberships as JSON
// @Summary Export data
// @Tags importexport
// @Produce json
// @Success 200 {object} Snapshot
// @Router /export [get]
func (h *Handler) Export(c *gin.Context) {
	snap, err := BuildSnapshot(c.Request.Context(), h.store, time.Now().UTC())
	if err != nil {
		apierror.Abort(c, err)
		return
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=clubhouse-export.json")
	}
	c.JSON(http.StatusOK, snap)
}

// Import loads students, clubs and memberships from an export
// @Summary Import data
// @Tags importexport
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Export to load"
// @Success 200 {object} ImportResult
// @Router /import [post]
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err.Error())
		return
	}
	if len(req.Students) == 0 && len(req.Clubs) == 0 {
		apierror.BadRequest(c, "Nothing to import")
		return
	}

	result := ApplySnapshot(c.Request.Context(), h.store, &Snapshot{
		Students: req.Students,
		Clubs:    req.Clubs,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// ExportRoster returns the club roster as an xlsx workbook
// @Summary Download club roster
// @Tags importexport
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Club ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]interface{} "Club not found"
// @Router /clubs/{id}/roster.xlsx [get]
func (h *Handler) ExportRoster(c *gin.Context) {
	ctx := c.Request.Context()
	club, err := h.store.GetClub(ctx, c.Param("id"))
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	roster, err := h.store.Roster(ctx, club.ID, store.RosterOptions{Sort: store.SortByName})
	if err != nil {
		apierror.Abort(c, err)
		return
	}

	var buf bytes.Buffer
	if err := WriteRosterXLSX(&buf, club, roster); err != nil {
		apierror.Abort(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=roster-%s.xlsx", club.ID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/export", h.Export)
	rg.POST("/import", h.Import)
	rg.GET("/clubs/:id/roster.xlsx", h.ExportRoster)
}
