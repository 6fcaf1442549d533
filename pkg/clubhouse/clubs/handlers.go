package clubs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/apierror"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/mikepea/clubhouse/pkg/clubhouse/validation"
)

// Handler handles club-related requests
type Handler struct {
	store store.MembershipStore
}

// NewHandler creates a new clubs handler
func NewHandler(s store.MembershipStore) *Handler {
	validation.RegisterGin()
	return &Handler{store: s}
}

// CreateClubRequest represents the request to create a club
type CreateClubRequest struct {
	Name        string `json:"name" binding:"required,personname"`
	Description string `json:"description" binding:"max=2000"`
	Category    string `json:"category" binding:"max=100"`
	MeetingTime string `json:"meeting_time" binding:"max=100"`
}

// UpdateClubRequest represents the request to update a club.
// Omitted fields are left unchanged.
type UpdateClubRequest struct {
	Name        *string `json:"name" binding:"omitempty,personname"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Category    *string `json:"category" binding:"omitempty,max=100"`
	MeetingTime *string `json:"meeting_time" binding:"omitempty,max=100"`
}

// List returns all clubs, optionally filtered by ?search=
// @Summary List clubs
// @Description Get all clubs; search matches name or description, ignoring case
// @Tags clubs
// @Produce json
// @Param search query string false "Substring to match"
// @Success 200 {object} map[string]interface{}
// @Router /clubs [get]
func (h *Handler) List(c *gin.Context) {
	clubs, err := h.store.SearchClubs(c.Request.Context(), c.Query("search"))
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clubs": clubs})
}

// Create creates a new club with no members
// @Summary Create a club
// @Tags clubs
// @Accept json
// @Produce json
// @Param request body CreateClubRequest true "Club details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Router /clubs [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err.Error())
		return
	}

	club, err := h.store.CreateClub(c.Request.Context(), store.ClubFields{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		MeetingTime: req.MeetingTime,
	})
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "club": club})
}

// Get returns a specific club
// @Summary Get a club
// @Tags clubs
// @Produce json
// @Param id path string true "Club ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Club not found"
// @Router /clubs/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	club, err := h.store.GetClub(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "club": club})
}

// Update merges the provided fields into a club
// @Summary Update a club
// @Tags clubs
// @Accept json
// @Produce json
// @Param id path string true "Club ID"
// @Param request body UpdateClubRequest true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Club not found"
// @Router /clubs/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err.Error())
		return
	}

	club, err := h.store.UpdateClub(c.Request.Context(), c.Param("id"), store.ClubUpdate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		MeetingTime: req.MeetingTime,
	})
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "club": club})
}

// Delete deletes a club and all of its memberships
// @Summary Delete a club
// @Tags clubs
// @Produce json
// @Param id path string true "Club ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Club not found"
// @Router /clubs/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.DeleteClub(c.Request.Context(), c.Param("id")); err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Club deleted"})
}

// RegisterRoutes registers club routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
