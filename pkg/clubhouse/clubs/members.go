package clubs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/apierror"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
)

// AddMemberRequest represents a request to add a member.
// Role defaults to Member.
type AddMemberRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Role      string `json:"role" binding:"omitempty,clubrole"`
}

// UpdateMemberRequest represents a request to change a member's role
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required,clubrole"`
}

// ListMembers returns the club roster
// @Summary List club members
// @Tags clubs
// @Produce json
// @Param id path string true "Club ID"
// @Param role query string false "Only members with this role"
// @Param sort query string false "name (default) or join_date"
// @Success 200 {object} map[string]interface{}
// @Router /clubs/{id}/members [get]
func (h *Handler) ListMembers(c *gin.Context) {
	opts := store.RosterOptions{Sort: store.SortByName}
	if role := c.Query("role"); role != "" {
		if !models.IsValidRole(role) {
			apierror.BadRequest(c, "Invalid role")
			return
		}
		opts.Role = models.Role(role)
	}
	switch sort := c.DefaultQuery("sort", string(store.SortByName)); store.RosterSort(sort) {
	case store.SortByName, store.SortByJoinDate:
		opts.Sort = store.RosterSort(sort)
	default:
		apierror.BadRequest(c, "sort must be name or join_date")
		return
	}

	roster, err := h.store.Roster(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "members": roster, "count": len(roster)})
}

// AddMember adds a student to a club
// @Summary Add a club member
// @Tags clubs
// @Accept json
// @Produce json
// @Param id path string true "Club ID"
// @Param request body AddMemberRequest true "Student and role"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Already a member or invalid role"
// @Failure 404 {object} map[string]interface{} "Club or student not found"
// @Router /clubs/{id}/members [post]
func (h *Handler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err.Error())
		return
	}
	role := models.DefaultRole
	if req.Role != "" {
		role = models.Role(req.Role)
	}

	ctx := c.Request.Context()
	clubID := c.Param("id")
	membershipID, err := h.store.AddMember(ctx, clubID, req.StudentID, role)
	if err != nil {
		apierror.Abort(c, err)
		return
	}

	club, err := h.store.GetClub(ctx, clubID)
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"membership_id": membershipID,
		"role":          role,
		"member_count":  club.MemberCount,
	})
}

// UpdateMember changes a member's role
// @Summary Change a member's role
// @Tags clubs
// @Accept json
// @Produce json
// @Param id path string true "Club ID"
// @Param studentId path string true "Student ID"
// @Param request body UpdateMemberRequest true "New role"
// @Success 200 {object} map[string]interface{}
// @Router /clubs/{id}/members/{studentId} [put]
func (h *Handler) UpdateMember(c *gin.Context) {
	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err.Error())
		return
	}

	role := models.Role(req.Role)
	if err := h.store.ChangeRole(c.Request.Context(), c.Param("id"), c.Param("studentId"), role); err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "role": role})
}

// RemoveMember removes a student from a club
// @Summary Remove a club member
// @Tags clubs
// @Produce json
// @Param id path string true "Club ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Not a member"
// @Router /clubs/{id}/members/{studentId} [delete]
func (h *Handler) RemoveMember(c *gin.Context) {
	if err := h.store.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Member removed"})
}

// RegisterMemberRoutes registers club member routes
func (h *Handler) RegisterMemberRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/members", h.ListMembers)
	rg.POST("/:id/members", h.AddMember)
	rg.PUT("/:id/members/:studentId", h.UpdateMember)
	rg.DELETE("/:id/members/:studentId", h.RemoveMember)
}
