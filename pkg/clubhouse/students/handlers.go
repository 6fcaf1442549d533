package students

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/apierror"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/mikepea/clubhouse/pkg/clubhouse/validation"
)

// Handler handles student-related requests
type Handler struct {
	store store.MembershipStore
}

// NewHandler creates a new students handler
func NewHandler(s store.MembershipStore) *Handler {
	validation.RegisterGin()
	return &Handler{store: s}
}

// CreateStudentRequest represents the request to create a student
type CreateStudentRequest struct {
	Name          string `json:"name" binding:"required,personname"`
	Email         string `json:"email" binding:"required,email"`
	StudentNumber string `json:"student_number" binding:"max=50"`
	Major         string `json:"major" binding:"max=100"`
}

// UpdateStudentRequest represents the request to update a student.
// Omitted fields are left unchanged.
type UpdateStudentRequest struct {
	Name          *string `json:"name" binding:"omitempty,personname"`
	Email         *string `json:"email" binding:"omitempty,email"`
	StudentNumber *string `json:"student_number" binding:"omitempty,max=50"`
	Major         *string `json:"major" binding:"omitempty,max=100"`
}

// List returns all students, or the one matching ?email=
// @Summary List students
// @Tags students
// @Produce json
// @Param email query string false "Exact email, case-insensitive"
// @Success 200 {object} map[string]interface{}
// @Router /students [get]
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if email := c.Query("email"); email != "" {
		student, err := h.store.GetStudentByEmail(ctx, email)
		if err != nil {
			apierror.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "students": []models.Student{*student}})
		return
	}

	students, err := h.store.ListStudents(ctx)
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "students": students})
}

// Create creates a new student
// @Summary Create a student
// @Tags students
// @Accept json
// @Produce json
// @Param request body CreateStudentRequest true "Student details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Validation error or email already registered"
// @Router /students [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err.Error())
		return
	}
	if !validation.ValidEmail(req.Email) {
		apierror.BadRequest(c, "Invalid email")
		return
	}

	student, err := h.store.CreateStudent(c.Request.Context(), store.StudentFields{
		Name:          req.Name,
		Email:         req.Email,
		StudentNumber: req.StudentNumber,
		Major:         req.Major,
	})
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "student": student})
}

// Get returns a specific student
// @Summary Get a student
// @Tags students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Student not found"
// @Router /students/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	student, err := h.store.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": student})
}

// Update merges the provided fields into a student
// @Summary Update a student
// @Tags students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param request body UpdateStudentRequest true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Router /students/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err.Error())
		return
	}

	student, err := h.store.UpdateStudent(c.Request.Context(), c.Param("id"), store.StudentUpdate{
		Name:          req.Name,
		Email:         req.Email,
		StudentNumber: req.StudentNumber,
		Major:         req.Major,
	})
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": student})
}

// Delete deletes a student and all of their memberships
// @Summary Delete a student
// @Tags students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} map[string]interface{}
// @Router /students/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Student deleted"})
}

// ListClubs returns the clubs a student belongs to
// @Summary List a student's clubs
// @Tags students
// @Produce json
// @Param id path string true "Student ID"
// @Param club_id query string false "Only this club"
// @Param role query string false "Only memberships with this role"
// @Success 200 {object} map[string]interface{}
// @Router /students/{id}/clubs [get]
func (h *Handler) ListClubs(c *gin.Context) {
	opts := store.StudentClubsOptions{ClubID: c.Query("club_id")}
	if role := c.Query("role"); role != "" {
		if !models.IsValidRole(role) {
			apierror.BadRequest(c, "Invalid role")
			return
		}
		opts.Role = models.Role(role)
	}

	clubs, err := h.store.ClubsForStudent(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		apierror.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clubs": clubs, "count": len(clubs)})
}

// RegisterRoutes registers student routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/clubs", h.ListClubs)
}
