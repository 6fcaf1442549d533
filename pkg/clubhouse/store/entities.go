package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/validation"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// ClubFields holds the fields of a new club
type ClubFields struct {
	Name        string
	Description string
	Category    string
	MeetingTime string
}

// ClubUpdate holds a partial club update; nil fields are left unchanged
type ClubUpdate struct {
	Name        *string
	Description *string
	Category    *string
	MeetingTime *string
}

// StudentFields holds the fields of a new student
type StudentFields struct {
	Name          string
	Email         string
	StudentNumber string
	Major         string
}

// StudentUpdate holds a partial student update; nil fields are left unchanged
type StudentUpdate struct {
	Name          *string
	Email         *string
	StudentNumber *string
	Major         *string
}

// Entities is CRUD for clubs and students. It never touches memberships:
// deleting a record here does not cascade.
type Entities struct {
	db *gorm.DB
}

// NewEntities creates an entity store over db
func NewEntities(db *gorm.DB) *Entities {
	return &Entities{db: db}
}

// WithTx returns a copy bound to tx
func (e *Entities) WithTx(tx *gorm.DB) *Entities {
	return &Entities{db: tx}
}

// CreateClub inserts a club with a generated ID and zero members
func (e *Entities) CreateClub(ctx context.Context, f ClubFields) (*models.Club, error) {
	club := models.Club{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Category:    strings.TrimSpace(f.Category),
		MeetingTime: strings.TrimSpace(f.MeetingTime),
	}
	if club.Name == "" {
		return nil, fmt.Errorf("club name is required: %w", ErrInvalidInput)
	}
	if err := e.db.WithContext(ctx).Create(&club).Error; err != nil {
		return nil, err
	}
	return &club, nil
}

// GetClub returns the club or ErrNotFound
func (e *Entities) GetClub(ctx context.Context, id string) (*models.Club, error) {
	var club models.Club
	if err := e.db.WithContext(ctx).Where("id = ?", id).First(&club).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("club", id)
		}
		return nil, err
	}
	return &club, nil
}

// ListClubs returns every club in creation order
func (e *Entities) ListClubs(ctx context.Context) ([]models.Club, error) {
	var clubs []models.Club
	if err := e.db.WithContext(ctx).Order("created_at, id").Find(&clubs).Error; err != nil {
		return nil, err
	}
	return clubs, nil
}

// SearchClubs returns clubs whose name or description contains query,
// ignoring case. An empty query returns every club.
func (e *Entities) SearchClubs(ctx context.Context, query string) ([]models.Club, error) {
	clubs, err := e.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return clubs, nil
	}

	fold := cases.Fold()
	needle := fold.String(query)
	filtered := make([]models.Club, 0, len(clubs))
	for _, club := range clubs {
		if strings.Contains(fold.String(club.Name), needle) ||
			strings.Contains(fold.String(club.Description), needle) {
			filtered = append(filtered, club)
		}
	}
	return filtered, nil
}

// UpdateClub merges the non-nil fields of u into the club.
// member_count is never written here.
func (e *Entities) UpdateClub(ctx context.Context, id string, u ClubUpdate) (*models.Club, error) {
	updates := map[string]interface{}{}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, fmt.Errorf("club name cannot be empty: %w", ErrInvalidInput)
		}
		updates["name"] = name
	}
	if u.Description != nil {
		updates["description"] = strings.TrimSpace(*u.Description)
	}
	if u.Category != nil {
		updates["category"] = strings.TrimSpace(*u.Category)
	}
	if u.MeetingTime != nil {
		updates["meeting_time"] = strings.TrimSpace(*u.MeetingTime)
	}

	db := e.db.WithContext(ctx)
	if len(updates) > 0 {
		result := db.Model(&models.Club{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, notFound("club", id)
		}
	}
	return e.GetClub(ctx, id)
}

// DeleteClubRecord removes the club row only
func (e *Entities) DeleteClubRecord(ctx context.Context, id string) error {
	result := e.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Club{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound("club", id)
	}
	return nil
}

// CreateStudent inserts a student. The email is stored normalized and must be unique.
func (e *Entities) CreateStudent(ctx context.Context, f StudentFields) (*models.Student, error) {
	student := models.Student{
		Name:          strings.TrimSpace(f.Name),
		Email:         validation.NormalizeEmail(f.Email),
		StudentNumber: strings.TrimSpace(f.StudentNumber),
		Major:         strings.TrimSpace(f.Major),
	}
	if student.Name == "" {
		return nil, fmt.Errorf("student name is required: %w", ErrInvalidInput)
	}
	if student.Email == "" {
		return nil, fmt.Errorf("student email is required: %w", ErrInvalidInput)
	}
	if err := e.db.WithContext(ctx).Create(&student).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("student with email %s already exists: %w", student.Email, ErrConflict)
		}
		return nil, err
	}
	return &student, nil
}

// GetStudent returns the student or ErrNotFound
func (e *Entities) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := e.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("student", id)
		}
		return nil, err
	}
	return &student, nil
}

// GetStudentByEmail looks a student up by normalized email
func (e *Entities) GetStudentByEmail(ctx context.Context, email string) (*models.Student, error) {
	email = validation.NormalizeEmail(email)
	var student models.Student
	if err := e.db.WithContext(ctx).Where("email = ?", email).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("student with email", email)
		}
		return nil, err
	}
	return &student, nil
}

// ListStudents returns every student in creation order
func (e *Entities) ListStudents(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := e.db.WithContext(ctx).Order("created_at, id").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

// studentsByID loads the given students keyed by ID. Missing IDs are absent from the map.
func (e *Entities) studentsByID(ctx context.Context, ids []string) (map[string]models.Student, error) {
	out := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var students []models.Student
	if err := e.db.WithContext(ctx).Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}
	for _, s := range students {
		out[s.ID] = s
	}
	return out, nil
}

// clubsByID loads the given clubs keyed by ID. Missing IDs are absent from the map.
func (e *Entities) clubsByID(ctx context.Context, ids []string) (map[string]models.Club, error) {
	out := make(map[string]models.Club, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var clubs []models.Club
	if err := e.db.WithContext(ctx).Where("id IN ?", ids).Find(&clubs).Error; err != nil {
		return nil, err
	}
	for _, c := range clubs {
		out[c.ID] = c
	}
	return out, nil
}

// UpdateStudent merges the non-nil fields of u into the student
func (e *Entities) UpdateStudent(ctx context.Context, id string, u StudentUpdate) (*models.Student, error) {
	updates := map[string]interface{}{}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, fmt.Errorf("student name cannot be empty: %w", ErrInvalidInput)
		}
		updates["name"] = name
	}
	if u.Email != nil {
		email := validation.NormalizeEmail(*u.Email)
		if email == "" {
			return nil, fmt.Errorf("student email cannot be empty: %w", ErrInvalidInput)
		}
		updates["email"] = email
	}
	if u.StudentNumber != nil {
		updates["student_number"] = strings.TrimSpace(*u.StudentNumber)
	}
	if u.Major != nil {
		updates["major"] = strings.TrimSpace(*u.Major)
	}

	db := e.db.WithContext(ctx)
	if len(updates) > 0 {
		result := db.Model(&models.Student{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			if isDuplicate(result.Error) {
				return nil, fmt.Errorf("student with email %v already exists: %w", updates["email"], ErrConflict)
			}
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, notFound("student", id)
		}
	}
	return e.GetStudent(ctx, id)
}

// DeleteStudentRecord removes the student row only
func (e *Entities) DeleteStudentRecord(ctx context.Context, id string) error {
	result := e.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Student{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound("student", id)
	}
	return nil
}
