package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student represents a student who can join clubs
type Student struct {
	ID            string    `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Name          string    `gorm:"not null" json:"name"`
	Email         string    `gorm:"uniqueIndex;not null" json:"email"` // Always stored lowercase
	StudentNumber string    `json:"student_number,omitempty"`          // University-issued ID, optional
	Major         string    `json:"major,omitempty"`
}

// BeforeCreate assigns a generated ID
func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
