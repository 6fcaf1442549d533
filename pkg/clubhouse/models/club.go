package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Club represents a student club.
// MemberCount is a cached value kept equal to the number of entries in the
// club's ClubMember index by the membership store.
type Club struct {
	ID          string    `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	MeetingTime string    `json:"meeting_time,omitempty"`
	MemberCount int       `gorm:"not null;default:0" json:"member_count"`
}

// BeforeCreate assigns a generated ID
func (c *Club) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
