package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership is the canonical record linking one student to one club.
// At most one row exists per (club, student) pair.
type Membership struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`
	ClubID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_membership_pair;index" json:"club_id"`
	StudentID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_membership_pair;index" json:"student_id"`
	Role      Role      `gorm:"type:varchar(20);not null;default:'Member'" json:"role"`
	JoinDate  time.Time `gorm:"not null" json:"join_date"`
}

// BeforeCreate assigns a generated ID and join date
func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinDate.IsZero() {
		m.JoinDate = time.Now().UTC()
	}
	return nil
}

// ClubMember is one entry of the club-centric membership index:
// club -> student -> (membership, role, join date).
type ClubMember struct {
	ClubID       string    `gorm:"type:varchar(36);primaryKey" json:"club_id"`
	StudentID    string    `gorm:"type:varchar(36);primaryKey" json:"student_id"`
	MembershipID string    `gorm:"type:varchar(36);not null" json:"membership_id"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	JoinDate     time.Time `gorm:"not null" json:"join_date"`
}

// StudentMembership is one entry of the student-centric membership index:
// student -> club -> (membership, role, join date).
type StudentMembership struct {
	StudentID    string    `gorm:"type:varchar(36);primaryKey" json:"student_id"`
	ClubID       string    `gorm:"type:varchar(36);primaryKey" json:"club_id"`
	MembershipID string    `gorm:"type:varchar(36);not null" json:"membership_id"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	JoinDate     time.Time `gorm:"not null" json:"join_date"`
}
