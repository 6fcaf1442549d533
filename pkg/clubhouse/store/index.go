package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikepea/clubhouse/pkg/clubhouse/metrics"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"gorm.io/gorm"
)

// IndexEntry is one membership as seen through the denormalized index
type IndexEntry struct {
	ClubID       string      `json:"club_id"`
	StudentID    string      `json:"student_id"`
	MembershipID string      `json:"membership_id"`
	Role         models.Role `json:"role"`
	JoinDate     time.Time   `json:"join_date"`
}

// Index maintains the two denormalized membership views, club -> students
// (club_members) and student -> clubs (student_memberships). Every mutation
// touches both; the caller pairs it with the canonical memberships write
// inside one transaction.
type Index struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.Store
}

// NewIndex creates an index over db
func NewIndex(db *gorm.DB, logger *slog.Logger, m *metrics.Store) *Index {
	return &Index{db: db, logger: logger, metrics: m}
}

// WithTx returns a copy bound to tx
func (ix *Index) WithTx(tx *gorm.DB) *Index {
	clone := *ix
	clone.db = tx
	return &clone
}

// lookup returns the entry for the pair from each view, nil where absent
func (ix *Index) lookup(ctx context.Context, clubID, studentID string) (*models.ClubMember, *models.StudentMembership, error) {
	db := ix.db.WithContext(ctx)

	var cm models.ClubMember
	err := db.Where("club_id = ? AND student_id = ?", clubID, studentID).Take(&cm).Error
	cmFound := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	var sm models.StudentMembership
	err = db.Where("student_id = ? AND club_id = ?", studentID, clubID).Take(&sm).Error
	smFound := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	var cmp *models.ClubMember
	var smp *models.StudentMembership
	if cmFound {
		cmp = &cm
	}
	if smFound {
		smp = &sm
	}
	return cmp, smp, nil
}

// Get returns the entry for an active pair. A pair present in only one view
// is reported as ErrInconsistent.
func (ix *Index) Get(ctx context.Context, clubID, studentID string) (*IndexEntry, error) {
	cm, sm, err := ix.lookup(ctx, clubID, studentID)
	if err != nil {
		return nil, err
	}
	if err := ix.checkPair(ctx, clubID, studentID, cm != nil, sm != nil); err != nil {
		return nil, err
	}
	return &IndexEntry{
		ClubID:       cm.ClubID,
		StudentID:    cm.StudentID,
		MembershipID: cm.MembershipID,
		Role:         cm.Role,
		JoinDate:     cm.JoinDate,
	}, nil
}

// checkPair returns ErrNotFound when neither view has the pair and
// ErrInconsistent when only one does.
func (ix *Index) checkPair(ctx context.Context, clubID, studentID string, inClub, inStudent bool) error {
	switch {
	case inClub && inStudent:
		return nil
	case !inClub && !inStudent:
		return pairNotFound(clubID, studentID)
	case inClub:
		ix.reportInconsistency(ctx, "club_index_only", clubID, studentID)
		return inconsistent(clubID, studentID, "missing from student index")
	default:
		ix.reportInconsistency(ctx, "student_index_only", clubID, studentID)
		return inconsistent(clubID, studentID, "missing from club index")
	}
}

func (ix *Index) reportInconsistency(ctx context.Context, kind, clubID, studentID string) {
	ix.metrics.Inconsistency(kind)
	ix.logger.ErrorContext(ctx, "membership index inconsistent",
		slog.String("kind", kind),
		slog.String("club_id", clubID),
		slog.String("student_id", studentID),
	)
}

// Add inserts the entry into both views. An existing entry in either view is
// ErrConflict: the caller is expected to have checked membership first.
func (ix *Index) Add(ctx context.Context, e IndexEntry) error {
	cm, sm, err := ix.lookup(ctx, e.ClubID, e.StudentID)
	if err != nil {
		return err
	}
	if cm != nil || sm != nil {
		return fmt.Errorf("index entry for club %s student %s already exists: %w", e.ClubID, e.StudentID, ErrConflict)
	}

	db := ix.db.WithContext(ctx)
	if err := db.Create(&models.ClubMember{
		ClubID:       e.ClubID,
		StudentID:    e.StudentID,
		MembershipID: e.MembershipID,
		Role:         e.Role,
		JoinDate:     e.JoinDate,
	}).Error; err != nil {
		return ix.translateWrite(err, e)
	}
	if err := db.Create(&models.StudentMembership{
		StudentID:    e.StudentID,
		ClubID:       e.ClubID,
		MembershipID: e.MembershipID,
		Role:         e.Role,
		JoinDate:     e.JoinDate,
	}).Error; err != nil {
		return ix.translateWrite(err, e)
	}
	return nil
}

func (ix *Index) translateWrite(err error, e IndexEntry) error {
	if isDuplicate(err) {
		return fmt.Errorf("index entry for club %s student %s already exists: %w", e.ClubID, e.StudentID, ErrConflict)
	}
	return err
}

// Remove deletes the pair from both views
func (ix *Index) Remove(ctx context.Context, clubID, studentID string) error {
	cm, sm, err := ix.lookup(ctx, clubID, studentID)
	if err != nil {
		return err
	}
	if err := ix.checkPair(ctx, clubID, studentID, cm != nil, sm != nil); err != nil {
		return err
	}

	db := ix.db.WithContext(ctx)
	if err := db.Where("club_id = ? AND student_id = ?", clubID, studentID).Delete(&models.ClubMember{}).Error; err != nil {
		return err
	}
	return db.Where("student_id = ? AND club_id = ?", studentID, clubID).Delete(&models.StudentMembership{}).Error
}

// UpdateRole overwrites the role in both views, keeping membership ID and join date
func (ix *Index) UpdateRole(ctx context.Context, clubID, studentID string, role models.Role) error {
	cm, sm, err := ix.lookup(ctx, clubID, studentID)
	if err != nil {
		return err
	}
	if err := ix.checkPair(ctx, clubID, studentID, cm != nil, sm != nil); err != nil {
		return err
	}

	db := ix.db.WithContext(ctx)
	if err := db.Model(&models.ClubMember{}).
		Where("club_id = ? AND student_id = ?", clubID, studentID).
		Update("role", role).Error; err != nil {
		return err
	}
	return db.Model(&models.StudentMembership{}).
		Where("student_id = ? AND club_id = ?", studentID, clubID).
		Update("role", role).Error
}

// MembersOfClub lists the club's entries, oldest join first
func (ix *Index) MembersOfClub(ctx context.Context, clubID string) ([]IndexEntry, error) {
	var rows []models.ClubMember
	if err := ix.db.WithContext(ctx).Where("club_id = ?", clubID).Order("join_date, student_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, len(rows))
	for i, r := range rows {
		entries[i] = IndexEntry{
			ClubID:       r.ClubID,
			StudentID:    r.StudentID,
			MembershipID: r.MembershipID,
			Role:         r.Role,
			JoinDate:     r.JoinDate,
		}
	}
	return entries, nil
}

// ClubsOfStudent lists the student's entries, oldest join first
func (ix *Index) ClubsOfStudent(ctx context.Context, studentID string) ([]IndexEntry, error) {
	var rows []models.StudentMembership
	if err := ix.db.WithContext(ctx).Where("student_id = ?", studentID).Order("join_date, club_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, len(rows))
	for i, r := range rows {
		entries[i] = IndexEntry{
			ClubID:       r.ClubID,
			StudentID:    r.StudentID,
			MembershipID: r.MembershipID,
			Role:         r.Role,
			JoinDate:     r.JoinDate,
		}
	}
	return entries, nil
}

// CountMembers returns the number of entries in the club's view
func (ix *Index) CountMembers(ctx context.Context, clubID string) (int, error) {
	var n int64
	if err := ix.db.WithContext(ctx).Model(&models.ClubMember{}).Where("club_id = ?", clubID).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// ClearClub deletes the club's whole entry from the club view and returns the
// student IDs it held. The student view is left for RemoveClubKey.
func (ix *Index) ClearClub(ctx context.Context, clubID string) ([]string, error) {
	db := ix.db.WithContext(ctx)
	var studentIDs []string
	if err := db.Model(&models.ClubMember{}).Where("club_id = ?", clubID).Order("student_id").Pluck("student_id", &studentIDs).Error; err != nil {
		return nil, err
	}
	if err := db.Where("club_id = ?", clubID).Delete(&models.ClubMember{}).Error; err != nil {
		return nil, err
	}
	return studentIDs, nil
}

// ClearStudent deletes the student's whole entry from the student view and
// returns the club IDs it held. The club view is left for RemoveStudentKey.
func (ix *Index) ClearStudent(ctx context.Context, studentID string) ([]string, error) {
	db := ix.db.WithContext(ctx)
	var clubIDs []string
	if err := db.Model(&models.StudentMembership{}).Where("student_id = ?", studentID).Order("club_id").Pluck("club_id", &clubIDs).Error; err != nil {
		return nil, err
	}
	if err := db.Where("student_id = ?", studentID).Delete(&models.StudentMembership{}).Error; err != nil {
		return nil, err
	}
	return clubIDs, nil
}

// RemoveClubKey deletes clubID from the student's entry. Idempotent.
func (ix *Index) RemoveClubKey(ctx context.Context, studentID, clubID string) error {
	return ix.db.WithContext(ctx).Where("student_id = ? AND club_id = ?", studentID, clubID).Delete(&models.StudentMembership{}).Error
}

// RemoveStudentKey deletes studentID from the club's entry. Idempotent.
func (ix *Index) RemoveStudentKey(ctx context.Context, clubID, studentID string) error {
	return ix.db.WithContext(ctx).Where("club_id = ? AND student_id = ?", clubID, studentID).Delete(&models.ClubMember{}).Error
}

// RemoveAllForClub clears the club's entry and removes the club from every
// student's entry, including students the club view no longer lists.
// It returns the affected student IDs.
func (ix *Index) RemoveAllForClub(ctx context.Context, clubID string) ([]string, error) {
	studentIDs, err := ix.ClearClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	db := ix.db.WithContext(ctx)
	var stray []string
	if err := db.Model(&models.StudentMembership{}).Where("club_id = ?", clubID).Pluck("student_id", &stray).Error; err != nil {
		return nil, err
	}
	if err := db.Where("club_id = ?", clubID).Delete(&models.StudentMembership{}).Error; err != nil {
		return nil, err
	}
	return union(studentIDs, stray), nil
}

// RemoveAllForStudent clears the student's entry and removes the student from
// every club's entry, including clubs the student view no longer lists.
// It returns the affected club IDs; the caller must recompute member_count
// for each.
func (ix *Index) RemoveAllForStudent(ctx context.Context, studentID string) ([]string, error) {
	clubIDs, err := ix.ClearStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	db := ix.db.WithContext(ctx)
	var stray []string
	if err := db.Model(&models.ClubMember{}).Where("student_id = ?", studentID).Pluck("club_id", &stray).Error; err != nil {
		return nil, err
	}
	if err := db.Where("student_id = ?", studentID).Delete(&models.ClubMember{}).Error; err != nil {
		return nil, err
	}
	return union(clubIDs, stray), nil
}
