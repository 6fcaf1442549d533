package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// DeleteClub deletes the club and every membership referencing it.
//
// The club's own rows (its memberships, its club-index entry and the club
// itself) go in one transaction. Removing the club from each affected
// student's index entry is then applied one student at a time, each step
// retried on its own. All affected keys stay locked until the last step.
func (s *Store) DeleteClub(ctx context.Context, clubID string) error {
	ctx = context.WithoutCancel(ctx)
	var affected []string
	err := s.run(ctx, "delete_club", func(ctx context.Context) error {
		s.maint.RLock()
		defer s.maint.RUnlock()

		if _, err := s.entities.GetClub(ctx, clubID); err != nil {
			return err
		}

		release, students, err := s.lockCascade(ctx, clubKey(clubID), studentKey, func() ([]string, error) {
			return s.studentsReferencingClub(ctx, s.db, clubID)
		})
		if err != nil {
			return err
		}
		defer release()
		affected = students

		err = s.tx(ctx, "delete_club", func(tx *gorm.DB) error {
			if err := tx.WithContext(ctx).Where("club_id = ?", clubID).Delete(&models.Membership{}).Error; err != nil {
				return err
			}
			if _, err := s.index.WithTx(tx).ClearClub(ctx, clubID); err != nil {
				return err
			}
			return s.entities.WithTx(tx).DeleteClubRecord(ctx, clubID)
		})
		if err != nil {
			return err
		}

		return s.fanOut(ctx, "delete_club", students, func(tx *gorm.DB, studentID string) error {
			return s.index.WithTx(tx).RemoveClubKey(ctx, studentID, clubID)
		})
	}, attribute.String("club_id", clubID))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "club deleted",
		slog.String("club_id", clubID),
		slog.Int("memberships_removed", len(affected)),
	)
	return nil
}

// DeleteStudent deletes the student and every membership referencing it,
// recomputing member_count for each affected club.
func (s *Store) DeleteStudent(ctx context.Context, studentID string) error {
	ctx = context.WithoutCancel(ctx)
	var affected []string
	err := s.run(ctx, "delete_student", func(ctx context.Context) error {
		s.maint.RLock()
		defer s.maint.RUnlock()

		if _, err := s.entities.GetStudent(ctx, studentID); err != nil {
			return err
		}

		release, clubs, err := s.lockCascade(ctx, studentKey(studentID), clubKey, func() ([]string, error) {
			return s.clubsReferencingStudent(ctx, s.db, studentID)
		})
		if err != nil {
			return err
		}
		defer release()
		affected = clubs

		err = s.tx(ctx, "delete_student", func(tx *gorm.DB) error {
			if err := tx.WithContext(ctx).Where("student_id = ?", studentID).Delete(&models.Membership{}).Error; err != nil {
				return err
			}
			if _, err := s.index.WithTx(tx).ClearStudent(ctx, studentID); err != nil {
				return err
			}
			return s.entities.WithTx(tx).DeleteStudentRecord(ctx, studentID)
		})
		if err != nil {
			return err
		}

		return s.fanOut(ctx, "delete_student", clubs, func(tx *gorm.DB, clubID string) error {
			if err := s.index.WithTx(tx).RemoveStudentKey(ctx, clubID, studentID); err != nil {
				return err
			}
			_, err := s.recountMembers(ctx, tx, clubID)
			return err
		})
	}, attribute.String("student_id", studentID))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "student deleted",
		slog.String("student_id", studentID),
		slog.Int("memberships_removed", len(affected)),
	)
	return nil
}

// lockCascade locks own plus the key of every ID returned by affected.
// The set is read, locked, then re-read under the lock; if it grew in
// between, everything is released and the cycle repeats.
func (s *Store) lockCascade(ctx context.Context, own string, keyOf func(string) string, affected func() ([]string, error)) (func(), []string, error) {
	for attempt := 1; attempt <= s.opts.CascadeAttempts; attempt++ {
		var ids []string
		err := s.withRetry(ctx, "lock_cascade", func() error {
			var err error
			ids, err = affected()
			return err
		})
		if err != nil {
			return nil, nil, err
		}

		keys := make([]string, 0, len(ids)+1)
		keys = append(keys, own)
		for _, id := range ids {
			keys = append(keys, keyOf(id))
		}
		release, err := s.lock(ctx, keys...)
		if err != nil {
			return nil, nil, err
		}

		var current []string
		err = s.withRetry(ctx, "lock_cascade", func() error {
			var err error
			current, err = affected()
			return err
		})
		if err != nil {
			release()
			return nil, nil, err
		}
		if isSubset(current, ids) {
			return release, current, nil
		}
		release()
		s.logger.DebugContext(ctx, "cascade key set changed while locking, retrying",
			slog.String("key", own),
			slog.Int("attempt", attempt),
		)
	}
	return nil, nil, fmt.Errorf("memberships of %s kept changing during cascade: %w", own, ErrConflict)
}

// fanOut applies step to each id in its own transaction. A failing step is
// retried per the retry policy and logged; the remaining steps still run.
func (s *Store) fanOut(ctx context.Context, op string, ids []string, step func(tx *gorm.DB, id string) error) error {
	var failed []string
	var errs []error
	for _, id := range ids {
		err := s.tx(ctx, op+"_fanout", func(tx *gorm.DB) error {
			return step(tx, id)
		})
		if err != nil {
			failed = append(failed, id)
			errs = append(errs, err)
			s.logger.ErrorContext(ctx, "cascade step failed",
				slog.String("operation", op),
				slog.String("id", id),
				slog.Any("error", err),
			)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	// Leftover index entries point at a deleted entity; RebuildIndexes clears them.
	return fmt.Errorf("%s: %d of %d cascade steps failed (%v): %w: %w",
		op, len(failed), len(ids), failed, ErrUnavailable, errors.Join(errs...))
}

// studentsReferencingClub returns every student ID that any of the three
// membership locations associates with the club.
func (s *Store) studentsReferencingClub(ctx context.Context, db *gorm.DB, clubID string) ([]string, error) {
	db = db.WithContext(ctx)
	var fromMemberships, fromClubIndex, fromStudentIndex []string
	if err := db.Model(&models.Membership{}).Where("club_id = ?", clubID).Pluck("student_id", &fromMemberships).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ClubMember{}).Where("club_id = ?", clubID).Pluck("student_id", &fromClubIndex).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.StudentMembership{}).Where("club_id = ?", clubID).Pluck("student_id", &fromStudentIndex).Error; err != nil {
		return nil, err
	}
	return union(fromMemberships, fromClubIndex, fromStudentIndex), nil
}

// clubsReferencingStudent returns every club ID that any of the three
// membership locations associates with the student.
func (s *Store) clubsReferencingStudent(ctx context.Context, db *gorm.DB, studentID string) ([]string, error) {
	db = db.WithContext(ctx)
	var fromMemberships, fromClubIndex, fromStudentIndex []string
	if err := db.Model(&models.Membership{}).Where("student_id = ?", studentID).Pluck("club_id", &fromMemberships).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ClubMember{}).Where("student_id = ?", studentID).Pluck("club_id", &fromClubIndex).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.StudentMembership{}).Where("student_id = ?", studentID).Pluck("club_id", &fromStudentIndex).Error; err != nil {
		return nil, err
	}
	return union(fromMemberships, fromClubIndex, fromStudentIndex), nil
}

func union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func isSubset(sub, super []string) bool {
	set := make(map[string]struct{}, len(super))
	for _, id := range super {
		set[id] = struct{}{}
	}
	for _, id := range sub {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
