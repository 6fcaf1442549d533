// Package store keeps clubs, students and their memberships consistent.
//
// A membership lives in three places: the canonical memberships table and two
// denormalized views (club -> students, student -> clubs) maintained by Index.
// Store is the only writer of all three and sequences every change so the
// views never disagree with the canonical rows once an operation returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mikepea/clubhouse/pkg/clubhouse/metrics"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"
)

// Options tunes concurrency control
type Options struct {
	LockTimeout     time.Duration // max wait for key locks
	MaxRetries      uint64        // retries of a transient storage failure
	RetryInitial    time.Duration // first backoff interval
	CascadeAttempts int           // lock-set re-reads before a cascade gives up
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		LockTimeout:     5 * time.Second,
		MaxRetries:      5,
		RetryInitial:    20 * time.Millisecond,
		CascadeAttempts: 5,
	}
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Store) Option {
	return func(s *Store) { s.metrics = m }
}

// WithTracer sets the tracer
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithOptions replaces the concurrency options
func WithOptions(o Options) Option {
	return func(s *Store) { s.opts = o }
}

// Store is the membership store facade
type Store struct {
	db       *gorm.DB
	entities *Entities
	index    *Index
	locks    *keyLocks

	// maint is held shared by every mutation and exclusively by RebuildIndexes.
	maint sync.RWMutex

	logger  *slog.Logger
	metrics *metrics.Store
	tracer  trace.Tracer
	opts    Options
	now     func() time.Time
}

var _ MembershipStore = (*Store)(nil)

// New creates a Store over db. The schema must already be migrated.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		locks:  newKeyLocks(),
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("clubhouse/store"),
		opts:   DefaultOptions(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.opts.CascadeAttempts <= 0 {
		s.opts.CascadeAttempts = 1
	}
	s.logger = s.logger.With(slog.String("component", "store"))
	s.entities = NewEntities(db)
	s.index = NewIndex(db, s.logger, s.metrics)
	return s
}

// Entities exposes the entity store
func (s *Store) Entities() *Entities { return s.entities }

// Index exposes the membership index
func (s *Store) Index() *Index { return s.index }

// run wraps an operation with a span, metrics and error logging
func (s *Store) run(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.Observe(op, resultLabel(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, ErrInconsistent):
			s.logger.ErrorContext(ctx, "operation hit an inconsistent membership index",
				slog.String("operation", op), slog.Any("error", err))
		case errors.Is(err, ErrUnavailable):
			s.logger.WarnContext(ctx, "operation failed, storage unavailable",
				slog.String("operation", op), slog.Any("error", err))
		case resultLabel(err) == "error":
			s.logger.ErrorContext(ctx, "operation failed",
				slog.String("operation", op), slog.Any("error", err))
		}
	}
	return err
}

// mutate runs a write operation: it detaches from caller cancellation, holds
// the maintenance lock shared and the given keys exclusively.
func (s *Store) mutate(ctx context.Context, op string, keys []string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx = context.WithoutCancel(ctx)
	return s.run(ctx, op, func(ctx context.Context) error {
		s.maint.RLock()
		defer s.maint.RUnlock()

		release, err := s.lock(ctx, keys...)
		if err != nil {
			return err
		}
		defer release()
		return fn(ctx)
	}, attrs...)
}

func (s *Store) lock(ctx context.Context, keys ...string) (func(), error) {
	if len(keys) == 0 {
		return func() {}, nil
	}
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()
	start := time.Now()
	release, err := s.locks.acquire(lockCtx, keys...)
	s.metrics.LockWait(time.Since(start))
	return release, err
}

// tx runs fn in a transaction, retrying transient failures
func (s *Store) tx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return s.withRetry(ctx, op, func() error {
		return s.db.WithContext(ctx).Transaction(fn)
	})
}

// recountMembers sets the club's member_count to the size of its index entry
func (s *Store) recountMembers(ctx context.Context, tx *gorm.DB, clubID string) (int, error) {
	n, err := s.index.WithTx(tx).CountMembers(ctx, clubID)
	if err != nil {
		return 0, err
	}
	if err := tx.WithContext(ctx).Model(&models.Club{}).Where("id = ?", clubID).Update("member_count", n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// CreateClub creates a club with no members
func (s *Store) CreateClub(ctx context.Context, f ClubFields) (*models.Club, error) {
	var club *models.Club
	err := s.run(ctx, "create_club", func(ctx context.Context) error {
		return s.withRetry(ctx, "create_club", func() error {
			var err error
			club, err = s.entities.CreateClub(ctx, f)
			return err
		})
	})
	return club, err
}

// GetClub returns a club or ErrNotFound
func (s *Store) GetClub(ctx context.Context, id string) (*models.Club, error) {
	return s.entities.GetClub(ctx, id)
}

// ListClubs returns all clubs
func (s *Store) ListClubs(ctx context.Context) ([]models.Club, error) {
	return s.entities.ListClubs(ctx)
}

// SearchClubs filters clubs by a case-insensitive substring of name or description
func (s *Store) SearchClubs(ctx context.Context, query string) ([]models.Club, error) {
	return s.entities.SearchClubs(ctx, query)
}

// UpdateClub merges a partial update into a club
func (s *Store) UpdateClub(ctx context.Context, id string, u ClubUpdate) (*models.Club, error) {
	var club *models.Club
	err := s.mutate(ctx, "update_club", []string{clubKey(id)}, func(ctx context.Context) error {
		return s.withRetry(ctx, "update_club", func() error {
			var err error
			club, err = s.entities.UpdateClub(ctx, id, u)
			return err
		})
	}, attribute.String("club_id", id))
	return club, err
}

// CreateStudent creates a student with a normalized, unique email
func (s *Store) CreateStudent(ctx context.Context, f StudentFields) (*models.Student, error) {
	var student *models.Student
	err := s.run(ctx, "create_student", func(ctx context.Context) error {
		return s.withRetry(ctx, "create_student", func() error {
			var err error
			student, err = s.entities.CreateStudent(ctx, f)
			return err
		})
	})
	return student, err
}

// GetStudent returns a student or ErrNotFound
func (s *Store) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	return s.entities.GetStudent(ctx, id)
}

// GetStudentByEmail returns the student with the given email or ErrNotFound
func (s *Store) GetStudentByEmail(ctx context.Context, email string) (*models.Student, error) {
	return s.entities.GetStudentByEmail(ctx, email)
}

// ListStudents returns all students
func (s *Store) ListStudents(ctx context.Context) ([]models.Student, error) {
	return s.entities.ListStudents(ctx)
}

// UpdateStudent merges a partial update into a student
func (s *Store) UpdateStudent(ctx context.Context, id string, u StudentUpdate) (*models.Student, error) {
	var student *models.Student
	err := s.mutate(ctx, "update_student", []string{studentKey(id)}, func(ctx context.Context) error {
		return s.withRetry(ctx, "update_student", func() error {
			var err error
			student, err = s.entities.UpdateStudent(ctx, id, u)
			return err
		})
	}, attribute.String("student_id", id))
	return student, err
}

// AddMember makes the student a member of the club and returns the new membership ID.
//
// The duplicate check, the canonical insert, both index writes and the
// member_count refresh happen in one transaction while both keys are locked;
// the unique (club_id, student_id) index rejects a racing writer from another process.
func (s *Store) AddMember(ctx context.Context, clubID, studentID string, role models.Role) (string, error) {
	var membershipID string
	err := s.mutate(ctx, "add_member", []string{clubKey(clubID), studentKey(studentID)}, func(ctx context.Context) error {
		if !role.Valid() {
			return fmt.Errorf("%q: %w", role, ErrInvalidRole)
		}
		return s.tx(ctx, "add_member", func(tx *gorm.DB) error {
			ents := s.entities.WithTx(tx)
			ix := s.index.WithTx(tx)

			if _, err := ents.GetClub(ctx, clubID); err != nil {
				return err
			}
			if _, err := ents.GetStudent(ctx, studentID); err != nil {
				return err
			}

			_, err := ix.Get(ctx, clubID, studentID)
			switch {
			case err == nil:
				return fmt.Errorf("student %s is already a member of club %s: %w", studentID, clubID, ErrConflict)
			case !errors.Is(err, ErrNotFound) || errors.Is(err, ErrInconsistent):
				return err
			}

			var existing int64
			if err := tx.WithContext(ctx).Model(&models.Membership{}).
				Where("club_id = ? AND student_id = ?", clubID, studentID).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				s.metrics.Inconsistency("canonical_only")
				return inconsistent(clubID, studentID, "membership row exists without index entries")
			}

			membership := models.Membership{
				ClubID:    clubID,
				StudentID: studentID,
				Role:      role,
				JoinDate:  s.now(),
			}
			if err := tx.WithContext(ctx).Create(&membership).Error; err != nil {
				if isDuplicate(err) {
					return fmt.Errorf("student %s is already a member of club %s: %w", studentID, clubID, ErrConflict)
				}
				return err
			}

			if err := ix.Add(ctx, IndexEntry{
				ClubID:       clubID,
				StudentID:    studentID,
				MembershipID: membership.ID,
				Role:         role,
				JoinDate:     membership.JoinDate,
			}); err != nil {
				return err
			}
			if _, err := s.recountMembers(ctx, tx, clubID); err != nil {
				return err
			}
			membershipID = membership.ID
			return nil
		})
	}, attribute.String("club_id", clubID), attribute.String("student_id", studentID))
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "member added",
		slog.String("club_id", clubID),
		slog.String("student_id", studentID),
		slog.String("membership_id", membershipID),
		slog.String("role", string(role)),
	)
	return membershipID, nil
}

// RemoveMember ends the student's membership in the club
func (s *Store) RemoveMember(ctx context.Context, clubID, studentID string) error {
	err := s.mutate(ctx, "remove_member", []string{clubKey(clubID), studentKey(studentID)}, func(ctx context.Context) error {
		return s.tx(ctx, "remove_member", func(tx *gorm.DB) error {
			ix := s.index.WithTx(tx)

			if _, err := s.entities.WithTx(tx).GetClub(ctx, clubID); err != nil {
				return err
			}
			if _, err := ix.Get(ctx, clubID, studentID); err != nil {
				return err
			}

			result := tx.WithContext(ctx).
				Where("club_id = ? AND student_id = ?", clubID, studentID).
				Delete(&models.Membership{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				s.metrics.Inconsistency("index_only")
				return inconsistent(clubID, studentID, "index entries exist without a membership row")
			}

			if err := ix.Remove(ctx, clubID, studentID); err != nil {
				return err
			}
			_, err := s.recountMembers(ctx, tx, clubID)
			return err
		})
	}, attribute.String("club_id", clubID), attribute.String("student_id", studentID))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "member removed",
		slog.String("club_id", clubID),
		slog.String("student_id", studentID),
	)
	return nil
}

// ChangeRole sets a new role on an active membership. member_count is unaffected.
func (s *Store) ChangeRole(ctx context.Context, clubID, studentID string, role models.Role) error {
	return s.mutate(ctx, "change_role", []string{clubKey(clubID), studentKey(studentID)}, func(ctx context.Context) error {
		if !role.Valid() {
			return fmt.Errorf("%q: %w", role, ErrInvalidRole)
		}
		return s.tx(ctx, "change_role", func(tx *gorm.DB) error {
			ents := s.entities.WithTx(tx)
			ix := s.index.WithTx(tx)

			if _, err := ents.GetClub(ctx, clubID); err != nil {
				return err
			}
			if _, err := ents.GetStudent(ctx, studentID); err != nil {
				return err
			}
			entry, err := ix.Get(ctx, clubID, studentID)
			if err != nil {
				return err
			}
			if entry.Role == role {
				return nil
			}

			result := tx.WithContext(ctx).Model(&models.Membership{}).
				Where("club_id = ? AND student_id = ?", clubID, studentID).
				Update("role", role)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				s.metrics.Inconsistency("index_only")
				return inconsistent(clubID, studentID, "index entries exist without a membership row")
			}
			if err := ix.UpdateRole(ctx, clubID, studentID, role); err != nil {
				return err
			}

			s.logger.InfoContext(ctx, "member role changed",
				slog.String("club_id", clubID),
				slog.String("student_id", studentID),
				slog.String("from", string(entry.Role)),
				slog.String("to", string(role)),
			)
			return nil
		})
	}, attribute.String("club_id", clubID), attribute.String("student_id", studentID))
}

// MemberCount returns the club's cached member count
func (s *Store) MemberCount(ctx context.Context, clubID string) (int, error) {
	club, err := s.entities.GetClub(ctx, clubID)
	if err != nil {
		return 0, err
	}
	return club.MemberCount, nil
}
