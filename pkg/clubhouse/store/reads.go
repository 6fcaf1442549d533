package store

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// RosterSort selects the roster ordering
type RosterSort string

const (
	// SortByName orders by student name, ignoring case
	SortByName RosterSort = "name"
	// SortByJoinDate orders by join date, newest first
	SortByJoinDate RosterSort = "join_date"
)

// RosterOptions filters and orders a club roster
type RosterOptions struct {
	Role models.Role // exact match; empty means any role
	Sort RosterSort
}

// RosterEntry is a club member joined with the student record
type RosterEntry struct {
	StudentID     string      `json:"student_id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	StudentNumber string      `json:"student_number,omitempty"`
	Major         string      `json:"major,omitempty"`
	MembershipID  string      `json:"membership_id"`
	Role          models.Role `json:"role"`
	JoinDate      time.Time   `json:"join_date"`
}

// StudentClubsOptions filters a student's memberships
type StudentClubsOptions struct {
	ClubID string      // only this club; empty means any club
	Role   models.Role // exact match; empty means any role
}

// StudentClub is one of a student's memberships joined with the club record
type StudentClub struct {
	ClubID       string      `json:"club_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	MemberCount  int         `json:"member_count"`
	MembershipID string      `json:"membership_id"`
	Role         models.Role `json:"role"`
	JoinDate     time.Time   `json:"join_date"`
}

// Roster lists the club's members from the club index joined with student
// records. Index entries whose student record is missing are logged and skipped.
func (s *Store) Roster(ctx context.Context, clubID string, opts RosterOptions) ([]RosterEntry, error) {
	var roster []RosterEntry
	err := s.run(ctx, "roster", func(ctx context.Context) error {
		if _, err := s.entities.GetClub(ctx, clubID); err != nil {
			return err
		}
		entries, err := s.index.MembersOfClub(ctx, clubID)
		if err != nil {
			return err
		}

		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.StudentID
		}
		students, err := s.entities.studentsByID(ctx, ids)
		if err != nil {
			return err
		}

		roster = make([]RosterEntry, 0, len(entries))
		for _, e := range entries {
			if opts.Role != "" && e.Role != opts.Role {
				continue
			}
			student, ok := students[e.StudentID]
			if !ok {
				s.logger.WarnContext(ctx, "roster entry references missing student, skipping",
					slog.String("club_id", clubID),
					slog.String("student_id", e.StudentID),
					slog.String("membership_id", e.MembershipID),
				)
				continue
			}
			roster = append(roster, RosterEntry{
				StudentID:     student.ID,
				Name:          student.Name,
				Email:         student.Email,
				StudentNumber: student.StudentNumber,
				Major:         student.Major,
				MembershipID:  e.MembershipID,
				Role:          e.Role,
				JoinDate:      e.JoinDate,
			})
		}
		sortRoster(roster, opts.Sort)
		return nil
	})
	return roster, err
}

func sortRoster(roster []RosterEntry, by RosterSort) {
	if by == SortByJoinDate {
		sort.SliceStable(roster, func(i, j int) bool {
			if !roster[i].JoinDate.Equal(roster[j].JoinDate) {
				return roster[i].JoinDate.After(roster[j].JoinDate)
			}
			return roster[i].StudentID < roster[j].StudentID
		})
		return
	}
	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(roster, func(i, j int) bool {
		if cmp := c.CompareString(roster[i].Name, roster[j].Name); cmp != 0 {
			return cmp < 0
		}
		return roster[i].StudentID < roster[j].StudentID
	})
}

// ClubsForStudent lists the student's memberships from the student index
// joined with club records, ordered by club name. Entries whose club record is
// missing are logged and skipped.
func (s *Store) ClubsForStudent(ctx context.Context, studentID string, opts StudentClubsOptions) ([]StudentClub, error) {
	var out []StudentClub
	err := s.run(ctx, "clubs_for_student", func(ctx context.Context) error {
		if _, err := s.entities.GetStudent(ctx, studentID); err != nil {
			return err
		}
		entries, err := s.index.ClubsOfStudent(ctx, studentID)
		if err != nil {
			return err
		}

		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ClubID
		}
		clubs, err := s.entities.clubsByID(ctx, ids)
		if err != nil {
			return err
		}

		out = make([]StudentClub, 0, len(entries))
		for _, e := range entries {
			if opts.ClubID != "" && e.ClubID != opts.ClubID {
				continue
			}
			if opts.Role != "" && e.Role != opts.Role {
				continue
			}
			club, ok := clubs[e.ClubID]
			if !ok {
				s.logger.WarnContext(ctx, "student membership references missing club, skipping",
					slog.String("student_id", studentID),
					slog.String("club_id", e.ClubID),
					slog.String("membership_id", e.MembershipID),
				)
				continue
			}
			out = append(out, StudentClub{
				ClubID:       club.ID,
				Name:         club.Name,
				Description:  club.Description,
				MemberCount:  club.MemberCount,
				MembershipID: e.MembershipID,
				Role:         e.Role,
				JoinDate:     e.JoinDate,
			})
		}

		c := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool {
			if cmp := c.CompareString(out[i].Name, out[j].Name); cmp != 0 {
				return cmp < 0
			}
			return out[i].ClubID < out[j].ClubID
		})
		return nil
	})
	return out, err
}
