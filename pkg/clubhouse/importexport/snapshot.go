package importexport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/mikepea/clubhouse/pkg/clubhouse/validation"
)

// SnapshotVersion is written into every export
const SnapshotVersion = 1

// Snapshot is a portable copy of all clubs, students and memberships.
// Students are referenced by email so a snapshot can be loaded into a
// database with different IDs.
type Snapshot struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Students   []ExportStudent `json:"students"`
	Clubs      []ExportClub    `json:"clubs"`
}

// ExportStudent represents a student for export
type ExportStudent struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	StudentNumber string `json:"student_number,omitempty"`
	Major         string `json:"major,omitempty"`
}

// ExportClub represents a club and its roster for export
type ExportClub struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
	MeetingTime string         `json:"meeting_time,omitempty"`
	Members     []ExportMember `json:"members"`
}

// ExportMember represents one membership for export
type ExportMember struct {
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	JoinDate time.Time   `json:"join_date"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	StudentsImported    int      `json:"students_imported"`
	ClubsImported       int      `json:"clubs_imported"`
	MembershipsImported int      `json:"memberships_imported"`
	Skipped             int      `json:"skipped"`
	Errors              []string `json:"errors"`
}

// BuildSnapshot reads every club roster through the store
func BuildSnapshot(ctx context.Context, s store.MembershipStore, now time.Time) (*Snapshot, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	clubs, err := s.ListClubs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}

	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: now,
		Students:   make([]ExportStudent, len(students)),
		Clubs:      make([]ExportClub, 0, len(clubs)),
	}
	for i, st := range students {
		snap.Students[i] = ExportStudent{
			Name:          st.Name,
			Email:         st.Email,
			StudentNumber: st.StudentNumber,
			Major:         st.Major,
		}
	}

	for _, club := range clubs {
		roster, err := s.Roster(ctx, club.ID, store.RosterOptions{Sort: store.SortByName})
		if errors.Is(err, store.ErrNotFound) {
			continue // deleted since ListClubs
		}
		if err != nil {
			return nil, fmt.Errorf("roster for club %s: %w", club.ID, err)
		}
		members := make([]ExportMember, len(roster))
		for i, m := range roster {
			members[i] = ExportMember{Email: m.Email, Role: m.Role, JoinDate: m.JoinDate}
		}
		snap.Clubs = append(snap.Clubs, ExportClub{
			Name:        club.Name,
			Description: club.Description,
			Category:    club.Category,
			MeetingTime: club.MeetingTime,
			Members:     members,
		})
	}
	return snap, nil
}

// ApplySnapshot loads snap through the store. Students whose email already
// exists and clubs whose name already exists (ignoring case) are reused, not
// duplicated; memberships that already exist are counted as skipped. Join
// dates are assigned at import time. Rows with a malformed name or email are
// reported in Errors and never reach the store.
func ApplySnapshot(ctx context.Context, s store.MembershipStore, snap *Snapshot) ImportResult {
	result := ImportResult{Errors: []string{}}
	fail := func(format string, args ...interface{}) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		result.Skipped++
	}

	studentIDs := make(map[string]string, len(snap.Students))
	for i, st := range snap.Students {
		if !validation.ValidName(st.Name) {
			fail("student %d: invalid name", i)
			continue
		}
		if !validation.ValidEmail(st.Email) {
			fail("student %d: invalid email %q", i, st.Email)
			continue
		}
		existing, err := s.GetStudentByEmail(ctx, st.Email)
		if err == nil {
			studentIDs[existing.Email] = existing.ID
			result.Skipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			fail("student %d: %v", i, err)
			continue
		}
		created, err := s.CreateStudent(ctx, store.StudentFields{
			Name:          st.Name,
			Email:         st.Email,
			StudentNumber: st.StudentNumber,
			Major:         st.Major,
		})
		if err != nil {
			fail("student %d: %v", i, err)
			continue
		}
		studentIDs[created.Email] = created.ID
		result.StudentsImported++
	}

	existingClubs, err := s.ListClubs(ctx)
	if err != nil {
		fail("list clubs: %v", err)
		return result
	}
	clubIDs := make(map[string]string, len(existingClubs))
	for _, c := range existingClubs {
		clubIDs[strings.ToLower(c.Name)] = c.ID
	}

	for i, c := range snap.Clubs {
		if !validation.ValidName(c.Name) {
			fail("club %d: invalid name", i)
			continue
		}
		key := strings.ToLower(strings.TrimSpace(c.Name))
		clubID, ok := clubIDs[key]
		if !ok {
			created, err := s.CreateClub(ctx, store.ClubFields{
				Name:        c.Name,
				Description: c.Description,
				Category:    c.Category,
				MeetingTime: c.MeetingTime,
			})
			if err != nil {
				fail("club %d: %v", i, err)
				continue
			}
			clubID = created.ID
			clubIDs[key] = clubID
			result.ClubsImported++
		}

		for j, m := range c.Members {
			studentID, ok := studentIDs[strings.ToLower(strings.TrimSpace(m.Email))]
			if !ok {
				fail("club %d member %d: unknown student %s", i, j, m.Email)
				continue
			}
			role := m.Role
			if role == "" {
				role = models.DefaultRole
			}
			_, err := s.AddMember(ctx, clubID, studentID, role)
			switch {
			case err == nil:
				result.MembershipsImported++
			case errors.Is(err, store.ErrConflict):
				result.Skipped++
			default:
				fail("club %d member %d: %v", i, j, err)
			}
		}
	}
	return result
}
