package store

import (
	"context"

	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
)

// MembershipStore is everything the HTTP and CLI layers may call.
// Rosters and student memberships are only readable through it.
type MembershipStore interface {
	CreateClub(ctx context.Context, f ClubFields) (*models.Club, error)
	GetClub(ctx context.Context, id string) (*models.Club, error)
	ListClubs(ctx context.Context) ([]models.Club, error)
	SearchClubs(ctx context.Context, query string) ([]models.Club, error)
	UpdateClub(ctx context.Context, id string, u ClubUpdate) (*models.Club, error)
	DeleteClub(ctx context.Context, id string) error

	CreateStudent(ctx context.Context, f StudentFields) (*models.Student, error)
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	GetStudentByEmail(ctx context.Context, email string) (*models.Student, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	UpdateStudent(ctx context.Context, id string, u StudentUpdate) (*models.Student, error)
	DeleteStudent(ctx context.Context, id string) error

	AddMember(ctx context.Context, clubID, studentID string, role models.Role) (string, error)
	RemoveMember(ctx context.Context, clubID, studentID string) error
	ChangeRole(ctx context.Context, clubID, studentID string, role models.Role) error
	Roster(ctx context.Context, clubID string, opts RosterOptions) ([]RosterEntry, error)
	ClubsForStudent(ctx context.Context, studentID string, opts StudentClubsOptions) ([]StudentClub, error)
}

// Maintainer is the maintenance surface used by admin endpoints and the CLI
type Maintainer interface {
	RebuildIndexes(ctx context.Context) (RebuildResult, error)
	Verify(ctx context.Context) (ConsistencyReport, error)
	Stats(ctx context.Context) (Stats, error)
}

var _ Maintainer = (*Store)(nil)
