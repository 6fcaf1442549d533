package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentAddMemberSamePair(t *testing.T) {
	s, db := newTestStore(t)
	club := createClub(t, s, "Chess Club")
	alice := createStudent(t, s, "Alice")

	const callers = 8
	var ok, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		role := models.AllRoles()[i%len(models.AllRoles())]
		g.Go(func() error {
			_, err := s.AddMember(context.Background(), club.ID, alice.ID, role)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, callers-1, conflicts.Load())
	assert.Equal(t, 1, memberCount(t, s, club.ID))
	assert.EqualValues(t, 1, membershipRows(t, db, club.ID, alice.ID))
	requireConsistent(t, s)
}

func TestConcurrentMutationsAcrossKeys(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	faker := gofakeit.New(7)

	clubs := make([]*models.Club, 4)
	for i := range clubs {
		clubs[i] = createClub(t, s, faker.Company())
	}
	students := make([]*models.Student, 12)
	for i := range students {
		st, err := s.CreateStudent(ctx, StudentFields{
			Name:  faker.Name(),
			Email: fmt.Sprintf("student%d.%s", i, faker.Email()),
			Major: faker.JobTitle(),
		})
		require.NoError(t, err)
		students[i] = st
	}

	var g errgroup.Group
	for _, c := range clubs {
		for _, st := range students {
			g.Go(func() error {
				_, err := s.AddMember(ctx, c.ID, st.ID, models.RoleMember)
				return err
			})
		}
	}
	require.NoError(t, g.Wait())
	for _, c := range clubs {
		assert.Equal(t, len(students), memberCount(t, s, c.ID))
	}

	// Half the students leave club 0 while club 1 is deleted and student 0
	// is deleted outright.
	g = errgroup.Group{}
	for _, st := range students[1:7] {
		g.Go(func() error {
			return s.RemoveMember(ctx, clubs[0].ID, st.ID)
		})
	}
	for _, st := range students[7:] {
		g.Go(func() error {
			return s.ChangeRole(ctx, clubs[2].ID, st.ID, models.RoleOfficer)
		})
	}
	g.Go(func() error { return s.DeleteClub(ctx, clubs[1].ID) })
	g.Go(func() error { return s.DeleteStudent(ctx, students[0].ID) })
	require.NoError(t, g.Wait())

	assert.Equal(t, len(students)-7, memberCount(t, s, clubs[0].ID))
	assert.Equal(t, len(students)-1, memberCount(t, s, clubs[2].ID))
	assert.Equal(t, len(students)-1, memberCount(t, s, clubs[3].ID))
	_, err := s.GetClub(ctx, clubs[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	officers, err := s.Roster(ctx, clubs[2].ID, RosterOptions{Role: models.RoleOfficer})
	require.NoError(t, err)
	assert.Len(t, officers, len(students)-7)

	requireConsistent(t, s)
	assert.Zero(t, s.locks.size())
}

func TestRemoveMemberRacingDeleteClub(t *testing.T) {
	for i := 0; i < 5; i++ {
		s, _ := newTestStore(t)
		ctx := context.Background()
		club := createClub(t, s, "Chess Club")
		alice := createStudent(t, s, "Alice")
		bob := createStudent(t, s, "Bob")
		for _, st := range []*models.Student{alice, bob} {
			_, err := s.AddMember(ctx, club.ID, st.ID, models.RoleMember)
			require.NoError(t, err)
		}

		var g errgroup.Group
		g.Go(func() error {
			err := s.RemoveMember(ctx, club.ID, alice.ID)
			if errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInconsistent) {
				return nil
			}
			return err
		})
		g.Go(func() error { return s.DeleteClub(ctx, club.ID) })
		require.NoError(t, g.Wait())

		for _, st := range []*models.Student{alice, bob} {
			clubs, err := s.ClubsForStudent(ctx, st.ID, StudentClubsOptions{})
			require.NoError(t, err)
			assert.Empty(t, clubs)
		}
		requireConsistent(t, s)
	}
}
