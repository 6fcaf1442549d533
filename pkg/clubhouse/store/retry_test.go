package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked wrapped", fmt.Errorf("query: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isDuplicate(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, isDuplicate(errors.New("boom")))
}

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	s, _ := newTestStore(t)
	calls := 0
	err := s.withRetry(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustionIsUnavailable(t *testing.T) {
	s, _ := newTestStore(t)
	calls := 0
	err := s.withRetry(context.Background(), "test", func() error {
		calls++
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int(s.opts.MaxRetries)+1, calls)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	s, _ := newTestStore(t)
	calls := 0
	err := s.withRetry(context.Background(), "test", func() error {
		calls++
		return ErrConflict
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, calls)
}
