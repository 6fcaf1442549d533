package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikepea/clubhouse/pkg/clubhouse/database"
	"github.com/mikepea/clubhouse/pkg/clubhouse/importexport"
	"github.com/mikepea/clubhouse/pkg/clubhouse/logging"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func seedDB(t *testing.T) (string, *gorm.DB, *models.Club) {
	path := filepath.Join(t.TempDir(), "clubhouse.db")
	db, err := database.Connect("sqlite", path, gormlogger.Discard)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	s := store.New(db, store.WithLogger(logging.Discard()))
	ctx := context.Background()
	club, _ := s.CreateClub(ctx, store.ClubFields{Name: "Chess Club"})
	alice, _ := s.CreateStudent(ctx, store.StudentFields{Name: "Alice", Email: "alice@example.edu"})
	if _, err := s.AddMember(ctx, club.ID, alice.ID, models.RolePresident); err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}
	return path, db, club
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"clubhousectl"}, args...))
	return out.String(), err
}

func TestCheckAndRebuild(t *testing.T) {
	path, db, club := seedDB(t)

	if _, err := run(t, "--db-dsn", path, "check"); err != nil {
		t.Fatalf("Expected consistent check, got %v", err)
	}

	db.Where("club_id = ?", club.ID).Delete(&models.ClubMember{})

	out, err := run(t, "--db-dsn", path, "check")
	if err == nil {
		t.Fatal("Expected check to fail on inconsistent indexes")
	}
	if ec, ok := err.(cli.ExitCoder); !ok || ec.ExitCode() != 2 {
		t.Errorf("Expected exit code 2, got %v", err)
	}
	if !strings.Contains(out, "missing_from_club_index") {
		t.Errorf("Expected report in output, got %s", out)
	}

	out, err = run(t, "--db-dsn", path, "rebuild-indexes")
	if err != nil {
		t.Fatalf("rebuild-indexes failed: %v", err)
	}
	if !strings.Contains(out, "from 1 memberships") {
		t.Errorf("Unexpected output: %s", out)
	}

	if _, err := run(t, "--db-dsn", path, "check"); err != nil {
		t.Errorf("Expected consistent check after rebuild, got %v", err)
	}
}

func TestExport(t *testing.T) {
	path, _, _ := seedDB(t)

	out, err := run(t, "--db-dsn", path, "export")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var snap importexport.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}
	if len(snap.Clubs) != 1 || len(snap.Clubs[0].Members) != 1 {
		t.Errorf("Unexpected export: %+v", snap)
	}
}

func TestRoster(t *testing.T) {
	path, _, club := seedDB(t)
	outFile := filepath.Join(t.TempDir(), "roster.xlsx")

	out, err := run(t, "--db-dsn", path, "roster", "--club", club.ID, "--out", outFile)
	if err != nil {
		t.Fatalf("roster failed: %v", err)
	}
	if !strings.Contains(out, "Wrote 1 members of Chess Club") {
		t.Errorf("Unexpected output: %s", out)
	}

	if _, err := run(t, "--db-dsn", path, "roster", "--club", "missing", "--out", outFile); err == nil {
		t.Error("Expected error for unknown club")
	}
}
