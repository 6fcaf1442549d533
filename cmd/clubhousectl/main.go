package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mikepea/clubhouse/pkg/clubhouse/database"
	"github.com/mikepea/clubhouse/pkg/clubhouse/importexport"
	"github.com/mikepea/clubhouse/pkg/clubhouse/logging"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "clubhousectl",
		Usage:     "maintenance commands for the clubhouse membership store",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-driver",
				Usage:   "sqlite or postgres",
				EnvVars: []string{"CLUBHOUSE_DB_DRIVER"},
				Value:   "sqlite",
			},
			&cli.StringFlag{
				Name:    "db-dsn",
				Usage:   "database file or connection string",
				EnvVars: []string{"CLUBHOUSE_DB_DSN"},
				Value:   "clubhouse.db",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"CLUBHOUSE_LOG_LEVEL"},
				Value:   "warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "rebuild-indexes",
				Usage:  "regenerate both membership indexes and member counts from the memberships table",
				Action: rebuildIndexes,
			},
			{
				Name:   "check",
				Usage:  "report disagreements between memberships, indexes and member counts",
				Action: check,
			},
			{
				Name:  "export",
				Usage: "write every club, student and membership as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
				},
				Action: export,
			},
			{
				Name:  "roster",
				Usage: "write a club roster as an xlsx workbook",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "club", Required: true, Usage: "club ID"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "output .xlsx file"},
				},
				Action: roster,
			},
		},
	}
}

// openStore connects using the global flags and migrates the schema
func openStore(c *cli.Context) (*store.Store, error) {
	logger, _, err := logging.New(logging.Options{Level: c.String("log-level"), Format: "text"})
	if err != nil {
		return nil, err
	}

	driver := c.String("db-driver")
	db, err := database.Connect(driver, c.String("db-dsn"), logging.NewGormLogger(logger, 200*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store.New(db, store.WithLogger(logger)), nil
}

func rebuildIndexes(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	result, err := s.RebuildIndexes(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Rebuilt indexes from %d memberships (%d orphaned memberships removed, %d clubs recounted)\n",
		result.Memberships, result.OrphansRemoved, result.ClubsRecounted)
	return nil
}

func check(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	report, err := s.Verify(c.Context)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Consistent() {
		return cli.Exit("membership indexes are inconsistent; run rebuild-indexes", 2)
	}
	slog.Debug("membership indexes consistent")
	return nil
}

func export(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	snap, err := importexport.BuildSnapshot(c.Context, s, time.Now().UTC())
	if err != nil {
		return err
	}

	w := c.App.Writer
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func roster(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	club, err := s.GetClub(c.Context, c.String("club"))
	if err != nil {
		return err
	}
	entries, err := s.Roster(c.Context, club.ID, store.RosterOptions{Sort: store.SortByName})
	if err != nil {
		return err
	}

	f, err := os.Create(c.String("out"))
	if err != nil {
		return err
	}
	if err := importexport.WriteRosterXLSX(f, club, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %d members of %s to %s\n", len(entries), club.Name, c.String("out"))
	return nil
}
