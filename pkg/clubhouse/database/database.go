package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sqlitePragmas = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// Connect opens a database handle for the given driver ("sqlite" or "postgres").
// The handle is returned rather than stored so callers inject it explicitly.
func Connect(driver, dsn string, logger gormlogger.Interface) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if logger != nil {
		cfg.Logger = logger
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; one pooled connection keeps writes
		// serialized in-process and ":memory:" databases shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?" + sqlitePragmas
}
