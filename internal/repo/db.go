// Package repo is the persistence layer: thin GORM free functions per table,
// plus SQLite bootstrap. Functions take (ctx, *gorm.DB, ...) so callers can
// pass a transaction handle.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-telegram-otp/internal/domain"
)

// pragmas are per-connection settings, so they travel in the DSN and the
// driver applies them to every pooled connection. foreign_keys makes the
// otp_sessions -> accounts cascade effective.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// sqliteDSN appends the pragmas to path as _pragma query parameters.
func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// OpenSQLite opens (or creates) the database at path with the pure-Go driver
// and registers the GORM tracing plugin, so queries become spans under the
// request or update that issued them.
func OpenSQLite(path string) (*gorm.DB, error) {
	// The driver reports a missing directory as "out of memory (14)".
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	// Opening is lazy; surface a bad pragma or file here.
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the schema for accounts, login codes, and
// processed-update markers.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Account{},
		&domain.OTPSession{},
		&domain.ProcessedUpdate{},
	)
}
