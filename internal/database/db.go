package database

import (
	"fmt"
	"strings"
	"time"

	applog "ai-chat-api/internal/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// InitDB opens the database named by dbURL, tunes the pool and applies pending
// migrations. "sqlite://<path>" selects SQLite, anything else is a postgres DSN.
func InitDB(dbURL string) (*gorm.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	// Configure GORM logger
	gormLogger := logger.New(
		gormWriter{entry: applog.Logger.WithField("component", "gorm")},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	sqliteMode := strings.HasPrefix(dbURL, sqlitePrefix)

	var dialector gorm.Dialector
	if sqliteMode {
		dialector = sqlite.Open(strings.TrimPrefix(dbURL, sqlitePrefix) + "?_busy_timeout=5000")
	} else {
		dialector = postgres.Open(dbURL)
	}

	// Open connection
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB instance: %w", err)
	}

	// SQLite serialises writers anyway; one connection keeps transactions
	// from failing with SQLITE_BUSY instead of queueing.
	if sqliteMode {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return db, nil
}

// gormWriter sends GORM output through logrus at warn level. GORM only
// writes slow queries and SQL errors at the configured level.
type gormWriter struct {
	entry *logrus.Entry
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.entry.Warnf(format, args...)
}
