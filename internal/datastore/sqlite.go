package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Path  string
	Debug bool
}

// New creates the SQLite-backed store. SQLite is the only supported backend;
// the deployment is a single long-lived process.
func New(path string, debug bool) Interface {
	return &SQLiteStore{Path: path, Debug: debug}
}

// Open sets up the SQLite database connection. WAL journaling plus a busy
// timeout let the background scheduler and foreground query paths read and
// write concurrently without immediate contention failures.
func (store *SQLiteStore) Open() error {
	dir := filepath.Dir(store.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", store.Path)

	logLevel := gormlogger.Warn
	if store.Debug {
		logLevel = gormlogger.Info
	}
	gormLogger := gormlogger.New(
		gormLogWriter{},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performMigrations(db, store.Debug)
}

// gormLogWriter routes GORM log output into the datastore service logger.
type gormLogWriter struct{}

func (gormLogWriter) Printf(format string, args ...any) {
	logger.Info(fmt.Sprintf(format, args...))
}
