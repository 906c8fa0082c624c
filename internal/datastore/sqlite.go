package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// sqliteParams enables foreign keys and waits on locks instead of failing.
const sqliteParams = "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open creates the database file if needed and migrates the schema.
func (store *SQLiteStore) Open() error {
	dbPath := store.Settings.Output.SQLite.Path
	if dbPath == "" {
		return validationError("sqlite path is empty", "output.sqlite.path")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+sqliteParams), gormConfig())
	if err != nil {
		return dbError(err, "open", "db_type", "sqlite", "path", dbPath)
	}

	store.DB = db
	if err := performAutoMigration(db, store.Settings.Debug, "SQLite", dbPath); err != nil {
		_ = store.DataStore.Close()
		return err
	}

	GetLogger().Info("SQLite database opened", logger.String("path", dbPath))
	return nil
}
