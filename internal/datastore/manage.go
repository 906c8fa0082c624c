package datastore

import (
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lesionscan/lesionscan/internal/logger"
)

// DefaultSlowQueryThreshold is the duration above which queries log a warning.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// createGormLogger routes gorm output through the datastore module logger.
func createGormLogger() gormlogger.Interface {
	return logger.NewGormLoggerAdapter(GetLogger(), DefaultSlowQueryThreshold)
}

// gormConfig is shared by every backend.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         createGormLogger(),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// performAutoMigration creates or updates the users and history tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&User{}, &HistoryEntry{}); err != nil {
		return dbError(err, "auto_migrate", "db_type", dbType)
	}

	if debug {
		GetLogger().Debug("database initialized",
			logger.String("db_type", dbType),
			logger.String("connection", connectionInfo))
	}
	return nil
}
