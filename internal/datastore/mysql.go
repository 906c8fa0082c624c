package datastore

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// mysqlTimeout bounds connect, read and write on the MySQL connection.
const mysqlTimeout = "10s"

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// dsn builds the connection string with mysql.Config so credentials are
// escaped correctly.
func (store *MySQLStore) dsn() string {
	cfg := mysql.Config{
		User:                 store.Settings.Output.MySQL.Username,
		Passwd:               store.Settings.Output.MySQL.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%s", store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port),
		DBName:               store.Settings.Output.MySQL.Database,
		AllowNativePasswords: true,
		ParseTime:            true,
		Loc:                  time.UTC,
		Params: map[string]string{
			"charset":      "utf8mb4",
			"timeout":      mysqlTimeout,
			"readTimeout":  mysqlTimeout,
			"writeTimeout": mysqlTimeout,
		},
	}
	return cfg.FormatDSN()
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	address := fmt.Sprintf("%s:%s", store.Settings.Output.MySQL.Host, store.Settings.Output.MySQL.Port)

	db, err := gorm.Open(gormmysql.Open(store.dsn()), gormConfig())
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("address", address),
			logger.String("database", store.Settings.Output.MySQL.Database),
			logger.Error(err))
		return dbError(err, "open", "db_type", "mysql", "address", address)
	}

	store.DB = db
	if err := performAutoMigration(db, store.Settings.Debug, "MySQL", address); err != nil {
		_ = store.DataStore.Close()
		return err
	}

	GetLogger().Info("MySQL database opened",
		logger.String("address", address),
		logger.String("database", store.Settings.Output.MySQL.Database))
	return nil
}
