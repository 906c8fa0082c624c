// Package datastore persists user accounts and classification history with
// gorm on SQLite or MySQL.
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
)

// Interface is the storage contract used by the web layer.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, username, password string) (uint, error)
	Verify(ctx context.Context, username, password string) (*User, error)

	Record(ctx context.Context, userID uint, image, prediction string) (*HistoryEntry, error)
	ListFor(ctx context.Context, userID uint) ([]HistoryEntry, error)
	Count(ctx context.Context, userID uint) (int64, error)
}

// PasswordHasher turns passwords into storable hashes and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// DataStore implements the user and history operations on a gorm handle.
// SQLiteStore and MySQLStore embed it and provide Open.
type DataStore struct {
	DB      *gorm.DB
	hasher  PasswordHasher
	metrics *metrics.DatastoreMetrics
	now     func() time.Time

	// dummyHash is compared against when Verify finds no user, so unknown
	// and known usernames cost the same hasher work.
	dummyHash string
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithMetrics records datastore operations into m.
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(ds *DataStore) { ds.metrics = m }
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(ds *DataStore) { ds.now = now }
}

func newDataStore(hasher PasswordHasher, opts []Option) DataStore {
	ds := DataStore{
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&ds)
	}
	if hasher != nil {
		if h, err := hasher.Hash(dummyPassword); err == nil {
			ds.dummyHash = h
		}
	}
	return ds
}

const dummyPassword = "lesionscan-no-such-user"

// New returns the store selected by settings. Open must be called before use.
func New(settings *conf.Settings, hasher PasswordHasher, opts ...Option) (Interface, error) {
	if hasher == nil {
		return nil, errors.Newf("datastore requires a password hasher").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: newDataStore(hasher, opts),
			Settings:  settings,
		}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: newDataStore(hasher, opts),
			Settings:  settings,
		}, nil
	default:
		return nil, errors.Newf("no database backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Ping checks the database connection.
func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return ErrNotInitialized
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping")
	}
	return nil
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	ds.DB = nil
	return nil
}

// observe records the outcome of one operation.
func (ds *DataStore) observe(operation string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	if err != nil {
		ds.metrics.RecordOperation(operation, metrics.StatusError, string(errors.CategoryOf(err)), time.Since(start).Seconds())
		return
	}
	ds.metrics.RecordOperation(operation, metrics.StatusSuccess, "", time.Since(start).Seconds())
}
