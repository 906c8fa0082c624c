package datastore

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/lesionscan/lesionscan/internal/errors"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// Sentinel errors returned by the store.
var (
	// ErrUsernameTaken is returned when signing up with an existing username.
	ErrUsernameTaken = errors.NewStd("username already exists")

	// ErrNoMatch is returned by Verify for an unknown user or a wrong password.
	ErrNoMatch = errors.NewStd("invalid credentials")

	// ErrNotInitialized is returned when the store is used before Open.
	ErrNotInitialized = errors.NewStd("database connection is not initialized")
)

// dbError creates a categorized database error with context pairs.
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error for a rejected field.
func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

// conflictError wraps ErrUsernameTaken with the offending name.
func conflictError(username string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrUsernameTaken, username)).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("username", username).
		Build()
}

// noMatchError is the single error Verify returns for any failed login.
func noMatchError() error {
	return errors.New(ErrNoMatch).
		Component("datastore").
		Category(errors.CategoryValidation).
		Build()
}

// isDuplicateKey reports whether err is a unique constraint violation from
// any supported driver.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	// Wrapped driver errors that lost their type
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry")
}
