package datastore

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
)

// Username and password bounds. 72 bytes is the bcrypt input limit.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MaxPasswordBytes  = 72
)

// ValidateCredentials checks signup input and returns the trimmed username.
func ValidateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return "", validationError("Username must be between 3 and 64 characters.", "username")
	}
	if password == "" {
		return "", validationError("Password must not be empty.", "password")
	}
	if len(password) > MaxPasswordBytes {
		return "", validationError("Password must be at most 72 bytes.", "password")
	}
	return username, nil
}

// CreateUser stores a new account and returns its id. A duplicate username
// fails with ErrUsernameTaken and leaves the existing row untouched.
func (ds *DataStore) CreateUser(ctx context.Context, username, password string) (id uint, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpCreateUser, start, err) }()

	if ds.DB == nil {
		return 0, ErrNotInitialized
	}

	username, err = ValidateCredentials(username, password)
	if err != nil {
		return 0, err
	}

	var existing int64
	if err := ds.DB.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		return 0, dbError(err, "create_user_lookup")
	}
	if existing > 0 {
		return 0, conflictError(username)
	}

	hash, err := ds.hasher.Hash(password)
	if err != nil {
		return 0, dbError(err, "hash_password")
	}

	user := User{Username: username, Password: hash}
	if err := ds.DB.WithContext(ctx).Create(&user).Error; err != nil {
		// Lost a race with a concurrent signup
		if isDuplicateKey(err) {
			return 0, conflictError(username)
		}
		return 0, dbError(err, "create_user")
	}

	GetLogger().Info("user created",
		logger.Uint64("user_id", uint64(user.ID)),
		logger.String("username", username))
	return user.ID, nil
}

// Verify returns the user when password matches. Unknown users and wrong
// passwords both yield ErrNoMatch.
func (ds *DataStore) Verify(ctx context.Context, username, password string) (user *User, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpVerifyUser, start, err) }()

	if ds.DB == nil {
		return nil, ErrNotInitialized
	}

	var found []User
	if err := ds.DB.WithContext(ctx).
		Where("username = ?", strings.TrimSpace(username)).
		Limit(1).
		Find(&found).Error; err != nil {
		return nil, dbError(err, "verify_user")
	}

	if len(found) == 0 {
		ds.hasher.Compare(ds.dummyHash, password)
		return nil, noMatchError()
	}
	if !ds.hasher.Compare(found[0].Password, password) {
		return nil, noMatchError()
	}
	return &found[0], nil
}
