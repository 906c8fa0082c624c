package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
)

// PasswordHasher turns passwords into storable hashes and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// SHA256Hasher stores the hex SHA-256 digest of the password. Digests are
// unsalted, which keeps databases created by earlier deployments readable.
type SHA256Hasher struct{}

// Hash returns the lowercase hex digest.
func (SHA256Hasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// Compare checks password against a stored digest in constant time.
func (h SHA256Hasher) Compare(hash, password string) bool {
	candidate, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(candidate)) == 1
}

// BcryptHasher stores salted bcrypt hashes.
type BcryptHasher struct {
	Cost int
}

// Hash returns a bcrypt hash at the configured cost.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.New(err).
			Component("security").
			Category(errors.CategoryValidation).
			Context("algorithm", conf.HashBcrypt).
			Build()
	}
	return string(hash), nil
}

// Compare checks password against a bcrypt hash.
func (BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewPasswordHasher returns the hasher for a configured algorithm name.
func NewPasswordHasher(algorithm string) (PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", conf.HashSHA256:
		return SHA256Hasher{}, nil
	case conf.HashBcrypt:
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, errors.Newf("unsupported password hash algorithm %q", algorithm).
			Component("security").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
