package security

import "time"

// Security-related constants
const (
	// SessionName is the cookie name of the login session
	SessionName = "lesionscan_session"

	// Session value keys
	sessionKeyUserID   = "user_id"
	sessionKeyUsername = "username"

	// Session and cookie settings
	DefaultSessionMaxAge = 7 * 24 * time.Hour

	// Cryptographic settings
	MinSessionSecretLength = 32

	// File permissions
	DirPermissions = 0o750 // rwxr-x---

	// Session store settings
	MaxSessionSizeBytes = 1024 * 1024 // 1MB max size
)
