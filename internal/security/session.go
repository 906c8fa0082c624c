package security

import (
	"crypto/sha256"
	"net/http"
	"os"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// SessionUser identifies the logged-in user of a request.
type SessionUser struct {
	ID       uint
	Username string
}

// SessionManager stores the login state in a gorilla session.
type SessionManager struct {
	store   sessions.Store
	options sessions.Options
}

// createSessionKey derives a 32 byte key from seed.
// AES requires keys of exactly 16, 24, or 32 bytes
func createSessionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

// NewSessionManager creates a cookie store, or a filesystem store when
// SessionPath is set.
func NewSessionManager(settings *conf.SecuritySettings) (*SessionManager, error) {
	if settings.SessionSecret == "" {
		return nil, errors.Newf("session secret is empty").
			Component("security").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(settings.SessionSecret) < MinSessionSecretLength {
		GetLogger().Warn("session secret is shorter than recommended",
			logger.Int("min_length", MinSessionSecretLength))
	}

	maxAge := settings.SessionMaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	options := sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   settings.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	authKey := createSessionKey(settings.SessionSecret)
	encKey := createSessionKey(settings.SessionSecret + "encryption")

	m := &SessionManager{options: options}
	if settings.SessionPath == "" {
		store := sessions.NewCookieStore(authKey, encKey)
		store.Options = &options
		m.store = store
		GetLogger().Debug("cookie session store configured", logger.Bool("secure", options.Secure))
		return m, nil
	}

	if err := os.MkdirAll(settings.SessionPath, DirPermissions); err != nil {
		return nil, errors.New(err).
			Component("security").
			Category(errors.CategoryFileIO).
			Context("path", settings.SessionPath).
			Build()
	}
	store := sessions.NewFilesystemStore(settings.SessionPath, authKey, encKey)
	store.Options = &options
	store.MaxLength(MaxSessionSizeBytes)
	m.store = store

	GetLogger().Info("filesystem session store configured",
		logger.String("path", settings.SessionPath),
		logger.Int("max_age_seconds", options.MaxAge),
		logger.Bool("secure", options.Secure))
	return m, nil
}

// session returns the request's session. An undecodable cookie yields a
// fresh session.
func (m *SessionManager) session(c echo.Context) *sessions.Session {
	sess, err := m.store.Get(c.Request(), SessionName)
	if err != nil {
		GetLogger().Debug("discarding unreadable session cookie", logger.Error(err))
		sess = m.fresh()
	}
	return sess
}

func (m *SessionManager) fresh() *sessions.Session {
	sess := sessions.NewSession(m.store, SessionName)
	opts := m.options
	sess.Options = &opts
	sess.IsNew = true
	return sess
}

func (m *SessionManager) save(c echo.Context, sess *sessions.Session) error {
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return errors.New(err).
			Component("security").
			Category(errors.CategoryAuth).
			Context("operation", "save_session").
			Build()
	}
	return nil
}

// Login starts a new session for user. Pending flash messages are carried
// over.
func (m *SessionManager) Login(c echo.Context, user *SessionUser) error {
	old := m.session(c)
	flashes := old.Flashes()

	sess := m.fresh()
	for _, f := range flashes {
		sess.AddFlash(f)
	}
	sess.Values[sessionKeyUserID] = user.ID
	sess.Values[sessionKeyUsername] = user.Username
	return m.save(c, sess)
}

// Logout clears the session and expires its cookie.
func (m *SessionManager) Logout(c echo.Context) error {
	sess := m.session(c)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return m.save(c, sess)
}

// Current returns the logged-in user, if any.
func (m *SessionManager) Current(c echo.Context) (*SessionUser, bool) {
	sess := m.session(c)
	id, ok := sess.Values[sessionKeyUserID].(uint)
	if !ok || id == 0 {
		return nil, false
	}
	username, _ := sess.Values[sessionKeyUsername].(string)
	return &SessionUser{ID: id, Username: username}, true
}

// AddFlash queues a one-shot message for the next rendered page.
func (m *SessionManager) AddFlash(c echo.Context, message string) error {
	sess := m.session(c)
	sess.AddFlash(message)
	return m.save(c, sess)
}

// Flashes returns and clears queued messages.
func (m *SessionManager) Flashes(c echo.Context) []string {
	sess := m.session(c)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	if err := m.save(c, sess); err != nil {
		GetLogger().Warn("failed to clear flash messages", logger.Error(err))
	}
	return messages
}
