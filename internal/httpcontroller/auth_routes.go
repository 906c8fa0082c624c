package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/datastore"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
	"github.com/lesionscan/lesionscan/internal/security"
)

// User-facing form messages
const (
	msgUsernameTaken      = "Username already exists."
	msgInvalidCredentials = "Invalid credentials!"
	msgSignupSuccess      = "Signup successful! Please login."
)

// authPageData is rendered by the login and signup templates.
type authPageData struct {
	pageData
	Error    string
	Username string
}

func (s *Server) renderAuthPage(c echo.Context, code int, page, title, username, message string) error {
	data := authPageData{
		pageData: s.newPageData(c, title),
		Error:    message,
		Username: username,
	}
	data.Flashes = s.Sessions.Flashes(c)
	return c.Render(code, page, data)
}

func (s *Server) recordAuth(operation string, err error) {
	if s.Metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	s.Metrics.HTTP.RecordAuthOperation(operation, status)
}

func (s *Server) signupPageHandler(c echo.Context) error {
	return s.renderAuthPage(c, http.StatusOK, "signup", "Sign up", "", "")
}

// signupHandler creates the account and sends the user to the login page.
func (s *Server) signupHandler(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	_, err := s.DS.CreateUser(c.Request().Context(), username, password)
	s.recordAuth("signup", err)
	switch {
	case err == nil:
	case errors.Is(err, datastore.ErrUsernameTaken):
		return s.renderAuthPage(c, http.StatusConflict, "signup", "Sign up", username, msgUsernameTaken)
	case errors.IsCategory(err, errors.CategoryValidation):
		return s.renderAuthPage(c, http.StatusBadRequest, "signup", "Sign up", username, err.Error())
	default:
		return NewHandlerError(err, "Failed to create account", http.StatusInternalServerError)
	}

	if err := s.Sessions.AddFlash(c, msgSignupSuccess); err != nil {
		GetLogger().Warn("failed to store signup flash", logger.Error(err))
	}
	return c.Redirect(http.StatusFound, "/login")
}

func (s *Server) loginPageHandler(c echo.Context) error {
	if _, ok := s.Sessions.Current(c); ok {
		return c.Redirect(http.StatusFound, "/dashboard")
	}
	return s.renderAuthPage(c, http.StatusOK, "login", "Log in", "", "")
}

// loginHandler verifies the credentials and starts a session.
func (s *Server) loginHandler(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	user, err := s.DS.Verify(c.Request().Context(), username, password)
	s.recordAuth("login", err)
	if err != nil {
		if errors.Is(err, datastore.ErrNoMatch) {
			GetLogger().WithContext(c.Request().Context()).Info("login failed", logger.String("ip", c.RealIP()))
			return s.renderAuthPage(c, http.StatusUnauthorized, "login", "Log in", username, msgInvalidCredentials)
		}
		return NewHandlerError(err, "Login is temporarily unavailable", http.StatusInternalServerError)
	}

	if err := s.Sessions.Login(c, &security.SessionUser{ID: user.ID, Username: user.Username}); err != nil {
		return NewHandlerError(err, "Failed to start session", http.StatusInternalServerError)
	}
	GetLogger().WithContext(c.Request().Context()).Info("user logged in",
		logger.Uint64("user_id", uint64(user.ID)))
	return c.Redirect(http.StatusFound, "/dashboard")
}

// logoutHandler clears the session.
func (s *Server) logoutHandler(c echo.Context) error {
	err := s.Sessions.Logout(c)
	s.recordAuth("logout", err)
	if err != nil {
		return NewHandlerError(err, "Failed to end session", http.StatusInternalServerError)
	}
	return c.Redirect(http.StatusFound, "/login")
}
