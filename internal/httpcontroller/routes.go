package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initRoutes initializes the routes for the server.
func (s *Server) initRoutes() {
	s.Echo.GET("/", s.rootHandler)

	authLimiter := s.AuthRateLimiter()
	s.Echo.GET("/signup", s.signupPageHandler)
	s.Echo.POST("/signup", s.signupHandler, authLimiter)
	s.Echo.GET("/login", s.loginPageHandler)
	s.Echo.POST("/login", s.loginHandler, authLimiter)
	s.Echo.GET("/logout", s.logoutHandler)

	s.Echo.GET("/dashboard", s.dashboardHandler, s.RequireSession)
	s.Echo.POST("/predict", s.predictHandler, s.RequireSession)
	s.Echo.GET("/history", s.historyHandler, s.RequireSession)
	s.Echo.GET("/static/uploads/*", s.uploadHandler, s.RequireSession)

	api := s.Echo.Group("/api/v1")
	api.GET("/health", s.healthHandler)
	api.POST("/predict", s.apiPredictHandler, s.RequireSession)
	api.GET("/history", s.apiHistoryHandler, s.RequireSession)

	if s.Metrics != nil && s.Settings.Observability.Enabled && s.Settings.Observability.Listen == "" {
		s.Echo.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	s.Echo.GET("/assets/*", echo.WrapHandler(
		http.StripPrefix("/assets/", http.FileServer(http.FS(assetsRoot())))))
}

// rootHandler sends logged-in users to the dashboard and everyone else to
// the login page.
func (s *Server) rootHandler(c echo.Context) error {
	if _, ok := s.Sessions.Current(c); ok {
		return c.Redirect(http.StatusFound, "/dashboard")
	}
	return c.Redirect(http.StatusFound, "/login")
}
