package httpcontroller

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/security"
)

// CSRFContextKey is the key used to store CSRF token in the context
const CSRFContextKey = "csrf"

// userContextKey holds the *security.SessionUser set by RequireSession
const userContextKey = "user"

// rateLimiterExpiry drops idle per-client limiters
const rateLimiterExpiry = 3 * time.Minute

// configureMiddleware sets up middleware for the server.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.RequestIDMiddleware())
	s.Echo.Use(s.LoggingMiddleware())
	s.Echo.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.Settings.WebServer.MaxUploadMB)))
	s.Echo.Use(s.CSRFMiddleware())
	s.Echo.Use(s.GzipMiddleware())
	s.Echo.Use(s.CacheControlMiddleware())
}

// RequestIDMiddleware assigns an X-Request-ID and carries it into the
// request context so module loggers pick it up as trace_id.
func (s *Server) RequestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, requestID string) {
			ctx := logger.WithTraceID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

// LoggingMiddleware logs each completed request and records HTTP metrics.
func (s *Server) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if s.Metrics != nil {
				defer s.Metrics.HTTP.RequestStarted()()
			}

			if err := next(c); err != nil {
				// Commit the error response now so the status is known
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			elapsed := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			if s.Metrics != nil {
				s.Metrics.HTTP.RecordHTTPRequest(req.Method, route, res.Status, elapsed.Seconds(), res.Size)
			}

			reqLogger := GetLogger().WithContext(req.Context())
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", res.Status),
				logger.String("ip", c.RealIP()),
				logger.Int64("latency_ms", elapsed.Milliseconds()),
				logger.Int64("bytes_out", res.Size),
			}
			switch {
			case res.Status >= http.StatusInternalServerError:
				reqLogger.Error("HTTP request", fields...)
			case res.Status >= http.StatusBadRequest:
				reqLogger.Warn("HTTP request", fields...)
			case route == "/metrics" || route == "/api/v1/health":
				reqLogger.Debug("HTTP request", fields...)
			default:
				reqLogger.Info("HTTP request", fields...)
			}
			return nil
		}
	}
}

// CSRFMiddleware configures CSRF protection for the server
func (s *Server) CSRFMiddleware() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   s.Settings.Security.SecureCookie,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   1800, // 30 minutes token lifetime
		TokenLength:    32,
		ContextKey:     CSRFContextKey,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/assets/") ||
				path == "/metrics" ||
				path == "/api/v1/health"
		},
		ErrorHandler: func(err error, c echo.Context) error {
			GetLogger().WithContext(c.Request().Context()).Warn("CSRF token validation failed",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().URL.Path),
				logger.Error(err))
			return echo.NewHTTPError(http.StatusForbidden, "Invalid CSRF token")
		},
	})
}

// GzipMiddleware configures Gzip compression for the server
func (s *Server) GzipMiddleware() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
		Skipper: func(c echo.Context) bool {
			// promhttp negotiates its own compression
			return c.Request().URL.Path == "/metrics"
		},
	})
}

// CacheControlMiddleware sets cache headers based on the request path
func (s *Server) CacheControlMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			header := c.Response().Header()

			switch {
			case strings.HasPrefix(path, "/assets/"):
				header.Set("Cache-Control", "public, max-age=3600, must-revalidate")
			case strings.HasPrefix(path, "/static/uploads/"):
				// Uploads are per-user and may be overwritten
				header.Set("Cache-Control", "private, max-age=300")
				header.Set("X-Content-Type-Options", "nosniff")
			case strings.HasPrefix(path, "/api/"):
				header.Set("Cache-Control", "no-store")
				header.Set("Pragma", "no-cache")
				header.Set("Expires", "0")
			default:
				header.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}

// RequireSession rejects requests without a logged-in user. HTML requests
// are redirected to /login, API requests get 401 JSON.
func (s *Server) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := s.Sessions.Current(c)
		if !ok {
			if isAPIRequest(c) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			}
			return c.Redirect(http.StatusFound, "/login")
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// AuthRateLimiter limits login and signup submissions per client IP.
func (s *Server) AuthRateLimiter() echo.MiddlewareFunc {
	if s.Settings.Security.RateLimit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.Settings.Security.RateLimit),
		Burst:     s.Settings.Security.RateBurst,
		ExpiresIn: rateLimiterExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Method != http.MethodPost
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			GetLogger().Warn("auth rate limit exceeded",
				logger.String("ip", identifier),
				logger.String("path", c.Request().URL.Path))
			if s.Metrics != nil {
				s.Metrics.HTTP.RecordRateLimited(c.Path())
			}
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts, please wait and try again.")
		},
	})
}

// currentUser returns the user stored by RequireSession.
func currentUser(c echo.Context) *security.SessionUser {
	user, _ := c.Get(userContextKey).(*security.SessionUser)
	return user
}

// csrfToken returns the token issued for this request, if any.
func csrfToken(c echo.Context) string {
	token, _ := c.Get(CSRFContextKey).(string)
	return token
}

func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}
