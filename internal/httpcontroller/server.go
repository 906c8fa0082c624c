// Package httpcontroller serves the lesionscan web pages and JSON API.
package httpcontroller

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/net/netutil"

	"github.com/lesionscan/lesionscan/internal/buildinfo"
	"github.com/lesionscan/lesionscan/internal/classifier"
	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/datastore"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/imaging"
	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/observability"
	"github.com/lesionscan/lesionscan/internal/security"
	"github.com/lesionscan/lesionscan/internal/uploads"
)

// ShutdownTimeout bounds the graceful stop of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// Dependencies are the collaborators a Server routes requests to.
// Metrics and BuildInfo are optional.
type Dependencies struct {
	DS         datastore.Interface
	Classifier *classifier.Classifier
	Uploads    *uploads.Store
	Sessions   *security.SessionManager
	Metrics    *observability.Metrics
	BuildInfo  *buildinfo.Context
}

// Server encapsulates Echo server and related configurations.
type Server struct {
	Echo       *echo.Echo
	Settings   *conf.Settings
	DS         datastore.Interface
	Classifier *classifier.Classifier
	Uploads    *uploads.Store
	Sessions   *security.SessionManager
	Metrics    *observability.Metrics
	BuildInfo  *buildinfo.Context

	normalizer imaging.Normalizer
}

// GetLogger returns the httpcontroller module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("httpcontroller")
}

// New initializes a new HTTP server with its middleware, templates and routes.
func New(settings *conf.Settings, deps Dependencies) (*Server, error) {
	if deps.DS == nil || deps.Classifier == nil || deps.Uploads == nil || deps.Sessions == nil {
		return nil, errors.Newf("http server requires datastore, classifier, uploads and sessions").
			Component("httpcontroller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if deps.BuildInfo == nil {
		deps.BuildInfo = buildinfo.New("", "")
	}

	s := &Server{
		Echo:       echo.New(),
		Settings:   settings,
		DS:         deps.DS,
		Classifier: deps.Classifier,
		Uploads:    deps.Uploads,
		Sessions:   deps.Sessions,
		Metrics:    deps.Metrics,
		BuildInfo:  deps.BuildInfo,
		normalizer: imaging.Normalizer{MaxPixels: settings.Imaging.MaxPixels},
	}

	if err := s.initializeServer(); err != nil {
		return nil, err
	}
	return s, nil
}

// initializeServer configures and initializes the server.
func (s *Server) initializeServer() error {
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()
	s.Echo.HTTPErrorHandler = s.HandleError

	// Request logging goes through LoggingMiddleware
	s.Echo.Logger.SetOutput(io.Discard)
	if s.Settings.Debug {
		s.Echo.Debug = true
		s.Echo.Logger.SetLevel(log.DEBUG)
	} else {
		s.Echo.Logger.SetLevel(log.OFF)
	}

	s.Echo.Server.ReadTimeout = s.Settings.WebServer.ReadTimeout
	s.Echo.Server.WriteTimeout = s.Settings.WebServer.WriteTimeout

	if err := s.setupTemplateRenderer(); err != nil {
		return err
	}
	s.configureMiddleware()
	s.initRoutes()
	return nil
}

// Listen opens the TCP listener for the configured port, capped at
// webserver.maxconnections concurrent connections when set.
func Listen(settings *conf.WebServerSettings) (net.Listener, error) {
	ln, err := net.Listen("tcp", ":"+settings.Port)
	if err != nil {
		return nil, errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Context("port", settings.Port).
			Build()
	}
	if settings.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, settings.MaxConnections)
	}
	return ln, nil
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.Echo.Listener = ln
	GetLogger().Info("HTTP server started", logger.String("address", ln.Addr().String()))
	if err := s.Echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

// Run serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	GetLogger().Info("shutting down HTTP server")
	if err := s.Echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategorySystem).
			Context("operation", "shutdown").
			Build()
	}
	return nil
}
