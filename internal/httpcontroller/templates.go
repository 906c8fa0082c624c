package httpcontroller

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/observability/metrics"
	"github.com/lesionscan/lesionscan/internal/security"
)

//go:embed views/*.html
var viewsFS embed.FS

//go:embed assets
var assetsFS embed.FS

// pageData is embedded in every page's template data.
type pageData struct {
	Title     string
	User      *security.SessionUser
	CSRFToken string
	Flashes   []string
	Version   string
}

// newPageData fills the common page fields from the request.
func (s *Server) newPageData(c echo.Context, title string) pageData {
	user := currentUser(c)
	if user == nil {
		if u, ok := s.Sessions.Current(c); ok {
			user = u
		}
	}
	return pageData{
		Title:     title,
		User:      user,
		CSRFToken: csrfToken(c),
		Version:   s.BuildInfo.GetVersion(),
	}
}

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
	metrics   *metrics.HTTPMetrics
}

// Render executes the named template into a buffer so that a failing
// template never writes a partial page.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	start := time.Now()

	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		if t.metrics != nil {
			t.metrics.RecordTemplateRenderError(name)
		}
		GetLogger().Error("template execution failed",
			logger.String("template", name),
			logger.Error(err))
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryHTTP).
			Context("template", name).
			Build()
	}
	if t.metrics != nil {
		t.metrics.RecordTemplateRender(name, time.Since(start).Seconds())
	}

	_, err := buf.WriteTo(w)
	return err
}

// setupTemplateRenderer parses the embedded views
func (s *Server) setupTemplateRenderer() error {
	tmpl, err := template.New("").Funcs(GetTemplateFunctions()).ParseFS(viewsFS, "views/*.html")
	if err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_templates").
			Build()
	}

	renderer := &TemplateRenderer{templates: tmpl}
	if s.Metrics != nil {
		renderer.metrics = s.Metrics.HTTP
	}
	s.Echo.Renderer = renderer
	return nil
}

// assetsRoot returns the embedded assets directory.
func assetsRoot() fs.FS {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		// embed guarantees the directory exists
		panic(err)
	}
	return sub
}
