package httpcontroller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/sysinfo"
)

// healthCheckTimeout bounds the database ping of the health endpoint.
const healthCheckTimeout = 2 * time.Second

// PredictResponse is the JSON body of POST /api/v1/predict.
type PredictResponse struct {
	Index         int                `json:"index"`
	Code          string             `json:"code"`
	Label         string             `json:"label"`
	ImagePath     string             `json:"image_path"`
	Probabilities []labelProbability `json:"probabilities"`
}

// HealthResponse is the JSON body of GET /api/v1/health.
type HealthResponse struct {
	Status      string             `json:"status"`
	Version     string             `json:"version"`
	Uptime      float64            `json:"uptime_seconds"`
	ModelLoaded bool               `json:"model_loaded"`
	Database    string             `json:"database"`
	Resources   *sysinfo.Resources `json:"resources,omitempty"`
}

func (s *Server) apiPredictHandler(c echo.Context) error {
	p, err := s.processUpload(c, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PredictResponse{
		Index:         p.Result.Index,
		Code:          p.Result.Code,
		Label:         p.Result.Description,
		ImagePath:     p.ImagePath,
		Probabilities: probabilities(p.Result.Probabilities),
	})
}

func (s *Server) apiHistoryHandler(c echo.Context) error {
	entries, err := s.DS.ListFor(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return NewHandlerError(err, "Failed to load history", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, entries)
}

// healthHandler reports service readiness and host resources.
func (s *Server) healthHandler(c echo.Context) error {
	resp := HealthResponse{
		Status:      "ok",
		Version:     s.BuildInfo.GetVersion(),
		Uptime:      s.BuildInfo.Uptime().Seconds(),
		ModelLoaded: s.Classifier.Ready(),
		Database:    "ok",
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()
	if err := s.DS.Ping(ctx); err != nil {
		resp.Database = "unavailable"
		GetLogger().Warn("health check database ping failed", logger.Error(err))
	}

	resources, err := sysinfo.Snapshot(s.Settings.UploadDir())
	if err != nil {
		GetLogger().Debug("resource snapshot incomplete", logger.Error(err))
	}
	resp.Resources = &resources

	code := http.StatusOK
	if !resp.ModelLoaded || resp.Database != "ok" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}
