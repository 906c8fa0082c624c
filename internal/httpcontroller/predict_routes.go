package httpcontroller

import (
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/classifier"
	"github.com/lesionscan/lesionscan/internal/datastore"
	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/security"
	"github.com/lesionscan/lesionscan/internal/uploads"
)

// imageField is the multipart field carrying the upload.
const imageField = "image"

// dashboardPageData is rendered by the dashboard template.
type dashboardPageData struct {
	pageData
	HistoryCount int64
}

// resultPageData is rendered by the result template.
type resultPageData struct {
	pageData
	Prediction    string
	Code          string
	ImagePath     string
	Probabilities []labelProbability
}

// historyPageData is rendered by the history template.
type historyPageData struct {
	pageData
	Entries []datastore.HistoryEntry
}

// labelProbability is one class score, in label order.
type labelProbability struct {
	Code        string  `json:"code"`
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// prediction is the outcome of one upload.
type prediction struct {
	Result    classifier.Result
	ImagePath string
	Entry     *datastore.HistoryEntry
}

func (s *Server) dashboardHandler(c echo.Context) error {
	user := currentUser(c)
	count, err := s.DS.Count(c.Request().Context(), user.ID)
	if err != nil {
		return NewHandlerError(err, "Failed to load history", http.StatusInternalServerError)
	}

	data := dashboardPageData{
		pageData:     s.newPageData(c, "Dashboard"),
		HistoryCount: count,
	}
	data.Flashes = s.Sessions.Flashes(c)
	return c.Render(http.StatusOK, "dashboard", data)
}

// predictHandler classifies the uploaded image and renders the result page.
func (s *Server) predictHandler(c echo.Context) error {
	p, err := s.processUpload(c, currentUser(c))
	if err != nil {
		return err
	}

	return c.Render(http.StatusOK, "result", resultPageData{
		pageData:      s.newPageData(c, "Result"),
		Prediction:    p.Result.Description,
		Code:          p.Result.Code,
		ImagePath:     p.ImagePath,
		Probabilities: probabilities(p.Result.Probabilities),
	})
}

func (s *Server) historyHandler(c echo.Context) error {
	entries, err := s.DS.ListFor(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return NewHandlerError(err, "Failed to load history", http.StatusInternalServerError)
	}
	return c.Render(http.StatusOK, "history", historyPageData{
		pageData: s.newPageData(c, "History"),
		Entries:  entries,
	})
}

// uploadHandler serves a stored image.
func (s *Server) uploadHandler(c echo.Context) error {
	return s.Uploads.Serve(c, c.Param("*"))
}

// processUpload runs normalize, classify, stage, record and commit for one
// request. The image is only published once its history row is written.
func (s *Server) processUpload(c echo.Context, user *security.SessionUser) (*prediction, error) {
	ctx := c.Request().Context()
	reqLogger := GetLogger().WithContext(ctx)
	start := time.Now()

	fileHeader, err := c.FormFile(imageField)
	if err != nil {
		return nil, NewHandlerError(err, "No image file was uploaded", http.StatusBadRequest)
	}
	data, err := readUpload(fileHeader)
	if err != nil {
		return nil, NewHandlerError(err, "Could not read the uploaded file", http.StatusBadRequest)
	}

	if s.Metrics != nil {
		s.Metrics.HTTP.RecordUploadSize(len(data))
	}

	tensor, err := s.normalizer.Normalize(data)
	if err != nil {
		return nil, NewHandlerError(err, "The uploaded file is not a valid image", http.StatusBadRequest)
	}

	result, err := s.Classifier.Classify(ctx, tensor)
	if err != nil {
		return nil, NewHandlerError(err, "Classification failed", http.StatusInternalServerError)
	}

	pending, err := s.Uploads.Stage(ctx, fileHeader.Filename, data)
	if err != nil {
		return nil, NewHandlerError(err, "Failed to store the image", http.StatusInternalServerError)
	}
	relPath := pending.RelPath

	entry, err := s.DS.Record(ctx, user.ID, path.Base(relPath), result.Description)
	if err != nil {
		discardUpload(reqLogger, pending)
		return nil, NewHandlerError(err, "Failed to record history", http.StatusInternalServerError)
	}
	if err := pending.Commit(); err != nil {
		discardUpload(reqLogger, pending)
		return nil, NewHandlerError(err, "Failed to store the image", http.StatusInternalServerError)
	}

	reqLogger.Info("image classified",
		logger.Uint64("user_id", uint64(user.ID)),
		logger.String("code", result.Code),
		logger.Bool("cached", result.Cached),
		logger.Duration("elapsed", time.Since(start)))

	return &prediction{Result: result, ImagePath: relPath, Entry: entry}, nil
}

func discardUpload(log logger.Logger, pending *uploads.Pending) {
	if err := pending.Discard(); err != nil {
		log.Error("failed to discard staged upload",
			logger.String("path", pending.RelPath),
			logger.Error(err))
	}
}

// readUpload reads the whole multipart file.
func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryValidation).
			FileContext(fh.Filename, fh.Size).
			Build()
	}
	return data, nil
}

// probabilities pairs each score with its label.
func probabilities(scores []float32) []labelProbability {
	out := make([]labelProbability, 0, len(scores))
	for i, p := range scores {
		label := classifier.LabelFor(i)
		out = append(out, labelProbability{
			Code:        label.Code,
			Label:       label.Description,
			Probability: p,
		})
	}
	return out
}
