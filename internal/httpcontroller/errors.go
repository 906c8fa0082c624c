package httpcontroller

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
)

// HandlerError is a handler failure with the status and message shown to
// the client.
type HandlerError struct {
	Err     error
	Message string
	Code    int
}

// Error implements the error interface for HandlerError.
func (e *HandlerError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// NewHandlerError creates a HandlerError. A zero code is derived from the
// category of err.
func NewHandlerError(err error, message string, code int) *HandlerError {
	if code == 0 {
		code = mapCategoryToHTTPStatus(errors.CategoryOf(err))
	}
	return &HandlerError{Err: err, Message: message, Code: code}
}

// errorPageData is rendered by the "error" template.
type errorPageData struct {
	pageData
	Code      int
	Message   string
	RequestID string
}

// HandleError is the echo error handler. It maps err to a status code and
// renders either JSON for API requests or the error page.
func (s *Server) HandleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		he       *HandlerError
		httpErr  *echo.HTTPError
		enhanced *errors.EnhancedError
	)
	switch {
	case errors.As(err, &he):
		// already classified by the handler
	case errors.As(err, &httpErr):
		he = &HandlerError{Err: err, Message: fmt.Sprintf("%v", httpErr.Message), Code: httpErr.Code}
	case errors.As(err, &enhanced):
		code := mapCategoryToHTTPStatus(enhanced.Category)
		he = &HandlerError{Err: err, Message: http.StatusText(code), Code: code}
	default:
		he = &HandlerError{Err: err, Message: "An unexpected error occurred", Code: http.StatusInternalServerError}
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if he.Code >= http.StatusInternalServerError {
		GetLogger().WithContext(c.Request().Context()).Error("request failed",
			logger.String("path", c.Request().URL.Path),
			logger.Int("status", he.Code),
			logger.String("message", he.Message),
			logger.Error(he.Err))
	}

	var renderErr error
	switch {
	case c.Request().Method == http.MethodHead:
		renderErr = c.NoContent(he.Code)
	case isAPIRequest(c):
		renderErr = c.JSON(he.Code, map[string]string{
			"error":      he.Message,
			"request_id": requestID,
		})
	default:
		renderErr = c.Render(he.Code, "error", errorPageData{
			pageData:  s.newPageData(c, fmt.Sprintf("%d Error", he.Code)),
			Code:      he.Code,
			Message:   he.Message,
			RequestID: requestID,
		})
	}
	if renderErr != nil {
		GetLogger().Error("failed to write error response", logger.Error(renderErr))
	}
}

// mapCategoryToHTTPStatus maps error categories to HTTP status codes
func mapCategoryToHTTPStatus(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
