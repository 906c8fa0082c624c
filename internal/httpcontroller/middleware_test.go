package httpcontroller

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesionscan/lesionscan/internal/errors"
)

func TestMapCategoryToHTTPStatus(t *testing.T) {
	tests := []struct {
		category errors.ErrorCategory
		want     int
	}{
		{errors.CategoryValidation, http.StatusBadRequest},
		{errors.CategoryAuth, http.StatusUnauthorized},
		{errors.CategoryNotFound, http.StatusNotFound},
		{errors.CategoryConflict, http.StatusConflict},
		{errors.CategoryNetwork, http.StatusBadGateway},
		{errors.CategoryDatabase, http.StatusInternalServerError},
		{errors.CategoryGeneric, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, mapCategoryToHTTPStatus(tt.category))
		})
	}
}

func TestNewHandlerErrorDerivesCode(t *testing.T) {
	err := errors.Newf("too small").Category(errors.CategoryValidation).Build()

	he := NewHandlerError(err, "bad input", 0)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	require.ErrorIs(t, he, err)

	he = NewHandlerError(err, "bad input", http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, he.Code)
	assert.Equal(t, "bad input: too small", he.Error())
}

func TestCacheControlMiddleware(t *testing.T) {
	s := &Server{Echo: echo.New()}
	handler := s.CacheControlMiddleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	tests := []struct {
		path string
		want string
	}{
		{"/assets/style.css", "public, max-age=3600, must-revalidate"},
		{"/static/uploads/mole.png", "private, max-age=300"},
		{"/api/v1/history", "no-store"},
		{"/dashboard", "no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := s.Echo.NewContext(httptest.NewRequest(http.MethodGet, tt.path, http.NoBody), rec)
			require.NoError(t, handler(c))
			assert.Equal(t, tt.want, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	s := &Server{Echo: echo.New()}
	handler := s.RequestIDMiddleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	c := s.Echo.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), rec)
	require.NoError(t, handler(c))
	first := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, first, 36)

	rec = httptest.NewRecorder()
	c = s.Echo.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), rec)
	require.NoError(t, handler(c))
	assert.NotEqual(t, first, rec.Header().Get(echo.HeaderXRequestID))
}

func TestTemplateFunctions(t *testing.T) {
	assert.Equal(t, "70.0%", percent(0.7))
	assert.Equal(t, "Melanocytic Nevi", title("melanocytic nevi"))
	assert.Equal(t, "/static/uploads/lesion%20one.png", staticURL("uploads/lesion one.png"))
	assert.Equal(t, "/static/uploads/a%2Fb.png", uploadURL("a/b.png"))
	assert.Equal(t, "2024-03-01 09:05:00", formatDate(time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)))
}
