package handlers_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/accounts/internal/domain"
	"github.com/nfrund/accounts/internal/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "domain error keeps status and message",
			err:        domain.NewError(domain.KindConflict, http.StatusUnprocessableEntity, "email taken"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "conflict",
			wantMsg:    "email taken",
		},
		{
			name:       "wrapped domain error",
			err:        domain.NewError(domain.KindUnauthorized, http.StatusUnauthorized, "bad token").Wrap(errors.New("cause")),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthorized",
			wantMsg:    "bad token",
		},
		{
			name:       "echo client error",
			err:        echo.NewHTTPError(http.StatusBadRequest, "malformed request body"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
			wantMsg:    "malformed request body",
		},
		{
			name:       "echo not found",
			err:        echo.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
			wantMsg:    "Not Found",
		},
		{
			name:       "internal domain error is hidden",
			err:        domain.Internal(errors.New("db exploded")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
			wantMsg:    "internal error",
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			handlers.HTTPErrorHandler(tt.err, e.NewContext(req, rec))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode[handlers.ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestHTTPErrorHandler_WithStackTrace(t *testing.T) {
	var logBuffer bytes.Buffer
	originalLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuffer, nil)))
	defer slog.SetDefault(originalLogger)

	e := echo.New()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.GET("/test-unhandled-error", func(c echo.Context) error {
		return errors.New("a deliberate unhandled error occurred")
	})

	req := httptest.NewRequest(http.MethodGet, "/test-unhandled-error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deliberate")

	logOutput := logBuffer.String()
	assert.Contains(t, logOutput, "Internal Server Error (Unhandled)")
	assert.Contains(t, logOutput, `error="a deliberate unhandled error occurred"`)
	assert.Contains(t, logOutput, "stack_trace=")
	assert.Contains(t, logOutput, "errors_test.go")
}
