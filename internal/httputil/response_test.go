package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/lottery/internal/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleErrorGin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "not found",
			err:            apperrors.Wrap(apperrors.ErrNotFound, "registration not found"),
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "conflict",
			err:            apperrors.ErrConflict,
			expectedStatus: http.StatusConflict,
			expectedError:  "conflict",
		},
		{
			name:           "invalid input",
			err:            apperrors.Wrap(apperrors.ErrInvalidInput, "campaign is closed"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "invalid_input",
		},
		{
			name:           "unauthorized",
			err:            apperrors.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
		},
		{
			name:           "forbidden",
			err:            apperrors.ErrForbidden,
			expectedStatus: http.StatusForbidden,
			expectedError:  "forbidden",
		},
		{
			name:           "unavailable",
			err:            apperrors.Wrap(apperrors.ErrUnavailable, "broker down"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "service_unavailable",
		},
		{
			name:           "unknown",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext()

			HandleErrorGin(c, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedError, decode(t, w).Error)
		})
	}
}

func TestHandleErrorGin_RetryAfter(t *testing.T) {
	c, w := newContext()
	HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnavailable, "broker down"), nil)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	c, w = newContext()
	HandleErrorGin(c, apperrors.ErrNotFound, nil)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestHandleErrorGin_LogLevel(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{name: "client error", err: apperrors.ErrInvalidInput, level: "WARN"},
		{name: "server error", err: errors.New("boom"), level: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			c, _ := newContext()

			HandleErrorGin(c, tt.err, logger)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "request failed", entry["msg"])
		})
	}
}

func TestHandleErrorGin_NilError(t *testing.T) {
	c, w := newContext()

	HandleErrorGin(c, nil, nil)

	assert.Empty(t, w.Body.String())
}

func TestHandleErrorGin_HidesInternalDetails(t *testing.T) {
	c, w := newContext()

	HandleErrorGin(c, errors.New("pq: connection refused"), nil)

	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestHandleBadRequestGin(t *testing.T) {
	c, w := newContext()

	HandleBadRequestGin(c, errors.New("unexpected EOF"), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "unexpected EOF", resp.Message)
}

func TestHandleValidationErrorGin(t *testing.T) {
	c, w := newContext()

	HandleValidationErrorGin(c, errors.New("phone: must be 7 to 15 digits"), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_error", decode(t, w).Error)
}
