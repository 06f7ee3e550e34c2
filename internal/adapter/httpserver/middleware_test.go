package httpserver

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newsletter/internal/adapter/metrics"
	"github.com/pscheid92/newsletter/internal/platform/correlation"
	apperrors "github.com/pscheid92/newsletter/internal/platform/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(correlation.NewHandler(slog.NewTextHandler(&buf, nil))))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestMiddlewareWithStructuredError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return apperrors.ValidationError("incomplete subscription form")
	})

	err := handler(c)
	require.NoError(t, err) // ErrorHandlingMiddleware handles the error, doesn't return it

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMiddlewareWithStandardError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return errors.New("standard error")
	})

	err := handler(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMiddlewareWithNoError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health_check", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewarePassesThroughHTTPError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return echo.ErrNotFound
	})

	err := handler(c)
	assert.ErrorIs(t, err, echo.ErrNotFound)
}

func TestMiddlewareAllErrorTypes(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   string
	}{
		{"validation", apperrors.ValidationError("bad"), http.StatusBadRequest, "validation"},
		{"rate limited", apperrors.RateLimitedError("slow down"), http.StatusTooManyRequests, "rate_limited"},
		{"internal", apperrors.InternalError("boom", errors.New("db")), http.StatusInternalServerError, "internal"},
		{"wrapped validation", errors.Join(errors.New("outer"), apperrors.ValidationError("inner")), http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewHTTPMetrics(prometheus.NewRegistry())
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := ErrorHandlingMiddleware(m)(func(c echo.Context) error {
				return tt.err
			})

			require.NoError(t, handler(c))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.InDelta(t, 1, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(tt.expectedType)), 0)
		})
	}
}

func TestMiddlewareLogsInternalCause(t *testing.T) {
	logs := captureLogs(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return apperrors.InternalError("failed to store subscription", errors.New("relation does not exist"))
	})

	require.NoError(t, handler(c))
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "relation does not exist")
	assert.NotContains(t, rec.Body.String(), "relation does not exist")
}

func TestMiddlewareLogsValidationAtInfo(t *testing.T) {
	logs := captureLogs(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := ErrorHandlingMiddleware(nil)(func(c echo.Context) error {
		return apperrors.ValidationError("incomplete subscription form").WithField("missing", []string{"email"})
	})

	require.NoError(t, handler(c))
	assert.Contains(t, logs.String(), "level=INFO")
	assert.Contains(t, logs.String(), "missing=[email]")
}

func TestCorrelationMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		reuse   bool
	}{
		{"generates when absent", "", false},
		{"reuses inbound id", "req-123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/health_check", nil)
			if tt.inbound != "" {
				req.Header.Set(correlation.Header, tt.inbound)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen string
			handler := correlationMiddleware(func(c echo.Context) error {
				seen, _ = correlation.ID(c.Request().Context())
				return c.NoContent(http.StatusOK)
			})

			require.NoError(t, handler(c))
			assert.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(correlation.Header))
			if tt.reuse {
				assert.Equal(t, tt.inbound, seen)
			}
		})
	}
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		name         string
		httpErr      *echo.HTTPError
		expectedType apperrors.ErrorType
		expectedMsg  string
	}{
		{"bad request", echo.NewHTTPError(http.StatusBadRequest, "bad"), apperrors.TypeValidation, "bad"},
		{"not found", echo.NewHTTPError(http.StatusNotFound, "missing"), apperrors.TypeValidation, "missing"},
		{"too many requests", echo.NewHTTPError(http.StatusTooManyRequests, "slow"), apperrors.TypeRateLimited, "slow"},
		{"server error", echo.NewHTTPError(http.StatusInternalServerError, "boom"), apperrors.TypeInternal, "boom"},
		{"non-string message", echo.NewHTTPError(http.StatusBadGateway, 42), apperrors.TypeInternal, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapHTTPError(tt.httpErr)
			assert.Equal(t, tt.expectedType, err.Type)
			assert.Equal(t, tt.expectedMsg, err.Message)
		})
	}
}

func TestWrapHTTPErrorWithInternalCause(t *testing.T) {
	cause := errors.New("parse error")
	httpErr := echo.NewHTTPError(http.StatusBadRequest, "bad").SetInternal(cause)

	err := WrapHTTPError(httpErr)

	assert.ErrorIs(t, err, cause)
}
