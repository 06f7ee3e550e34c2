package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newsletter/internal/adapter/metrics"
	"github.com/pscheid92/newsletter/internal/platform/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func rateLimitedHandler(ratePerSecond float64, burst int) echo.HandlerFunc {
	mw := newRateLimiter(ratePerSecond, burst, nil)
	return mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
}

func callFrom(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, remoteAddr string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec.Code
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	e := echo.New()
	handler := rateLimitedHandler(10, 3) // 10 req/s, burst 3

	for range 3 {
		assert.Equal(t, http.StatusOK, callFrom(t, e, handler, testRemoteAddr))
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	e := echo.New()
	handler := rateLimitedHandler(0.01, 1) // very low rate, burst 1

	assert.Equal(t, http.StatusOK, callFrom(t, e, handler, testRemoteAddr))
	assert.Equal(t, http.StatusTooManyRequests, callFrom(t, e, handler, testRemoteAddr))
}

func TestRateLimiterDeniedResponseIsEmpty(t *testing.T) {
	e := echo.New()
	handler := newRateLimiter(0.01, 1, nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, callFrom(t, e, handler, testRemoteAddr))

	req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
	req.RemoteAddr = testRemoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestRateLimiterCountsDeniedRequests(t *testing.T) {
	m := metrics.NewHTTPMetrics(prometheus.NewRegistry())
	srv := newTestServer(t, &mockSubscriptionService{}, func(o *Options) {
		o.Metrics = m
		o.RateLimit = config.RateLimitSettings{RequestsPerSecond: 0.01, Burst: 1}
	})

	serve(srv, formRequest("name=a&email=b"))
	rec := serve(srv, formRequest("name=a&email=b"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("rate_limited")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodPost, "/subscriptions", "429")), 0)
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	e := echo.New()
	handler := rateLimitedHandler(0.01, 1)

	assert.Equal(t, http.StatusOK, callFrom(t, e, handler, testRemoteAddr))
	assert.Equal(t, http.StatusOK, callFrom(t, e, handler, "5.6.7.8:5678"))
	assert.Equal(t, http.StatusTooManyRequests, callFrom(t, e, handler, testRemoteAddr))
}

func TestRateLimiterZeroBurstAllowsOne(t *testing.T) {
	e := echo.New()
	handler := rateLimitedHandler(0.01, 0)

	assert.Equal(t, http.StatusOK, callFrom(t, e, handler, testRemoteAddr))
}

func TestRateLimit_OnlyOnSubscriptions(t *testing.T) {
	srv := newTestServer(t, &mockSubscriptionService{}, func(o *Options) {
		o.RateLimit = config.RateLimitSettings{RequestsPerSecond: 0.01, Burst: 1}
	})

	first := serve(srv, formRequest("name=a&email=b"))
	second := serve(srv, formRequest("name=a&email=b"))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Zero(t, second.Body.Len())

	for range 3 {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health_check", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_DisabledByDefault(t *testing.T) {
	srv := newTestServer(t, &mockSubscriptionService{})

	for range 5 {
		rec := serve(srv, formRequest("name=a&email=b"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
