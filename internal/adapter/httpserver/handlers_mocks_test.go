package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newsletter/internal/domain"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockSubscriptionService struct {
	mu          sync.Mutex
	subscribeFn func(ctx context.Context, form domain.SubscriptionForm) (*domain.Subscription, error)
	calls       []domain.SubscriptionForm
}

func (m *mockSubscriptionService) Subscribe(ctx context.Context, form domain.SubscriptionForm) (*domain.Subscription, error) {
	m.mu.Lock()
	m.calls = append(m.calls, form)
	m.mu.Unlock()

	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, form)
	}
	return &domain.Subscription{Email: form.Email, Name: form.Name}, nil
}

func (m *mockSubscriptionService) Calls() []domain.SubscriptionForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SubscriptionForm(nil), m.calls...)
}

// --- Test helpers ---

func newTestServer(t *testing.T, svc subscriptionService, opts ...func(*Options)) *Server {
	t.Helper()

	listener, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	srv, err := Run(listener, svc, o)
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func formRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}
