package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/newsletter/internal/adapter/metrics"
	"github.com/pscheid92/newsletter/internal/domain"
	"github.com/pscheid92/newsletter/internal/platform/config"
)

type subscriptionService interface {
	Subscribe(ctx context.Context, form domain.SubscriptionForm) (*domain.Subscription, error)
}

// Options configures the optional parts of the middleware stack.
type Options struct {
	// Metrics enables request and error metrics when non-nil.
	Metrics *metrics.HTTPMetrics
	// RateLimit limits POST /subscriptions per client IP when RequestsPerSecond > 0.
	RateLimit config.RateLimitSettings
}

type Server struct {
	echo     *echo.Echo
	listener net.Listener

	subscriptions subscriptionService
	metrics       *metrics.HTTPMetrics
	rateLimit     config.RateLimitSettings
}

// Listen binds address. A failure here is fatal for the caller; it is never retried.
func Listen(address string) (net.Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", address, err)
	}
	return listener, nil
}

// Run wires the application onto an already bound listener. The returned
// server does not accept connections until Start is called.
//
// subscriptions is shared by every request; it owns the connection pool.
func Run(listener net.Listener, subscriptions subscriptionService, opts Options) (*Server, error) {
	if listener == nil {
		return nil, errors.New("listener is required")
	}
	if subscriptions == nil {
		return nil, errors.New("subscription service is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Listener = listener
	e.Validator = newFormValidator()

	srv := &Server{
		echo:          e,
		listener:      listener,
		subscriptions: subscriptions,
		metrics:       opts.Metrics,
		rateLimit:     opts.RateLimit,
	}

	srv.registerRoutes()

	return srv, nil
}

// Addr reports the bound address, e.g. "127.0.0.1:43127".
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves until Shutdown is called, then returns an error wrapping http.ErrServerClosed.
func (s *Server) Start() error {
	slog.Info("Starting server", "addr", s.Addr())
	if err := s.echo.Start(""); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
