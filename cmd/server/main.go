package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/newsletter/internal/adapter/httpserver"
	"github.com/pscheid92/newsletter/internal/adapter/metrics"
	"github.com/pscheid92/newsletter/internal/adapter/postgres"
	"github.com/pscheid92/newsletter/internal/app"
	"github.com/pscheid92/newsletter/internal/platform/config"
	"github.com/pscheid92/newsletter/internal/platform/logging"
	"github.com/pscheid92/newsletter/internal/platform/version"
)

func runGracefulShutdown(srv *httpserver.Server, metricsSrv *metrics.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				slog.Error("Metrics server shutdown error", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Settings {
	cfg, err := config.LoadDefault()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to read configuration: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Settings, reg prometheus.Registerer) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg))
	db, err := postgres.Connect(ctx, cfg.Database.ConnectionString(), postgres.WithTracer(tracer))
	if err != nil {
		slog.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupMetricsServer(cfg *config.Settings, reg *prometheus.Registry) *metrics.Server {
	if cfg.Metrics.Port == 0 {
		return nil
	}

	address := net.JoinHostPort(cfg.ApplicationHost, strconv.Itoa(int(cfg.Metrics.Port)))
	listener, err := httpserver.Listen(address)
	if err != nil {
		slog.Error("Failed to bind metrics address", "error", err)
		os.Exit(1)
	}

	metricsSrv := metrics.NewServer(listener, reg)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			slog.Error("Metrics server error", "error", err)
		}
	}()
	return metricsSrv
}

func main() {
	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.Log.Level, cfg.Log.Format)
	slog.Info("Application starting", version.Get().LogAttrs()...)

	reg := metrics.NewRegistry()

	pool := setupDB(cfg, reg)
	defer pool.Close()

	repo := postgres.NewSubscriptionRepo(pool)
	svc := app.NewService(repo, clockwork.NewRealClock(), metrics.NewSubscriptionMetrics(reg))

	listener, err := httpserver.Listen(cfg.Address())
	if err != nil {
		slog.Error("Failed to bind address", "error", err)
		os.Exit(1)
	}

	srv, err := httpserver.Run(listener, svc, httpserver.Options{
		Metrics:   metrics.NewHTTPMetrics(reg),
		RateLimit: cfg.RateLimit,
	})
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	metricsSrv := setupMetricsServer(cfg, reg)

	done := runGracefulShutdown(srv, metricsSrv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
