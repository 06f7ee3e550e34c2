// Package testapp spawns the full application against an isolated database
// for black-box HTTP tests.
package testapp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newsletter/internal/adapter/httpserver"
	"github.com/pscheid92/newsletter/internal/adapter/postgres"
	"github.com/pscheid92/newsletter/internal/adapter/postgres/postgrestest"
	"github.com/pscheid92/newsletter/internal/app"
	"github.com/pscheid92/newsletter/internal/platform/config"
	"github.com/stretchr/testify/require"
)

const readyTimeout = 5 * time.Second

// TestApp is a running application instance. Address is "http://127.0.0.1:<port>".
type TestApp struct {
	Address  string
	Pool     *pgxpool.Pool
	Settings config.DatabaseSettings
}

// Spawn starts the application on a random local port with a freshly created
// and migrated database. Everything is torn down when t finishes.
func Spawn(t *testing.T, pg *postgrestest.Container) *TestApp {
	t.Helper()
	ctx := context.Background()

	listener, err := httpserver.Listen("127.0.0.1:0")
	require.NoError(t, err, "failed to bind random port")

	settings := pg.Isolated()
	t.Cleanup(func() {
		if err := postgres.DropDatabase(context.Background(), settings); err != nil {
			t.Logf("failed to drop database %s: %v", settings.DBName, err)
		}
	})

	pool, err := postgres.ConfigureDatabase(ctx, settings)
	if err != nil {
		_ = listener.Close()
		require.NoError(t, err, "failed to configure database")
	}
	t.Cleanup(pool.Close)

	svc := app.NewService(postgres.NewSubscriptionRepo(pool), clockwork.NewRealClock(), nil)
	srv, err := httpserver.Run(listener, svc, httpserver.Options{})
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			t.Logf("failed to shut down server: %v", err)
		}
		if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("server exited with error: %v", err)
		}
	})

	testApp := &TestApp{
		Address:  "http://" + srv.Addr(),
		Pool:     pool,
		Settings: settings,
	}
	require.Eventually(t, testApp.ready, readyTimeout, 20*time.Millisecond,
		"application at %s not ready", testApp.Address)
	return testApp
}

func (a *TestApp) ready() bool {
	resp, err := http.Get(a.Address + "/health_check")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// PostSubscriptions submits body as a urlencoded form.
func (a *TestApp) PostSubscriptions(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(a.Address+"/subscriptions", "application/x-www-form-urlencoded", strings.NewReader(body))
	require.NoError(t, err, "failed to execute request")
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
