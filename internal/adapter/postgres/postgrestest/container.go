// Package postgrestest runs a disposable PostgreSQL server for integration tests
// and hands out uniquely named databases on it.
package postgrestest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/newsletter/internal/platform/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image    = "postgres:17-alpine"
	username = "postgres"
	password = "password"
	dbName   = "newsletter"
)

// Container is a running PostgreSQL server. Settings targets its default
// database; use Isolated for a fresh, uniquely named one.
type Container struct {
	container *postgres.PostgresContainer
	Settings  config.DatabaseSettings
}

// Start launches the server and waits until it accepts connections.
func Start(ctx context.Context) (*Container, error) {
	pg, err := postgres.Run(ctx,
		image,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(username),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = pg.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &Container{
		container: pg,
		Settings: config.DatabaseSettings{
			Username: username,
			Password: password,
			DBName:   dbName,
			Host:     host,
			Port:     uint16(port.Int()),
			SSLMode:  "disable",
		},
	}, nil
}

// Isolated returns settings for a database name no other caller will get.
// The database itself is not created.
func (c *Container) Isolated() config.DatabaseSettings {
	settings := c.Settings
	settings.DBName = uuid.NewString()
	return settings
}

func (c *Container) Terminate(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate postgres container: %w", err)
	}
	return nil
}
