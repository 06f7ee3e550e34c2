package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/newsletter/internal/platform/config"
)

// ConfigureDatabase creates settings.DBName on the server, connects a pool to
// it and applies all migrations. Each step fails fast; nothing is rolled back.
// Used to give tests and local development an isolated, ready database.
func ConfigureDatabase(ctx context.Context, settings config.DatabaseSettings, opts ...Option) (*pgxpool.Pool, error) {
	if err := CreateDatabase(ctx, settings); err != nil {
		return nil, err
	}

	pool, err := Connect(ctx, settings.ConnectionString(), opts...)
	if err != nil {
		return nil, err
	}

	if err := RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// CreateDatabase issues CREATE DATABASE for settings.DBName over a connection
// that does not name a database. An existing database is an error.
func CreateDatabase(ctx context.Context, settings config.DatabaseSettings) error {
	return withServerConn(ctx, settings, func(conn *pgx.Conn) error {
		stmt := "CREATE DATABASE " + pgx.Identifier{settings.DBName}.Sanitize()
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create database %q: %w", settings.DBName, err)
		}
		slog.Info("Database created", "database", settings.DBName)
		return nil
	})
}

// DropDatabase removes settings.DBName, terminating any remaining connections to it.
func DropDatabase(ctx context.Context, settings config.DatabaseSettings) error {
	return withServerConn(ctx, settings, func(conn *pgx.Conn) error {
		stmt := "DROP DATABASE IF EXISTS " + pgx.Identifier{settings.DBName}.Sanitize() + " WITH (FORCE)"
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop database %q: %w", settings.DBName, err)
		}
		return nil
	})
}

func withServerConn(ctx context.Context, settings config.DatabaseSettings, fn func(conn *pgx.Conn) error) error {
	conn, err := pgx.Connect(ctx, settings.ConnectionStringWithoutDB())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			slog.Warn("failed to close bootstrap connection", "error", err)
		}
	}()

	return fn(conn)
}
