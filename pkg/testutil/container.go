// Package testutil provides testing utilities for the botiquin backend:
// a shared PostgreSQL testcontainer, sqlmock wrappers, HTTP helpers and
// database fixtures.
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ExternalDatabaseEnv names a variable pointing integration tests at an
// already running Postgres (CI service containers) instead of Docker.
const ExternalDatabaseEnv = "BOTIQUIN_TEST_DATABASE_URL"

// PostgresContainer wraps a testcontainers PostgreSQL instance. The embedded
// container is nil when the database is external.
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// External reports whether the database was provided through
// ExternalDatabaseEnv.
func (c *PostgresContainer) External() bool {
	return c.PostgresContainer == nil
}

// Terminate stops the container; external databases are left alone.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	if c.External() {
		return nil
	}
	return c.PostgresContainer.Terminate(ctx)
}

// StartPostgres returns the external database when ExternalDatabaseEnv is
// set and starts a container otherwise.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	if dsn := os.Getenv(ExternalDatabaseEnv); dsn != "" {
		return &PostgresContainer{DSN: dsn}, nil
	}
	return NewPostgresContainer(ctx, DefaultPostgresConfig())
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "botiquin_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer starts a PostgreSQL container and waits until it
// accepts connections.
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	defaults := DefaultPostgresConfig()
	if cfg.Image == "" {
		cfg.Image = defaults.Image
	}
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.Username == "" {
		cfg.Username = defaults.Username
	}
	if cfg.Password == "" {
		cfg.Password = defaults.Password
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			// postgres logs readiness twice: once for the init run, once for real
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}
