package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// DB wraps sqlx.DB with transaction helpers and the service logger.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New connects using cfg, retrying up to cfg.ConnectRetries times while
// Postgres is still starting.
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	target := cfg.Redacted()

	var (
		db  *sqlx.DB
		err error
	)
	for attempt := 1; ; attempt++ {
		db, err = sqlx.Connect("postgres", cfg.DSN())
		if err == nil {
			break
		}
		if attempt > cfg.ConnectRetries {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
		}
		log.Warn().Err(err).
			Str("target", target).
			Int("attempt", attempt).
			Dur("retry_in", cfg.ConnectRetryDelay).
			Msg("database not reachable yet")
		time.Sleep(cfg.ConnectRetryDelay)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().Str("target", target).Msg("database connected")

	return &DB{DB: db, logger: log}, nil
}

// NewWithDSN connects once to dsn. Test containers are already up when this
// is called, so there is no retry.
func NewWithDSN(dsn string, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: db, logger: log}, nil
}

// Wrap adapts an existing sqlx handle, e.g. one backed by sqlmock.
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

// Health pings the database and reports pool usage for /health.
func (db *DB) Health(ctx context.Context) map[string]string {
	stats := db.Stats()
	status := map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}
