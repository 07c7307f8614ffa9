package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

var (
	// shared across every integration test in the process
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// tables in truncation order
var tables = []string{"hardware_logs", "medicines", "botiquines", "users", "companies"}

// IntegrationSuite provides a migrated PostgreSQL database for integration
// tests.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    if testutil.ShortMode() {
//	        os.Exit(m.Run())
//	    }
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(context.Background())
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Logger    *logger.Logger
	Fixtures  *FixtureFactory
}

// NewIntegrationSuite starts (or reuses) the database and applies the schema.
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	db, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		DB:        db,
		Logger:    log,
		Fixtures:  NewFixtureFactory(db),
	}, nil
}

func getOrCreateContainer(ctx context.Context) (*PostgresContainer, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = StartPostgres(ctx)
	})
	return globalContainer, containerErr
}

// Reset empties every table. Call it at the start of each test.
func (s *IntegrationSuite) Reset(t *testing.T) {
	t.Helper()
	if _, err := s.DB.ExecContext(context.Background(), "TRUNCATE "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// Cleanup closes the suite's database connection.
func (s *IntegrationSuite) Cleanup(_ context.Context) {
	if s.DB != nil {
		s.DB.Close()
	}
}
