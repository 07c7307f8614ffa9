package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop()), mock
}

func TestWithTx_CommitsAndBindsConn(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE botiquines").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		_, err := db.Conn(ctx).ExecContext(ctx, "UPDATE botiquines SET last_sync_at = NOW()")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := db.WithTx(context.Background(), func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Nested(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		return db.WithTx(ctx, func(context.Context) error { return nil })
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepoint_RollsBackOnlyTheFailingUnit(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT reading_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT reading_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT reading_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT reading_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	boom := errors.New("bad reading")
	var second error
	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, db.Savepoint(ctx, "reading_0", func(context.Context) error { return nil }))
		second = db.Savepoint(ctx, "reading_1", func(context.Context) error { return boom })
		return nil
	})

	require.NoError(t, err)
	assert.ErrorIs(t, second, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		detail string
	}{
		{"compartment unique", &pq.Error{Code: "23505", Constraint: "medicines_compartment_key"}, "CONFLICT", ""},
		{"fk", &pq.Error{Code: "23503"}, "BAD_REQUEST", ""},
		{"malformed uuid", &pq.Error{Code: "22P02"}, "BAD_REQUEST", ""},
		{"not null", &pq.Error{Code: "23502", Column: "trade_name"}, "VALIDATION_ERROR", "trade_name"},
		{"quantity check", &pq.Error{Code: "23514", Constraint: "medicines_quantity_nonnegative"}, "VALIDATION_ERROR", "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapPQError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.code, appErr.Code)
			if tt.detail != "" {
				assert.Contains(t, appErr.Details, tt.detail)
			}
		})
	}

	assert.Nil(t, MapPQError(errors.New("plain")))
	assert.Nil(t, MapPQError(&pq.Error{Code: "40001"}))
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	plain := errors.New("plain")
	assert.Same(t, plain, MapError(plain))

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(MapError(&pq.Error{Code: "23505", Constraint: "botiquines_hardware_id_key"}), &appErr))
	assert.Contains(t, appErr.Message, "hardware id")
}

func TestHealth_ReportsPingAndPool(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop())

	mock.ExpectPing()
	up := db.Health(context.Background())
	assert.Equal(t, "up", up["status"])
	assert.Contains(t, up, "open_connections")
	assert.Contains(t, up, "in_use")

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	down := db.Health(context.Background())
	assert.Equal(t, "down", down["status"])
	assert.Equal(t, "connection refused", down["error"])

	assert.NoError(t, mock.ExpectationsWereMet())
}
