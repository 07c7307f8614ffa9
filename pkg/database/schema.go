package database

import (
	"context"
	"fmt"
)

// Schema holds the idempotent DDL for the botiquin store, in dependency
// order. Integration tests apply the same statements.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id            UUID PRIMARY KEY,
		name          VARCHAR(200) NOT NULL,
		contact_email VARCHAR(200),
		contact_phone VARCHAR(50),
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      VARCHAR(80) NOT NULL,
		email         VARCHAR(200),
		password_hash VARCHAR(200) NOT NULL,
		user_type     VARCHAR(20) NOT NULL DEFAULT 'company_admin',
		company_id    UUID REFERENCES companies(id) ON DELETE SET NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_user_type_valid CHECK (user_type IN ('super_admin', 'company_admin'))
	)`,

	`CREATE TABLE IF NOT EXISTS botiquines (
		id                 UUID PRIMARY KEY,
		company_id         UUID NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		hardware_id        VARCHAR(100) NOT NULL,
		name               VARCHAR(200) NOT NULL,
		location           VARCHAR(200),
		total_compartments INTEGER NOT NULL DEFAULT 12,
		compartment_rows   INTEGER NOT NULL DEFAULT 3,
		compartment_cols   INTEGER NOT NULL DEFAULT 4,
		active             BOOLEAN NOT NULL DEFAULT TRUE,
		last_sync_at       TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT botiquines_hardware_id_key UNIQUE (hardware_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_botiquines_company ON botiquines(company_id)`,

	`CREATE TABLE IF NOT EXISTS medicines (
		id                 UUID PRIMARY KEY,
		botiquin_id        UUID REFERENCES botiquines(id) ON DELETE SET NULL,
		trade_name         VARCHAR(200) NOT NULL,
		generic_name       VARCHAR(200) NOT NULL,
		brand              VARCHAR(200),
		strength           VARCHAR(100),
		presentation       VARCHAR(200),
		batch_number       VARCHAR(100),
		quantity           INTEGER NOT NULL DEFAULT 0,
		reorder_level      INTEGER NOT NULL DEFAULT 2,
		expiry_date        DATE,
		unit_weight        DOUBLE PRECISION,
		current_weight     DOUBLE PRECISION,
		compartment_number INTEGER,
		max_capacity       INTEGER,
		last_scan_at       TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT medicines_quantity_nonnegative CHECK (quantity >= 0),
		CONSTRAINT medicines_reorder_level_nonnegative CHECK (reorder_level >= 0),
		CONSTRAINT medicines_unit_weight_positive CHECK (unit_weight IS NULL OR unit_weight > 0),
		CONSTRAINT medicines_compartment_key UNIQUE (botiquin_id, compartment_number)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_medicines_botiquin ON medicines(botiquin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_expiry ON medicines(expiry_date) WHERE expiry_date IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS hardware_logs (
		id                 UUID PRIMARY KEY,
		botiquin_id        UUID REFERENCES botiquines(id) ON DELETE CASCADE,
		compartment_number INTEGER,
		weight_reading     DOUBLE PRECISION,
		sensor_type        VARCHAR(50),
		raw_data           JSONB,
		processed          BOOLEAN NOT NULL DEFAULT FALSE,
		error_message      TEXT,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_hardware_logs_botiquin_created ON hardware_logs(botiquin_id, created_at DESC)`,
}

// Migrate applies Schema inside one transaction.
func (db *DB) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx)
		for i, stmt := range Schema {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
