package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/botiquin/botiquin-backend/pkg/database"
)

// FixturePassword is the plain-text password of every fixture user.
const FixturePassword = "password123"

// MedicineFixture describes a medicine row to insert. Zero values get
// sensible defaults.
type MedicineFixture struct {
	BotiquinID        *string
	TradeName         string
	GenericName       string
	Quantity          int
	ReorderLevel      int
	ExpiryDate        *time.Time
	UnitWeight        *float64
	CurrentWeight     *float64
	CompartmentNumber *int
	MaxCapacity       *int
}

// FixtureFactory inserts rows directly with SQL so tests of any layer can
// share it.
type FixtureFactory struct {
	db       *database.DB
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory(db *database.DB) *FixtureFactory {
	return &FixtureFactory{db: db}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// Company inserts a company and returns its id.
func (f *FixtureFactory) Company(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	if name == "" {
		name = fmt.Sprintf("Company %d", f.next())
	}
	f.exec(t, `INSERT INTO companies (id, name) VALUES ($1, $2)`, id, name)
	return id
}

// Botiquin inserts a cabinet with a rows×cols grid and returns its id.
func (f *FixtureFactory) Botiquin(t *testing.T, companyID, hardwareID string, rows, cols int) string {
	t.Helper()
	id := uuid.New().String()
	if hardwareID == "" {
		hardwareID = fmt.Sprintf("BOT%03d", f.next())
	}
	f.exec(t, `
		INSERT INTO botiquines (id, company_id, hardware_id, name, total_compartments, compartment_rows, compartment_cols)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, companyID, hardwareID, "Botiquin "+hardwareID, rows*cols, rows, cols)
	return id
}

// Medicine inserts a medicine and returns its id.
func (f *FixtureFactory) Medicine(t *testing.T, m MedicineFixture) string {
	t.Helper()
	id := uuid.New().String()
	if m.TradeName == "" {
		m.TradeName = fmt.Sprintf("Medicine %d", f.next())
	}
	if m.GenericName == "" {
		m.GenericName = m.TradeName
	}
	f.exec(t, `
		INSERT INTO medicines (
			id, botiquin_id, trade_name, generic_name, quantity, reorder_level,
			expiry_date, unit_weight, current_weight, compartment_number, max_capacity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, m.BotiquinID, m.TradeName, m.GenericName, m.Quantity, m.ReorderLevel,
		m.ExpiryDate, m.UnitWeight, m.CurrentWeight, m.CompartmentNumber, m.MaxCapacity)
	return id
}

// User inserts a user whose password is FixturePassword and returns its id.
func (f *FixtureFactory) User(t *testing.T, username, userType string, companyID *string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash fixture password: %v", err)
	}
	id := uuid.New().String()
	f.exec(t, `
		INSERT INTO users (id, username, password_hash, user_type, company_id)
		VALUES ($1, $2, $3, $4, $5)
	`, id, username, string(hash), userType, companyID)
	return id
}

func (f *FixtureFactory) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	if _, err := f.db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("fixture insert failed: %v", err)
	}
}
