package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/errors"
)

// Medicine is one stocked product, optionally placed in a cabinet
// compartment and weighed by its scale. Status is never stored.
type Medicine struct {
	ID                string     `db:"id" json:"id"`
	BotiquinID        *string    `db:"botiquin_id" json:"botiquin_id,omitempty"`
	TradeName         string     `db:"trade_name" json:"trade_name"`
	GenericName       string     `db:"generic_name" json:"generic_name"`
	Brand             *string    `db:"brand" json:"brand,omitempty"`
	Strength          *string    `db:"strength" json:"strength,omitempty"`
	Presentation      *string    `db:"presentation" json:"presentation,omitempty"`
	BatchNumber       *string    `db:"batch_number" json:"batch_number,omitempty"`
	Quantity          int        `db:"quantity" json:"quantity"`
	ReorderLevel      int        `db:"reorder_level" json:"reorder_level"`
	ExpiryDate        *time.Time `db:"expiry_date" json:"-"`
	UnitWeight        *float64   `db:"unit_weight" json:"unit_weight,omitempty"`
	CurrentWeight     *float64   `db:"current_weight" json:"current_weight,omitempty"`
	CompartmentNumber *int       `db:"compartment_number" json:"compartment_number,omitempty"`
	MaxCapacity       *int       `db:"max_capacity" json:"max_capacity,omitempty"`
	LastScanAt        *time.Time `db:"last_scan_at" json:"last_scan_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// OwnedMedicine is a medicine joined with the cabinet and company it lives in.
type OwnedMedicine struct {
	Medicine
	CompanyID    *string `db:"company_id" json:"company_id,omitempty"`
	BotiquinName *string `db:"botiquin_name" json:"botiquin_name,omitempty"`
}

// MedicineFilter narrows List. Nil fields do not filter.
type MedicineFilter struct {
	CompanyID  *string
	BotiquinID *string
	Search     string
}

const medicineColumns = `
	m.id, m.botiquin_id, m.trade_name, m.generic_name, m.brand, m.strength,
	m.presentation, m.batch_number, m.quantity, m.reorder_level, m.expiry_date,
	m.unit_weight, m.current_weight, m.compartment_number, m.max_capacity,
	m.last_scan_at, m.created_at, m.updated_at
`

// MedicineRepository handles medicine persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create inserts m, assigning an id when empty.
func (r *MedicineRepository) Create(ctx context.Context, m *Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (
			id, botiquin_id, trade_name, generic_name, brand, strength, presentation,
			batch_number, quantity, reorder_level, expiry_date, unit_weight,
			current_weight, compartment_number, max_capacity, last_scan_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		m.ID, m.BotiquinID, m.TradeName, m.GenericName, m.Brand, m.Strength, m.Presentation,
		m.BatchNumber, m.Quantity, m.ReorderLevel, m.ExpiryDate, m.UnitWeight,
		m.CurrentWeight, m.CompartmentNumber, m.MaxCapacity, m.LastScanAt,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return database.MapError(err)
}

// GetByID returns the medicine with its owning cabinet and company.
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*OwnedMedicine, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, errors.NotFound("medicine")
	}

	var m OwnedMedicine
	query := `
		SELECT` + medicineColumns + `, b.company_id, b.name AS botiquin_name
		FROM medicines m
		LEFT JOIN botiquines b ON b.id = m.botiquin_id
		WHERE m.id = $1
	`
	err := r.db.Conn(ctx).GetContext(ctx, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("medicine")
	}
	if err != nil {
		return nil, database.MapError(err)
	}
	return &m, nil
}

// GetByCompartmentForUpdate returns the medicine occupying compartment of
// the cabinet and locks its row for the surrounding transaction. A missing
// medicine is reported as NotFound.
func (r *MedicineRepository) GetByCompartmentForUpdate(ctx context.Context, botiquinID string, compartment int) (*Medicine, error) {
	var m Medicine
	query := `
		SELECT` + medicineColumns + `
		FROM medicines m
		WHERE m.botiquin_id = $1 AND m.compartment_number = $2
		FOR UPDATE
	`
	err := r.db.Conn(ctx).GetContext(ctx, &m, query, botiquinID, compartment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("medicine")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns medicines sorted by trade name.
func (r *MedicineRepository) List(ctx context.Context, f MedicineFilter) ([]*OwnedMedicine, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CompanyID != nil {
		id, ok := canonicalID(*f.CompanyID)
		if !ok {
			return []*OwnedMedicine{}, nil
		}
		add("b.company_id = $%d", id)
	}
	if f.BotiquinID != nil {
		id, ok := canonicalID(*f.BotiquinID)
		if !ok {
			return []*OwnedMedicine{}, nil
		}
		add("m.botiquin_id = $%d", id)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(m.trade_name ILIKE $%[1]d OR m.generic_name ILIKE $%[1]d)", "%"+s+"%")
	}

	query := `
		SELECT` + medicineColumns + `, b.company_id, b.name AS botiquin_name
		FROM medicines m
		LEFT JOIN botiquines b ON b.id = m.botiquin_id
	`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY m.trade_name, m.id`

	medicines := []*OwnedMedicine{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &medicines, query, args...); err != nil {
		return nil, err
	}
	return medicines, nil
}

// Update writes every editable column of m.
func (r *MedicineRepository) Update(ctx context.Context, m *Medicine) error {
	query := `
		UPDATE medicines SET
			botiquin_id = $2, trade_name = $3, generic_name = $4, brand = $5,
			strength = $6, presentation = $7, batch_number = $8, quantity = $9,
			reorder_level = $10, expiry_date = $11, unit_weight = $12,
			current_weight = $13, compartment_number = $14, max_capacity = $15,
			last_scan_at = $16, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		m.ID, m.BotiquinID, m.TradeName, m.GenericName, m.Brand,
		m.Strength, m.Presentation, m.BatchNumber, m.Quantity,
		m.ReorderLevel, m.ExpiryDate, m.UnitWeight,
		m.CurrentWeight, m.CompartmentNumber, m.MaxCapacity,
		m.LastScanAt,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("medicine")
	}
	return database.MapError(err)
}

// ApplyReading stores a reconciled scale reading. Quantity, weight and scan
// time change together in one statement.
func (r *MedicineRepository) ApplyReading(ctx context.Context, id string, quantity int, weight float64, scannedAt time.Time) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE medicines
		SET quantity = $2, current_weight = $3, last_scan_at = $4, updated_at = $4
		WHERE id = $1
	`, id, quantity, weight, scannedAt)
	if err != nil {
		return database.MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("medicine")
	}
	return nil
}

// Delete removes the medicine row.
func (r *MedicineRepository) Delete(ctx context.Context, id string) error {
	id, ok := canonicalID(id)
	if !ok {
		return errors.NotFound("medicine")
	}
	result, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("medicine")
	}
	return nil
}
