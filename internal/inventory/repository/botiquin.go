package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/errors"
)

// Botiquin is a physical cabinet with a grid of numbered compartments.
type Botiquin struct {
	ID                string     `db:"id" json:"id"`
	CompanyID         string     `db:"company_id" json:"company_id"`
	HardwareID        string     `db:"hardware_id" json:"hardware_id"`
	Name              string     `db:"name" json:"name"`
	Location          *string    `db:"location" json:"location,omitempty"`
	TotalCompartments int        `db:"total_compartments" json:"total_compartments"`
	CompartmentRows   int        `db:"compartment_rows" json:"compartment_rows"`
	CompartmentCols   int        `db:"compartment_cols" json:"compartment_cols"`
	Active            bool       `db:"active" json:"active"`
	LastSyncAt        *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

const botiquinColumns = `
	id, company_id, hardware_id, name, location, total_compartments,
	compartment_rows, compartment_cols, active, last_sync_at, created_at, updated_at
`

// BotiquinRepository handles cabinet persistence
type BotiquinRepository struct {
	db *database.DB
}

// NewBotiquinRepository creates a new cabinet repository
func NewBotiquinRepository(db *database.DB) *BotiquinRepository {
	return &BotiquinRepository{db: db}
}

// Create inserts b, assigning an id when empty.
func (r *BotiquinRepository) Create(ctx context.Context, b *Botiquin) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO botiquines (
			id, company_id, hardware_id, name, location, total_compartments,
			compartment_rows, compartment_cols, active, last_sync_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		b.ID, b.CompanyID, b.HardwareID, b.Name, b.Location, b.TotalCompartments,
		b.CompartmentRows, b.CompartmentCols, b.Active, b.LastSyncAt,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return database.MapError(err)
}

// GetByID gets a cabinet by ID
func (r *BotiquinRepository) GetByID(ctx context.Context, id string) (*Botiquin, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, errors.NotFound("botiquin")
	}
	return r.getOne(ctx, `SELECT`+botiquinColumns+`FROM botiquines WHERE id = $1`, id)
}

// GetByHardwareID gets a cabinet by the identifier its hardware reports.
func (r *BotiquinRepository) GetByHardwareID(ctx context.Context, hardwareID string) (*Botiquin, error) {
	return r.getOne(ctx, `SELECT`+botiquinColumns+`FROM botiquines WHERE hardware_id = $1`, hardwareID)
}

// GetByHardwareIDForUpdate is GetByHardwareID with the row locked until the
// surrounding transaction ends, so batches for one cabinet run one at a time.
func (r *BotiquinRepository) GetByHardwareIDForUpdate(ctx context.Context, hardwareID string) (*Botiquin, error) {
	return r.getOne(ctx, `SELECT`+botiquinColumns+`FROM botiquines WHERE hardware_id = $1 FOR UPDATE`, hardwareID)
}

func (r *BotiquinRepository) getOne(ctx context.Context, query string, arg any) (*Botiquin, error) {
	var b Botiquin
	err := r.db.Conn(ctx).GetContext(ctx, &b, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("botiquin")
	}
	if err != nil {
		return nil, database.MapError(err)
	}
	return &b, nil
}

// List returns cabinets ordered by name, optionally limited to one company.
func (r *BotiquinRepository) List(ctx context.Context, companyID *string) ([]*Botiquin, error) {
	query := `SELECT` + botiquinColumns + `FROM botiquines`
	args := []any{}
	if companyID != nil {
		id, ok := canonicalID(*companyID)
		if !ok {
			return []*Botiquin{}, nil
		}
		query += ` WHERE company_id = $1`
		args = append(args, id)
	}
	query += ` ORDER BY name`

	cabinets := []*Botiquin{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &cabinets, query, args...); err != nil {
		return nil, err
	}
	return cabinets, nil
}

// TouchLastSync stamps the cabinet's last successful contact.
func (r *BotiquinRepository) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	id, ok := canonicalID(id)
	if !ok {
		return errors.NotFound("botiquin")
	}
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		`UPDATE botiquines SET last_sync_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("botiquin")
	}
	return nil
}
