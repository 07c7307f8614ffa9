package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/errors"
)

// Company owns cabinets and the admins that manage them.
type Company struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CompanyRepository handles company persistence
type CompanyRepository struct {
	db *database.DB
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *database.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create inserts c, assigning an id when empty.
func (r *CompanyRepository) Create(ctx context.Context, c *Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO companies (id, name, contact_email, contact_phone, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		c.ID, c.Name, c.ContactEmail, c.ContactPhone, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return database.MapError(err)
}

// GetByID gets a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*Company, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, errors.NotFound("company")
	}

	var c Company
	query := `
		SELECT id, name, contact_email, contact_phone, active, created_at, updated_at
		FROM companies WHERE id = $1
	`
	err := r.db.Conn(ctx).GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("company")
	}
	if err != nil {
		return nil, database.MapError(err)
	}
	return &c, nil
}

// List returns companies ordered by name. A non-nil onlyID restricts the
// result to that company.
func (r *CompanyRepository) List(ctx context.Context, onlyID *string) ([]*Company, error) {
	query := `
		SELECT id, name, contact_email, contact_phone, active, created_at, updated_at
		FROM companies
	`
	args := []any{}
	if onlyID != nil {
		id, ok := canonicalID(*onlyID)
		if !ok {
			return []*Company{}, nil
		}
		query += ` WHERE id = $1`
		args = append(args, id)
	}
	query += ` ORDER BY name`

	companies := []*Company{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, err
	}
	return companies, nil
}
