package service

import (
	"context"
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
)

// Transactor runs work inside a transaction, with savepoints for work that
// may fail on its own. *database.DB implements it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// CompanyStore is the company persistence the services need.
type CompanyStore interface {
	Create(ctx context.Context, c *repository.Company) error
	GetByID(ctx context.Context, id string) (*repository.Company, error)
	List(ctx context.Context, onlyID *string) ([]*repository.Company, error)
}

// BotiquinStore is the cabinet persistence the services need.
type BotiquinStore interface {
	Create(ctx context.Context, b *repository.Botiquin) error
	GetByID(ctx context.Context, id string) (*repository.Botiquin, error)
	GetByHardwareID(ctx context.Context, hardwareID string) (*repository.Botiquin, error)
	GetByHardwareIDForUpdate(ctx context.Context, hardwareID string) (*repository.Botiquin, error)
	List(ctx context.Context, companyID *string) ([]*repository.Botiquin, error)
	TouchLastSync(ctx context.Context, id string, at time.Time) error
}

// MedicineStore is the medicine persistence the services need.
type MedicineStore interface {
	Create(ctx context.Context, m *repository.Medicine) error
	GetByID(ctx context.Context, id string) (*repository.OwnedMedicine, error)
	GetByCompartmentForUpdate(ctx context.Context, botiquinID string, compartment int) (*repository.Medicine, error)
	List(ctx context.Context, f repository.MedicineFilter) ([]*repository.OwnedMedicine, error)
	Update(ctx context.Context, m *repository.Medicine) error
	ApplyReading(ctx context.Context, id string, quantity int, weight float64, scannedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// HardwareLogStore is the hardware log persistence the services need.
type HardwareLogStore interface {
	Create(ctx context.Context, l *repository.HardwareLog) error
	List(ctx context.Context, f repository.HardwareLogFilter) ([]*repository.HardwareLog, error)
}
