// Package seed loads the demo data set: two companies with their admins,
// three cabinets and medicines covering every status.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	authrepo "github.com/botiquin/botiquin-backend/internal/auth/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// Tables lists the seeded tables, children first.
var Tables = []string{"hardware_logs", "medicines", "botiquines", "users", "companies"}

// Summary counts what Load created.
type Summary struct {
	Companies  int `json:"companies"`
	Users      int `json:"users"`
	Botiquines int `json:"botiquines"`
	Medicines  int `json:"medicines"`
}

type companySeed struct {
	name, email, phone string
}

type userSeed struct {
	username, email, password, userType string
	company                             int // index into companies, -1 for none
}

type botiquinSeed struct {
	hardwareID, name, location string
	company                    int
	compartments, rows, cols   int
	lastSync                   time.Duration
}

type medicineSeed struct {
	botiquin               int
	compartment            int
	trade, generic, brand  string
	strength, batch        string
	unitWeight, weight     float64
	quantity, reorder, max int
	expiresIn              int // days from today
	scannedAgo             time.Duration
}

var companies = []companySeed{
	{"Empresa Demo SA", "admin@empresademo.com", "+52-999-123-4567"},
	{"Corporativo XYZ", "contacto@xyz.com.mx", "+52-999-987-6543"},
}

// Demo credentials, printed by cmd/seed.
var users = []userSeed{
	{"superadmin", "superadmin@system.com", "super123", actor.TypeSuperAdmin, -1},
	{"demo", "demo@empresademo.com", "demo123", actor.TypeCompanyAdmin, 0},
	{"admin", "admin@empresademo.com", "admin123", actor.TypeCompanyAdmin, 0},
	{"xyzadmin", "admin@xyz.com.mx", "xyz123", actor.TypeCompanyAdmin, 1},
}

var botiquines = []botiquinSeed{
	{"BOT001", "Botiquín Principal", "Planta Baja - Recepción", 0, 12, 3, 4, 2 * time.Hour},
	{"BOT002", "Botiquín Segundo Piso", "Segundo Piso - Área Administrativa", 0, 16, 4, 4, 30 * time.Minute},
	{"BOT003", "Botiquín XYZ", "Oficina Principal", 1, 12, 3, 4, time.Hour},
}

var medicines = []medicineSeed{
	{0, 1, "Paracetamol", "Paracetamolum", "Genfar", "500mg", "LOT001", 0.5, 5.0, 10, 15, 50, -10, 3 * time.Hour},
	{0, 2, "Ibuprofeno", "Ibuprofenum", "MK", "400mg", "LOT002", 0.6, 3.0, 5, 8, 30, 5, time.Hour},
	{0, 3, "Amoxicilina", "Amoxicillinum", "Sandoz", "500mg", "LOT003", 0.7, 0, 0, 10, 40, 200, 6 * time.Hour},
	{0, 4, "Omeprazol", "Omeprazolum", "Pfizer", "20mg", "LOT004", 0.4, 0.8, 2, 10, 25, 180, 45 * time.Minute},
	{0, 5, "Loratadina", "Loratadinum", "Bayer", "10mg", "LOT005", 0.3, 3.6, 12, 5, 20, 25, 15 * time.Minute},
	{0, 6, "Diclofenaco", "Diclofenacum", "Tecnoquímicas", "50mg", "LOT006", 0.5, 10.0, 20, 8, 35, 300, 5 * time.Minute},
	{1, 1, "Aspirina", "Ácido acetilsalicílico", "Bayer", "100mg", "ASP001", 0.4, 8.0, 20, 10, 50, 120, 30 * time.Minute},
	{1, 2, "Salbutamol", "Salbutamolum", "GlaxoSmithKline", "100mcg/dosis", "SAL001", 15.0, 30.0, 2, 1, 5, 400, time.Hour},
	{2, 1, "Metformina", "Metforminum", "Sanofi", "850mg", "MET001", 0.8, 16.0, 20, 15, 60, 250, 2 * time.Hour},
}

// Credentials returns the demo username/password pairs.
func Credentials() map[string]string {
	out := make(map[string]string, len(users))
	for _, u := range users {
		out[u.username] = u.password
	}
	return out
}

// Loader writes the demo data set.
type Loader struct {
	db       *database.DB
	logger   *logger.Logger
	hashCost int
}

// NewLoader creates a loader.
func NewLoader(db *database.DB, log *logger.Logger) *Loader {
	return &Loader{db: db, logger: log, hashCost: bcrypt.DefaultCost}
}

// Reset empties every seeded table.
func (l *Loader) Reset(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "TRUNCATE "+strings.Join(Tables, ", ")+" CASCADE")
	return err
}

// Load inserts the data set in one transaction. Dates are relative to now
// so statuses come out the same whenever it runs.
func (l *Loader) Load(ctx context.Context, now time.Time) (*Summary, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sum := &Summary{}

	companyRepo := repository.NewCompanyRepository(l.db)
	userRepo := authrepo.NewUserRepository(l.db)
	botiquinRepo := repository.NewBotiquinRepository(l.db)
	medicineRepo := repository.NewMedicineRepository(l.db)

	err := l.db.WithTx(ctx, func(ctx context.Context) error {
		companyIDs := make([]string, len(companies))
		for i, c := range companies {
			rec := &repository.Company{Name: c.name, ContactEmail: ptr(c.email), ContactPhone: ptr(c.phone), Active: true}
			if err := companyRepo.Create(ctx, rec); err != nil {
				return fmt.Errorf("company %q: %w", c.name, err)
			}
			companyIDs[i] = rec.ID
			sum.Companies++
		}

		for _, u := range users {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.password), l.hashCost)
			if err != nil {
				return err
			}
			rec := &authrepo.User{
				Username:     u.username,
				Email:        ptr(u.email),
				PasswordHash: string(hash),
				UserType:     u.userType,
				Active:       true,
			}
			if u.company >= 0 {
				rec.CompanyID = &companyIDs[u.company]
			}
			if err := userRepo.Create(ctx, rec); err != nil {
				return fmt.Errorf("user %q: %w", u.username, err)
			}
			sum.Users++
		}

		botiquinIDs := make([]string, len(botiquines))
		for i, b := range botiquines {
			synced := now.Add(-b.lastSync)
			rec := &repository.Botiquin{
				CompanyID:         companyIDs[b.company],
				HardwareID:        b.hardwareID,
				Name:              b.name,
				Location:          ptr(b.location),
				TotalCompartments: b.compartments,
				CompartmentRows:   b.rows,
				CompartmentCols:   b.cols,
				Active:            true,
				LastSyncAt:        &synced,
			}
			if err := botiquinRepo.Create(ctx, rec); err != nil {
				return fmt.Errorf("botiquin %s: %w", b.hardwareID, err)
			}
			botiquinIDs[i] = rec.ID
			sum.Botiquines++
		}

		for _, m := range medicines {
			expiry := today.AddDate(0, 0, m.expiresIn)
			scanned := now.Add(-m.scannedAgo)
			unit, weight := m.unitWeight, m.weight
			compartment, capacity := m.compartment, m.max
			rec := &repository.Medicine{
				BotiquinID:        &botiquinIDs[m.botiquin],
				TradeName:         m.trade,
				GenericName:       m.generic,
				Brand:             ptr(m.brand),
				Strength:          ptr(m.strength),
				BatchNumber:       ptr(m.batch),
				Quantity:          m.quantity,
				ReorderLevel:      m.reorder,
				ExpiryDate:        &expiry,
				UnitWeight:        &unit,
				CurrentWeight:     &weight,
				CompartmentNumber: &compartment,
				MaxCapacity:       &capacity,
				LastScanAt:        &scanned,
			}
			if err := medicineRepo.Create(ctx, rec); err != nil {
				return fmt.Errorf("medicine %q: %w", m.trade, err)
			}
			sum.Medicines++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Int("companies", sum.Companies).
		Int("users", sum.Users).
		Int("botiquines", sum.Botiquines).
		Int("medicines", sum.Medicines).
		Msg("demo data loaded")
	return sum, nil
}

func ptr(s string) *string { return &s }
