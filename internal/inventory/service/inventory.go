package service

import (
	"context"
	"strings"
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/cache"
	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// DefaultReorderLevel applies when a medicine is created without one.
const DefaultReorderLevel = 2

// InventoryService handles medicines, cabinets, companies and the dashboard
type InventoryService struct {
	companies  CompanyStore
	botiquines BotiquinStore
	medicines  MedicineStore
	cache      *cache.ReadingCache
	publisher  *events.InventoryEventPublisher
	clock      domain.Clock
	logger     *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	companies CompanyStore,
	botiquines BotiquinStore,
	medicines MedicineStore,
	readingCache *cache.ReadingCache,
	publisher *events.InventoryEventPublisher,
	clock domain.Clock,
	log *logger.Logger,
) *InventoryService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &InventoryService{
		companies:  companies,
		botiquines: botiquines,
		medicines:  medicines,
		cache:      readingCache,
		publisher:  publisher,
		clock:      clock,
		logger:     log,
	}
}

// CreateMedicineInput is the body of a medicine creation request.
type CreateMedicineInput struct {
	BotiquinID        *string  `json:"botiquin_id" validate:"omitempty,uuid"`
	TradeName         string   `json:"trade_name" validate:"required,max=200"`
	GenericName       string   `json:"generic_name" validate:"required,max=200"`
	Brand             *string  `json:"brand" validate:"omitempty,max=200"`
	Strength          *string  `json:"strength" validate:"omitempty,max=100"`
	Presentation      *string  `json:"presentation" validate:"omitempty,max=200"`
	BatchNumber       *string  `json:"batch_number" validate:"omitempty,max=100"`
	Quantity          *int     `json:"quantity" validate:"required,gte=0"`
	ReorderLevel      *int     `json:"reorder_level" validate:"omitempty,gte=0"`
	ExpiryDate        *string  `json:"expiry_date"`
	UnitWeight        *float64 `json:"unit_weight" validate:"omitempty,gt=0"`
	CurrentWeight     *float64 `json:"current_weight" validate:"omitempty,gte=0"`
	CompartmentNumber *int     `json:"compartment_number" validate:"omitempty,gte=1"`
	MaxCapacity       *int     `json:"max_capacity" validate:"omitempty,gte=0"`
}

// UpdateMedicineInput changes the fields that are set. An empty
// expiry_date clears the expiry; an empty botiquin_id removes the medicine
// from its cabinet.
type UpdateMedicineInput struct {
	BotiquinID        *string  `json:"botiquin_id"`
	TradeName         *string  `json:"trade_name" validate:"omitempty,min=1,max=200"`
	GenericName       *string  `json:"generic_name" validate:"omitempty,min=1,max=200"`
	Brand             *string  `json:"brand" validate:"omitempty,max=200"`
	Strength          *string  `json:"strength" validate:"omitempty,max=100"`
	Presentation      *string  `json:"presentation" validate:"omitempty,max=200"`
	BatchNumber       *string  `json:"batch_number" validate:"omitempty,max=100"`
	Quantity          *int     `json:"quantity" validate:"omitempty,gte=0"`
	ReorderLevel      *int     `json:"reorder_level" validate:"omitempty,gte=0"`
	ExpiryDate        *string  `json:"expiry_date"`
	UnitWeight        *float64 `json:"unit_weight" validate:"omitempty,gt=0"`
	CurrentWeight     *float64 `json:"current_weight" validate:"omitempty,gte=0"`
	CompartmentNumber *int     `json:"compartment_number" validate:"omitempty,gte=1"`
	MaxCapacity       *int     `json:"max_capacity" validate:"omitempty,gte=0"`
}

// MedicineQuery filters ListMedicines. PerPage <= 0 returns everything.
type MedicineQuery struct {
	BotiquinID *string
	Status     domain.Status
	Search     string
	Page       int
	PerPage    int
}

// parseExpiry turns "YYYY-MM-DD" into a date; an empty string means none.
func parseExpiry(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil, errors.Validation(map[string]string{
			"expiry_date": "expiry_date must be in YYYY-MM-DD format",
		})
	}
	return &t, nil
}

// placeMedicine checks the caller may put a medicine in the cabinet and
// that the compartment exists there.
func (s *InventoryService) placeMedicine(ctx context.Context, a *actor.Actor, botiquinID *string, compartment *int) error {
	if botiquinID == nil {
		if compartment != nil {
			return errors.Validation(map[string]string{"botiquin_id": "required when compartment_number is set"})
		}
		if !a.IsSuperAdmin() {
			return errors.Validation(map[string]string{"botiquin_id": "this field is required"})
		}
		return nil
	}

	b, err := authorizeBotiquin(ctx, s.botiquines, *botiquinID)
	if err != nil {
		return err
	}
	if compartment != nil && (*compartment < 1 || *compartment > b.TotalCompartments) {
		return errors.Validation(map[string]string{
			"compartment_number": "must be between 1 and the cabinet's compartment count",
		})
	}
	return nil
}

// CreateMedicine creates a new medicine
func (s *InventoryService) CreateMedicine(ctx context.Context, in CreateMedicineInput) (*MedicineView, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	expiry, err := parseExpiry(in.ExpiryDate)
	if err != nil {
		return nil, err
	}
	if err := s.placeMedicine(ctx, a, in.BotiquinID, in.CompartmentNumber); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	m := &repository.Medicine{
		BotiquinID:        in.BotiquinID,
		TradeName:         strings.TrimSpace(in.TradeName),
		GenericName:       strings.TrimSpace(in.GenericName),
		Brand:             in.Brand,
		Strength:          in.Strength,
		Presentation:      in.Presentation,
		BatchNumber:       in.BatchNumber,
		Quantity:          *in.Quantity,
		ReorderLevel:      DefaultReorderLevel,
		ExpiryDate:        expiry,
		UnitWeight:        in.UnitWeight,
		CurrentWeight:     in.CurrentWeight,
		CompartmentNumber: in.CompartmentNumber,
		MaxCapacity:       in.MaxCapacity,
		LastScanAt:        &now,
	}
	if in.ReorderLevel != nil {
		m.ReorderLevel = *in.ReorderLevel
	}

	if err := s.medicines.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("medicine_id", m.ID).
		Str("trade_name", m.TradeName).
		Str("actor", a.String()).
		Msg("medicine created")

	return s.GetMedicine(ctx, m.ID)
}

// GetMedicine returns one medicine with its current status
func (s *InventoryService) GetMedicine(ctx context.Context, id string) (*MedicineView, error) {
	m, err := authorizeMedicine(ctx, s.medicines, id)
	if err != nil {
		return nil, err
	}
	return NewMedicineView(m, s.clock.Now()), nil
}

// ListMedicines lists the medicines visible to the caller, sorted by
// trade name. Status is computed per record before filtering.
func (s *InventoryService) ListMedicines(ctx context.Context, q MedicineQuery) ([]*MedicineView, int, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, 0, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, errors.Validation(map[string]string{"status": "unknown status " + string(q.Status)})
	}
	if q.BotiquinID != nil {
		if _, err := authorizeBotiquin(ctx, s.botiquines, *q.BotiquinID); err != nil {
			return nil, 0, err
		}
	}

	records, err := s.medicines.List(ctx, repository.MedicineFilter{
		CompanyID:  a.CompanyScope(),
		BotiquinID: q.BotiquinID,
		Search:     q.Search,
	})
	if err != nil {
		return nil, 0, err
	}

	today := s.clock.Now()
	views := make([]*MedicineView, 0, len(records))
	for _, m := range records {
		v := NewMedicineView(m, today)
		if q.Status != "" && v.Status != q.Status {
			continue
		}
		views = append(views, v)
	}

	total := len(views)
	return paginate(views, q.Page, q.PerPage), total, nil
}

func paginate[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// UpdateMedicine applies the set fields of in. A quantity change counts as
// a manual scan.
func (s *InventoryService) UpdateMedicine(ctx context.Context, id string, in UpdateMedicineInput) (*MedicineView, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	current, err := authorizeMedicine(ctx, s.medicines, id)
	if err != nil {
		return nil, err
	}
	m := current.Medicine

	if in.BotiquinID != nil {
		if *in.BotiquinID == "" {
			m.BotiquinID = nil
			m.CompartmentNumber = nil
		} else {
			m.BotiquinID = in.BotiquinID
		}
	}
	if in.CompartmentNumber != nil {
		m.CompartmentNumber = in.CompartmentNumber
	}
	if in.BotiquinID != nil || in.CompartmentNumber != nil {
		if err := s.placeMedicine(ctx, a, m.BotiquinID, m.CompartmentNumber); err != nil {
			return nil, err
		}
	}

	if in.ExpiryDate != nil {
		expiry, err := parseExpiry(in.ExpiryDate)
		if err != nil {
			return nil, err
		}
		m.ExpiryDate = expiry
	}
	if in.TradeName != nil {
		m.TradeName = strings.TrimSpace(*in.TradeName)
	}
	if in.GenericName != nil {
		m.GenericName = strings.TrimSpace(*in.GenericName)
	}
	if in.Brand != nil {
		m.Brand = in.Brand
	}
	if in.Strength != nil {
		m.Strength = in.Strength
	}
	if in.Presentation != nil {
		m.Presentation = in.Presentation
	}
	if in.BatchNumber != nil {
		m.BatchNumber = in.BatchNumber
	}
	if in.ReorderLevel != nil {
		m.ReorderLevel = *in.ReorderLevel
	}
	if in.UnitWeight != nil {
		m.UnitWeight = in.UnitWeight
	}
	if in.CurrentWeight != nil {
		m.CurrentWeight = in.CurrentWeight
	}
	if in.MaxCapacity != nil {
		m.MaxCapacity = in.MaxCapacity
	}

	now := s.clock.Now()
	if in.Quantity != nil && *in.Quantity != m.Quantity {
		m.Quantity = *in.Quantity
		m.LastScanAt = &now
	}

	if err := s.medicines.Update(ctx, &m); err != nil {
		return nil, err
	}

	view, err := s.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert := domain.AlertFor(view.Status, view.TradeName); alert != nil {
		s.publisher.PublishAlertGenerated(ctx, alert, subjectOf(view), "manual", now)
	}
	return view, nil
}

// DeleteMedicine removes the medicine row
func (s *InventoryService) DeleteMedicine(ctx context.Context, id string) error {
	if _, err := authorizeMedicine(ctx, s.medicines, id); err != nil {
		return err
	}
	if err := s.medicines.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("medicine_id", id).Msg("medicine deleted")
	return nil
}

func subjectOf(v *MedicineView) events.AlertSubject {
	subject := events.AlertSubject{
		MedicineID:   v.ID,
		MedicineName: v.TradeName,
		Status:       v.Status,
	}
	if v.BotiquinID != nil {
		subject.BotiquinID = *v.BotiquinID
	}
	if v.CompanyID != nil {
		subject.CompanyID = *v.CompanyID
	}
	return subject
}
