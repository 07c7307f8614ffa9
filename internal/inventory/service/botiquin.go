package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/cache"
	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/export"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/errors"
)

// DefaultCompartments is the size of a cabinet registered without one.
const DefaultCompartments = 12

// recentAlertsOnDashboard bounds the alert list shown on the dashboard.
const recentAlertsOnDashboard = 10

// GridFor lays compartments out in rows and columns. Explicit rows and
// cols win when both are positive; the common cabinet sizes have fixed
// layouts and anything else gets four columns.
func GridFor(compartments, rows, cols int) (int, int) {
	if rows > 0 && cols > 0 {
		return rows, cols
	}
	switch compartments {
	case 12:
		return 3, 4
	case 16:
		return 4, 4
	case 20:
		return 4, 5
	default:
		return (compartments + 3) / 4, 4
	}
}

// CreateBotiquinInput is the body of a cabinet creation request.
type CreateBotiquinInput struct {
	CompanyID    *string `json:"company_id" validate:"omitempty,uuid"`
	HardwareID   string  `json:"hardware_id" validate:"required,max=100"`
	Name         string  `json:"name" validate:"required,max=200"`
	Location     *string `json:"location" validate:"omitempty,max=200"`
	Compartments *int    `json:"compartments" validate:"omitempty,gte=1,lte=400"`
	Rows         *int    `json:"rows" validate:"omitempty,gte=1"`
	Cols         *int    `json:"cols" validate:"omitempty,gte=1"`
}

// BotiquinSummary is one cabinet on the dashboard or in a list.
type BotiquinSummary struct {
	ID                string     `json:"id"`
	HardwareID        string     `json:"hardware_id"`
	Name              string     `json:"name"`
	Location          *string    `json:"location,omitempty"`
	CompanyID         string     `json:"company_id"`
	Company           *string    `json:"company,omitempty"`
	Active            bool       `json:"active"`
	MedicinesCount    int        `json:"medicines_count"`
	Critical          int        `json:"critical"`
	Warning           int        `json:"warning"`
	CompartmentsUsed  int        `json:"compartments_used"`
	CompartmentsTotal int        `json:"compartments_total"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
}

// DashboardSummary aggregates every cabinet visible to the caller.
type DashboardSummary struct {
	TotalBotiquines int  `json:"total_botiquines"`
	TotalMedicines  int  `json:"total_medicines"`
	Critical        int  `json:"critical"`
	Warning         int  `json:"warning"`
	Companies       *int `json:"companies,omitempty"`
}

// Dashboard is the landing page payload.
type Dashboard struct {
	Summary      DashboardSummary   `json:"summary"`
	Botiquines   []*BotiquinSummary `json:"botiquines"`
	RecentAlerts []json.RawMessage  `json:"recent_alerts"`
}

// Compartment is one cell of a cabinet grid.
type Compartment struct {
	Number   int           `json:"number"`
	Occupied bool          `json:"occupied"`
	Medicine *MedicineView `json:"medicine"`
}

// CabinetSummary counts a cabinet's medicines and compartments.
type CabinetSummary struct {
	StatusCounts
	CompartmentsUsed int        `json:"compartments_used"`
	CompartmentsFree int        `json:"compartments_free"`
	LastSyncAt       *time.Time `json:"last_sync_at"`
}

// BotiquinDetail is a cabinet with its compartment grid. Grid cells past
// the compartment count are nil.
type BotiquinDetail struct {
	Botiquin     *repository.Botiquin `json:"botiquin"`
	Grid         [][]*Compartment     `json:"grid"`
	Medicines    []*MedicineView      `json:"medicines"`
	Summary      CabinetSummary       `json:"summary"`
	StatusFilter *domain.Status       `json:"status_filter"`
}

// CreateCompanyInput is the body of a company creation request.
type CreateCompanyInput struct {
	Name         string  `json:"name" validate:"required,max=200"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone" validate:"omitempty,max=50"`
}

// CreateBotiquin creates a cabinet. Company admins may only create cabinets
// for their own company, which is also the default.
func (s *InventoryService) CreateBotiquin(ctx context.Context, in CreateBotiquinInput) (*repository.Botiquin, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	companyID := in.CompanyID
	if companyID == nil {
		companyID = a.CompanyID
	}
	if companyID == nil {
		return nil, errors.Validation(map[string]string{"company_id": "this field is required"})
	}
	if !a.CanAccessCompany(*companyID) {
		return nil, errors.Forbidden("access denied")
	}
	if _, err := s.companies.GetByID(ctx, *companyID); err != nil {
		return nil, err
	}

	compartments := DefaultCompartments
	if in.Compartments != nil {
		compartments = *in.Compartments
	}
	var rows, cols int
	if in.Rows != nil {
		rows = *in.Rows
	}
	if in.Cols != nil {
		cols = *in.Cols
	}
	rows, cols = GridFor(compartments, rows, cols)

	b := &repository.Botiquin{
		CompanyID:         *companyID,
		HardwareID:        strings.TrimSpace(in.HardwareID),
		Name:              strings.TrimSpace(in.Name),
		Location:          in.Location,
		TotalCompartments: compartments,
		CompartmentRows:   rows,
		CompartmentCols:   cols,
		Active:            true,
	}
	if err := s.botiquines.Create(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().Str("botiquin_id", b.ID).Str("hardware_id", b.HardwareID).Msg("botiquin created")
	return b, nil
}

// ListBotiquines summarises the cabinets visible to the caller.
func (s *InventoryService) ListBotiquines(ctx context.Context) ([]*BotiquinSummary, error) {
	dash, err := s.buildDashboard(ctx, false)
	if err != nil {
		return nil, err
	}
	return dash.Botiquines, nil
}

// GetDashboard returns the counts per cabinet and overall, plus the most
// recent alerts cached for the caller's company.
func (s *InventoryService) GetDashboard(ctx context.Context) (*Dashboard, error) {
	return s.buildDashboard(ctx, true)
}

func (s *InventoryService) buildDashboard(ctx context.Context, activeOnly bool) (*Dashboard, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	scope := a.CompanyScope()

	cabinets, err := s.botiquines.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	medicines, err := s.medicines.List(ctx, repository.MedicineFilter{CompanyID: scope})
	if err != nil {
		return nil, err
	}

	var companyNames map[string]string
	if a.IsSuperAdmin() {
		companies, err := s.companies.List(ctx, nil)
		if err != nil {
			return nil, err
		}
		companyNames = make(map[string]string, len(companies))
		for _, c := range companies {
			companyNames[c.ID] = c.Name
		}
	}

	byCabinet := map[string][]*repository.OwnedMedicine{}
	for _, m := range medicines {
		if m.BotiquinID != nil {
			byCabinet[*m.BotiquinID] = append(byCabinet[*m.BotiquinID], m)
		}
	}

	today := s.clock.Now()
	dash := &Dashboard{Botiquines: []*BotiquinSummary{}, RecentAlerts: []json.RawMessage{}}
	for _, b := range cabinets {
		if activeOnly && !b.Active {
			continue
		}
		sum := &BotiquinSummary{
			ID:                b.ID,
			HardwareID:        b.HardwareID,
			Name:              b.Name,
			Location:          b.Location,
			CompanyID:         b.CompanyID,
			Active:            b.Active,
			CompartmentsTotal: b.TotalCompartments,
			LastSyncAt:        b.LastSyncAt,
		}
		if name, ok := companyNames[b.CompanyID]; ok {
			sum.Company = &name
		}
		for _, m := range byCabinet[b.ID] {
			sum.MedicinesCount++
			status := snapshotStatus(&m.Medicine, today)
			switch {
			case status.IsCritical():
				sum.Critical++
			case status.IsWarning():
				sum.Warning++
			}
			if m.CompartmentNumber != nil {
				sum.CompartmentsUsed++
			}
		}

		dash.Botiquines = append(dash.Botiquines, sum)
		dash.Summary.TotalBotiquines++
		dash.Summary.TotalMedicines += sum.MedicinesCount
		dash.Summary.Critical += sum.Critical
		dash.Summary.Warning += sum.Warning
	}

	if a.IsSuperAdmin() {
		n := len(companyNames)
		dash.Summary.Companies = &n
	}

	if scope == nil || *scope != "" {
		key := cache.AllCompanies
		if scope != nil {
			key = *scope
		}
		alerts, err := s.cache.RecentAlerts(ctx, key, recentAlertsOnDashboard)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read recent alerts")
		} else {
			dash.RecentAlerts = alerts
		}
	}
	return dash, nil
}

// GetBotiquinDetail returns the cabinet with its grid. statusFilter, when
// set, narrows the medicine list but not the grid or summary.
func (s *InventoryService) GetBotiquinDetail(ctx context.Context, id string, statusFilter domain.Status) (*BotiquinDetail, error) {
	if statusFilter != "" && !statusFilter.Valid() {
		return nil, errors.Validation(map[string]string{"status": "unknown status " + string(statusFilter)})
	}
	b, err := authorizeBotiquin(ctx, s.botiquines, id)
	if err != nil {
		return nil, err
	}
	medicines, err := s.medicines.List(ctx, repository.MedicineFilter{BotiquinID: &b.ID})
	if err != nil {
		return nil, err
	}

	today := s.clock.Now()
	detail := &BotiquinDetail{
		Botiquin:  b,
		Medicines: []*MedicineView{},
		Summary:   CabinetSummary{LastSyncAt: b.LastSyncAt},
	}
	if statusFilter != "" {
		detail.StatusFilter = &statusFilter
	}

	byCompartment := map[int]*MedicineView{}
	for _, m := range medicines {
		v := NewMedicineView(m, today)
		detail.Summary.add(v.Status)
		if v.CompartmentNumber != nil {
			detail.Summary.CompartmentsUsed++
			byCompartment[*v.CompartmentNumber] = v
		}
		if statusFilter == "" || v.Status == statusFilter {
			detail.Medicines = append(detail.Medicines, v)
		}
	}
	detail.Summary.CompartmentsFree = b.TotalCompartments - detail.Summary.CompartmentsUsed
	if detail.Summary.CompartmentsFree < 0 {
		detail.Summary.CompartmentsFree = 0
	}

	detail.Grid = make([][]*Compartment, b.CompartmentRows)
	number := 1
	for r := range detail.Grid {
		row := make([]*Compartment, b.CompartmentCols)
		for c := range row {
			if number <= b.TotalCompartments {
				v := byCompartment[number]
				row[c] = &Compartment{Number: number, Occupied: v != nil, Medicine: v}
			}
			number++
		}
		detail.Grid[r] = row
	}
	return detail, nil
}

// ExportBotiquin renders the cabinet inventory as an xlsx workbook and
// returns it with a suggested file name.
func (s *InventoryService) ExportBotiquin(ctx context.Context, id string) ([]byte, string, error) {
	detail, err := s.GetBotiquinDetail(ctx, id, "")
	if err != nil {
		return nil, "", err
	}

	rows := make([]export.Row, 0, len(detail.Medicines))
	for _, v := range detail.Medicines {
		rows = append(rows, v.exportRow())
	}

	b := detail.Botiquin
	cab := export.Cabinet{Name: b.Name, HardwareID: b.HardwareID}
	if b.Location != nil {
		cab.Location = *b.Location
	}

	now := s.clock.Now()
	data, err := export.Workbook(cab, rows, now)
	if err != nil {
		return nil, "", errors.Wrap(err, "EXPORT_FAILED", "failed to generate workbook", http.StatusInternalServerError)
	}
	return data, fmt.Sprintf("botiquin-%s-%s.xlsx", b.HardwareID, now.Format(DateLayout)), nil
}

// ListCompanies lists every company. Super admins only.
func (s *InventoryService) ListCompanies(ctx context.Context) ([]*repository.Company, error) {
	if _, err := requireSuperAdmin(ctx); err != nil {
		return nil, err
	}
	return s.companies.List(ctx, nil)
}

// CreateCompany creates a company. Super admins only.
func (s *InventoryService) CreateCompany(ctx context.Context, in CreateCompanyInput) (*repository.Company, error) {
	if _, err := requireSuperAdmin(ctx); err != nil {
		return nil, err
	}
	c := &repository.Company{
		Name:         strings.TrimSpace(in.Name),
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		Active:       true,
	}
	if err := s.companies.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
