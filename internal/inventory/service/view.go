package service

import (
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/export"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
)

// DateLayout is the wire format of expiry dates.
const DateLayout = "2006-01-02"

// MedicineView is a medicine as returned by the API: the stored record
// plus status and days to expiry evaluated at serialization time.
type MedicineView struct {
	*repository.OwnedMedicine
	ExpiryDate   *string       `json:"expiry_date"`
	Status       domain.Status `json:"status"`
	DaysToExpiry *int          `json:"days_to_expiry"`
}

// NewMedicineView evaluates m against today.
func NewMedicineView(m *repository.OwnedMedicine, today time.Time) *MedicineView {
	v := &MedicineView{
		OwnedMedicine: m,
		Status:        snapshotStatus(&m.Medicine, today),
		DaysToExpiry:  domain.DaysToExpiry(m.ExpiryDate, today),
	}
	if m.ExpiryDate != nil {
		s := m.ExpiryDate.Format(DateLayout)
		v.ExpiryDate = &s
	}
	return v
}

func snapshotStatus(m *repository.Medicine, today time.Time) domain.Status {
	return domain.Classify(domain.Snapshot{
		Quantity:     m.Quantity,
		ReorderLevel: m.ReorderLevel,
		ExpiryDate:   m.ExpiryDate,
	}, today)
}

func (v *MedicineView) exportRow() export.Row {
	row := export.Row{
		Compartment:   v.CompartmentNumber,
		TradeName:     v.TradeName,
		GenericName:   v.GenericName,
		Quantity:      v.Quantity,
		ReorderLevel:  v.ReorderLevel,
		DaysToExpiry:  v.DaysToExpiry,
		Status:        string(v.Status),
		UnitWeight:    v.UnitWeight,
		CurrentWeight: v.CurrentWeight,
	}
	if v.Strength != nil {
		row.Strength = *v.Strength
	}
	if v.ExpiryDate != nil {
		row.ExpiryDate = *v.ExpiryDate
	}
	return row
}

// StatusCounts tallies views by severity.
type StatusCounts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	OK       int `json:"ok"`
}

func (c *StatusCounts) add(s domain.Status) {
	c.Total++
	switch {
	case s.IsCritical():
		c.Critical++
	case s.IsWarning():
		c.Warning++
	case s == domain.StatusOK:
		c.OK++
	}
}
