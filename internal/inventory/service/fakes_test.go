package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/metrics"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/testutil"
)

// memDB is an in-memory stand-in for the repositories. Getters return
// copies, like rows scanned from the database.
type memDB struct {
	mu         sync.Mutex
	seq        int
	companies  map[string]*repository.Company
	botiquines map[string]*repository.Botiquin
	medicines  map[string]*repository.Medicine
	logs       []*repository.HardwareLog
	applyErr   map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		companies:  map[string]*repository.Company{},
		botiquines: map[string]*repository.Botiquin{},
		medicines:  map[string]*repository.Medicine{},
		applyErr:   map[string]error{},
	}
}

func (db *memDB) nextID() string {
	db.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", db.seq)
}

type fakeTx struct {
	savepoints []string
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeTx) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	f.savepoints = append(f.savepoints, name)
	return fn(ctx)
}

type fakeCompanies struct{ *memDB }

func (f fakeCompanies) Create(_ context.Context, c *repository.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = f.nextID()
	}
	cp := *c
	f.companies[c.ID] = &cp
	return nil
}

func (f fakeCompanies) GetByID(_ context.Context, id string) (*repository.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[id]
	if !ok {
		return nil, errors.NotFound("company")
	}
	cp := *c
	return &cp, nil
}

func (f fakeCompanies) List(_ context.Context, onlyID *string) ([]*repository.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*repository.Company{}
	for _, c := range f.companies {
		if onlyID != nil && c.ID != *onlyID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeBotiquines struct{ *memDB }

func (f fakeBotiquines) Create(_ context.Context, b *repository.Botiquin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.botiquines {
		if existing.HardwareID == b.HardwareID {
			return errors.Conflict("a botiquin with this hardware id is already registered")
		}
	}
	if b.ID == "" {
		b.ID = f.nextID()
	}
	cp := *b
	f.botiquines[b.ID] = &cp
	return nil
}

func (f fakeBotiquines) GetByID(_ context.Context, id string) (*repository.Botiquin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.botiquines[id]
	if !ok {
		return nil, errors.NotFound("botiquin")
	}
	cp := *b
	return &cp, nil
}

func (f fakeBotiquines) GetByHardwareID(_ context.Context, hardwareID string) (*repository.Botiquin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.botiquines {
		if b.HardwareID == hardwareID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, errors.NotFound("botiquin")
}

func (f fakeBotiquines) GetByHardwareIDForUpdate(ctx context.Context, hardwareID string) (*repository.Botiquin, error) {
	return f.GetByHardwareID(ctx, hardwareID)
}

func (f fakeBotiquines) List(_ context.Context, companyID *string) ([]*repository.Botiquin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*repository.Botiquin{}
	for _, b := range f.botiquines {
		if companyID != nil && b.CompanyID != *companyID {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeBotiquines) TouchLastSync(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.botiquines[id]
	if !ok {
		return errors.NotFound("botiquin")
	}
	b.LastSyncAt = &at
	return nil
}

type fakeMedicines struct{ *memDB }

func (f fakeMedicines) Create(_ context.Context, m *repository.Medicine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkCompartment(m); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = f.nextID()
	}
	cp := *m
	f.medicines[m.ID] = &cp
	return nil
}

func (f fakeMedicines) checkCompartment(m *repository.Medicine) error {
	if m.BotiquinID == nil || m.CompartmentNumber == nil {
		return nil
	}
	for _, other := range f.medicines {
		if other.ID != m.ID && other.BotiquinID != nil && *other.BotiquinID == *m.BotiquinID &&
			other.CompartmentNumber != nil && *other.CompartmentNumber == *m.CompartmentNumber {
			return errors.Conflict("this compartment is already occupied by another medicine")
		}
	}
	return nil
}

func (f fakeMedicines) owned(m *repository.Medicine) *repository.OwnedMedicine {
	o := &repository.OwnedMedicine{Medicine: *m}
	if m.BotiquinID != nil {
		if b, ok := f.botiquines[*m.BotiquinID]; ok {
			companyID, name := b.CompanyID, b.Name
			o.CompanyID = &companyID
			o.BotiquinName = &name
		}
	}
	return o
}

func (f fakeMedicines) GetByID(_ context.Context, id string) (*repository.OwnedMedicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.medicines[id]
	if !ok {
		return nil, errors.NotFound("medicine")
	}
	return f.owned(m), nil
}

func (f fakeMedicines) GetByCompartmentForUpdate(_ context.Context, botiquinID string, compartment int) (*repository.Medicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.medicines {
		if m.BotiquinID != nil && *m.BotiquinID == botiquinID &&
			m.CompartmentNumber != nil && *m.CompartmentNumber == compartment {
			cp := *m
			return &cp, nil
		}
	}
	return nil, errors.NotFound("medicine")
}

func (f fakeMedicines) List(_ context.Context, filter repository.MedicineFilter) ([]*repository.OwnedMedicine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*repository.OwnedMedicine{}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, m := range f.medicines {
		o := f.owned(m)
		if filter.CompanyID != nil && (o.CompanyID == nil || *o.CompanyID != *filter.CompanyID) {
			continue
		}
		if filter.BotiquinID != nil && (m.BotiquinID == nil || *m.BotiquinID != *filter.BotiquinID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.TradeName), search) &&
			!strings.Contains(strings.ToLower(m.GenericName), search) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TradeName != out[j].TradeName {
			return out[i].TradeName < out[j].TradeName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f fakeMedicines) Update(_ context.Context, m *repository.Medicine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.medicines[m.ID]; !ok {
		return errors.NotFound("medicine")
	}
	if m.Quantity < 0 {
		return errors.Validation(map[string]string{"quantity": "must be greater than or equal to 0"})
	}
	if err := f.checkCompartment(m); err != nil {
		return err
	}
	cp := *m
	f.medicines[m.ID] = &cp
	return nil
}

func (f fakeMedicines) ApplyReading(_ context.Context, id string, quantity int, weight float64, scannedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyErr[id]; err != nil {
		return err
	}
	m, ok := f.medicines[id]
	if !ok {
		return errors.NotFound("medicine")
	}
	m.Quantity = quantity
	m.CurrentWeight = &weight
	m.LastScanAt = &scannedAt
	m.UpdatedAt = scannedAt
	return nil
}

func (f fakeMedicines) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.medicines[id]; !ok {
		return errors.NotFound("medicine")
	}
	delete(f.medicines, id)
	return nil
}

type fakeLogs struct{ *memDB }

func (f fakeLogs) Create(_ context.Context, l *repository.HardwareLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == "" {
		l.ID = f.nextID()
	}
	cp := *l
	f.logs = append(f.logs, &cp)
	return nil
}

func (f fakeLogs) List(_ context.Context, filter repository.HardwareLogFilter) ([]*repository.HardwareLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*repository.HardwareLog{}
	for i := len(f.logs) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		l := f.logs[i]
		if filter.CompanyID != nil {
			if l.BotiquinID == nil {
				continue
			}
			b, ok := f.botiquines[*l.BotiquinID]
			if !ok || b.CompanyID != *filter.CompanyID {
				continue
			}
		}
		if filter.BotiquinID != nil && (l.BotiquinID == nil || *l.BotiquinID != *filter.BotiquinID) {
			continue
		}
		if filter.Processed != nil && l.Processed != *filter.Processed {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

// today is the fixed evaluation instant of every service test.
var today = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	d := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	return &d
}

type fixture struct {
	db        *memDB
	tx        *fakeTx
	publisher *testutil.MockPublisher
	metrics   *metrics.Metrics
	inventory *InventoryService
	sensor    *SensorService
	sweeper   *StatusSweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	tx := &fakeTx{}
	pub := testutil.NewMockPublisher()
	m := metrics.New()
	log := logger.Nop()
	clock := domain.FixedClock(today)
	publisher := events.NewWithPublisher(pub, log)

	return &fixture{
		db:        db,
		tx:        tx,
		publisher: pub,
		metrics:   m,
		inventory: NewInventoryService(fakeCompanies{db}, fakeBotiquines{db}, fakeMedicines{db}, nil, publisher, clock, log),
		sensor:    NewSensorService(tx, fakeCompanies{db}, fakeBotiquines{db}, fakeMedicines{db}, fakeLogs{db}, nil, publisher, m, clock, log),
		sweeper:   NewStatusSweeper("", fakeMedicines{db}, publisher, m, clock, log),
	}
}

func (f *fixture) company(t *testing.T, name string) string {
	t.Helper()
	c := &repository.Company{Name: name, Active: true}
	if err := (fakeCompanies{f.db}).Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c.ID
}

func (f *fixture) cabinet(t *testing.T, companyID, hardwareID string, compartments int) *repository.Botiquin {
	t.Helper()
	rows, cols := GridFor(compartments, 0, 0)
	b := &repository.Botiquin{
		CompanyID:         companyID,
		HardwareID:        hardwareID,
		Name:              "Botiquin " + hardwareID,
		TotalCompartments: compartments,
		CompartmentRows:   rows,
		CompartmentCols:   cols,
		Active:            true,
	}
	if err := (fakeBotiquines{f.db}).Create(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	return b
}

func (f *fixture) medicine(t *testing.T, m repository.Medicine) string {
	t.Helper()
	if m.GenericName == "" {
		m.GenericName = strings.ToLower(m.TradeName)
	}
	if err := (fakeMedicines{f.db}).Create(context.Background(), &m); err != nil {
		t.Fatal(err)
	}
	return m.ID
}

func (f *fixture) stored(id string) *repository.Medicine {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cp := *f.db.medicines[id]
	return &cp
}

func superAdmin() context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{
		ID: "super", Username: "superadmin", UserType: actor.TypeSuperAdmin,
	})
}

func companyAdmin(companyID string) context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{
		ID: "admin-" + companyID, Username: "admin", UserType: actor.TypeCompanyAdmin, CompanyID: &companyID,
	})
}

func intp(i int) *int           { return &i }
func floatp(f float64) *float64 { return &f }
func strp(s string) *string     { return &s }
