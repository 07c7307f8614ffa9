package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botiquin/botiquin-backend/internal/inventory/cache"
	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

func TestRegisterHardware(t *testing.T) {
	f := newFixture(t)
	demo := f.company(t, "Empresa Demo SA")
	ctx := context.Background()

	tests := []struct {
		hardwareID   string
		compartments *int
		rows, cols   *int
		wantRows     int
		wantCols     int
		wantTotal    int
	}{
		{hardwareID: "HW-DEFAULT", wantRows: 3, wantCols: 4, wantTotal: 12},
		{hardwareID: "HW-16", compartments: intp(16), wantRows: 4, wantCols: 4, wantTotal: 16},
		{hardwareID: "HW-20", compartments: intp(20), wantRows: 4, wantCols: 5, wantTotal: 20},
		{hardwareID: "HW-10", compartments: intp(10), wantRows: 3, wantCols: 4, wantTotal: 10},
		{hardwareID: "HW-EXPLICIT", compartments: intp(12), rows: intp(2), cols: intp(6), wantRows: 2, wantCols: 6, wantTotal: 12},
	}
	for _, tt := range tests {
		t.Run(tt.hardwareID, func(t *testing.T) {
			res, err := f.sensor.RegisterHardware(ctx, RegisterRequest{
				HardwareID:   tt.hardwareID,
				CompanyID:    demo,
				Name:         "Cabinet " + tt.hardwareID,
				Compartments: tt.compartments,
				Rows:         tt.rows,
				Cols:         tt.cols,
			})
			require.NoError(t, err)
			assert.True(t, res.Created())
			assert.Equal(t, "Hardware registered successfully as 'Cabinet "+tt.hardwareID+"'", res.Message)
			assert.Equal(t, tt.wantTotal, res.Botiquin.TotalCompartments)
			assert.Equal(t, tt.wantRows, res.Botiquin.CompartmentRows)
			assert.Equal(t, tt.wantCols, res.Botiquin.CompartmentCols)
			assert.True(t, res.Botiquin.Active)
			assert.Equal(t, today, *res.Botiquin.LastSyncAt)
		})
	}
}

func TestRegisterHardware_AlreadyRegistered(t *testing.T) {
	f := newFixture(t)
	demo := f.company(t, "Empresa Demo SA")
	existing := f.cabinet(t, demo, "BOT001", 12)

	res, err := f.sensor.RegisterHardware(context.Background(), RegisterRequest{
		HardwareID: "BOT001", CompanyID: demo, Name: "Renamed", Compartments: intp(20),
	})
	require.NoError(t, err)
	assert.False(t, res.Created())
	assert.Equal(t, StatusAlreadyRegistered, res.Status)
	assert.Equal(t, existing.ID, res.Botiquin.ID)
	assert.Equal(t, existing.Name, res.Botiquin.Name)
	assert.Equal(t, 12, res.Botiquin.TotalCompartments)
	assert.Len(t, f.db.botiquines, 1)
}

func TestRegisterHardware_Rejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.sensor.RegisterHardware(context.Background(), RegisterRequest{Name: "  "})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Contains(t, appErr.Details, "hardware_id")
	assert.Contains(t, appErr.Details, "company_id")
	assert.Contains(t, appErr.Details, "name")

	_, err = f.sensor.RegisterHardware(context.Background(), RegisterRequest{
		HardwareID: "HW", CompanyID: "00000000-0000-0000-0000-999999999999", Name: "Orphan",
	})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = f.sensor.RegisterHardware(context.Background(), RegisterRequest{
		HardwareID: "HW", CompanyID: f.company(t, "Empresa Demo SA"), Name: "Zero", Compartments: intp(0),
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Empty(t, f.db.botiquines)
}

func TestTestConnection(t *testing.T) {
	f := newFixture(t)
	f.cabinet(t, f.company(t, "Empresa Demo SA"), "BOT001", 12)
	ctx := context.Background()

	known, err := f.sensor.TestConnection(ctx, "BOT001")
	require.NoError(t, err)
	assert.Equal(t, "connected", known.Status)
	assert.True(t, known.BotiquinFound)
	assert.Equal(t, "Botiquin BOT001", *known.BotiquinName)
	assert.Equal(t, today, known.Timestamp)

	unknown, err := f.sensor.TestConnection(ctx, "BOT404")
	require.NoError(t, err)
	assert.False(t, unknown.BotiquinFound)
	assert.Nil(t, unknown.BotiquinName)

	anonymous, err := f.sensor.TestConnection(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "unknown", anonymous.HardwareID)
	assert.False(t, anonymous.BotiquinFound)
}

func TestListLogs_Scoped(t *testing.T) {
	f := newFixture(t)
	demo := f.company(t, "Empresa Demo SA")
	xyz := f.company(t, "Corporativo XYZ")
	bot1 := f.cabinet(t, demo, "BOT001", 12)
	bot3 := f.cabinet(t, xyz, "BOT003", 12)
	logs := fakeLogs{f.db}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, logs.Create(ctx, &repository.HardwareLog{BotiquinID: &bot1.ID, Processed: true}))
	}
	require.NoError(t, logs.Create(ctx, &repository.HardwareLog{BotiquinID: &bot3.ID}))
	require.NoError(t, logs.Create(ctx, &repository.HardwareLog{}))

	all, err := f.sensor.ListLogs(superAdmin(), LogQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	scoped, err := f.sensor.ListLogs(companyAdmin(xyz), LogQuery{})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, bot3.ID, *scoped[0].BotiquinID)

	processed := true
	limited, err := f.sensor.ListLogs(superAdmin(), LogQuery{Processed: &processed, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLatestBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newFixture(t)
	f.cabinet(t, f.company(t, "Empresa Demo SA"), "BOT001", 12)
	log := logger.Nop()
	svc := NewSensorService(f.tx, fakeCompanies{f.db}, fakeBotiquines{f.db}, fakeMedicines{f.db}, fakeLogs{f.db},
		cache.NewReadingCache(client, time.Minute, log), events.NewWithPublisher(f.publisher, log),
		f.metrics, domain.FixedClock(today), log)
	ctx := context.Background()

	_, err := svc.LatestBatch(ctx, "BOT001")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	result, err := svc.IngestBatch(ctx, decodeBatch(t, `{"hardware_id": "BOT001", "compartments": [{"compartment": 2, "weight": 1}]}`), SourceHTTP)
	require.NoError(t, err)

	raw, err := svc.LatestBatch(ctx, "BOT001")
	require.NoError(t, err)
	want, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(raw))
}

func TestLatestBatch_NoCache(t *testing.T) {
	f := newFixture(t)
	_, err := f.sensor.LatestBatch(context.Background(), "BOT001")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
