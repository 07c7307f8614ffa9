package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

func TestStatusSweeper_Sweep(t *testing.T) {
	f := newFixture(t)
	cab := f.cabinet(t, f.company(t, "Empresa Demo SA"), "BOT001", 12)
	f.medicine(t, repository.Medicine{BotiquinID: &cab.ID, TradeName: "Aspirina", Quantity: 0})
	f.medicine(t, repository.Medicine{BotiquinID: &cab.ID, TradeName: "Cetirizina", Quantity: 8, ExpiryDate: day(-2)})
	f.medicine(t, repository.Medicine{BotiquinID: &cab.ID, TradeName: "Ibuprofeno", Quantity: 8, ExpiryDate: day(7)})
	f.medicine(t, repository.Medicine{BotiquinID: &cab.ID, TradeName: "Loratadina", Quantity: 8, ExpiryDate: day(8)})
	f.medicine(t, repository.Medicine{BotiquinID: &cab.ID, TradeName: "Omeprazol", Quantity: 2, ReorderLevel: 2})
	f.medicine(t, repository.Medicine{TradeName: "Suero", Quantity: 30, ReorderLevel: 2})

	summary, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Evaluated)
	assert.Equal(t, 2, summary.Critical)
	assert.Equal(t, 2, summary.Warning)
	assert.Equal(t, map[string]int{
		string(domain.StatusOutOfStock):  1,
		string(domain.StatusExpired):     1,
		string(domain.StatusExpiresSoon): 1,
		string(domain.StatusExpires30):   1,
		string(domain.StatusLowStock):    1,
		string(domain.StatusOK):          1,
	}, summary.ByStatus)

	alerts := f.publisher.OfType(messaging.EventAlertGenerated)
	require.Len(t, alerts, 4)
	for _, a := range alerts {
		assert.Equal(t, "sweep", a.(messaging.AlertGeneratedEvent).Origin)
	}
	f.publisher.AssertEventPublished(t, messaging.EventStatusSwept)

	assert.Contains(t, scrape(t, f), `botiquin_medicines_by_status{status="EXPIRES_30"} 1`)
}

func TestStatusSweeper_StartRejectsBadSchedule(t *testing.T) {
	s := NewStatusSweeper("not a schedule", fakeMedicines{newMemDB()}, nil, nil, nil, logger.Nop())
	assert.Error(t, s.Start())

	s = NewStatusSweeper("", fakeMedicines{newMemDB()}, nil, nil, nil, logger.Nop())
	require.NoError(t, s.Start())
	s.Stop()
}
