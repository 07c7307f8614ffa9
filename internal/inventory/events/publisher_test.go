package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
	"github.com/botiquin/botiquin-backend/pkg/testutil"
)

func TestInventoryEventPublisher_NilIsNoop(t *testing.T) {
	var p *events.InventoryEventPublisher
	assert.NotPanics(t, func() {
		p.PublishSensorReconciled(context.Background(), events.Reading{})
		p.PublishBatchProcessed(context.Background(), messaging.BatchProcessedEvent{})
		p.PublishAlertGenerated(context.Background(), &domain.Alert{}, events.AlertSubject{}, "sensor", time.Now())
		p.PublishStatusSwept(context.Background(), messaging.StatusSweptEvent{})
	})
}

func TestInventoryEventPublisher_SensorReconciled(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewWithPublisher(mock, logger.Nop())

	p.PublishSensorReconciled(context.Background(), events.Reading{
		MedicineID:  "med-1",
		Compartment: 1,
		Weight:      100,
		Result:      domain.Reconciliation{OldQuantity: 5, NewQuantity: 20, Delta: 15},
		Status:      domain.StatusOK,
	})

	payloads := mock.OfType(messaging.EventSensorReconciled)
	require.Len(t, payloads, 1)
	data := payloads[0].(messaging.SensorReconciledEvent)
	assert.Equal(t, 15, data.QuantityChange)
	assert.Equal(t, "OK", data.Status)
}

func TestInventoryEventPublisher_AlertGenerated(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := events.NewWithPublisher(mock, logger.Nop())

	alert := domain.AlertFor(domain.StatusExpired, "Aspirina")
	p.PublishAlertGenerated(context.Background(), alert, events.AlertSubject{
		MedicineID:   "med-1",
		MedicineName: "Aspirina",
		Status:       domain.StatusExpired,
	}, "sweep", time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC))

	// nil alerts are dropped
	p.PublishAlertGenerated(context.Background(), nil, events.AlertSubject{}, "sweep", time.Now())

	payloads := mock.OfType(messaging.EventAlertGenerated)
	require.Len(t, payloads, 1)
	data := payloads[0].(messaging.AlertGeneratedEvent)
	assert.Equal(t, "critical", data.AlertType)
	assert.Equal(t, "Aspirina is EXPIRED", data.Message)
	assert.Equal(t, "sweep", data.Origin)
}
