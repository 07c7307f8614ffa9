package consumers

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
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

func newTestConsumer(t *testing.T) (*AlertEventConsumer, *cache.ReadingCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rc := cache.NewReadingCache(client, time.Hour, logger.Nop())
	return &AlertEventConsumer{store: rc, logger: logger.Nop()}, rc
}

func mustEvent(t *testing.T, eventType string, data any) *messaging.Event {
	t.Helper()
	e, err := messaging.NewEvent(eventType, "test", "", data)
	require.NoError(t, err)
	return e
}

func TestHandleAlertGenerated(t *testing.T) {
	c, rc := newTestConsumer(t)
	ctx := context.Background()

	alert := messaging.AlertGeneratedEvent{
		AlertType:    "critical",
		Message:      "Aspirina is OUT_OF_STOCK",
		Status:       "OUT_OF_STOCK",
		MedicineID:   "med-1",
		MedicineName: "Aspirina",
		CompanyID:    "company-1",
		Origin:       "sensor",
		RaisedAt:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.handleAlertGenerated(ctx, mustEvent(t, messaging.EventAlertGenerated, alert)))

	for _, key := range []string{"company-1", cache.AllCompanies} {
		got, err := rc.RecentAlerts(ctx, key, 10)
		require.NoError(t, err)
		require.Len(t, got, 1, key)

		var stored messaging.AlertGeneratedEvent
		require.NoError(t, json.Unmarshal(got[0], &stored))
		assert.Equal(t, alert, stored)
	}
}

func TestHandleAlertGenerated_WithoutCompany(t *testing.T) {
	c, rc := newTestConsumer(t)
	ctx := context.Background()

	alert := messaging.AlertGeneratedEvent{AlertType: "warning", MedicineID: "med-2", Origin: "manual"}
	require.NoError(t, c.handleAlertGenerated(ctx, mustEvent(t, messaging.EventAlertGenerated, alert)))

	all, err := rc.RecentAlerts(ctx, cache.AllCompanies, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	none, err := rc.RecentAlerts(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHandleAlertGenerated_BadPayload(t *testing.T) {
	c, _ := newTestConsumer(t)
	event := &messaging.Event{Type: messaging.EventAlertGenerated, Data: json.RawMessage(`"nope"`)}
	assert.Error(t, c.handleAlertGenerated(context.Background(), event))
}

func TestSummaryHandlers(t *testing.T) {
	c, _ := newTestConsumer(t)
	ctx := context.Background()

	assert.NoError(t, c.handleBatchProcessed(ctx, mustEvent(t, messaging.EventBatchProcessed,
		messaging.BatchProcessedEvent{HardwareID: "BOT001", Readings: 3, Processed: 2, Errors: 1})))
	assert.NoError(t, c.handleStatusSwept(ctx, mustEvent(t, messaging.EventStatusSwept,
		messaging.StatusSweptEvent{Evaluated: 4, ByStatus: map[string]int{"OK": 4}})))
}
