package consumers

import (
	"context"

	"github.com/botiquin/botiquin-backend/internal/inventory/cache"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

// QueueName is the queue the inventory service reads its own events from.
const QueueName = "botiquin-service.inventory-events"

// AlertStore keeps the recent alerts shown on the dashboard.
type AlertStore interface {
	PushAlert(ctx context.Context, companyID string, v any) error
}

// AlertEventConsumer feeds the dashboard's recent alert lists from
// inventory events.
type AlertEventConsumer struct {
	consumer *messaging.Consumer
	store    AlertStore
	logger   *logger.Logger
}

// NewAlertEventConsumer creates a consumer bound to every inventory event
// on exchange.
func NewAlertEventConsumer(rmq *messaging.RabbitMQ, exchange string, store AlertStore, log *logger.Logger) (*AlertEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(exchange, "inventory.#"); err != nil {
		return nil, err
	}

	c := &AlertEventConsumer{
		consumer: consumer,
		store:    store,
		logger:   log.WithComponent("alert-consumer"),
	}

	consumer.RegisterHandler(messaging.EventAlertGenerated, c.handleAlertGenerated)
	consumer.RegisterHandler(messaging.EventBatchProcessed, c.handleBatchProcessed)
	consumer.RegisterHandler(messaging.EventStatusSwept, c.handleStatusSwept)

	return c, nil
}

// Start starts consuming messages
func (c *AlertEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *AlertEventConsumer) handleAlertGenerated(ctx context.Context, event *messaging.Event) error {
	var data messaging.AlertGeneratedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("alert_type", data.AlertType).
		Str("medicine_id", data.MedicineID).
		Str("origin", data.Origin).
		Msg("received alert")

	if data.CompanyID != "" {
		if err := c.store.PushAlert(ctx, data.CompanyID, data); err != nil {
			return err
		}
	}
	return c.store.PushAlert(ctx, cache.AllCompanies, data)
}

func (c *AlertEventConsumer) handleBatchProcessed(_ context.Context, event *messaging.Event) error {
	var data messaging.BatchProcessedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	ev := c.logger.Info()
	if data.Errors > 0 {
		ev = c.logger.Warn()
	}
	ev.Str("hardware_id", data.HardwareID).
		Str("source", data.Source).
		Int("processed", data.Processed).
		Int("errors", data.Errors).
		Int("alerts", data.Alerts).
		Msg("sensor batch processed")
	return nil
}

func (c *AlertEventConsumer) handleStatusSwept(_ context.Context, event *messaging.Event) error {
	var data messaging.StatusSweptEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Int("evaluated", data.Evaluated).
		Int("critical", data.Critical).
		Int("warning", data.Warning).
		Msg("status sweep completed")
	return nil
}
