package events

import (
	"context"
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

// Source identifies this service in published envelopes.
const Source = "botiquin-service"

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// InventoryEventPublisher publishes inventory-related events. A nil
// publisher is valid and drops everything, which is how the service runs
// with RabbitMQ disabled.
type InventoryEventPublisher struct {
	publisher eventPublisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, exchange string, log *logger.Logger) (*InventoryEventPublisher, error) {
	if exchange == "" {
		exchange = messaging.ExchangeInventoryEvents
	}
	publisher, err := messaging.NewPublisher(rmq, exchange, Source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps any publisher, e.g. a test double.
func NewWithPublisher(p eventPublisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{publisher: p, logger: log}
}

// Reading carries what the reconciler learned about one medicine.
type Reading struct {
	BotiquinID   string
	HardwareID   string
	CompanyID    string
	MedicineID   string
	MedicineName string
	Compartment  int
	Weight       float64
	Result       domain.Reconciliation
	Status       domain.Status
}

// PublishSensorReconciled publishes a sensor reconciled event
func (p *InventoryEventPublisher) PublishSensorReconciled(ctx context.Context, r Reading) {
	if p == nil {
		return
	}

	data := messaging.SensorReconciledEvent{
		BotiquinID:        r.BotiquinID,
		HardwareID:        r.HardwareID,
		CompanyID:         r.CompanyID,
		MedicineID:        r.MedicineID,
		MedicineName:      r.MedicineName,
		CompartmentNumber: r.Compartment,
		Weight:            r.Weight,
		OldQuantity:       r.Result.OldQuantity,
		NewQuantity:       r.Result.NewQuantity,
		QuantityChange:    r.Result.Delta,
		Status:            string(r.Status),
		OverCapacity:      r.Result.OverCapacity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventSensorReconciled, data); err != nil {
		p.logger.Error().Err(err).Str("medicine_id", r.MedicineID).Msg("failed to publish sensor reconciled event")
	}
}

// PublishBatchProcessed publishes a batch processed event
func (p *InventoryEventPublisher) PublishBatchProcessed(ctx context.Context, data messaging.BatchProcessedEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchProcessed, data); err != nil {
		p.logger.Error().Err(err).Str("hardware_id", data.HardwareID).Msg("failed to publish batch processed event")
	}
}

// AlertSubject names the medicine an alert is about.
type AlertSubject struct {
	MedicineID   string
	MedicineName string
	BotiquinID   string
	CompanyID    string
	Status       domain.Status
}

// PublishAlertGenerated publishes an alert generated event
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, alert *domain.Alert, subject AlertSubject, origin string, at time.Time) {
	if p == nil || alert == nil {
		return
	}

	data := messaging.AlertGeneratedEvent{
		AlertType:    string(alert.Type),
		Message:      alert.Message,
		Status:       string(subject.Status),
		MedicineID:   subject.MedicineID,
		MedicineName: subject.MedicineName,
		BotiquinID:   subject.BotiquinID,
		CompanyID:    subject.CompanyID,
		Origin:       origin,
		RaisedAt:     at.UTC(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("medicine_id", subject.MedicineID).Msg("failed to publish alert generated event")
	}
}

// PublishStatusSwept publishes a status swept event
func (p *InventoryEventPublisher) PublishStatusSwept(ctx context.Context, data messaging.StatusSweptEvent) {
	if p == nil {
		return
	}

	if err := p.publisher.Publish(ctx, messaging.EventStatusSwept, data); err != nil {
		p.logger.Error().Err(err).Msg("failed to publish status swept event")
	}
}
