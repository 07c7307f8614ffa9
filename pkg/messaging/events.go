package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types. The type doubles as the routing key.
const (
	EventSensorReconciled = "inventory.sensor.reconciled"
	EventBatchProcessed   = "inventory.sensor.batch_processed"
	EventAlertGenerated   = "inventory.alert.generated"
	EventStatusSwept      = "inventory.status.swept"
)

// ExchangeInventoryEvents is the default topic exchange for inventory events.
const ExchangeInventoryEvents = "inventory.events"

// Event is the envelope every message travels in.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// SensorReconciledEvent is published for every medicine whose quantity was
// recomputed from a scale reading.
type SensorReconciledEvent struct {
	BotiquinID        string  `json:"botiquin_id"`
	HardwareID        string  `json:"hardware_id"`
	CompanyID         string  `json:"company_id"`
	MedicineID        string  `json:"medicine_id"`
	MedicineName      string  `json:"medicine_name"`
	CompartmentNumber int     `json:"compartment_number"`
	Weight            float64 `json:"weight"`
	OldQuantity       int     `json:"old_quantity"`
	NewQuantity       int     `json:"new_quantity"`
	QuantityChange    int     `json:"quantity_change"`
	Status            string  `json:"status"`
	OverCapacity      bool    `json:"over_capacity,omitempty"`
}

// BatchProcessedEvent summarises one ingested batch.
type BatchProcessedEvent struct {
	BotiquinID string `json:"botiquin_id"`
	HardwareID string `json:"hardware_id"`
	CompanyID  string `json:"company_id"`
	Readings   int    `json:"readings"`
	Processed  int    `json:"processed"`
	Errors     int    `json:"errors"`
	Alerts     int    `json:"alerts"`
	Source     string `json:"source"`
}

// AlertGeneratedEvent is published when a medicine enters a critical or
// warning status.
type AlertGeneratedEvent struct {
	AlertType    string    `json:"alert_type"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	MedicineID   string    `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	BotiquinID   string    `json:"botiquin_id,omitempty"`
	CompanyID    string    `json:"company_id,omitempty"`
	Origin       string    `json:"origin"` // "sensor", "sweep" or "manual"
	RaisedAt     time.Time `json:"raised_at"`
}

// StatusSweptEvent summarises one run of the scheduled status sweep.
type StatusSweptEvent struct {
	Evaluated int            `json:"evaluated"`
	Critical  int            `json:"critical"`
	Warning   int            `json:"warning"`
	ByStatus  map[string]int `json:"by_status"`
}
