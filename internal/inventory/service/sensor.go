package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/cache"
	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/metrics"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

// Ingestion sources.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

const (
	defaultSensorType = "weight"
	defaultLogLimit   = 100
	maxLogLimit       = 1000

	errMissingData      = "missing compartment or weight"
	errEmptyCompartment = "no medicine in compartment"
)

// SensorService reconciles scale readings from cabinet hardware with the
// stored inventory.
type SensorService struct {
	db         Transactor
	companies  CompanyStore
	botiquines BotiquinStore
	medicines  MedicineStore
	logs       HardwareLogStore
	cache      *cache.ReadingCache
	publisher  *events.InventoryEventPublisher
	metrics    *metrics.Metrics
	clock      domain.Clock
	logger     *logger.Logger
}

// NewSensorService creates a new sensor service
func NewSensorService(
	db Transactor,
	companies CompanyStore,
	botiquines BotiquinStore,
	medicines MedicineStore,
	logs HardwareLogStore,
	readingCache *cache.ReadingCache,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	clock domain.Clock,
	log *logger.Logger,
) *SensorService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &SensorService{
		db:         db,
		companies:  companies,
		botiquines: botiquines,
		medicines:  medicines,
		logs:       logs,
		cache:      readingCache,
		publisher:  publisher,
		metrics:    m,
		clock:      clock,
		logger:     log.WithComponent("sensor"),
	}
}

// Reading is one compartment's scale value.
type Reading struct {
	Compartment *int     `json:"compartment"`
	Weight      *float64 `json:"weight"`
	Unit        string   `json:"unit,omitempty"`
}

// BatchRequest is a set of readings from one cabinet. Readings may arrive
// under "compartments" or, from older firmware, "readings". Each reading
// is decoded on its own so one malformed entry cannot reject the batch.
type BatchRequest struct {
	HardwareID   string            `json:"hardware_id"`
	SensorType   string            `json:"sensor_type,omitempty"`
	Timestamp    string            `json:"timestamp,omitempty"`
	Compartments []json.RawMessage `json:"compartments"`
	Readings     []json.RawMessage `json:"readings"`
}

func (r *BatchRequest) entries() []json.RawMessage {
	return append(append([]json.RawMessage{}, r.Compartments...), r.Readings...)
}

// BotiquinRef identifies the cabinet a result belongs to.
type BotiquinRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	HardwareID string `json:"hardware_id"`
}

// ReadingResult is the outcome of one reading. Empty compartments carry
// only compartment, status "empty" and the weight.
type ReadingResult struct {
	Compartment    int      `json:"compartment"`
	Medicine       string   `json:"medicine,omitempty"`
	MedicineID     string   `json:"medicine_id,omitempty"`
	OldQuantity    *int     `json:"old_quantity,omitempty"`
	NewQuantity    *int     `json:"new_quantity,omitempty"`
	QuantityChange *int     `json:"quantity_change,omitempty"`
	Status         string   `json:"status"`
	Weight         *float64 `json:"weight,omitempty"`
	OverCapacity   bool     `json:"over_capacity,omitempty"`
}

// ReadingError reports a reading that could not be applied.
type ReadingError struct {
	Compartment *int   `json:"compartment"`
	Error       string `json:"error"`
}

// BatchResult is returned to the hardware as is. Errors is null when there
// are none and alerts are omitted when there are none.
type BatchResult struct {
	Success   bool            `json:"success"`
	Botiquin  BotiquinRef     `json:"botiquin"`
	Processed int             `json:"processed"`
	Results   []ReadingResult `json:"results"`
	Errors    []ReadingError  `json:"errors"`
	Alerts    []domain.Alert  `json:"alerts,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// applied is a reconciled reading kept for post-commit side effects.
type applied struct {
	medicine    *repository.Medicine
	compartment int
	weight      float64
	oldWeight   *float64
	result      domain.Reconciliation
	status      domain.Status
	alert       *domain.Alert
}

// outcome of one reading inside the batch transaction.
type outcome struct {
	empty   bool
	applied *applied
}

// IngestBatch applies every reading of req inside one transaction. An
// unknown cabinet fails the whole batch without changes. Any other problem
// is confined to its reading: the reading runs under its own savepoint and
// is reported in Errors while the others go through.
func (s *SensorService) IngestBatch(ctx context.Context, req BatchRequest, source string) (*BatchResult, error) {
	start := time.Now()
	defer s.metrics.ObserveBatch(start)

	hardwareID := strings.TrimSpace(req.HardwareID)
	if hardwareID == "" {
		return nil, errors.Validation(map[string]string{"hardware_id": "this field is required"})
	}
	if req.Compartments == nil && req.Readings == nil {
		return nil, errors.Validation(map[string]string{"compartments": "this field is required"})
	}
	sensorType := req.SensorType
	if sensorType == "" {
		sensorType = defaultSensorType
	}

	log := s.logger.WithHardwareID(hardwareID)
	now := s.clock.Now()

	var (
		cab    *repository.Botiquin
		result *BatchResult
		done   []*applied
		counts = map[string]int{}
	)
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		cab, err = s.botiquines.GetByHardwareIDForUpdate(ctx, hardwareID)
		if err != nil {
			return err
		}

		result = &BatchResult{
			Botiquin:  BotiquinRef{ID: cab.ID, Name: cab.Name, HardwareID: cab.HardwareID},
			Results:   []ReadingResult{},
			Timestamp: now.UTC(),
		}

		for i, raw := range req.entries() {
			s.ingestEntry(ctx, log, cab, i, raw, sensorType, now, result, &done, counts)
		}

		return s.botiquines.TouchLastSync(ctx, cab.ID, now)
	})
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) && cab == nil {
			log.Warn().Msg("batch for unknown hardware rejected")
		}
		return nil, err
	}

	result.Success = len(result.Errors) == 0
	result.Processed = len(result.Results)

	log.Info().
		Int("readings", len(req.entries())).
		Int("processed", result.Processed).
		Int("errors", len(result.Errors)).
		Int("alerts", len(result.Alerts)).
		Str("source", source).
		Msg("sensor batch processed")

	s.afterCommit(ctx, cab, result, done, counts, source)
	return result, nil
}

func (s *SensorService) ingestEntry(
	ctx context.Context,
	log *logger.Logger,
	cab *repository.Botiquin,
	i int,
	raw json.RawMessage,
	sensorType string,
	now time.Time,
	result *BatchResult,
	done *[]*applied,
	counts map[string]int,
) {
	entry := &repository.HardwareLog{
		BotiquinID: &cab.ID,
		SensorType: &sensorType,
		RawData:    raw,
	}

	fail := func(compartment *int, msg string) {
		result.Errors = append(result.Errors, ReadingError{Compartment: compartment, Error: msg})
		entry.ErrorMessage = &msg
		counts[metrics.OutcomeError]++
		s.writeLog(ctx, log, i, entry)
	}

	var rd Reading
	if err := json.Unmarshal(raw, &rd); err != nil {
		fail(nil, "invalid reading: "+err.Error())
		return
	}
	entry.CompartmentNumber = rd.Compartment
	entry.WeightReading = rd.Weight

	if rd.Compartment == nil || rd.Weight == nil {
		fail(rd.Compartment, errMissingData)
		return
	}
	grams, err := toGrams(*rd.Weight, rd.Unit)
	if err != nil {
		fail(rd.Compartment, err.Error())
		return
	}

	var out outcome
	err = s.db.Savepoint(ctx, fmt.Sprintf("reading_%d", i), func(ctx context.Context) error {
		var err error
		out, err = s.reconcile(ctx, cab, *rd.Compartment, grams, now)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Int("compartment", *rd.Compartment).Msg("reading not applied")
		fail(rd.Compartment, err.Error())
		return
	}

	if out.empty {
		result.Results = append(result.Results, ReadingResult{
			Compartment: *rd.Compartment,
			Status:      "empty",
			Weight:      &grams,
		})
		msg := errEmptyCompartment
		entry.ErrorMessage = &msg
		counts[metrics.OutcomeEmpty]++
		s.writeLog(ctx, log, i, entry)
		return
	}

	a := out.applied
	if a.result.OverCapacity {
		log.Warn().
			Str("medicine_id", a.medicine.ID).
			Int("compartment", a.compartment).
			Int("new_quantity", a.result.NewQuantity).
			Int("max_capacity", *a.medicine.MaxCapacity).
			Msg("reading exceeds compartment capacity")
	}

	oldQty, newQty, delta := a.result.OldQuantity, a.result.NewQuantity, a.result.Delta
	result.Results = append(result.Results, ReadingResult{
		Compartment:    a.compartment,
		Medicine:       a.medicine.TradeName,
		MedicineID:     a.medicine.ID,
		OldQuantity:    &oldQty,
		NewQuantity:    &newQty,
		QuantityChange: &delta,
		Status:         string(a.status),
		OverCapacity:   a.result.OverCapacity,
	})
	if a.alert != nil {
		result.Alerts = append(result.Alerts, *a.alert)
	}
	*done = append(*done, a)

	entry.Processed = true
	counts[metrics.OutcomeProcessed]++
	s.writeLog(ctx, log, i, entry)
}

// reconcile locks the compartment's medicine, converts the weight and
// stores quantity, weight and scan time together.
func (s *SensorService) reconcile(ctx context.Context, cab *repository.Botiquin, compartment int, weight float64, now time.Time) (outcome, error) {
	med, err := s.medicines.GetByCompartmentForUpdate(ctx, cab.ID, compartment)
	if errors.Is(err, errors.ErrNotFound) {
		return outcome{empty: true}, nil
	}
	if err != nil {
		return outcome{}, err
	}

	rec, err := domain.Reconcile(domain.ReconcileInput{
		Weight:      weight,
		UnitWeight:  med.UnitWeight,
		Quantity:    med.Quantity,
		MaxCapacity: med.MaxCapacity,
	})
	if err != nil {
		return outcome{}, err
	}

	if err := s.medicines.ApplyReading(ctx, med.ID, rec.NewQuantity, weight, now); err != nil {
		return outcome{}, err
	}

	oldWeight := med.CurrentWeight
	med.Quantity = rec.NewQuantity
	med.CurrentWeight = &weight
	status := snapshotStatus(med, now)
	return outcome{applied: &applied{
		medicine:    med,
		compartment: compartment,
		weight:      weight,
		oldWeight:   oldWeight,
		result:      rec,
		status:      status,
		alert:       domain.AlertFor(status, med.TradeName),
	}}, nil
}

// writeLog records a reading in hardware_logs under its own savepoint so a
// failed insert never poisons the batch transaction.
func (s *SensorService) writeLog(ctx context.Context, log *logger.Logger, i int, entry *repository.HardwareLog) {
	err := s.db.Savepoint(ctx, fmt.Sprintf("log_%d", i), func(ctx context.Context) error {
		return s.logs.Create(ctx, entry)
	})
	if err != nil {
		log.Error().Err(err).Int("reading", i).Msg("failed to write hardware log")
	}
}

// afterCommit feeds the cache, the event bus and the metrics. Failures are
// logged and never returned.
func (s *SensorService) afterCommit(ctx context.Context, cab *repository.Botiquin, result *BatchResult, done []*applied, counts map[string]int, source string) {
	for kind, n := range counts {
		for j := 0; j < n; j++ {
			s.metrics.ObserveReading(kind)
		}
	}

	if err := s.cache.PutLatest(ctx, cab.HardwareID, result); err != nil {
		s.logger.Warn().Err(err).Str("hardware_id", cab.HardwareID).Msg("failed to cache batch result")
	}

	for _, a := range done {
		s.publisher.PublishSensorReconciled(ctx, events.Reading{
			BotiquinID:   cab.ID,
			HardwareID:   cab.HardwareID,
			CompanyID:    cab.CompanyID,
			MedicineID:   a.medicine.ID,
			MedicineName: a.medicine.TradeName,
			Compartment:  a.compartment,
			Weight:       a.weight,
			Result:       a.result,
			Status:       a.status,
		})
		if a.alert != nil {
			s.metrics.ObserveAlert(string(a.alert.Type))
			s.publisher.PublishAlertGenerated(ctx, a.alert, events.AlertSubject{
				MedicineID:   a.medicine.ID,
				MedicineName: a.medicine.TradeName,
				BotiquinID:   cab.ID,
				CompanyID:    cab.CompanyID,
				Status:       a.status,
			}, "sensor", result.Timestamp)
		}
	}

	s.publisher.PublishBatchProcessed(ctx, messaging.BatchProcessedEvent{
		BotiquinID: cab.ID,
		HardwareID: cab.HardwareID,
		CompanyID:  cab.CompanyID,
		Readings:   result.Processed + len(result.Errors),
		Processed:  result.Processed,
		Errors:     len(result.Errors),
		Alerts:     len(result.Alerts),
		Source:     source,
	})
}

// SingleReading is one compartment reading posted on its own.
type SingleReading struct {
	HardwareID  string   `json:"hardware_id"`
	Timestamp   string   `json:"timestamp,omitempty"`
	SensorType  string   `json:"sensor_type,omitempty"`
	Compartment *int     `json:"compartment"`
	Weight      *float64 `json:"weight"`
	Unit        string   `json:"unit,omitempty"`
}

// MedicineReading describes the medicine a single reading was applied to.
type MedicineReading struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Compartment    int           `json:"compartment"`
	OldWeight      *float64      `json:"old_weight"`
	NewWeight      float64       `json:"new_weight"`
	OldQuantity    int           `json:"old_quantity"`
	NewQuantity    int           `json:"new_quantity"`
	QuantityChange int           `json:"quantity_change"`
	Status         domain.Status `json:"status"`
	UnitWeight     *float64      `json:"unit_weight"`
	OverCapacity   bool          `json:"over_capacity,omitempty"`
}

// SingleResult answers a single reading. A reading for an empty
// compartment succeeds with a warning and no medicine.
type SingleResult struct {
	Success     bool             `json:"success"`
	Warning     string           `json:"warning,omitempty"`
	Botiquin    BotiquinRef      `json:"botiquin"`
	Compartment *int             `json:"compartment,omitempty"`
	Medicine    *MedicineReading `json:"medicine,omitempty"`
	Alert       *domain.Alert    `json:"alert,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// IngestSingle applies one reading. Unlike a batch, a reading that cannot
// be applied fails the request; it is still recorded in hardware_logs.
func (s *SensorService) IngestSingle(ctx context.Context, req SingleReading, raw json.RawMessage) (*SingleResult, error) {
	sensorType := req.SensorType
	if sensorType == "" {
		sensorType = "unknown"
	}
	entry := &repository.HardwareLog{
		SensorType:        &sensorType,
		RawData:           raw,
		CompartmentNumber: req.Compartment,
		WeightReading:     req.Weight,
	}

	details := map[string]string{}
	if strings.TrimSpace(req.HardwareID) == "" {
		details["hardware_id"] = "this field is required"
	}
	if req.Compartment == nil {
		details["compartment"] = "this field is required"
	}
	if req.Weight == nil {
		details["weight"] = "this field is required"
	}
	if len(details) > 0 {
		s.recordFailure(ctx, entry, "missing required fields")
		s.metrics.ObserveReading(metrics.OutcomeError)
		return nil, errors.Validation(details)
	}

	grams, err := toGrams(*req.Weight, req.Unit)
	if err != nil {
		s.recordFailure(ctx, entry, err.Error())
		s.metrics.ObserveReading(metrics.OutcomeError)
		return nil, errors.Validation(map[string]string{"unit": err.Error()})
	}

	hardwareID := strings.TrimSpace(req.HardwareID)
	now := s.clock.Now()

	var (
		cab *repository.Botiquin
		out outcome
	)
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		cab, err = s.botiquines.GetByHardwareIDForUpdate(ctx, hardwareID)
		if err != nil {
			return err
		}
		entry.BotiquinID = &cab.ID

		out, err = s.reconcile(ctx, cab, *req.Compartment, grams, now)
		if err != nil {
			return err
		}
		if out.empty {
			return nil
		}

		entry.Processed = true
		if err := s.logs.Create(ctx, entry); err != nil {
			return err
		}
		return s.botiquines.TouchLastSync(ctx, cab.ID, now)
	})
	if err != nil {
		s.recordFailure(ctx, entry, err.Error())
		s.metrics.ObserveReading(metrics.OutcomeError)
		if errors.Is(err, domain.ErrUnitWeightMissing) {
			return nil, errors.Configuration("medicine", err.Error())
		}
		return nil, err
	}

	result := &SingleResult{
		Success:   true,
		Botiquin:  BotiquinRef{ID: cab.ID, Name: cab.Name, HardwareID: cab.HardwareID},
		Timestamp: now.UTC(),
	}

	if out.empty {
		s.recordFailure(ctx, entry, errEmptyCompartment)
		s.metrics.ObserveReading(metrics.OutcomeEmpty)
		result.Warning = fmt.Sprintf("No medicine assigned to compartment %d", *req.Compartment)
		result.Compartment = req.Compartment
		return result, nil
	}

	a := out.applied
	result.Medicine = &MedicineReading{
		ID:             a.medicine.ID,
		Name:           a.medicine.TradeName,
		Compartment:    a.compartment,
		OldWeight:      a.oldWeight,
		NewWeight:      a.weight,
		OldQuantity:    a.result.OldQuantity,
		NewQuantity:    a.result.NewQuantity,
		QuantityChange: a.result.Delta,
		Status:         a.status,
		UnitWeight:     a.medicine.UnitWeight,
		OverCapacity:   a.result.OverCapacity,
	}
	result.Alert = a.alert

	batch := &BatchResult{
		Success:   true,
		Botiquin:  result.Botiquin,
		Processed: 1,
		Results: []ReadingResult{{
			Compartment:    a.compartment,
			Medicine:       a.medicine.TradeName,
			MedicineID:     a.medicine.ID,
			OldQuantity:    &result.Medicine.OldQuantity,
			NewQuantity:    &result.Medicine.NewQuantity,
			QuantityChange: &result.Medicine.QuantityChange,
			Status:         string(a.status),
			OverCapacity:   a.result.OverCapacity,
		}},
		Timestamp: result.Timestamp,
	}
	if a.alert != nil {
		batch.Alerts = []domain.Alert{*a.alert}
	}
	s.afterCommit(ctx, cab, batch, []*applied{a}, map[string]int{metrics.OutcomeProcessed: 1}, SourceHTTP)
	return result, nil
}

// recordFailure logs a reading that was not applied, outside any
// transaction so it survives the rollback.
func (s *SensorService) recordFailure(ctx context.Context, entry *repository.HardwareLog, msg string) {
	entry.Processed = false
	entry.ErrorMessage = &msg
	entry.ID = ""
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Msg("failed to write hardware log")
	}
}

// toGrams converts a reading to grams. Readings without a unit are grams.
func toGrams(weight float64, unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "g", "gram", "grams":
		return weight, nil
	case "kg", "kilogram", "kilograms":
		return weight * 1000, nil
	case "mg", "milligram", "milligrams":
		return weight / 1000, nil
	default:
		return 0, fmt.Errorf("unsupported weight unit %q", unit)
	}
}
