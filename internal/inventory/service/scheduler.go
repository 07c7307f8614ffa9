package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/metrics"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
)

// DefaultSweepSchedule runs the sweep every morning at 06:00.
const DefaultSweepSchedule = "0 6 * * *"

const sweepTimeout = 5 * time.Minute

// StatusSweeper periodically classifies every medicine. Expiry based
// statuses change as days pass without any write, so alerts for them can
// only come from a scheduled pass.
type StatusSweeper struct {
	cron      *cron.Cron
	schedule  string
	medicines MedicineStore
	publisher *events.InventoryEventPublisher
	metrics   *metrics.Metrics
	clock     domain.Clock
	logger    *logger.Logger
}

// NewStatusSweeper creates a sweeper on a standard five-field cron schedule.
func NewStatusSweeper(
	schedule string,
	medicines MedicineStore,
	publisher *events.InventoryEventPublisher,
	m *metrics.Metrics,
	clock domain.Clock,
	log *logger.Logger,
) *StatusSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &StatusSweeper{
		cron:      cron.New(),
		schedule:  schedule,
		medicines: medicines,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
		logger:    log.WithComponent("status-sweeper"),
	}
}

// Start schedules the sweep and starts the cron runner.
func (s *StatusSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("status sweeper started")
	return nil
}

// Stop stops the runner and waits for a running sweep to finish.
func (s *StatusSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("status sweeper stopped")
}

func (s *StatusSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error().Err(err).Msg("status sweep failed")
	}
}

// Sweep classifies every medicine once, publishes an alert for each one
// that needs attention and a summary of the pass.
func (s *StatusSweeper) Sweep(ctx context.Context) (*messaging.StatusSweptEvent, error) {
	start := time.Now()
	medicines, err := s.medicines.List(ctx, repository.MedicineFilter{})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	summary := &messaging.StatusSweptEvent{ByStatus: map[string]int{}}
	for _, st := range domain.AllStatuses {
		summary.ByStatus[string(st)] = 0
	}

	for _, m := range medicines {
		status := snapshotStatus(&m.Medicine, now)
		summary.Evaluated++
		summary.ByStatus[string(status)]++

		alert := domain.AlertFor(status, m.TradeName)
		if alert == nil {
			continue
		}
		if alert.Type == domain.AlertCritical {
			summary.Critical++
		} else {
			summary.Warning++
		}

		view := NewMedicineView(m, now)
		s.metrics.ObserveAlert(string(alert.Type))
		s.publisher.PublishAlertGenerated(ctx, alert, subjectOf(view), "sweep", now)
	}

	s.metrics.SetStatusCounts(summary.ByStatus)
	s.publisher.PublishStatusSwept(ctx, *summary)

	s.logger.Info().
		Int("evaluated", summary.Evaluated).
		Int("critical", summary.Critical).
		Int("warning", summary.Warning).
		Dur("duration", time.Since(start)).
		Msg("status sweep completed")
	return summary, nil
}
