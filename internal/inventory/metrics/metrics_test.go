package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveReading(OutcomeProcessed)
	m.ObserveReading(OutcomeProcessed)
	m.ObserveReading(OutcomeError)
	m.ObserveAlert("critical")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.readings.WithLabelValues(OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readings.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("critical")))
}

func TestMetrics_StatusCountsReplace(t *testing.T) {
	m := New()

	m.SetStatusCounts(map[string]int{"OK": 3, "EXPIRED": 1})
	m.SetStatusCounts(map[string]int{"OK": 4})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.byStatus.WithLabelValues("OK")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.byStatus))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveBatch(time.Now().Add(-50 * time.Millisecond))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "botiquin_sensor_batch_duration_seconds_count 1")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReading(OutcomeEmpty)
		m.ObserveAlert("warning")
		m.ObserveBatch(time.Now())
		m.SetStatusCounts(map[string]int{"OK": 1})
	})
}
