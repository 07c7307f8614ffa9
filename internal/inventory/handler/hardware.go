package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// HardwareKeyHeader carries the shared key cabinets authenticate with.
const HardwareKeyHeader = "X-Hardware-Key"

// maxReadingBody bounds a hardware request body.
const maxReadingBody = 1 << 20

// HardwareHandler handles the endpoints cabinets call
type HardwareHandler struct {
	sensor *service.SensorService
	logger *logger.Logger
}

// NewHardwareHandler creates a new hardware handler
func NewHardwareHandler(svc *service.SensorService, log *logger.Logger) *HardwareHandler {
	return &HardwareHandler{
		sensor: svc,
		logger: log,
	}
}

// RequireHardwareKey rejects requests whose X-Hardware-Key does not match
// key. An empty key disables the check.
func RequireHardwareKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HardwareKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				httputil.Error(w, r, errors.Unauthorized("invalid hardware key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensorData applies a single compartment reading
func (h *HardwareHandler) SensorData(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxReadingBody))
	if err != nil {
		httputil.Error(w, r, errors.BadRequest("failed to read body"))
		return
	}

	var req service.SingleReading
	if err := json.Unmarshal(raw, &req); err != nil {
		httputil.Error(w, r, errors.BadRequest("invalid JSON body"))
		return
	}

	result, err := h.sensor.IngestSingle(r.Context(), req, raw)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Raw(w, http.StatusOK, result)
}

// BatchSensorData applies every reading of a cabinet batch. The result is
// written without the envelope.
func (h *HardwareHandler) BatchSensorData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReadingBody)

	var req service.BatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	result, err := h.sensor.IngestBatch(r.Context(), req, service.SourceHTTP)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Raw(w, http.StatusOK, result)
}

// TestConnection answers a connectivity check. The body is optional.
func (h *HardwareHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HardwareID string `json:"hardware_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		httputil.Error(w, r, errors.BadRequest("invalid JSON body"))
		return
	}

	status, err := h.sensor.TestConnection(r.Context(), req.HardwareID)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Raw(w, http.StatusOK, status)
}

// Register binds new hardware to a cabinet
func (h *HardwareHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	result, err := h.sensor.RegisterHardware(r.Context(), req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created() {
		status = http.StatusCreated
	}
	httputil.Raw(w, status, result)
}

// Latest returns the last batch result cached for the hardware
func (h *HardwareHandler) Latest(w http.ResponseWriter, r *http.Request) {
	data, err := h.sensor.LatestBatch(r.Context(), chi.URLParam(r, "hardware_id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Raw(w, http.StatusOK, data)
}

// Logs lists hardware logs, newest first
func (h *HardwareHandler) Logs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := service.LogQuery{}

	if id := query.Get("botiquin_id"); id != "" {
		q.BotiquinID = &id
	}
	if p := query.Get("processed"); p != "" {
		processed, err := strconv.ParseBool(p)
		if err != nil {
			httputil.Error(w, r, errors.Validation(map[string]string{"processed": "must be true or false"}))
			return
		}
		q.Processed = &processed
	}
	q.Limit, _ = strconv.Atoi(query.Get("limit"))

	logs, err := h.sensor.ListLogs(r.Context(), q)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, logs)
}
