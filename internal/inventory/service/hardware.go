package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/botiquin/botiquin-backend/internal/inventory/cache"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
)

// Registration outcomes.
const (
	StatusRegistered        = "registered"
	StatusAlreadyRegistered = "already_registered"
)

// RegisterRequest announces a cabinet's hardware to the backend.
type RegisterRequest struct {
	HardwareID   string  `json:"hardware_id"`
	CompanyID    string  `json:"company_id"`
	Name         string  `json:"name"`
	Location     *string `json:"location"`
	Compartments *int    `json:"compartments"`
	Rows         *int    `json:"rows"`
	Cols         *int    `json:"cols"`
}

// RegisterResult reports the cabinet the hardware is bound to.
type RegisterResult struct {
	Status   string               `json:"status"`
	Botiquin *repository.Botiquin `json:"botiquin"`
	Message  string               `json:"message,omitempty"`
}

// Created reports whether the registration created the cabinet.
func (r *RegisterResult) Created() bool {
	return r.Status == StatusRegistered
}

// RegisterHardware creates the cabinet for new hardware. Registering known
// hardware again returns the existing cabinet unchanged.
func (s *SensorService) RegisterHardware(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.HardwareID = strings.TrimSpace(req.HardwareID)
	req.CompanyID = strings.TrimSpace(req.CompanyID)
	req.Name = strings.TrimSpace(req.Name)

	details := map[string]string{}
	if req.HardwareID == "" {
		details["hardware_id"] = "this field is required"
	}
	if req.CompanyID == "" {
		details["company_id"] = "this field is required"
	}
	if req.Name == "" {
		details["name"] = "this field is required"
	}
	if req.Compartments != nil && *req.Compartments < 1 {
		details["compartments"] = "must be greater than 0"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	existing, err := s.botiquines.GetByHardwareID(ctx, req.HardwareID)
	if err == nil {
		return &RegisterResult{Status: StatusAlreadyRegistered, Botiquin: existing}, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if _, err := s.companies.GetByID(ctx, req.CompanyID); err != nil {
		return nil, err
	}

	compartments := DefaultCompartments
	if req.Compartments != nil {
		compartments = *req.Compartments
	}
	var rows, cols int
	if req.Rows != nil && req.Cols != nil {
		rows, cols = *req.Rows, *req.Cols
	}
	rows, cols = GridFor(compartments, rows, cols)

	now := s.clock.Now()
	b := &repository.Botiquin{
		CompanyID:         req.CompanyID,
		HardwareID:        req.HardwareID,
		Name:              req.Name,
		Location:          req.Location,
		TotalCompartments: compartments,
		CompartmentRows:   rows,
		CompartmentCols:   cols,
		Active:            true,
		LastSyncAt:        &now,
	}
	if err := s.botiquines.Create(ctx, b); err != nil {
		// lost a race with another registration of the same hardware
		if errors.Is(err, errors.ErrConflict) {
			if existing, getErr := s.botiquines.GetByHardwareID(ctx, req.HardwareID); getErr == nil {
				return &RegisterResult{Status: StatusAlreadyRegistered, Botiquin: existing}, nil
			}
		}
		return nil, err
	}

	s.logger.Info().
		Str("hardware_id", b.HardwareID).
		Str("botiquin_id", b.ID).
		Int("compartments", compartments).
		Msg("hardware registered")

	return &RegisterResult{
		Status:   StatusRegistered,
		Botiquin: b,
		Message:  fmt.Sprintf("Hardware registered successfully as '%s'", b.Name),
	}, nil
}

// ConnectionStatus answers a hardware connectivity check.
type ConnectionStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	HardwareID    string    `json:"hardware_id"`
	BotiquinFound bool      `json:"botiquin_found"`
	BotiquinName  *string   `json:"botiquin_name"`
	Message       string    `json:"message"`
}

// TestConnection tells hardware the API is reachable and whether its
// identifier is registered.
func (s *SensorService) TestConnection(ctx context.Context, hardwareID string) (*ConnectionStatus, error) {
	hardwareID = strings.TrimSpace(hardwareID)
	if hardwareID == "" {
		hardwareID = "unknown"
	}

	status := &ConnectionStatus{
		Status:     "connected",
		Timestamp:  s.clock.Now().UTC(),
		HardwareID: hardwareID,
		Message:    "Hardware connection successful",
	}
	if hardwareID == "unknown" {
		return status, nil
	}

	b, err := s.botiquines.GetByHardwareID(ctx, hardwareID)
	switch {
	case err == nil:
		status.BotiquinFound = true
		status.BotiquinName = &b.Name
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}
	return status, nil
}

// LogQuery filters ListLogs. Limit defaults to 100.
type LogQuery struct {
	BotiquinID *string
	Processed  *bool
	Limit      int
}

// ListLogs returns hardware logs newest first, limited to the caller's
// company when the caller is a company admin.
func (s *SensorService) ListLogs(ctx context.Context, q LogQuery) ([]*repository.HardwareLog, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	return s.logs.List(ctx, repository.HardwareLogFilter{
		CompanyID:  actor.FromContext(ctx).CompanyScope(),
		BotiquinID: q.BotiquinID,
		Processed:  q.Processed,
		Limit:      limit,
	})
}

// LatestBatch returns the last batch result cached for the hardware.
func (s *SensorService) LatestBatch(ctx context.Context, hardwareID string) (json.RawMessage, error) {
	data, err := s.cache.Latest(ctx, hardwareID)
	if errors.Is(err, cache.ErrMiss) {
		return nil, errors.NotFound("hardware_log")
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
