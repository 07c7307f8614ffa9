package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/botiquin/botiquin-backend/pkg/database"
)

// HardwareLog records one message received from cabinet hardware, whether
// or not it could be applied.
type HardwareLog struct {
	ID                string          `db:"id" json:"id"`
	BotiquinID        *string         `db:"botiquin_id" json:"botiquin_id,omitempty"`
	CompartmentNumber *int            `db:"compartment_number" json:"compartment_number,omitempty"`
	WeightReading     *float64        `db:"weight_reading" json:"weight_reading,omitempty"`
	SensorType        *string         `db:"sensor_type" json:"sensor_type,omitempty"`
	RawData           json.RawMessage `db:"raw_data" json:"raw_data,omitempty"`
	Processed         bool            `db:"processed" json:"processed"`
	ErrorMessage      *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// HardwareLogFilter narrows List.
type HardwareLogFilter struct {
	CompanyID  *string
	BotiquinID *string
	Processed  *bool
	Limit      int
}

// HardwareLogRepository handles hardware log persistence
type HardwareLogRepository struct {
	db *database.DB
}

// NewHardwareLogRepository creates a new hardware log repository
func NewHardwareLogRepository(db *database.DB) *HardwareLogRepository {
	return &HardwareLogRepository{db: db}
}

// Create inserts l, assigning an id when empty.
func (r *HardwareLogRepository) Create(ctx context.Context, l *HardwareLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}

	var raw *string
	if len(l.RawData) > 0 {
		s := string(l.RawData)
		raw = &s
	}

	query := `
		INSERT INTO hardware_logs (
			id, botiquin_id, compartment_number, weight_reading, sensor_type,
			raw_data, processed, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	return r.db.Conn(ctx).QueryRowxContext(ctx, query,
		l.ID, l.BotiquinID, l.CompartmentNumber, l.WeightReading, l.SensorType,
		raw, l.Processed, l.ErrorMessage,
	).Scan(&l.CreatedAt)
}

// List returns the newest logs first.
func (r *HardwareLogRepository) List(ctx context.Context, f HardwareLogFilter) ([]*HardwareLog, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CompanyID != nil {
		id, ok := canonicalID(*f.CompanyID)
		if !ok {
			return []*HardwareLog{}, nil
		}
		add("b.company_id = $%d", id)
	}
	if f.BotiquinID != nil {
		id, ok := canonicalID(*f.BotiquinID)
		if !ok {
			return []*HardwareLog{}, nil
		}
		add("l.botiquin_id = $%d", id)
	}
	if f.Processed != nil {
		add("l.processed = $%d", *f.Processed)
	}

	query := `
		SELECT l.id, l.botiquin_id, l.compartment_number, l.weight_reading, l.sensor_type,
		       COALESCE(l.raw_data, '{}'::jsonb) AS raw_data, l.processed, l.error_message, l.created_at
		FROM hardware_logs l
		LEFT JOIN botiquines b ON b.id = l.botiquin_id
	`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY l.created_at DESC LIMIT $%d`, len(args))

	logs := []*HardwareLog{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, err
	}
	return logs, nil
}
