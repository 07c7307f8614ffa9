// Package cache keeps the latest sensor batch per cabinet and a short list
// of recent alerts per company in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// ErrMiss is returned when nothing is cached under a key.
var ErrMiss = errors.New("cache miss")

const (
	latestPrefix = "botiquin:latest:"
	alertsPrefix = "botiquin:alerts:"

	// MaxRecentAlerts bounds each company's alert list.
	MaxRecentAlerts = 50

	// AllCompanies keys the cross-company alert list read by super admins.
	AllCompanies = "all"
)

// NewClient creates a Redis client from configuration.
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ReadingCache stores JSON documents with a TTL. A nil cache is valid:
// writes are dropped and reads miss.
type ReadingCache struct {
	c      *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewReadingCache creates a cache whose entries live for ttl.
func NewReadingCache(c *redis.Client, ttl time.Duration, log *logger.Logger) *ReadingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReadingCache{c: c, ttl: ttl, logger: log}
}

// PutLatest replaces the cached latest batch result of a cabinet.
func (rc *ReadingCache) PutLatest(ctx context.Context, hardwareID string, v any) error {
	if rc == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rc.c.Set(ctx, latestPrefix+hardwareID, data, rc.ttl).Err()
}

// Latest returns the cached latest batch result of a cabinet.
func (rc *ReadingCache) Latest(ctx context.Context, hardwareID string) (json.RawMessage, error) {
	if rc == nil {
		return nil, ErrMiss
	}
	val, err := rc.c.Get(ctx, latestPrefix+hardwareID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	return json.RawMessage(val), nil
}

// PushAlert prepends v to the company's recent alerts, keeping the newest
// MaxRecentAlerts.
func (rc *ReadingCache) PushAlert(ctx context.Context, companyID string, v any) error {
	if rc == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	key := alertsPrefix + companyID
	pipe := rc.c.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, MaxRecentAlerts-1)
	pipe.Expire(ctx, key, rc.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentAlerts returns up to n alerts for the company, newest first.
func (rc *ReadingCache) RecentAlerts(ctx context.Context, companyID string, n int) ([]json.RawMessage, error) {
	if rc == nil || n <= 0 {
		return []json.RawMessage{}, nil
	}
	vals, err := rc.c.LRange(ctx, alertsPrefix+companyID, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		out = append(out, json.RawMessage(v))
	}
	return out, nil
}

// Health returns the health status of the cache
func (rc *ReadingCache) Health(ctx context.Context) map[string]string {
	if rc == nil {
		return map[string]string{"status": "disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := rc.c.Ping(ctx).Err(); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}
	return map[string]string{"status": "up"}
}
