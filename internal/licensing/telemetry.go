package licensing

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Telemetry key prefix and retention
	telemetryKeyPrefix = "authkey:telemetry:"
	telemetryTTL       = 30 * 24 * time.Hour
)

// Stats is the per-key validation telemetry shown on the dashboard.
type Stats struct {
	LastSeen *time.Time `json:"last_seen,omitempty"`
	Checks   int64      `json:"checks"`
	Denials  int64      `json:"denials"`
}

// Tracker records validation activity per license key in Redis. It is purely
// observational: the engine never reads it to make a decision, and list
// responses are enriched from it without caching any store data.
type Tracker struct {
	rdb *redis.Client
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb}
}

// Record notes one validation attempt for a key. Best effort: failures are
// ignored and a nil tracker or client is a no-op.
func (t *Tracker) Record(key string, valid bool) {
	if t == nil || t.rdb == nil {
		return
	}
	ctx := context.Background()
	k := telemetryKeyPrefix + key

	pipe := t.rdb.Pipeline()
	pipe.HIncrBy(ctx, k, "checks", 1)
	if !valid {
		pipe.HIncrBy(ctx, k, "denials", 1)
	}
	pipe.HSet(ctx, k, "last_seen", time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, k, telemetryTTL)
	pipe.Exec(ctx)
}

// Stats returns the recorded telemetry for a key, or nil when nothing has
// been recorded or no tracker is configured.
func (t *Tracker) Stats(key string) *Stats {
	if t == nil || t.rdb == nil {
		return nil
	}
	ctx := context.Background()

	fields, err := t.rdb.HGetAll(ctx, telemetryKeyPrefix+key).Result()
	if err != nil || len(fields) == 0 {
		return nil
	}

	stats := &Stats{}
	if v, err := strconv.ParseInt(fields["checks"], 10, 64); err == nil {
		stats.Checks = v
	}
	if v, err := strconv.ParseInt(fields["denials"], 10, 64); err == nil {
		stats.Denials = v
	}
	if ts, err := time.Parse(time.RFC3339, fields["last_seen"]); err == nil {
		stats.LastSeen = &ts
	}
	return stats
}

// Forget drops the telemetry for a deleted key.
func (t *Tracker) Forget(key string) {
	if t == nil || t.rdb == nil {
		return
	}
	t.rdb.Del(context.Background(), telemetryKeyPrefix+key)
}
