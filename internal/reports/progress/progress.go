package progress

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Sink records fractional completion (0-100) of a running report so the host
// UI can poll it. Progress is a side channel only; it never controls the
// run.
type Sink interface {
	Set(ctx context.Context, runID string, pct float64) error
	// Get returns the last recorded percentage and whether the run is known.
	Get(ctx context.Context, runID string) (float64, bool, error)
}

// RedisSink stores progress in Redis under a TTL'd per-run key.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSink(client *redis.Client, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

func progressKey(runID string) string {
	return "report:progress:" + runID
}

func (s *RedisSink) Set(ctx context.Context, runID string, pct float64) error {
	err := s.client.Set(ctx, progressKey(runID), strconv.FormatFloat(pct, 'f', 2, 64), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("store progress for run %s: %w", runID, err)
	}
	return nil
}

func (s *RedisSink) Get(ctx context.Context, runID string) (float64, bool, error) {
	val, err := s.client.Get(ctx, progressKey(runID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read progress for run %s: %w", runID, err)
	}
	pct, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed progress value %q for run %s", val, runID)
	}
	return pct, true, nil
}

// NopSink discards progress updates; used when Redis is disabled.
type NopSink struct{}

func (NopSink) Set(ctx context.Context, runID string, pct float64) error {
	return nil
}

func (NopSink) Get(ctx context.Context, runID string) (float64, bool, error) {
	return 0, false, nil
}
