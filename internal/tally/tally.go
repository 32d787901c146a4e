package tally

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyTTL keeps a day's counter around long enough for late readers.
const keyTTL = 48 * time.Hour

// Counter tracks admitted check-ins per course per lecture date.
type Counter interface {
	Incr(ctx context.Context, course string, day time.Time) (int64, error)
	Count(ctx context.Context, course string, day time.Time) (int64, error)
}

// Redis is a Counter backed by INCR on per-day keys.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed Counter.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Key returns the counter key for course on day.
func Key(course string, day time.Time) string {
	return fmt.Sprintf("attendance:tally:%s:%s", course, day.Format(time.DateOnly))
}

// Incr bumps the counter and refreshes its expiry.
func (r *Redis) Incr(ctx context.Context, course string, day time.Time) (int64, error) {
	key := Key(course, day)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Count returns the counter, or zero when nothing was tallied.
func (r *Redis) Count(ctx context.Context, course string, day time.Time) (int64, error) {
	key := Key(course, day)
	n, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return n, nil
}
