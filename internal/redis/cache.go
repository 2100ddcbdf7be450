package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AvailabilityCache keeps one key per (pharmacy, date) holding whether that
// date still has any open slot, so calendar views don't hit Postgres on
// every request. Entries expire on their own; a successful booking deletes
// the day it touched.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{
		client: client,
		ttl:    ttl,
	}
}

func dayKey(pharmacyID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("avail:%s:%s", pharmacyID, date.Format("2006-01-02"))
}

// GetDays returns the cached flags that exist for the given dates, keyed by
// the 2006-01-02 form. Dates with no entry are simply absent from the map.
func (c *AvailabilityCache) GetDays(ctx context.Context, pharmacyID uuid.UUID, dates []time.Time) (map[string]bool, error) {
	if len(dates) == 0 {
		return map[string]bool{}, nil
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = dayKey(pharmacyID, d)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget availability: %w", err)
	}

	out := make(map[string]bool, len(dates))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[dates[i].Format("2006-01-02")] = s == "1"
	}

	return out, nil
}

func (c *AvailabilityCache) SetDay(ctx context.Context, pharmacyID uuid.UUID, date time.Time, available bool) error {
	v := "0"
	if available {
		v = "1"
	}
	if err := c.client.Set(ctx, dayKey(pharmacyID, date), v, c.ttl).Err(); err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) InvalidateDay(ctx context.Context, pharmacyID uuid.UUID, date time.Time) error {
	if err := c.client.Del(ctx, dayKey(pharmacyID, date)).Err(); err != nil {
		return fmt.Errorf("del availability: %w", err)
	}
	return nil
}
