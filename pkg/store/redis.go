package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vitalgrid/healthwatch/pkg/health"
)

// RedisStore keeps each (user, metric kind) series in a sorted set
// scored by unix millisecond timestamp. Schema ownership stays with
// the storage collaborator; this adapter only reads and appends.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func seriesKey(userID string, kind health.MetricKind) string {
	return fmt.Sprintf("hw:series:%s:%s", userID, kind)
}

type redisPoint struct {
	Timestamp int64   `json:"ts"`
	Value     float64 `json:"v"`
	Unit      string  `json:"u,omitempty"`
}

// Add appends a point to the user's series.
func (r *RedisStore) Add(ctx context.Context, userID string, point health.MetricPoint) error {
	member, err := json.Marshal(redisPoint{
		Timestamp: point.Timestamp.UnixMilli(),
		Value:     point.Value,
		Unit:      point.Unit,
	})
	if err != nil {
		return fmt.Errorf("encode point: %w", err)
	}
	return r.client.ZAdd(ctx, seriesKey(userID, point.Kind), &redis.Z{
		Score:  float64(point.Timestamp.UnixMilli()),
		Member: string(member),
	}).Err()
}

// FetchSeries implements MetricStore. A missing key reads as an empty
// series, never an error.
func (r *RedisStore) FetchSeries(ctx context.Context, userID string, kind health.MetricKind, since, until time.Time) (health.MetricSeries, error) {
	members, err := r.client.ZRangeByScore(ctx, seriesKey(userID, kind), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixMilli()),
		Max: fmt.Sprintf("%d", until.UnixMilli()),
	}).Result()
	if err == redis.Nil {
		return health.MetricSeries{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch series %s/%s: %w", userID, kind, err)
	}

	series := make(health.MetricSeries, 0, len(members))
	for _, m := range members {
		var rp redisPoint
		if err := json.Unmarshal([]byte(m), &rp); err != nil {
			// One corrupt member must not sink the whole series.
			continue
		}
		series = append(series, health.MetricPoint{
			Timestamp: time.UnixMilli(rp.Timestamp).UTC(),
			Kind:      kind,
			Value:     rp.Value,
			Unit:      rp.Unit,
		})
	}
	return series, nil
}
