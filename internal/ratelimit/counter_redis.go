package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
	"github.com/redis/go-redis/v9"
)

const redisActionPrefix = "ratelimit:actions:"

// RedisCounterStore keeps one sorted set per actor and action. Members are the
// encoded records, scored by PerformedAt in microseconds so scores stay exact
// in a float64.
type RedisCounterStore struct {
	redis     *storage.RedisClient
	retention time.Duration
}

var _ CounterStore = (*RedisCounterStore)(nil)

func NewRedisCounterStore(redis *storage.RedisClient, retention time.Duration) *RedisCounterStore {
	return &RedisCounterStore{
		redis:     redis,
		retention: retention,
	}
}

type redisMember struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func redisActionKey(actorID, action string) string {
	return fmt.Sprintf("%s%s:%s", redisActionPrefix, actorID, action)
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func (s *RedisCounterStore) Append(ctx context.Context, record *models.ActionRecord) error {
	member, err := json.Marshal(redisMember{ID: record.ID, Metadata: record.Metadata})
	if err != nil {
		return fmt.Errorf("encoding action record: %w", err)
	}

	key := redisActionKey(record.ActorID, record.Action)

	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(record.PerformedAt.UnixMicro()),
		Member: string(member),
	})
	// The whole set can go once its newest record is past retention
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending action record: %w", err)
	}
	return nil
}

func (s *RedisCounterStore) CountSince(ctx context.Context, actorID, action string, since time.Time) (int, error) {
	count, err := s.redis.ZCount(ctx, redisActionKey(actorID, action), score(since), "+inf")
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *RedisCounterStore) OldestSince(ctx context.Context, actorID, action string, since time.Time) (time.Time, bool, error) {
	oldest, err := s.redis.ZOldest(ctx, redisActionKey(actorID, action), score(since), "+inf")
	if err != nil {
		return time.Time{}, false, err
	}
	if len(oldest) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMicro(int64(oldest[0].Score)).UTC(), true, nil
}

func (s *RedisCounterStore) PruneOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	var pruned int64
	// "(" makes the upper bound exclusive: PerformedAt < horizon
	max := "(" + score(horizon)

	err := s.redis.ScanKeys(ctx, redisActionPrefix+"*", func(key string) error {
		n, err := s.redis.ZRemRangeByScore(ctx, key, "-inf", max)
		if err != nil {
			return fmt.Errorf("pruning %s: %w", key, err)
		}
		pruned += n
		return nil
	})
	return pruned, err
}
