package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	errx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/core/error"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

type RedisHistoryRepository struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	limit int
}

// NewRedisHistoryRepository keeps at most limit entries per key; limit <= 0 keeps all.
func NewRedisHistoryRepository(rdb redis.Cmdable, ttl time.Duration, limit int) *RedisHistoryRepository {
	return &RedisHistoryRepository{rdb: rdb, ttl: ttl, limit: limit}
}

func (r *RedisHistoryRepository) historyKey(key string) string {
	return fmt.Sprintf("history:%s:runs", key)
}

func (r *RedisHistoryRepository) Append(ctx context.Context, key string, entry model.HistoryEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to marshal history entry")
		return fmt.Errorf("marshal history entry: %w", err)
	}
	k := r.historyKey(key)

	// append entry
	if err := r.rdb.RPush(ctx, k, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to push history entry to redis")
		return errx.WrapRedis(err)
	}
	if r.limit > 0 {
		if err := r.rdb.LTrim(ctx, k, int64(-r.limit), -1).Err(); err != nil {
			logx.Error().Err(err).Str("key", k).Msg("failed to trim history")
			return errx.WrapRedis(err)
		}
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, k, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", k).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", k).Dur("ttl", r.ttl).Msg("failed to set TTL on history key")
		}
	}
	return nil
}

func (r *RedisHistoryRepository) Recent(ctx context.Context, key string, n int) ([]model.HistoryEntry, error) {
	if n <= 0 {
		return []model.HistoryEntry{}, nil
	}
	k := r.historyKey(key)

	rows, err := r.rdb.LRange(ctx, k, int64(-n), -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.HistoryEntry{}, nil
		}
		logx.Error().Err(err).Str("key", k).Msg("failed to load history from redis")
		return nil, errx.WrapRedis(err)
	}

	entries := make([]model.HistoryEntry, 0, len(rows))
	for i, s := range rows {
		var e model.HistoryEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			logx.Error().Err(err).Str("key", k).Int("index", i).Msg("failed to unmarshal history entry")
			return nil, fmt.Errorf("unmarshal history entry at index %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisHistoryRepository) Clear(ctx context.Context, key string) error {
	k := r.historyKey(key)
	if err := r.rdb.Del(ctx, k).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to delete history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisHistoryRepository) Count(ctx context.Context, key string) (int, error) {
	k := r.historyKey(key)
	n, err := r.rdb.LLen(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", k).Msg("failed to get history count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.HistoryRepository = (*RedisHistoryRepository)(nil)
