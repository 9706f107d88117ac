package infra

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisWindowStore guarda cada janela como um sorted set:
// score = timestamp em milissegundos, member = timestamp+nonce.
//
// Prune, Count e Add são round-trips separados (enforcement "soft").
// Para enforcement estrito use RedisAtomicWindowStore.
type RedisWindowStore struct {
	rdb redis.Cmdable
}

func NewRedisWindowStore(rdb redis.Cmdable) *RedisWindowStore {
	return &RedisWindowStore{rdb: rdb}
}

func (s *RedisWindowStore) Prune(ctx context.Context, key string, before time.Time) error {
	max := strconv.FormatInt(before.UnixMilli(), 10)
	if err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", max).Err(); err != nil {
		return errors.Wrapf(err, "zremrangebyscore %s", key)
	}
	return nil
}

func (s *RedisWindowStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "zcard %s", key)
	}
	return int(n), nil
}

func (s *RedisWindowStore) Add(ctx context.Context, key string, at time.Time, member string, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "zadd %s", key)
	}
	return nil
}

func (s *RedisWindowStore) Oldest(ctx context.Context, key string) (time.Time, bool, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "zrange %s", key)
	}
	if len(zs) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(zs[0].Score)), true, nil
}

func (s *RedisWindowStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "del %s", key)
	}
	return nil
}
