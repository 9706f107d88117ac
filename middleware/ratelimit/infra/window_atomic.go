package infra

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

//go:embed sliding_window.lua
var slidingWindowLua string

var slidingWindowScript = redis.NewScript(slidingWindowLua)

// RedisAtomicWindowStore faz prune+count+add num único script Lua, eliminando a
// corrida check-then-act entre requisições concorrentes da mesma chave.
type RedisAtomicWindowStore struct {
	*RedisWindowStore
}

func NewRedisAtomicWindowStore(rdb redis.Cmdable) *RedisAtomicWindowStore {
	return &RedisAtomicWindowStore{RedisWindowStore: NewRedisWindowStore(rdb)}
}

func (s *RedisAtomicWindowStore) Hit(ctx context.Context, key string, now, windowStart time.Time, max int, member string, ttl time.Duration) (bool, int, error) {
	res, err := slidingWindowScript.Run(ctx, s.rdb, []string{key},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		max,
		member,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, errors.Wrapf(err, "sliding window script %s", key)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected sliding window result: %v", res)
	}
	return res[0] == 1, int(res[1]), nil
}
