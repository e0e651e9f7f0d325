package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore reads secrets stored as plain redis strings under <prefix><region>/<name>.
type RedisStore struct {
	rdb    getter
	prefix string
	region string
}

func NewRedisStore(rdb getter, prefix, region string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, region: strings.Trim(region, "/")}
}

func (s *RedisStore) key(name string) string {
	if s.region == "" {
		return s.prefix + name
	}
	return s.prefix + s.region + "/" + name
}

func (s *RedisStore) Secret(ctx context.Context, name string) (string, error) {
	val, err := s.rdb.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("redis get secret %s: %w", name, err)
	}
	return val, nil
}
