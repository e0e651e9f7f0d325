package secret

import (
	"fmt"

	"github.com/jmehdipour/hookrelay/internal/config"
	"github.com/redis/go-redis/v9"
)

// Open builds the process secret cache for the configured backend.
// rdb is only needed for the redis backend.
func Open(cfg config.SecretsConfig, rdb *redis.Client) (*Cache, error) {
	var store Provider
	switch cfg.Backend {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("secrets backend redis needs redis.addr")
		}
		store = NewRedisStore(rdb, cfg.KeyPrefix, cfg.Region)
	case "env", "":
		store = NewEnvStore()
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
	return NewCache(NewDocument(store), cfg.TTL, cfg.Timeout), nil
}
