package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries the caller's token.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
}

// Redis is a lease on SET NX PX.
type Redis struct {
	rdb    redisClient
	prefix string
}

// NewRedis constructs a Redis-backed lease; keys are stored as prefix+key.
func NewRedis(rdb redisClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "lumen:lease:"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

// DialRedis connects and pings a Redis server.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// TryAcquire sets the key if absent.
func (l *Redis) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token, err := uuid.NewV4()
	if err != nil {
		return "", false, err
	}
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, token.String(), ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token.String(), true, nil
}

// Release deletes the key if token still owns it.
func (l *Redis) Release(ctx context.Context, key, token string) error {
	return l.rdb.Eval(ctx, releaseScript, []string{l.prefix + key}, token).Err()
}
