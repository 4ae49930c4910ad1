package closure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises closure per period key across concurrent requests.
type Locker interface {
	// Acquire takes the lock for key and returns a release function, or
	// ErrPeriodLocked when another invocation holds it. The release
	// function must run on every exit path.
	Acquire(ctx context.Context, key string) (func(), error)
}

// RedisLocker is a Redis SET-NX advisory lock with TTL expiry, so an
// operator crash cannot wedge a period forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker constructs a RedisLocker.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// releaseScript deletes the lock only when this invocation still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPeriodLocked
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
