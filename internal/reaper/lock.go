package reaper

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker elects one sweeping replica. TryLock acquires leadership or extends it
// when this instance already holds it.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

var (
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLock is a lease held under key with a random owner token.
type RedisLock struct {
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisLock(client redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, token: uuid.NewString(), ttl: ttl}
}

func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return extended == 1, nil
}

func (l *RedisLock) Unlock(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
