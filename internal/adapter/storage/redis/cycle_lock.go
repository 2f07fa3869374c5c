package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired holder cannot release a lock taken over by another replica.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CycleLock implements ports.CycleLock using Redis SET NX.
type CycleLock struct {
	client *goredis.Client
	prefix string
}

// NewCycleLock creates a new Redis-backed cycle lock.
func NewCycleLock(client *goredis.Client) *CycleLock {
	return &CycleLock{
		client: client,
		prefix: "lock:",
	}
}

// Acquire sets the lock key if absent. Returns ok=false if another holder
// owns it. The lock expires after ttl even if never released.
func (l *CycleLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := l.client.SetArgs(ctx, l.prefix+name, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis lock acquire: %w", err)
	}
	return token, result == "OK", nil
}

// Release drops the lock if token still owns it.
func (l *CycleLock) Release(ctx context.Context, name string, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, token).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
