package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UserLockKey builds the redis key for the per-user mutation critical section.
func UserLockKey(userID string) string {
	return fmt.Sprintf("accounts:user:%s:mutation", userID)
}

// UserLocker serializes privileged mutations per target user via a redis
// advisory lock. Contention past MaxWait surfaces as ErrConflict.
type UserLocker struct {
	client  *redis.Client
	ttl     time.Duration
	maxWait time.Duration
}

// NewUserLocker returns a locker with the given lock TTL and bounded wait.
func NewUserLocker(client *redis.Client, ttl, maxWait time.Duration) *UserLocker {
	return &UserLocker{client: client, ttl: ttl, maxWait: maxWait}
}

// Acquire takes the lock for userID, polling until maxWait elapses. The
// returned release function is safe to call after the TTL expired; it only
// removes the lock if this caller still owns it.
func (l *UserLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	key := UserLockKey(userID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, NewUpstreamError("lock acquire", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrConflict
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// release deletes the lock only when still held by this token.
func (l *UserLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
	_ = l.client.Eval(ctx, script, []string{key}, token).Err()
}
