package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/khanglvm/graphrag-agent/internal/observability"
)

const (
	lockKeyPrefix      = "graphrag:session-lock:"
	defaultLockTTL     = 5 * time.Minute
	defaultPollEvery   = 100 * time.Millisecond
	releaseLockTimeout = 5 * time.Second
)

// releaseScript deletes the lock only if it still carries our token, so an
// expired holder never frees a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes runs across processes sharing one Redis.
//
// The lock expires after ttl so a crashed holder cannot wedge a session;
// ttl should exceed the run timeout.
type RedisLocker struct {
	client    *redis.Client
	ttl       time.Duration
	pollEvery time.Duration
	policy    Policy
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client *redis.Client, ttl time.Duration, policy Policy) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if policy == "" {
		policy = PolicyQueue
	}
	return &RedisLocker{
		client:    client,
		ttl:       ttl,
		pollEvery: defaultPollEvery,
		policy:    policy,
	}
}

// Lock implements Locker. Waiters poll; ordering among them is not
// guaranteed.
func (l *RedisLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := lockKeyPrefix + sessionID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			break
		}
		if l.policy == PolicyReject {
			return nil, ErrSessionBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollEvery):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseLockTimeout)
			defer cancel()

			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
				observability.Logger().Warn("failed to release session lock", "session_id", sessionID, "error", err)
			}
		})
	}, nil
}
