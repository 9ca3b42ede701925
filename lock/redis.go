package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if we still own it.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Redis is a lease lock shared by every server talking to the same Redis.
// The lease expires after TTL so a crashed holder cannot block an employee
// forever.
type Redis struct {
	client     redis.Cmdable
	ttl        time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
	newToken   func() string
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption { return func(r *Redis) { r.ttl = ttl } }
func WithRetryDelay(d time.Duration) RedisOption { return func(r *Redis) { r.retryDelay = d } }
func WithLockLogger(l *zap.Logger) RedisOption { return func(r *Redis) { r.logger = l } }
func WithTokenSource(fn func() string) RedisOption { return func(r *Redis) { r.newToken = fn } }

func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		client:     client,
		ttl:        30 * time.Second,
		retryDelay: 50 * time.Millisecond,
		logger:     zap.NewNop(),
		newToken:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("lock.redis")
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	token := r.newToken()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-time.After(r.retryDelay):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			r.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
