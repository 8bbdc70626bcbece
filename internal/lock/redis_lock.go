package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if this session's token still owns it.
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisDialer opens a dedicated Redis client per session.
// Locks are SET NX PX keys; the TTL only protects against holders that die
// without releasing and is never extended.
type RedisDialer struct {
	opts   *redis.Options
	ttl    time.Duration
	prefix string
}

// RedisDialerOption configures a RedisDialer.
type RedisDialerOption func(*RedisDialer)

// WithKeyPrefix sets the prefix for lock keys in Redis.
func WithKeyPrefix(prefix string) RedisDialerOption {
	return func(d *RedisDialer) {
		d.prefix = prefix
	}
}

// NewRedisDialer parses a redis:// URL and creates a dialer.
func NewRedisDialer(url string, ttl time.Duration, opts ...RedisDialerOption) (*RedisDialer, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d := &RedisDialer{
		opts:   redisOpts,
		ttl:    ttl,
		prefix: "lock:",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dial implements Dialer.
func (d *RedisDialer) Dial(ctx context.Context) (Session, error) {
	client := redis.NewClient(d.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &redisSession{
		client: client,
		ttl:    d.ttl,
		prefix: d.prefix,
		token:  uuid.NewString(),
	}, nil
}

type redisSession struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	token  string // owner identity for this session
}

func (s *redisSession) key(key int64) string {
	return s.prefix + formatKey(key)
}

// MaxHold implements HoldLimiter. The key expires after the TTL whether or not
// the work is done.
func (s *redisSession) MaxHold() time.Duration {
	return s.ttl
}

func (s *redisSession) TryLock(ctx context.Context, key int64) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), s.token, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set lock %d: %w", key, err)
	}
	return ok, nil
}

func (s *redisSession) Unlock(ctx context.Context, key int64) error {
	deleted, err := unlockScript.Run(ctx, s.client, []string{s.key(key)}, s.token).Int64()
	if err != nil {
		return fmt.Errorf("delete lock %d: %w", key, err)
	}
	if deleted == 0 {
		return fmt.Errorf("delete lock %d: %w", key, ErrLockNotHeld)
	}
	return nil
}

func (s *redisSession) Close(ctx context.Context) error {
	return s.client.Close()
}
