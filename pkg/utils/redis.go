package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig sizes the client shared by the task queue and the lease locker.
// Zero values take the defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize int
	// Timeout bounds dial, read, write and the startup ping.
	Timeout time.Duration
	// MaxConnAge recycles connections so failovers are picked up.
	MaxConnAge time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.MaxConnAge <= 0 {
		c.MaxConnAge = 30 * time.Minute
	}
	return c
}

func (c RedisConfig) options() *redis.Options {
	return &redis.Options{
		Addr:            c.Addr,
		Password:        c.Password,
		DB:              c.DB,
		PoolSize:        c.PoolSize,
		DialTimeout:     c.Timeout,
		ReadTimeout:     c.Timeout,
		WriteTimeout:    c.Timeout,
		PoolTimeout:     c.Timeout + time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: c.MaxConnAge,
	}
}

// OpenRedis connects and pings; the client is closed again if the ping fails.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	cfg = cfg.withDefaults()
	rdb := redis.NewClient(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Deletes the key only while it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

var errLockArgs = errors.New("redis: lock needs a client, a key and a positive ttl")

// Locker grants exclusive leases (SET NX PX). ATS token refreshes and scheduler ticks use it
// so that only one worker acts at a time. A holder that overruns ttl loses the lease silently.
type Locker struct {
	rdb    redis.Cmdable
	prefix string
}

func NewLocker(rdb redis.Cmdable, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

// Acquire makes one attempt at key. ok=false with a nil error means someone else holds it.
// release is a no-op once the lease has expired or passed to another holder.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	if l == nil || l.rdb == nil || key == "" || ttl <= 0 {
		return nil, false, errLockArgs
	}
	full, token := l.prefix+key, uuid.NewString()
	if ok, err = l.rdb.SetNX(ctx, full, token, ttl).Result(); err != nil || !ok {
		return nil, false, err
	}
	release = func(ctx context.Context) error {
		return releaseLockScript.Run(ctx, l.rdb, []string{full}, token).Err()
	}
	return release, true, nil
}
